package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"agrisms/internal/directory"
	"agrisms/internal/dispatch"
	"agrisms/internal/model"
	"agrisms/internal/store"
	logx "agrisms/pkg/logx"
)

func (s *Server) handleInsertResult(c *gin.Context) {
	var payload model.InsertPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return
	}

	rec, err := s.store.Insert(c.Request.Context(), payload)
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
			return
		}
		s.log.Error("insert failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": rec.ID, "timestamp": rec.Timestamp})
}

func (s *Server) handleListResults(c *gin.Context) {
	sums, err := s.store.List(c.Request.Context())
	if err != nil {
		s.log.Error("list failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": sums, "total_count": len(sums)})
}

func (s *Server) handleGetResult(c *gin.Context) {
	rec, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}
	if err != nil {
		s.log.Error("get failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDeleteResult(c *gin.Context) {
	err := s.store.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}
	if err != nil {
		s.log.Error("delete failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) handleDispatch(c *gin.Context) {
	var req dispatch.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return
	}

	report, err := s.disp.Dispatch(c.Request.Context(), req)
	switch {
	case errors.Is(err, dispatch.ErrResultNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
	case errors.Is(err, dispatch.ErrUnknownLanguage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		s.log.Error("dispatch failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch failure"})
	default:
		c.JSON(http.StatusOK, report)
	}
}

func (s *Server) handleListLocations(c *gin.Context) {
	locs, err := s.dir.Locations(c.Request.Context())
	if err != nil {
		s.log.Error("locations failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "directory failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": locs})
}

func (s *Server) handleListContacts(c *gin.Context) {
	contacts, err := s.dir.LookupByLocation(c.Request.Context(), c.Param("location"))
	if err != nil {
		s.log.Error("lookup failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "directory failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": c.Param("location"), "contacts": contacts})
}

func (s *Server) handleAddContact(c *gin.Context) {
	var contact directory.Contact
	if err := c.ShouldBindJSON(&contact); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return
	}

	added, err := s.dir.AddContact(c.Request.Context(), contact)
	switch {
	case errors.Is(err, directory.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "contact already registered at location"})
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusCreated, added)
	}
}

func (s *Server) handleRemoveContact(c *gin.Context) {
	location := c.Query("location")
	phone := c.Query("phone")
	if location == "" || phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location and phone query parameters are required"})
		return
	}

	err := s.dir.RemoveContact(c.Request.Context(), location, phone)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"removed": true})
	}
}
