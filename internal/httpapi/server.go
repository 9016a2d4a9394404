// Package httpapi is the thin HTTP framing over the core operations:
// results, contacts, dispatch. No auth; the operator surface is assumed
// to sit behind something else.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"agrisms/internal/directory"
	"agrisms/internal/dispatch"
	"agrisms/internal/store"
	logx "agrisms/pkg/logx"
)

type Config struct {
	Addr string
}

// Server bundles router and dependencies for the operator API.
type Server struct {
	cfg    Config
	log    logx.Logger
	store  store.Store
	dir    directory.Directory
	disp   *dispatch.Coordinator
	engine *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg Config, st store.Store, dir directory.Directory, disp *dispatch.Coordinator, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{cfg: cfg, log: log, store: st, dir: dir, disp: disp, engine: engine}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.Info("http api listening", logx.String("addr", s.cfg.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	api.POST("/results", s.handleInsertResult)
	api.GET("/results", s.handleListResults)
	api.GET("/results/:id", s.handleGetResult)
	api.DELETE("/results/:id", s.handleDeleteResult)

	api.POST("/dispatch", s.handleDispatch)

	api.GET("/locations", s.handleListLocations)
	api.GET("/locations/:location/contacts", s.handleListContacts)
	api.POST("/contacts", s.handleAddContact)
	api.DELETE("/contacts", s.handleRemoveContact)
}
