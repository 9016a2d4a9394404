package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"agrisms/internal/model"
	logx "agrisms/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// The whole record set lives in one JSON snapshot keyed by id. Every
// mutation rewrites the snapshot to <path>.tmp, fsyncs, and renames it
// over the old one, so a crash mid-write never leaves a partial file.
// If the rewrite fails, the in-memory index is rolled back to the
// pre-call state.
type fileStore struct {
	log   logx.Logger
	clock func() time.Time

	mu      sync.RWMutex
	path    string
	records map[string]model.AnalysisResult
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	records := map[string]model.AnalysisResult{}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// fresh store
	case err != nil:
		return nil, fmt.Errorf("load result snapshot: %w", err)
	default:
		if err := json.Unmarshal(b, &records); err != nil {
			return nil, fmt.Errorf("load result snapshot: %w", err)
		}
	}

	log.Debug("result snapshot loaded", logx.String("path", path), logx.Int("records", len(records)))
	return &fileStore{
		log:     log,
		clock:   time.Now,
		path:    path,
		records: records,
	}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Insert(ctx context.Context, p model.InsertPayload) (model.AnalysisResult, error) {
	_ = ctx
	if err := p.Validate(); err != nil {
		return model.AnalysisResult{}, err
	}
	p = p.Normalized()

	ts := stamp(s.clock())
	rec := model.AnalysisResult{
		ID:              model.ResultID(ts, p.Latitude, p.Longitude),
		Timestamp:       ts,
		LocationName:    p.LocationName,
		Latitude:        p.Latitude,
		Longitude:       p.Longitude,
		RecommendedCrop: p.RecommendedCrop,
		ConfidenceScore: p.ConfidenceScore,
		Features:        p.Features,
		Advice:          p.Advice,
		Alternatives:    p.Alternatives,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replace on collision (same second, same coordinates).
	prev, had := s.records[rec.ID]
	s.records[rec.ID] = rec
	if err := s.persistLocked(); err != nil {
		if had {
			s.records[rec.ID] = prev
		} else {
			delete(s.records, rec.ID)
		}
		return model.AnalysisResult{}, err
	}
	s.log.Debug("result inserted", logx.String("id", rec.ID), logx.String("crop", rec.RecommendedCrop))
	return rec.Clone(), nil
}

func (s *fileStore) Get(ctx context.Context, id string) (model.AnalysisResult, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return model.AnalysisResult{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *fileStore) List(ctx context.Context) ([]model.Summary, error) {
	_ = ctx
	s.mu.RLock()
	out := make([]model.Summary, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Summary())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *fileStore) Delete(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	if err := s.persistLocked(); err != nil {
		s.records[id] = prev
		return err
	}
	s.log.Debug("result deleted", logx.String("id", id))
	return nil
}

func (s *fileStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := map[string]model.AnalysisResult{}
	for id, rec := range s.records {
		if rec.Timestamp.Before(cutoff) {
			removed[id] = rec
			delete(s.records, id)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := s.persistLocked(); err != nil {
		for id, rec := range removed {
			s.records[id] = rec
		}
		return 0, err
	}
	return len(removed), nil
}

func (s *fileStore) persistLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(s.records); err != nil {
		_ = f.Close()
		return fmt.Errorf("persist results: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("persist results: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	return nil
}
