package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"agrisms/internal/model"
	logx "agrisms/pkg/logx"
)

// ErrNotFound is returned by Get and Delete for an unknown result id.
var ErrNotFound = errors.New("result not found")

// Config configures the result store.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "file":   dependency-free JSON snapshot with atomic rewrite
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the durable mapping from result id to record.
//
// Identity and collision policy: Insert assigns the timestamp and
// derives the id from it plus the coordinates (second precision, four
// decimals). A colliding id — same spot re-analyzed within the same
// second — silently REPLACES the previous record. Re-analysis of the
// same coordinates is harmless to overwrite and rejecting it would
// surface spurious conflicts to the engine.
//
// Durability: every successful mutation is on stable storage before the
// call returns, and is visible to any Get/List issued after it.
type Store interface {
	// Insert validates the payload, assigns id and timestamp, persists
	// the record, and returns the stored form.
	Insert(ctx context.Context, p model.InsertPayload) (model.AnalysisResult, error)

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (model.AnalysisResult, error)

	// List returns summaries of all records, newest first.
	List(ctx context.Context) ([]model.Summary, error)

	// Delete permanently removes the record or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// PruneBefore removes records older than cutoff and reports how
	// many were removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "file":
		return openFile(cfg, log)
	default:
		return nil, errors.New("unknown store driver: " + driver)
	}
}

// stamp converts a clock reading into the store-assigned creation
// instant: UTC, truncated to seconds to match the id format's precision.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
