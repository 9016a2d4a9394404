package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"agrisms/internal/model"
	logx "agrisms/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db    *sql.DB
	log   logx.Logger
	clock func() time.Time
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers. A single
	// connection also gives us the single-writer discipline for free.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, clock: time.Now}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	// Every successful insert/delete must survive a crash, not just a
	// clean shutdown.
	_, _ = db.Exec("PRAGMA synchronous = FULL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Insert(ctx context.Context, p model.InsertPayload) (model.AnalysisResult, error) {
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

	features, err := marshalOrNull(rec.Features)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	advice, err := marshalOrNull(rec.Advice)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	alternatives, err := marshalOrNull(rec.Alternatives)
	if err != nil {
		return model.AnalysisResult{}, err
	}

	// Colliding id = same second, same coordinates: replace.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results(id, created_at, location_name, latitude, longitude, recommended_crop, confidence, features, advice, alternatives)
		 VALUES(?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   created_at=excluded.created_at,
		   location_name=excluded.location_name,
		   latitude=excluded.latitude,
		   longitude=excluded.longitude,
		   recommended_crop=excluded.recommended_crop,
		   confidence=excluded.confidence,
		   features=excluded.features,
		   advice=excluded.advice,
		   alternatives=excluded.alternatives`,
		rec.ID, ts.Unix(), rec.LocationName, rec.Latitude, rec.Longitude,
		rec.RecommendedCrop, rec.ConfidenceScore, features, advice, alternatives,
	)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("insert result: %w", err)
	}
	s.log.Debug("result inserted", logx.String("id", rec.ID), logx.String("crop", rec.RecommendedCrop))
	return rec, nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (model.AnalysisResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, location_name, latitude, longitude, recommended_crop, confidence, features, advice, alternatives
		 FROM results WHERE id = ?`, id)

	var (
		rec                            model.AnalysisResult
		createdAt                      int64
		features, advice, alternatives sql.NullString
	)
	err := row.Scan(&rec.ID, &createdAt, &rec.LocationName, &rec.Latitude, &rec.Longitude,
		&rec.RecommendedCrop, &rec.ConfidenceScore, &features, &advice, &alternatives)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AnalysisResult{}, ErrNotFound
	}
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("get result: %w", err)
	}
	rec.Timestamp = time.Unix(createdAt, 0).UTC()
	if err := unmarshalIfSet(features, &rec.Features); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("get result %s: %w", id, err)
	}
	if err := unmarshalIfSet(advice, &rec.Advice); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("get result %s: %w", id, err)
	}
	if err := unmarshalIfSet(alternatives, &rec.Alternatives); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("get result %s: %w", id, err)
	}
	return rec, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]model.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, location_name, recommended_crop, confidence
		 FROM results ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := make([]model.Summary, 0)
	for rows.Next() {
		var (
			sum       model.Summary
			createdAt int64
		)
		if err := rows.Scan(&sum.ID, &createdAt, &sum.LocationName, &sum.RecommendedCrop, &sum.ConfidenceScore); err != nil {
			return nil, fmt.Errorf("list results: %w", err)
		}
		sum.Timestamp = time.Unix(createdAt, 0).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.log.Debug("result deleted", logx.String("id", id))
	return nil
}

func (s *sqliteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune results: %w", err)
	}
	return int(n), nil
}

func marshalOrNull(v any) (any, error) {
	switch x := v.(type) {
	case map[string]model.FeatureValue:
		if len(x) == 0 {
			return nil, nil
		}
	case map[string]string:
		if len(x) == 0 {
			return nil, nil
		}
	case []model.AlternativeCrop:
		if len(x) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalIfSet(col sql.NullString, dst any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dst)
}
