// Package retention prunes analysis results past a configured age on a
// cron schedule, keeping the store from growing without bound.
package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"agrisms/internal/store"
	logx "agrisms/pkg/logx"
)

const defaultSchedule = "0 3 * * *"

type Config struct {
	MaxAge   time.Duration // 0 disables pruning
	Schedule string        // cron spec; default: daily at 03:00
}

type Service struct {
	cfg   Config
	store store.Store
	log   logx.Logger
	cron  *cron.Cron
}

func New(cfg Config, st store.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: st, log: log}
}

// Start registers the prune job. A zero MaxAge means retention is
// disabled and Start is a no-op.
func (s *Service) Start() error {
	if s.cfg.MaxAge <= 0 {
		s.log.Debug("retention disabled")
		return nil
	}
	spec := s.cfg.Schedule
	if spec == "" {
		spec = defaultSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, s.prune); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Info("retention started", logx.Duration("max_age", s.cfg.MaxAge), logx.String("schedule", spec))
	return nil
}

func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	// wait for a running prune to finish
	<-s.cron.Stop().Done()
	s.cron = nil
}

func (s *Service) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.cfg.MaxAge)
	n, err := s.store.PruneBefore(ctx, cutoff)
	if err != nil {
		s.log.Error("retention prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("old results pruned", logx.Int("removed", n), logx.Time("cutoff", cutoff))
	}
}
