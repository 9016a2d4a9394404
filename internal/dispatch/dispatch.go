package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"agrisms/internal/directory"
	"agrisms/internal/model"
	"agrisms/internal/store"
	"agrisms/internal/transport"
	logx "agrisms/pkg/logx"
)

var (
	// ErrResultNotFound aborts the whole dispatch: no recipient is
	// contacted when the selected result does not exist.
	ErrResultNotFound = errors.New("dispatch: result not found")

	// ErrUnknownLanguage rejects an explicit language outside the
	// supported set.
	ErrUnknownLanguage = errors.New("dispatch: unknown language")
)

type Config struct {
	Workers         int
	RatePerSec      int
	SendTimeout     time.Duration
	DefaultLanguage string
}

// ResultSource is the slice of the store the coordinator needs.
type ResultSource interface {
	Get(ctx context.Context, id string) (model.AnalysisResult, error)
}

// RecipientSource is the slice of the directory the coordinator needs.
type RecipientSource interface {
	LookupByLocation(ctx context.Context, location string) ([]directory.Contact, error)
}

// Coordinator fans one stored result out to a location's recipients.
// It holds no per-dispatch state: every Dispatch call is an independent
// transaction over the store and directory as of the moment it runs.
type Coordinator struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	results    ResultSource
	recipients RecipientSource
	tr         transport.Transport
	log        logx.Logger
}

func New(cfg Config, results ResultSource, recipients RecipientSource, tr transport.Transport, log logx.Logger) *Coordinator {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Coordinator{
		results:    results,
		recipients: recipients,
		tr:         tr,
		log:        log,
	}
	c.Apply(cfg)
	return c
}

// Apply swaps the runtime knobs (workers, rate, timeout, default
// language). Safe to call while dispatches are running; in-flight calls
// keep the snapshot they started with.
func (c *Coordinator) Apply(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = model.LangEnglish
	}
	c.mu.Lock()
	c.cfg = cfg
	c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	c.mu.Unlock()
}

// Dispatch resolves the result and the recipient set, renders one
// message per recipient in their effective language, and sends with
// bounded concurrency. Per-recipient failures are isolated: they land
// in the report, never abort the batch. The report joins all outcomes
// before returning.
//
// Cancelling ctx stops issuing new sends; recipients not yet attempted
// are reported as skipped:cancelled.
func (c *Coordinator) Dispatch(ctx context.Context, req Request) (Report, error) {
	start := time.Now()

	explicit, err := normalizeRequestLanguage(req.Language)
	if err != nil {
		return Report{}, err
	}

	res, err := c.results.Get(ctx, req.ResultID)
	if errors.Is(err, store.ErrNotFound) {
		return Report{}, fmt.Errorf("%w: %s", ErrResultNotFound, req.ResultID)
	}
	if err != nil {
		return Report{}, fmt.Errorf("resolve result: %w", err)
	}

	contacts, err := c.recipients.LookupByLocation(ctx, req.Location)
	if err != nil {
		return Report{}, fmt.Errorf("resolve recipients: %w", err)
	}

	c.mu.Lock()
	cfg := c.cfg
	lim := c.limiter
	c.mu.Unlock()

	report := Report{
		ID:        uuid.NewString(),
		ResultID:  req.ResultID,
		Location:  req.Location,
		Language:  explicit,
		Entries:   make([]Entry, len(contacts)),
		StartedAt: start,
	}
	log := c.log.With(logx.String("dispatch", report.ID), logx.String("result", req.ResultID), logx.String("location", req.Location))

	// Resolve languages and advice up front; a recipient with no advice
	// in their effective language is never contacted, not even in a
	// fallback language.
	sendable := make([]int, 0, len(contacts))
	bodies := make([]string, len(contacts))
	for i, ct := range contacts {
		lang := explicit
		if lang == "" {
			// Preferences may carry legacy long names ("amharic") or
			// junk from hand-edited books; anything unrecognized falls
			// through to the default.
			if code, ok := model.NormalizeLanguage(ct.PreferredLanguage); ok {
				lang = code
			} else {
				lang = cfg.DefaultLanguage
			}
		}
		report.Entries[i] = Entry{Name: ct.Name, Address: ct.Phone, Language: lang}
		advice, ok := res.Advice[lang]
		if !ok || advice == "" {
			report.Entries[i].Status = StatusSkipped
			report.Entries[i].Reason = ReasonNoAdvice
			continue
		}
		bodies[i] = renderMessage(lang, req.Location, advice)
		sendable = append(sendable, i)
	}

	if len(sendable) > 0 {
		c.fanOut(ctx, cfg, lim, log, contacts, bodies, sendable, report.Entries)
	}

	report.tally()
	report.Took = time.Since(start)

	fields := []logx.Field{
		logx.Int("recipients", len(contacts)),
		logx.Int("sent", report.Sent),
		logx.Int("failed", report.Failed),
		logx.Int("skipped", report.Skipped),
		logx.Duration("took", report.Took),
	}
	if report.Failed > 0 {
		log.Warn("dispatch finished with failures", fields...)
	} else {
		log.Info("dispatch finished", fields...)
	}
	return report, nil
}

func (c *Coordinator) fanOut(ctx context.Context, cfg Config, lim *rate.Limiter, log logx.Logger, contacts []directory.Contact, bodies []string, sendable []int, entries []Entry) {
	workers := cfg.Workers
	if workers > len(sendable) {
		workers = len(sendable)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				// Recover per job, not per worker: a panicking send
				// must not kill the worker and leave the producer
				// blocked on the jobs channel.
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Error("panic in dispatch worker", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
							entries[i].Status = StatusFailed
							entries[i].Reason = "internal error"
						}
					}()
					// each worker owns entries[i] exclusively
					entries[i] = c.sendOne(ctx, cfg, lim, log, contacts[i], bodies[i], entries[i])
				}()
			}
		}()
	}

	for _, i := range sendable {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

func (c *Coordinator) sendOne(ctx context.Context, cfg Config, lim *rate.Limiter, log logx.Logger, ct directory.Contact, body string, e Entry) Entry {
	if ctx.Err() != nil {
		e.Status = StatusSkipped
		e.Reason = ReasonCancelled
		return e
	}
	if err := lim.Wait(ctx); err != nil {
		e.Status = StatusSkipped
		e.Reason = ReasonCancelled
		return e
	}

	sctx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	err := c.tr.Send(sctx, ct.Phone, body)
	cancel()

	switch {
	case err == nil:
		e.Status = StatusSent
	case ctx.Err() != nil:
		// batch cancelled while this send was in flight
		e.Status = StatusSkipped
		e.Reason = ReasonCancelled
	case errors.Is(err, context.DeadlineExceeded):
		e.Status = StatusFailed
		e.Reason = ReasonTimeout
		log.Warn("send timed out", logx.String("to", ct.Phone), logx.Duration("timeout", cfg.SendTimeout))
	default:
		e.Status = StatusFailed
		e.Reason = failReason(err)
		log.Warn("send failed", logx.String("to", ct.Phone), logx.Err(err))
	}
	return e
}

func failReason(err error) string {
	msg := strings.TrimSpace(err.Error())
	msg = strings.TrimPrefix(msg, "send sms: ")
	msg = strings.TrimPrefix(msg, "rejected: ")
	if msg == "" {
		return "transport error"
	}
	return msg
}

func normalizeRequestLanguage(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "auto") {
		return "", nil
	}
	code, ok := model.NormalizeLanguage(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, raw)
	}
	return code, nil
}
