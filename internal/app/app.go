// Package app wires configuration, logging, storage, the contact
// directory, the SMS transport, dispatch, retention and the HTTP API
// into one process with a Start/Stop lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"

	"agrisms/internal/config"
	"agrisms/internal/directory"
	"agrisms/internal/dispatch"
	"agrisms/internal/httpapi"
	"agrisms/internal/retention"
	"agrisms/internal/store"
	"agrisms/internal/transport"
	"agrisms/internal/transport/twilio"
	logx "agrisms/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	store store.Store
	book  directory.Directory
	disp  *dispatch.Coordinator
	ret   *retention.Service
	srv   *httpapi.Server

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	errOnce sync.Once
	fatalC  chan struct{}
	err     error
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	sc, err := mapStoreConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	st, err := store.Open(sc, log.With(logx.String("comp", "store")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	log.Info("result store opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	book, err := directory.OpenFile(cfg.Directory.Path, log.With(logx.String("comp", "directory")))
	if err != nil {
		_ = st.Close()
		logSvc.Close()
		return nil, err
	}

	tr, err := buildTransport(cfg.Transport, log)
	if err != nil {
		_ = book.Close()
		_ = st.Close()
		logSvc.Close()
		return nil, err
	}

	dc, err := mapDispatchConfig(cfg)
	if err != nil {
		_ = book.Close()
		_ = st.Close()
		logSvc.Close()
		return nil, err
	}
	disp := dispatch.New(dc, st, book, tr, log.With(logx.String("comp", "dispatch")))

	rc, err := mapRetentionConfig(cfg)
	if err != nil {
		_ = book.Close()
		_ = st.Close()
		logSvc.Close()
		return nil, err
	}
	ret := retention.New(rc, st, log.With(logx.String("comp", "retention")))

	addr := cfg.Server.Addr
	if strings.TrimSpace(addr) == "" {
		addr = ":8080"
	}
	srv := httpapi.New(httpapi.Config{Addr: addr}, st, book, disp, log.With(logx.String("comp", "http")))

	return &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logSvc,
		store:  st,
		book:   book,
		disp:   disp,
		ret:    ret,
		srv:    srv,
		fatalC: make(chan struct{}),
	}, nil
}

// Done is closed on the first fatal background error.
func (a *App) Done() <-chan struct{} { return a.fatalC }

func (a *App) Err() error {
	select {
	case <-a.fatalC:
		return a.err
	default:
		return nil
	}
}

func (a *App) fatal(err error) {
	a.errOnce.Do(func() {
		a.err = err
		close(a.fatalC)
		if a.cancel != nil {
			a.cancel()
		}
	})
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.ret.Start(); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.srv.Run(runCtx); err != nil {
			a.fatal(fmt.Errorf("http server: %w", err))
		}
	}()

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify: ready")
	}

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel == nil {
		return nil
	}
	a.log.Info("stopping")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.cancel()
	a.ret.Stop()

	// Wait for server shutdown and background loops, bounded by ctx.
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("stop deadline reached before background loops finished")
	}

	if err := a.book.Close(); err != nil {
		a.log.Warn("directory close", logx.Err(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", logx.Err(err))
	}

	a.log.Info("stopped")
	a.logs.Close()
	return nil
}

// reloadLoop applies config file edits to the running process. Logging
// and dispatch settings take effect immediately; store, directory,
// transport and server changes need a restart and are only reported.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.logs.Apply(mapLogConfig(newCfg))

			if dc, err := mapDispatchConfig(newCfg); err != nil {
				a.log.Warn("invalid dispatch config; keeping previous", logx.Err(err))
			} else {
				a.disp.Apply(dc)
			}

			if last != nil {
				if last.Store != newCfg.Store {
					a.log.Warn("store config changed; restart required for changes to take effect")
				}
				if last.Directory != newCfg.Directory {
					a.log.Warn("directory config changed; restart required for changes to take effect")
				}
				if last.Transport != newCfg.Transport {
					a.log.Warn("transport config changed; restart required for changes to take effect")
				}
				if last.Server != newCfg.Server {
					a.log.Warn("server config changed; restart required for changes to take effect")
				}
				if last.Retention != newCfg.Retention {
					a.log.Warn("retention config changed; restart required for changes to take effect")
				}
			}
			last = newCfg

			a.log.Info("config reloaded")
		}
	}
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStoreConfig(cfg *config.Config) (store.Config, error) {
	busy, err := config.ParseDurationField("store.busy_timeout", cfg.Store.BusyTimeout)
	if err != nil {
		return store.Config{}, err
	}
	return store.Config{
		Driver:      cfg.Store.Driver,
		Path:        cfg.Store.Path,
		BusyTimeout: busy,
	}, nil
}

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	timeout, err := config.ParseDurationField("dispatch.send_timeout", cfg.Dispatch.SendTimeout)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		Workers:         cfg.Dispatch.Workers,
		RatePerSec:      cfg.Dispatch.RatePerSec,
		SendTimeout:     timeout,
		DefaultLanguage: cfg.Dispatch.DefaultLanguage,
	}, nil
}

func mapRetentionConfig(cfg *config.Config) (retention.Config, error) {
	maxAge, err := config.ParseDurationField("retention.max_age", cfg.Retention.MaxAge)
	if err != nil {
		return retention.Config{}, err
	}
	return retention.Config{
		MaxAge:   maxAge,
		Schedule: cfg.Retention.Schedule,
	}, nil
}

// buildTransport picks the carrier. Twilio needs ACCOUNT_SID and
// AUTH_TOKEN in the environment; anything else falls back to the
// log-only transport so the rest of the pipeline stays usable.
func buildTransport(tc config.TransportConfig, log logx.Logger) (transport.Transport, error) {
	driver := strings.ToLower(strings.TrimSpace(tc.Driver))
	switch driver {
	case "", "log":
		log.Info("using log-only transport; no SMS will be delivered")
		return &transport.LogOnly{Log: log.With(logx.String("comp", "transport"))}, nil
	case "twilio":
		sid := strings.TrimSpace(os.Getenv("ACCOUNT_SID"))
		token := strings.TrimSpace(os.Getenv("AUTH_TOKEN"))
		if sid == "" || token == "" {
			log.Warn("twilio selected but ACCOUNT_SID/AUTH_TOKEN not set; using log-only transport")
			return &transport.LogOnly{Log: log.With(logx.String("comp", "transport"))}, nil
		}
		return twilio.New(twilio.Config{
			AccountSID: sid,
			AuthToken:  token,
			FromNumber: tc.FromNumber,
			BaseURL:    tc.BaseURL,
		}, log.With(logx.String("comp", "twilio")))
	default:
		return nil, fmt.Errorf("transport.driver: unknown driver %q", driver)
	}
}
