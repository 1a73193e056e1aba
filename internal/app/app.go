// Package app wires configuration, storage, clients and services into one
// runnable unit with an explicit lifecycle. Every dependency is constructed
// here and passed down; there are no package-level client singletons, so
// components stay testable in isolation.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"github.com/antoniofrancaib/alan/internal/config"
	"github.com/antoniofrancaib/alan/internal/notify"
	"github.com/antoniofrancaib/alan/internal/openai"
	"github.com/antoniofrancaib/alan/internal/papers"
	"github.com/antoniofrancaib/alan/internal/server"
	"github.com/antoniofrancaib/alan/internal/storage"
	"github.com/antoniofrancaib/alan/internal/webhook"
	"github.com/antoniofrancaib/alan/internal/whatsapp"
	logx "github.com/antoniofrancaib/alan/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store    storage.Store
	notifier *notify.Service
	fetcher  *papers.Fetcher
	srv      *server.Server
	cron     *cron.Cron

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	bg       sync.WaitGroup
	cancelBG context.CancelFunc
}

// New loads the config file and constructs the full dependency graph.
func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log)

	a := &App{cfgMgr: mgr, logSvc: logSvc, log: log}
	if err := a.build(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	busy, err := cfg.Storage.BusyTimeoutDuration()
	if err != nil {
		return err
	}
	path := cfg.Storage.Path
	if path == "" {
		path = config.DefaultStoragePath
	}
	store, err := storage.Open(storage.Config{Path: path, BusyTimeout: busy}, a.log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	ratePerSec := cfg.WhatsApp.RatePerSec
	if ratePerSec == 0 {
		ratePerSec = config.DefaultRatePerSec
	}
	sender := whatsapp.NewClient(whatsapp.Config{
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		AccessToken:   cfg.WhatsApp.AccessToken,
		BaseURL:       cfg.WhatsApp.BaseURL,
		RatePerSec:    ratePerSec,
	}, nil, a.log)

	var replier webhook.Replier
	if cfg.OpenAI.Enabled {
		replier = openai.NewClient(openai.Config{
			APIKey:    cfg.OpenAI.APIKey,
			Model:     cfg.OpenAI.Model,
			MaxTokens: cfg.OpenAI.MaxTokens,
			BaseURL:   cfg.OpenAI.BaseURL,
		}, nil, a.log)
	}

	notifyCfg, err := notifyConfig(cfg)
	if err != nil {
		return err
	}
	a.notifier = notify.New(notifyCfg, store, sender, a.log)

	a.fetcher = papers.NewFetcher(papers.Config{
		SourceURL: cfg.Papers.SourceURL,
		MaxPapers: cfg.Papers.MaxPapers,
	}, store, nil, a.log)

	wh := webhook.NewHandler(cfg.WhatsApp.VerifyToken, store, sender, replier, a.log)

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = config.DefaultHTTPAddr
	}
	a.srv = server.New(addr, a.notifier, a.fetcher, wh, a.log)

	if cfg.Cron.Enabled {
		a.cron = cron.New()
		sendSpec := cfg.Cron.SendSpec
		if sendSpec == "" {
			sendSpec = config.DefaultSendSpec
		}
		fetchSpec := cfg.Cron.FetchSpec
		if fetchSpec == "" {
			fetchSpec = config.DefaultFetchSpec
		}
		if _, err := a.cron.AddFunc(sendSpec, a.cronSend); err != nil {
			return fmt.Errorf("cron.send_spec: %w", err)
		}
		if _, err := a.cron.AddFunc(fetchSpec, a.cronFetch); err != nil {
			return fmt.Errorf("cron.fetch_spec: %w", err)
		}
	}
	return nil
}

func notifyConfig(cfg *config.Config) (notify.Config, error) {
	recency, err := cfg.Notify.RecencyWindowDuration()
	if err != nil {
		return notify.Config{}, err
	}
	delay, err := cfg.Notify.BatchDelayDuration()
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		WindowMinutes: cfg.Notify.WindowMinutes,
		RecencyWindow: recency,
		BatchSize:     cfg.Notify.BatchSize,
		BatchDelay:    delay,
	}, nil
}

// Start launches the HTTP server, the built-in cron trigger and the config
// watcher. It returns immediately; lifecycle errors surface through logs and
// the process exit in main.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	bgCtx, cancel := context.WithCancel(context.Background())
	a.cancelBG = cancel

	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		if err := a.srv.Start(); err != nil {
			a.log.Error("http server failed", logx.Err(err))
		}
	}()

	if a.cron != nil {
		a.cron.Start()
		a.log.Info("built-in cron trigger started")
	}

	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		if err := a.cfgMgr.Watch(bgCtx); err != nil {
			a.log.Warn("config watcher stopped", logx.Err(err))
		}
	}()

	updates := a.cfgMgr.Subscribe(1)
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		defer a.cfgMgr.Unsubscribe(updates)
		for {
			select {
			case <-bgCtx.Done():
				return
			case _, ok := <-updates:
				if !ok {
					return
				}
				// The channel is a wake-up signal; apply whatever the
				// manager last committed.
				a.applyReload(a.cfgMgr.Get())
			}
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("alan started")
	return nil
}

// applyReload pushes hot-reloadable settings (log level/sinks, run tuning)
// into running services. Connection-level settings (storage path, tokens)
// still need a restart.
func (a *App) applyReload(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if ncfg, err := notifyConfig(cfg); err == nil {
		a.notifier.Apply(ncfg)
	} else {
		a.log.Warn("reload: notify config rejected", logx.Err(err))
	}
	a.log.Info("config applied")
}

func (a *App) cronSend() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	sum, err := a.notifier.Run(ctx, time.Now().UTC())
	if err != nil {
		a.log.Error("scheduled notification run failed", logx.Err(err))
		return
	}
	a.log.Debug("scheduled notification run done", logx.String("summary", sum.String()))
}

func (a *App) cronFetch() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := a.fetcher.Run(ctx, time.Now().UTC()); err != nil {
		a.log.Error("scheduled paper fetch failed", logx.Err(err))
	}
}

// Stop shuts everything down in dependency order. Safe to call once.
func (a *App) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

		if a.cron != nil {
			cronCtx := a.cron.Stop()
			select {
			case <-cronCtx.Done():
			case <-ctx.Done():
			}
		}

		if a.cancelBG != nil {
			a.cancelBG()
		}

		shCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if shErr := a.srv.Shutdown(shCtx); shErr != nil {
			a.log.Warn("http shutdown error", logx.Err(shErr))
		}
		cancel()

		a.bg.Wait()

		if a.store != nil {
			if clErr := a.store.Close(); clErr != nil {
				a.log.Warn("storage close error", logx.Err(clErr))
			}
		}
		a.log.Info("alan stopped")
		err = a.logSvc.Close()
	})
	return err
}
