// Package core wires the tracker together: config, storage, the boss store
// and lifecycle manager, the reconcile loop, and the command surface.
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bossbot/internal/boss"
	"bossbot/internal/config"
	"bossbot/internal/storage"
	kit "bossbot/internal/transport"
	"bossbot/internal/transport/telegram"
	"bossbot/pkg/logx"
)

const defaultStorePath = "./bossbot_store"

// App owns the full process lifecycle.
type App struct {
	cfgm *config.Manager
	log  logx.Logger

	logCloser func() error
	adapter   *telegram.Adapter
	store     *boss.Store
	persist   storage.Store
	mgr       *boss.Manager
	recon     *boss.Reconciler
	cmds      *Commands

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp builds everything from the config file at path. Nothing is started
// yet; call Start.
func NewApp(path string) (*App, error) {
	cfgm := config.NewManager(path)
	cfgm.SetValidator(validateConfig)

	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, logCloser := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgm.SetLogger(log.With(logx.String("component", "config")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, log.With(logx.String("component", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	scfg := storage.Config{Driver: "file", Path: defaultStorePath}
	if cfg.Storage != nil {
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
		if err != nil {
			return nil, err
		}
		scfg = storage.Config{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path, BusyTimeout: busy}
		if scfg.Path == "" {
			scfg.Path = defaultStorePath
		}
	}
	persist, err := storage.Open(scfg, log.With(logx.String("component", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	// A nil interface value must stay nil; assigning a typed nil would make
	// the store believe persistence is configured.
	var persister boss.Persister
	if persist != nil {
		persister = persist
	}
	store := boss.NewStore(persister, cfg.Tracker.Catalog, cfg.Tracker.DefaultPeriodMinutes,
		log.With(logx.String("component", "store")))

	settings, err := trackerSettings(cfg)
	if err != nil {
		return nil, err
	}
	render := NewRenderer()
	mgr := boss.NewManager(store, adapter, render, settings,
		log.With(logx.String("component", "lifecycle")))

	checkInterval, err := config.ParseDurationOrDefault("tracker.check_interval", cfg.Tracker.CheckInterval, time.Minute)
	if err != nil {
		return nil, err
	}
	recon := boss.NewReconciler(store, mgr, checkInterval,
		log.With(logx.String("component", "reconcile")))

	cmds := NewCommands(Deps{
		Adapter: adapter,
		Store:   store,
		Mgr:     mgr,
		Audit:   persist,
		Render:  render,
		Log:     log.With(logx.String("component", "commands")),
	}, cfg.Telegram.OwnerUserIDs)

	return &App{
		cfgm:      cfgm,
		log:       log,
		logCloser: logCloser,
		adapter:   adapter,
		store:     store,
		persist:   persist,
		mgr:       mgr,
		recon:     recon,
		cmds:      cmds,
	}, nil
}

func trackerSettings(cfg *config.Config) (boss.Settings, error) {
	early, err := config.ParseDurationOrDefault("tracker.early_warning", cfg.Tracker.EarlyWarning, 3*time.Minute)
	if err != nil {
		return boss.Settings{}, err
	}
	grace, err := config.ParseDurationOrDefault("tracker.anti_dup_grace", cfg.Tracker.AntiDupGrace, 180*time.Second)
	if err != nil {
		return boss.Settings{}, err
	}
	return boss.Settings{EarlyWarning: early, AntiDupGrace: grace}, nil
}

func validateConfig(cfg *config.Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if cfg.Tracker.DefaultPeriodMinutes < 0 {
		return fmt.Errorf("tracker.default_period_minutes must not be negative")
	}
	for name, mins := range cfg.Tracker.Catalog {
		if mins <= 0 {
			return fmt.Errorf("tracker.catalog[%q]: period must be positive", name)
		}
	}
	if _, err := trackerSettings(cfg); err != nil {
		return err
	}
	if _, err := config.ParseDurationOrDefault("tracker.check_interval", cfg.Tracker.CheckInterval, time.Minute); err != nil {
		return err
	}
	if cfg.Storage != nil {
		if _, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0); err != nil {
			return err
		}
	}
	return nil
}

// Start brings the bot up: load persisted records, seed the catalog, start
// long polling, the dispatcher, the reconcile loop, and the config watcher.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.store.Load(runCtx); err != nil {
		a.log.Warn("loading persisted records failed; starting empty", logx.Err(err))
	}
	a.seedCatalog(runCtx)

	updates := make(chan kit.Update, 256)
	if err := a.adapter.Start(runCtx, updates); err != nil {
		cancel()
		return fmt.Errorf("start adapter: %w", err)
	}

	if err := a.adapter.UpdateMenuCommands(runCtx, a.cmds.MenuCommands()); err != nil {
		a.log.Warn("command menu update failed", logx.Err(err))
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.cmds.DispatchLoop(runCtx, updates)
	}()

	if err := a.recon.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start reconciler: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watcher exited", logx.Err(err))
		}
	}()

	a.wg.Add(1)
	sub := a.cfgm.Subscribe(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(cfg)
			}
		}
	}()

	a.log.Info("bot started",
		logx.Int("bosses", a.store.Count()),
		logx.Int("owners", len(a.cfgm.Get().Telegram.OwnerUserIDs)))
	return nil
}

// seedCatalog ensures every catalog boss has a record so /all and the
// reconcile loop see it even before its first kill.
func (a *App) seedCatalog(ctx context.Context) {
	cfg := a.cfgm.Get()
	for name, mins := range cfg.Tracker.Catalog {
		a.store.GetOrCreate(ctx, name, mins)
	}
}

// applyReload pushes the hot-reloadable parts of a new config into the
// running components. Token, storage driver and check interval need a
// restart and are ignored here.
func (a *App) applyReload(cfg *config.Config) {
	settings, err := trackerSettings(cfg)
	if err != nil {
		a.log.Warn("reload: bad tracker durations; keeping old settings", logx.Err(err))
	} else {
		a.mgr.SetSettings(settings)
	}
	a.store.SetCatalog(cfg.Tracker.Catalog, cfg.Tracker.DefaultPeriodMinutes)
	a.cmds.SetOwners(cfg.Telegram.OwnerUserIDs)
	a.log.Info("config reload applied")
}

// Stop shuts everything down. The passed context bounds how long we wait for
// an in-flight reconcile pass and outbound sends.
func (a *App) Stop(ctx context.Context) {
	if err := a.recon.Stop(ctx); err != nil {
		a.log.Warn("reconciler stop", logx.Err(err))
	}
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop", logx.Err(err))
	}
	a.wg.Wait()

	if a.persist != nil {
		if err := a.persist.Close(); err != nil {
			a.log.Warn("storage close", logx.Err(err))
		}
	}
	a.log.Info("bot stopped")
	if a.logCloser != nil {
		_ = a.logCloser()
	}
}
