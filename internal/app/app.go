package app

import (
	"context"
	"fmt"
	"time"

	"birthdaybot/internal/bot"
	"birthdaybot/internal/config"
	"birthdaybot/internal/eventbus"
	"birthdaybot/internal/i18n"
	"birthdaybot/internal/notifier"
	"birthdaybot/internal/reminder"
	rtsup "birthdaybot/internal/runtime/supervisor"
	"birthdaybot/internal/storage"
	kit "birthdaybot/internal/transport"
	telegram "birthdaybot/internal/transport/telegram/adapter"
	"birthdaybot/internal/transport/telegram/router"
	logx "birthdaybot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   storage.Store
	adapter kit.Adapter
	sender  *notifier.Sender
	engine  *reminder.Engine
	router  *router.Router
	sd      *systemdNotifier

	updates chan kit.Message
}

// NewApp loads the config and builds every component. Nothing runs until Start.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, config.DefaultPollTimeout)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := config.ParseDurationOrDefault("telegram.request_timeout", cfg.Telegram.RequestTimeout, config.DefaultRequestTimeout)
	if err != nil {
		return nil, err
	}
	bootLog := logx.NewConsole(cfg.Logging.Level)
	ad, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    pollTimeout,
		RequestTimeout: requestTimeout,
	}, bootLog.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	logSvc, root := logx.New(cfg.LogConfig(), ad)
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root)

	var store storage.Store
	ok := false
	defer func() {
		if ok {
			return
		}
		if store != nil {
			_ = store.Close()
		}
		_ = logSvc.Close()
	}()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	if store, err = storage.Open(ctx, sc, root); err != nil {
		return nil, err
	}

	def, supported := cfg.Locale.Resolve()
	cat, err := i18n.Load(def, supported)
	if err != nil {
		return nil, err
	}

	remCfg, sendCfg, err := mapReminderConfig(cfg)
	if err != nil {
		return nil, err
	}
	bus := eventbus.New()
	sender := notifier.New(ad, sendCfg, root)
	eng, err := reminder.NewEngine(remCfg, reminder.Deps{
		Source:   store,
		Users:    store,
		Ledger:   store,
		Sender:   sender,
		Renderer: cat,
		Bus:      bus,
		Log:      root,
	})
	if err != nil {
		return nil, err
	}

	handlers := bot.New(store, cat, eng.Location(), root)
	ropts, err := mapRouterOptions(cfg)
	if err != nil {
		return nil, err
	}
	rt := router.New(root, ad, cfg.Telegram.OwnerUserIDs, handlers.Fallbacks(), ropts)
	rt.SetCommands(handlers.Commands())

	log.Info("app configured",
		logx.String("storage", sc.Driver),
		logx.String("locale", def),
		logx.Int("trigger_hour", remCfg.TriggerHour),
		logx.String("timezone", remCfg.Timezone),
	)

	ok = true
	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		sender:  sender,
		engine:  eng,
		router:  rt,
		sd:      newSystemdNotifier(cfg.Systemd, log),
		updates: make(chan kit.Message, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	c := a.sup.Context()

	if err := a.adapter.Start(c, a.updates); err != nil {
		return err
	}
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})
	a.sup.Go("telegram.menu.update", func(c context.Context) error {
		if err := a.router.PublishMenu(c); err != nil {
			a.log.Warn("menu update failed", logx.Err(err))
		}
		return nil
	})

	a.engine.Start(c)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.sd.ready()
	a.sd.startWatchdog(a.sup, a.healthy)

	a.log.Info("app started")
	return nil
}

// healthy gates watchdog pings: a failed supervisor stops them.
func (a *App) healthy() bool {
	return a.sup.Err() == nil && a.sup.Context().Err() == nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.stopping()

	// Cancel first so every loop starts unwinding at once.
	a.sup.Cancel()

	a.step(ctx, "reminder", 3*time.Second, a.engine.Stop)
	a.step(ctx, "adapter", 2*time.Second, a.adapter.Stop)
	a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

// step runs one shutdown step bounded by max and the caller's deadline. A
// step that overruns is logged and left behind.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}
