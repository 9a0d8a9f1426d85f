package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"standupbot/internal/admin"
	"standupbot/internal/config"
	"standupbot/internal/eventbus"
	"standupbot/internal/notifier"
	"standupbot/internal/runtime/supervisor"
	"standupbot/internal/standup"
	"standupbot/internal/storage"
	"standupbot/internal/task/scheduler"
	kit "standupbot/internal/transport"
	telegram "standupbot/internal/transport/telegram/adapter"
	"standupbot/internal/transport/telegram/router"
	"standupbot/pkg/logx"
)

const sweepJob = "standup.sweep"

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  *eventbus.MemBus

	store   storage.Store
	adapter *telegram.Adapter

	rooms   *standup.Registry
	engine  *standup.Engine
	sweeper *standup.Sweeper

	sched  *scheduler.Service
	notif  *notifier.Service
	router *router.Router

	helpText atomic.Pointer[string]
	settings atomic.Pointer[config.StandupSettings]
	started  time.Time

	updates chan kit.Update
}

// New loads the config and builds every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	settings, err := cfg.Standup.Resolve()
	if err != nil {
		return nil, err
	}

	adCfg, err := mapAdapterConfig(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(adCfg, logx.NewConsole("info").With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	// The log service starts with the chat sink off: enabling it before the
	// target is set makes Apply warn about a missing chat.
	logCfg := mapLogConfig(cfg)
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logs, log := logx.New(bootCfg, ad)
	if chatID, ok, _ := cfg.Telegram.GroupLogChatID(); ok {
		logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
	logs.Apply(logCfg)
	log = log.With(logx.String("comp", "app"))

	stCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(stCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	notif := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), bus, store)

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		bus:     bus,
		store:   store,
		adapter: ad,
		notif:   notif,
		sched:   scheduler.New(scheduler.Config{Timezone: cfg.Scheduler.Timezone}, log.With(logx.String("comp", "scheduler"))),
		updates: make(chan kit.Update, 256),
	}
	a.setSettings(settings)

	effects := standup.Effects{
		Membership: membership{access: ad},
		Messenger:  messenger{adapter: ad, notif: notif},
		HelpText:   func() string { return *a.helpText.Load() },
	}
	a.rooms = standup.NewRegistry(store, standup.WithDefaultCooldown(settings.DefaultCooldown))
	a.engine = standup.NewEngine(a.rooms, store, effects,
		standup.WithLogger(log.With(logx.String("comp", "standup.engine"))),
		standup.WithBus(bus),
		standup.WithEffectTimeout(settings.EffectTimeout),
	)
	a.sweeper = standup.NewSweeper(store, effects,
		standup.WithSweepLogger(log.With(logx.String("comp", "standup.sweeper"))),
		standup.WithSweepBus(bus),
		standup.WithSweepEffectTimeout(settings.EffectTimeout),
	)

	a.router = router.New(log.With(logx.String("comp", "router")), ad, cfg.Telegram.OwnerUserIDs)
	a.router.SetMessageHook(a.onMessage)
	a.router.SetRegistry(admin.New(admin.Deps{
		Rooms:  a.rooms,
		Chats:  ad,
		Audit:  store,
		Status: a.status,
		Log:    log.With(logx.String("comp", "admin")),
	}).Commands())

	return a, nil
}

func (a *App) setSettings(s config.StandupSettings) {
	a.settings.Store(&s)
	help := s.HelpText
	if help == "" {
		help = standup.HelpText
	}
	a.helpText.Store(&help)
}

// onMessage feeds the lifecycle engine. It runs on the dispatch goroutine.
func (a *App) onMessage(ctx context.Context, m kit.Message) {
	msg, ok := toStandupMessage(m)
	if !ok {
		return
	}
	d, err := a.engine.HandleMessage(ctx, msg)
	if err != nil {
		a.log.Error("standup message failed",
			logx.Int64("chat_id", msg.ChannelID), logx.Int64("user_id", msg.UserID),
			logx.Int("message_id", msg.ID), logx.Err(err))
		return
	}
	if d.Outcome != standup.OutcomeIgnored {
		a.log.Debug("standup message handled",
			logx.Int64("chat_id", msg.ChannelID), logx.Int64("user_id", msg.UserID),
			logx.String("outcome", d.Outcome.String()))
	}
}

// Done is closed when the app supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.started = time.Now()
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateReload)

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := a.rooms.Load(loadCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}

	st := a.settings.Load()
	if err := a.sched.AddSchedule(sweepJob, st.SweepSchedule, st.SweepTimeout, a.sweep); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	a.sched.Start(a.sup.Context())

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})
	a.sup.Go0("eventbus.log", a.logEvents)
	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.sweeper.MarkReady()
	notifyReady(a.log)
	a.sup.Go0("systemd.watchdog", func(c context.Context) { watchdogLoop(c, a.log) })

	rooms, _ := a.rooms.List(ctx)
	a.log.Info("app started", logx.Int("rooms", len(rooms)), logx.String("sweep", st.SweepSchedule))
	return nil
}

func (a *App) sweep(ctx context.Context) error {
	rep, err := a.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	if rep.RevokeFailed > 0 || rep.DeleteFailed > 0 {
		return fmt.Errorf("sweep: %d revoke and %d delete failures", rep.RevokeFailed, rep.DeleteFailed)
	}
	return nil
}

// logEvents mirrors bus events into debug logs.
func (a *App) logEvents(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	notifyStopping(a.log)

	// The scheduler goes first: Stop waits for a running sweep, which must
	// still reach Telegram and storage.
	a.step(ctx, "scheduler", 30*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })

	a.sup.Cancel()
	a.step(ctx, "notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	a.step(ctx, "adapter", 2*time.Second, a.adapter.Stop)
	a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped", logx.Uint64("bus_dropped", a.bus.Dropped()))
	return a.logs.Close()
}

// step runs one shutdown stage bounded by max and the caller's deadline.
// A stage that overruns is abandoned (and logged when it finally returns).
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
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		go func() {
			err := <-done
			a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", time.Since(start)), logx.Err(err))
		}()
	}
}
