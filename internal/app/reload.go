package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"standupbot/internal/config"
	"standupbot/internal/task/scheduler"
	"standupbot/pkg/logx"
)

// validateReload rejects configs that would fail to apply live.
func validateReload(_ context.Context, cfg *config.Config) error {
	st, err := cfg.Standup.Resolve()
	if err != nil {
		return err
	}
	if _, err := scheduler.ParseSchedule(st.SweepSchedule); err != nil {
		return fmt.Errorf("standup.sweep_interval: %w", err)
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	return nil
}

func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts to the newest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(ctx, last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, cfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, cfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if restart := config.RequiresRestart(prev, cfg); len(restart) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.String("keys", strings.Join(restart, ",")))
	}

	// Target first, so Apply does not warn when the chat sink is enabled.
	if chatID, ok, _ := cfg.Telegram.GroupLogChatID(); ok {
		a.logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	} else {
		a.logs.SetTelegramTarget(0, 0)
	}
	a.logs.Apply(mapLogConfig(cfg))

	a.router.SetOwners(cfg.Telegram.OwnerUserIDs)
	a.sched.Apply(scheduler.Config{Timezone: cfg.Scheduler.Timezone})

	if st, err := cfg.Standup.Resolve(); err != nil {
		a.log.Warn("invalid standup config; keeping previous", logx.Err(err))
	} else {
		old := a.settings.Load()
		a.setSettings(st)
		a.rooms.SetDefaultCooldown(st.DefaultCooldown)
		a.engine.SetEffectTimeout(st.EffectTimeout)
		a.sweeper.SetEffectTimeout(st.EffectTimeout)
		if old.SweepSchedule != st.SweepSchedule || old.SweepTimeout != st.SweepTimeout {
			if err := a.sched.AddSchedule(sweepJob, st.SweepSchedule, st.SweepTimeout, a.sweep); err != nil {
				a.log.Warn("sweep reschedule failed", logx.String("schedule", st.SweepSchedule), logx.Err(err))
			}
		}
	}

	if ncfg, err := mapNotifierConfig(cfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		wasEnabled := a.notif.Enabled()
		a.notif.Apply(ncfg)
		switch {
		case wasEnabled && !ncfg.Enabled:
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
			a.log.Info("notifier disabled via config")
		case !wasEnabled && ncfg.Enabled:
			a.notif.Start(ctx)
			a.log.Info("notifier enabled via config")
		}
	}

	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
}
