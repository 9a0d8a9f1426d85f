package config

import (
	"slices"
	"strings"

	"standupbot/pkg/logx"
)

// SummarizeConfigChange returns the list of changed sections and safe
// structured attrs for logging. Secrets (the bot token) are never included;
// a token change is reported only as telegram.token_changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	tokenChanged := strings.TrimSpace(ot.Token) != strings.TrimSpace(nt.Token)
	if tokenChanged ||
		strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) ||
		strings.TrimSpace(ot.InviteTTL) != strings.TrimSpace(nt.InviteTTL) ||
		!slices.Equal(ot.OwnerUserIDs, nt.OwnerUserIDs) ||
		strings.TrimSpace(ot.GroupLog) != strings.TrimSpace(nt.GroupLog) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", tokenChanged),
			logx.String("telegram.poll_timeout", strings.TrimSpace(nt.PollTimeout)),
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(nt.GroupLog) != ""),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Standup != newCfg.Standup {
		changed = append(changed, "standup")
		s := newCfg.Standup
		attrs = append(attrs,
			logx.String("standup.sweep_interval", s.SweepInterval),
			logx.String("standup.sweep_timeout", s.SweepTimeout),
			logx.String("standup.default_cooldown", s.DefaultCooldown),
			logx.String("standup.effect_timeout", s.EffectTimeout),
			logx.Bool("standup.help_text_custom", strings.TrimSpace(s.HelpText) != ""),
		)
	}

	if strings.TrimSpace(oldCfg.Scheduler.Timezone) != strings.TrimSpace(newCfg.Scheduler.Timezone) {
		changed = append(changed, "scheduler")
		attrs = append(attrs, logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)))
	}

	on, nn := oldCfg.NotifierOrDefault(), newCfg.NotifierOrDefault()
	if on != nn {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", nn.Enabled),
			logx.Int("notifier.workers", nn.Workers),
			logx.Int("notifier.queue_size", nn.QueueSize),
			logx.Int("notifier.rate_per_sec", nn.RatePerSec),
			logx.String("notifier.dedup_window", nn.DedupWindow),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
		)
	}

	return changed, attrs
}

// RequiresRestart reports the changed sections that cannot be applied live.
func RequiresRestart(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	if strings.TrimSpace(oldCfg.Telegram.Token) != strings.TrimSpace(newCfg.Telegram.Token) {
		out = append(out, "telegram.token")
	}
	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) {
		out = append(out, "telegram.poll_timeout")
	}
	if strings.TrimSpace(oldCfg.Telegram.InviteTTL) != strings.TrimSpace(newCfg.Telegram.InviteTTL) {
		out = append(out, "telegram.invite_ttl")
	}
	if oldCfg.Storage != newCfg.Storage {
		out = append(out, "storage")
	}
	return out
}
