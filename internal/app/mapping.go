package app

import (
	"strings"
	"time"

	"standupbot/internal/config"
	"standupbot/internal/notifier"
	"standupbot/internal/storage"
	telegram "standupbot/internal/transport/telegram/adapter"
	"standupbot/pkg/logx"
)

func mapAdapterConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	ttl, err := config.ParseDurationOrDefault("telegram.invite_ttl", cfg.Telegram.InviteTTL, 24*time.Hour)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: cfg.Telegram.Token, PollTimeout: poll, InviteTTL: ttl}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.NotifierOrDefault()
	def := config.DefaultNotifier()

	retryBase, err := config.ParseDurationOrDefault("notifier.retry_base", n.RetryBase, 500*time.Millisecond)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationOrDefault("notifier.retry_max_delay", n.RetryMaxDelay, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	dedup, err := config.ParseDurationOrDefault("notifier.dedup_window", n.DedupWindow, time.Minute)
	if err != nil {
		return notifier.Config{}, err
	}
	orDef := func(v, d int) int {
		if v <= 0 {
			return d
		}
		return v
	}
	return notifier.Config{
		Enabled:         n.Enabled,
		Workers:         orDef(n.Workers, def.Workers),
		QueueSize:       orDef(n.QueueSize, def.QueueSize),
		RatePerSec:      orDef(n.RatePerSec, def.RatePerSec),
		RetryMax:        max(n.RetryMax, 0),
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMaxDelay,
		DedupWindow:     dedup,
		DedupMaxEntries: orDef(n.DedupMaxEntries, def.DedupMaxEntries),
		PersistDedup:    n.PersistDedup,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: busy,
	}, nil
}
