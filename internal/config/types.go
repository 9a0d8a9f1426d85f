package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Standup   StandupConfig   `json:"standup"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notifier  *NotifierConfig `json:"notifier,omitempty"`
	Storage   StorageConfig   `json:"storage"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat id receiving log lines when logging.telegram is enabled.
	GroupLog string `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
	// InviteTTL bounds the lifetime of invite links sent on grant (default "24h").
	InviteTTL string `json:"invite_ttl,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StandupConfig controls the standup lifecycle.
//
// Defaults (when fields are omitted/empty):
//   - sweep_interval: "1m" (duration, HH:MM interval, or cron expression)
//   - sweep_timeout: "5m"
//   - default_cooldown: "24h"
//   - effect_timeout: "15s"
//   - help_text: built-in template
type StandupConfig struct {
	SweepInterval   string `json:"sweep_interval,omitempty"`
	SweepTimeout    string `json:"sweep_timeout,omitempty"`
	DefaultCooldown string `json:"default_cooldown,omitempty"`
	EffectTimeout   string `json:"effect_timeout,omitempty"`
	HelpText        string `json:"help_text,omitempty"`
}

type SchedulerConfig struct {
	// Trigger timezone for cron schedules.
	Timezone string `json:"timezone,omitempty"`
}

// NotifierConfig controls the async DM pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// If the whole section is omitted, the notifier is enabled with defaults.
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// DefaultNotifier is used when the notifier section is omitted.
func DefaultNotifier() NotifierConfig {
	return NotifierConfig{
		Enabled:         true,
		Workers:         2,
		QueueSize:       512,
		RatePerSec:      3,
		RetryMax:        3,
		RetryBase:       "500ms",
		RetryMaxDelay:   "10s",
		DedupWindow:     "1m",
		DedupMaxEntries: 2000,
	}
}

// StorageConfig controls persistence.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/standupbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
