package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"standupbot/internal/standup"
)

// StandupSettings is StandupConfig with defaults applied and durations parsed.
type StandupSettings struct {
	SweepSchedule   string
	SweepTimeout    time.Duration
	DefaultCooldown time.Duration
	EffectTimeout   time.Duration
	HelpText        string
}

func (c StandupConfig) Resolve() (StandupSettings, error) {
	out := StandupSettings{
		SweepSchedule: strings.TrimSpace(c.SweepInterval),
		HelpText:      c.HelpText,
	}
	if out.SweepSchedule == "" {
		out.SweepSchedule = "1m"
	}
	var err error
	if out.SweepTimeout, err = ParseDurationOrDefault("standup.sweep_timeout", c.SweepTimeout, 5*time.Minute); err != nil {
		return StandupSettings{}, err
	}
	if out.DefaultCooldown, err = ParseDurationOrDefault("standup.default_cooldown", c.DefaultCooldown, 24*time.Hour); err != nil {
		return StandupSettings{}, err
	}
	if !standup.ValidCooldown(out.DefaultCooldown) {
		return StandupSettings{}, fmt.Errorf("standup.default_cooldown: must be at most %s", standup.MaxCooldown)
	}
	if out.EffectTimeout, err = ParseDurationOrDefault("standup.effect_timeout", c.EffectTimeout, 15*time.Second); err != nil {
		return StandupSettings{}, err
	}
	return out, nil
}

// NotifierOrDefault returns the notifier section, or defaults when omitted.
func (c *Config) NotifierOrDefault() NotifierConfig {
	if c.Notifier == nil {
		return DefaultNotifier()
	}
	return *c.Notifier
}

// GroupLogChatID parses telegram.group_log. Empty means unset.
func (c TelegramConfig) GroupLogChatID() (int64, bool, error) {
	s := strings.TrimSpace(c.GroupLog)
	if s == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("telegram.group_log: invalid chat id %q", c.GroupLog)
	}
	return id, true, nil
}

// Validate checks the parts of the config that can be checked without
// talking to Telegram or opening storage.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("telegram.invite_ttl", c.Telegram.InviteTTL); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := c.Telegram.GroupLogChatID(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Standup.Resolve(); err != nil {
		errs = append(errs, err)
	}
	n := c.NotifierOrDefault()
	for path, raw := range map[string]string{
		"notifier.retry_base":      n.RetryBase,
		"notifier.retry_max_delay": n.RetryMaxDelay,
		"notifier.dedup_window":    n.DedupWindow,
		"storage.busy_timeout":     c.Storage.BusyTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "sqlite", "sqlite3", "file":
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required"))
		}
	case "memory", "mem":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}
