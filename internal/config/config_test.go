package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"standupbot/pkg/logx"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  owner_user_ids: [42, 7]
  poll_timeout: 10s
logging:
  level: info
  console: true
standup:
  sweep_interval: 30s
  default_cooldown: 12h
storage:
  driver: sqlite
  path: ./data/standupbot.db
`

func TestDecodeYAMLAndJSON(t *testing.T) {
	t.Parallel()

	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, []int64{42, 7}, cfg.Telegram.OwnerUserIDs)
	assert.Equal(t, "30s", cfg.Standup.SweepInterval)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	require.NoError(t, cfg.Validate())

	js := `{"telegram":{"token":"t"},"storage":{"driver":"memory"}}`
	cfg, err = Decode("config.json", []byte(js))
	require.NoError(t, err)
	assert.Equal(t, "t", cfg.Telegram.Token)
	assert.Equal(t, "memory", cfg.Storage.Driver)
}

func TestDecodeRejectsUnknownFieldsAndTrailingData(t *testing.T) {
	t.Parallel()

	_, err := Decode("c.yml", []byte("telegram:\n  token: x\n  nope: 1\n"))
	require.Error(t, err)

	_, err = Decode("c.json", []byte(`{"telegram":{"token":"x"}} {}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing data")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mod  func(*Config)
		want string
	}{
		{name: "ok", mod: func(*Config) {}},
		{name: "missing token", mod: func(c *Config) { c.Telegram.Token = " " }, want: "telegram.token is required"},
		{name: "bad poll timeout", mod: func(c *Config) { c.Telegram.PollTimeout = "soon" }, want: "telegram.poll_timeout"},
		{name: "bad group log", mod: func(c *Config) { c.Telegram.GroupLog = "room" }, want: "telegram.group_log"},
		{name: "bad cooldown", mod: func(c *Config) { c.Standup.DefaultCooldown = "-1h" }, want: "standup.default_cooldown"},
		{name: "huge cooldown", mod: func(c *Config) { c.Standup.DefaultCooldown = "100000h" }, want: "standup.default_cooldown"},
		{name: "bad dedup window", mod: func(c *Config) { c.Notifier = &NotifierConfig{DedupWindow: "x"} }, want: "notifier.dedup_window"},
		{name: "missing storage path", mod: func(c *Config) { c.Storage.Path = "" }, want: "storage.path is required"},
		{name: "memory needs no path", mod: func(c *Config) { c.Storage = StorageConfig{Driver: "memory"} }},
		{name: "unknown driver", mod: func(c *Config) { c.Storage.Driver = "postgres" }, want: "unknown driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mod(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStandupResolveDefaults(t *testing.T) {
	t.Parallel()

	s, err := StandupConfig{}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "1m", s.SweepSchedule)
	assert.Equal(t, 5*time.Minute, s.SweepTimeout)
	assert.Equal(t, 24*time.Hour, s.DefaultCooldown)
	assert.Equal(t, 15*time.Second, s.EffectTimeout)

	s, err = StandupConfig{SweepInterval: " cron:*/5 * * * * ", DefaultCooldown: "1h"}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "cron:*/5 * * * *", s.SweepSchedule)
	assert.Equal(t, time.Hour, s.DefaultCooldown)
}

func TestGroupLogChatID(t *testing.T) {
	t.Parallel()

	_, ok, err := TelegramConfig{}.GroupLogChatID()
	require.NoError(t, err)
	assert.False(t, ok)

	id, ok, err := TelegramConfig{GroupLog: "-100123"}.GroupLogChatID()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(-100123), id)
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	oldCfg := validConfig()
	newCfg := validConfig()
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	assert.Empty(t, changed)
	assert.Empty(t, attrs)

	newCfg.Telegram.Token = "rotated-secret"
	newCfg.Standup.DefaultCooldown = "2h"
	newCfg.Notifier = &NotifierConfig{Enabled: false}
	changed, attrs = SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"telegram", "standup", "notifier"}, changed)
	var buf bytes.Buffer
	logx.NewJSON(&buf, "debug").Info("config changed", attrs...)
	assert.Contains(t, buf.String(), `"telegram.token_changed":true`)
	assert.NotContains(t, buf.String(), "rotated-secret")

	assert.Equal(t, []string{"telegram.token"}, RequiresRestart(oldCfg, newCfg))
}

func TestManagerLoadAndWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	m := NewConfigManager(path)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())

	updates := m.Subscribe(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	changed := []byte(sampleYAML + "scheduler:\n  timezone: UTC\n")
	require.NoError(t, os.WriteFile(path, changed, 0o600))

	select {
	case got := <-updates:
		assert.Equal(t, "UTC", got.Scheduler.Timezone)
		assert.Same(t, got, m.Get())
	case <-time.After(5 * time.Second):
		t.Fatal("no config update published")
	}

	cancel()
	<-done
	m.Unsubscribe(updates)
}

func TestManagerLoadRejectsInvalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"storage":{"driver":"memory"}}`), 0o600))

	_, err := NewConfigManager(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.token is required")
}

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc", OwnerUserIDs: []int64{1}},
		Storage:  StorageConfig{Driver: "sqlite", Path: "bot.db"},
	}
}
