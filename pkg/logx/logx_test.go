package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerWithFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "info").With(String("comp", "test"))

	log.Debug("hidden")
	log.Info("visible", Int64("chat_id", 42), Err(errors.New("boom")), Err(nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "visible", lines[0]["message"])
	assert.Equal(t, "test", lines[0]["comp"])
	assert.EqualValues(t, 42, lines[0]["chat_id"])
	assert.Equal(t, "boom", lines[0]["err"])
	assert.Contains(t, lines[0]["caller"], "logx_test.go:")
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var log Logger
	assert.True(t, log.IsZero())
	log.Info("nothing happens")
	assert.False(t, Nop().IsZero())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in, zerolog.InfoLevel), in)
	}
}

func TestFormatChatLine(t *testing.T) {
	got := formatChatLine([]byte(`{"level":"warn","message":"revoke failed","user_id":7,"err":"gone","time":"x"}`))
	assert.Equal(t, "[WARN] revoke failed\n- err=gone\n- user_id=7", got)

	assert.Equal(t, "plain text", formatChatLine([]byte("  plain text \n")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestCronLoggerDemotesInfo(t *testing.T) {
	var buf bytes.Buffer
	cl := CronLogger(NewJSON(&buf, "debug"))

	cl.Info("wake", "now", time.Unix(0, 0).UTC(), "entries", 2)
	cl.Error(errors.New("bad spec"), "schedule", "name", "sweep")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "cron: wake", lines[0]["message"])
	assert.EqualValues(t, 2, lines[0]["entries"])
	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "bad spec", lines[1]["err"])
	assert.Equal(t, "sweep", lines[1]["name"])
}
