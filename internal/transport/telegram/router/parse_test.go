package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeCommandLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "/rooms list", want: []string{"/rooms", "list"}},
		{in: `/rooms config 42 roles "1, 2"`, want: []string{"/rooms", "config", "42", "roles", "1, 2"}},
		{in: `/rooms config 42 roles ''`, want: []string{"/rooms", "config", "42", "roles", ""}},
		{in: `/x a\ b`, want: []string{"/x", "a b"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tokenizeCommandLine(tt.in), tt.in)
	}
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	pos, flags, bools := parseFlags([]string{"-1001", "--limit=5", "--by", "me", "-v", "x", "-ab", "--dry"})
	assert.Equal(t, []string{"-1001"}, pos)
	assert.Equal(t, map[string]string{"limit": "5", "by": "me", "v": "x"}, flags)
	assert.Equal(t, map[string]bool{"a": true, "b": true, "dry": true}, bools)
}

func TestNewReqIDUnique(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newReqID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
