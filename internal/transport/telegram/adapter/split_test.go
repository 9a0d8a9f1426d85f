package adapter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTelegramTextShortPassesThrough(t *testing.T) {
	got := splitTelegramText("hello", 10, "")
	assert.Equal(t, []string{"hello"}, got)
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	s := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	got := splitTelegramText(s, 12, "")
	require.Len(t, got, 2)
	assert.Equal(t, strings.Repeat("a", 8), got[0])
	assert.Equal(t, strings.Repeat("b", 8), got[1])
}

func TestSplitTelegramTextRespectsLimit(t *testing.T) {
	s := strings.Repeat("x", 25)
	got := splitTelegramText(s, 10, "")
	require.Len(t, got, 3)
	for _, c := range got {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
	}
	assert.Equal(t, s, strings.Join(got, ""))
}

func TestSplitTelegramTextAvoidsOpenTag(t *testing.T) {
	s := "abcdefgh<b>bold</b>"
	got := splitTelegramText(s, 10, "HTML")
	require.NotEmpty(t, got)
	assert.Equal(t, "abcdefgh", got[0])
	assert.Equal(t, s, strings.Join(got, ""))
}
