package adapter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "standupbot/internal/transport"
)

func TestMenuCommandsSkipsEmptyAndDefaultsDescription(t *testing.T) {
	got := menuCommands([]kit.BotCommand{
		{Command: ""},
		{Command: "help"},
		{Command: "rooms", Description: "manage rooms"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "help", got[0].Description)
	assert.Equal(t, "manage rooms", got[1].Description)
}

func TestMenuCommandsCaps(t *testing.T) {
	var in []kit.BotCommand
	for i := 0; i < 150; i++ {
		in = append(in, kit.BotCommand{Command: "c", Description: strings.Repeat("é", 300)})
	}
	got := menuCommands(in)
	require.Len(t, got, maxMenuCommands)
	assert.Len(t, []rune(got[0].Description), maxMenuDescLength)
}

func TestMenuHashChangesWithContent(t *testing.T) {
	a := menuCommands([]kit.BotCommand{{Command: "help", Description: "x"}})
	b := menuCommands([]kit.BotCommand{{Command: "help", Description: "y"}})
	assert.Equal(t, menuHash(a), menuHash(a))
	assert.NotEqual(t, menuHash(a), menuHash(b))
}
