package adapter

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	tele "gopkg.in/telebot.v4"

	kit "standupbot/internal/transport"
	logx "standupbot/pkg/logx"
)

const (
	maxMenuCommands   = 100
	maxMenuDescLength = 256
)

// UpdateMenuCommands replaces the bot's command menu. Unchanged lists are
// skipped without a network call.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	if a.bot == nil {
		return errors.New("telegram adapter not started")
	}
	menu := menuCommands(cmds)

	a.menuMu.Lock()
	defer a.menuMu.Unlock()

	sum := menuHash(menu)
	if sum == a.menuHash {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.bot.SetCommands(menu); err != nil {
		return fmt.Errorf("telegram set commands: %w", err)
	}
	a.menuHash = sum
	a.log.Info("menu commands updated", logx.Int("count", len(menu)))
	return nil
}

func menuCommands(cmds []kit.BotCommand) []tele.Command {
	out := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		d := c.Description
		if d == "" {
			d = c.Command
		}
		if r := []rune(d); len(r) > maxMenuDescLength {
			d = string(r[:maxMenuDescLength])
		}
		out = append(out, tele.Command{Text: c.Command, Description: d})
		if len(out) == maxMenuCommands {
			break
		}
	}
	return out
}

func menuHash(menu []tele.Command) uint64 {
	h := fnv.New64a()
	for _, c := range menu {
		h.Write([]byte(c.Text))
		h.Write([]byte{0})
		h.Write([]byte(c.Description))
		h.Write([]byte{0})
	}
	return h.Sum64()
}
