package router

import (
	"sort"
	"strings"

	kit "standupbot/internal/transport"
)

const (
	menuNameMax  = 32
	menuDescMax  = 256
	menuEntryMax = 100
)

// sanitizeTelegramCommand maps s onto Telegram's command alphabet
// [a-z0-9_]{1,32}. Separators become underscores; anything else is dropped.
func sanitizeTelegramCommand(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			underscore = false
		case r == '_' || r == '-' || r == ' ' || r == '\t' || r == '/':
			if b.Len() > 0 && !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > menuNameMax {
		out = strings.TrimRight(out[:menuNameMax], "_")
	}
	return out
}

// telegramCommandNameFromRoute joins a route for the menu:
// ["rooms","add"] -> "rooms_add".
func telegramCommandNameFromRoute(route []string) (string, bool) {
	out := sanitizeTelegramCommand(strings.Join(route, "_"))
	return out, out != ""
}

// buildTelegramMenuCommands lists top-level commands first, then /a_b
// shortcuts for multi-token routes.
func buildTelegramMenuCommands(root *cmdNode, leaves []Command) []kit.BotCommand {
	type entry struct {
		cmd, desc string
		prio      int
	}
	byCmd := map[string]entry{}
	add := func(cmd, desc string, lock bool, prio int) {
		cmd = sanitizeTelegramCommand(cmd)
		if cmd == "" {
			return
		}
		desc = strings.ReplaceAll(strings.TrimSpace(desc), "\n", " ")
		if desc == "" {
			desc = cmd
		}
		if lock {
			desc = "🔒 " + desc
		}
		if len(desc) > menuDescMax {
			desc = desc[:menuDescMax]
		}
		if cur, ok := byCmd[cmd]; ok && cur.prio <= prio {
			return
		}
		byCmd[cmd] = entry{cmd: cmd, desc: desc, prio: prio}
	}

	for _, name := range root.childNames() {
		n := root.children[name]
		add(name, n.summary(), n.ownerOnly(), 0)
	}
	for _, c := range leaves {
		route := splitRoute(c.Route)
		if len(route) < 2 {
			continue
		}
		desc := c.Description
		if strings.TrimSpace(desc) == "" {
			desc = strings.Join(route, " ")
		}
		add(strings.Join(route, "_"), desc, c.Access == AccessOwnerOnly, 1)
	}

	entries := make([]entry, 0, len(byCmd))
	for _, e := range byCmd {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].prio != entries[j].prio {
			return entries[i].prio < entries[j].prio
		}
		return entries[i].cmd < entries[j].cmd
	})
	if len(entries) > menuEntryMax {
		entries = entries[:menuEntryMax]
	}
	out := make([]kit.BotCommand, 0, len(entries))
	for _, e := range entries {
		out = append(out, kit.BotCommand{Command: e.cmd, Description: e.desc})
	}
	return out
}
