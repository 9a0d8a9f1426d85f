package router

import (
	"html"
	"sort"
	"strings"
)

// helpText renders help for path (the whole tree when empty) in Telegram
// HTML parse mode.
func (m *Router) helpText(path []string) string {
	m.mu.RLock()
	root, alias := m.root, m.alias
	m.mu.RUnlock()

	if len(path) == 0 {
		return helpTop(root)
	}
	cur := root
	full := make([]string, 0, len(path))
	for _, p := range path {
		p = strings.TrimPrefix(strings.ToLower(p), "/")
		n, ok := cur.child(p)
		if !ok {
			if leaf, ok := alias[p]; ok && leaf.cmd != nil && len(full) == 0 {
				return helpNode(leaf, splitRoute(leaf.cmd.Route))
			}
			return "❓ <b>Unknown command</b>\nType <code>/help</code> for the command list."
		}
		cur = n
		full = append(full, n.name)
	}
	return helpNode(cur, full)
}

func helpTop(root *cmdNode) string {
	type row struct {
		name, desc string
		lock       bool
	}
	rows := make([]row, 0, len(root.children))
	for _, name := range root.childNames() {
		n := root.children[name]
		rows = append(rows, row{name: name, desc: n.summary(), lock: n.ownerOnly()})
	}
	// Owner-only commands last.
	sort.SliceStable(rows, func(i, j int) bool { return !rows[i].lock && rows[j].lock })

	lines := []string{"📚 <b>Commands</b>", "Type <code>/help &lt;cmd&gt;</code> for details.", ""}
	for _, r := range rows {
		lines = append(lines, bullet(r.lock, "/"+r.name, r.desc))
	}
	return strings.Join(lines, "\n")
}

func helpNode(cur *cmdNode, full []string) string {
	lines := []string{"📚 <b>Help</b> <code>" + html.EscapeString("/"+strings.Join(full, " ")) + "</code>"}

	if c := cur.cmd; c != nil {
		if d := strings.TrimSpace(c.Description); d != "" {
			lines = append(lines, html.EscapeString(d))
		}
		if c.Access == AccessOwnerOnly {
			lines = append(lines, "🔒 <i>owner only</i>")
		}
		if u := strings.TrimSpace(c.Usage); u != "" {
			lines = append(lines, "", "<b>Usage</b>", "<code>"+html.EscapeString(u)+"</code>")
		}
		if short := shortcuts(*c); len(short) > 0 {
			lines = append(lines, "", "<b>Shortcuts</b>")
			for _, s := range short {
				lines = append(lines, "• <code>/"+html.EscapeString(s)+"</code>")
			}
		}
	} else if cur.ownerOnly() {
		lines = append(lines, "🔒 <i>owner only</i>")
	}

	if len(cur.children) > 0 {
		lines = append(lines, "", "<b>Subcommands</b>")
		for _, name := range cur.childNames() {
			n := cur.children[name]
			route := "/" + strings.Join(append(append([]string(nil), full...), name), " ")
			lines = append(lines, bullet(n.ownerOnly(), route, n.summary()))
		}
	}
	return strings.Join(lines, "\n")
}

func bullet(lock bool, cmd, desc string) string {
	prefix := "• "
	if lock {
		prefix = "• 🔒 "
	}
	s := prefix + "<code>" + html.EscapeString(cmd) + "</code>"
	if desc != "" {
		s += " - " + html.EscapeString(desc)
	}
	return s
}

func shortcuts(c Command) []string {
	seen := map[string]bool{}
	var out []string
	route := splitRoute(c.Route)
	if name, ok := telegramCommandNameFromRoute(route); ok && len(route) > 1 {
		seen[name] = true
		out = append(out, name)
	}
	for _, a := range c.Aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && !strings.Contains(a, " ") && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}
