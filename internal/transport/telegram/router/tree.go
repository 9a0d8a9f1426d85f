package router

import (
	"sort"
	"strings"
)

// cmdNode is one token of a command route. Leaves (and groups that are also
// commands) carry cmd.
type cmdNode struct {
	name     string
	cmd      *Command
	children map[string]*cmdNode
}

func newRoot() *cmdNode {
	return &cmdNode{children: map[string]*cmdNode{}}
}

func splitRoute(route string) []string {
	return strings.Fields(strings.ToLower(route))
}

func (n *cmdNode) add(route []string, c Command) *cmdNode {
	cur := n
	for _, tok := range route {
		next, ok := cur.children[tok]
		if !ok {
			next = &cmdNode{name: tok, children: map[string]*cmdNode{}}
			cur.children[tok] = next
		}
		cur = next
	}
	cur.cmd = &c
	return cur
}

func (n *cmdNode) child(name string) (*cmdNode, bool) {
	c, ok := n.children[strings.ToLower(name)]
	return c, ok
}

func (n *cmdNode) childNames() []string {
	out := make([]string, 0, len(n.children))
	for k := range n.children {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ownerOnly is true for an owner-only command, or a group whose every
// descendant command is owner-only.
func (n *cmdNode) ownerOnly() bool {
	if n.cmd != nil {
		return n.cmd.Access == AccessOwnerOnly
	}
	for _, c := range n.children {
		if !c.ownerOnly() {
			return false
		}
	}
	return true
}

// summary is the command description, or a hint listing the first
// subcommands of a group.
func (n *cmdNode) summary() string {
	if n.cmd != nil {
		if d := strings.TrimSpace(n.cmd.Description); d != "" {
			return d
		}
	}
	kids := n.childNames()
	if len(kids) == 0 {
		return ""
	}
	shown := kids[:min(3, len(kids))]
	s := strings.Join(shown, ", ")
	if len(kids) > len(shown) {
		s += ", …"
	}
	return "subcommands: " + s
}
