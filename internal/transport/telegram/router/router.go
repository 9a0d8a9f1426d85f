package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"standupbot/internal/runtime/supervisor"
	kit "standupbot/internal/transport"
	"standupbot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	// Route is a space-separated command path, e.g. "rooms add".
	Route       string
	Aliases     []string // root-level shortcuts, e.g. ["about"]
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration
	Handle      HandlerFunc
}

// MessageHook receives every inbound message, commands included. It runs on
// the dispatch goroutine, so messages are seen one at a time in arrival
// order and the hook must not block for long.
type MessageHook func(ctx context.Context, msg kit.Message)

type Request struct {
	Message   kit.Message
	Chat      kit.ChatTarget
	FromID    int64
	Path      []string // matched command path
	Command   string
	Args      []string // positionals after the path
	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string
	Logger    logx.Logger
	Adapter   kit.Adapter
}

// Reply sends plain text to the chat the command came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// ReplyHTML is Reply with HTML parse mode.
func (r *Request) ReplyHTML(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true, ParseMode: "HTML"})
	return err
}

// Router dispatches Telegram updates: every message goes to the message
// hook, and slash commands additionally run on a bounded worker pool.
type Router struct {
	mu     sync.RWMutex
	root   *cmdNode
	alias  map[string]*cmdNode
	menu   []kit.BotCommand
	owners []int64
	hook   MessageHook

	log     logx.Logger
	adapter kit.Adapter
	workers int

	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor

	jobs chan func()
}

func New(log logx.Logger, adapter kit.Adapter, owners []int64) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		root:    newRoot(),
		alias:   map[string]*cmdNode{},
		owners:  slices.Clone(owners),
		log:     log,
		adapter: adapter,
		workers: max(2, runtime.NumCPU()),
		jobs:    make(chan func(), 256),
	}
}

// Supervisor returns the worker pool supervisor, or nil when not running.
func (m *Router) Supervisor() *supervisor.Supervisor {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return nil
	}
	return m.sup
}

func (m *Router) setSupervisor(sup *supervisor.Supervisor, running bool) {
	m.runMu.Lock()
	m.sup = sup
	m.running = running
	m.runMu.Unlock()
}

// SetOwners replaces the owner list used for AccessOwnerOnly checks.
func (m *Router) SetOwners(owners []int64) {
	m.mu.Lock()
	m.owners = slices.Clone(owners)
	m.mu.Unlock()
}

func (m *Router) IsOwner(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.owners, id)
}

func (m *Router) SetMessageHook(h MessageHook) {
	m.mu.Lock()
	m.hook = h
	m.mu.Unlock()
}

// SetRegistry installs the command set. /help is always added. When the
// dispatcher is running the Telegram command menu is refreshed.
func (m *Router) SetRegistry(cmds []Command) {
	cmds = append(slices.Clone(cmds), Command{
		Route:       "help",
		Aliases:     []string{"h", "start"},
		Description: "show available commands",
		Usage:       "/help [cmd] [sub...]",
		Access:      AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			return req.ReplyHTML(ctx, m.helpText(req.Args))
		},
	})

	root := newRoot()
	alias := map[string]*cmdNode{}
	leaves := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) == 0 || c.Handle == nil {
			continue
		}
		leaf := root.add(route, c)
		leaves = append(leaves, c)

		// Multi-token routes get a /a_b shortcut for the Telegram menu. The
		// plain single-token name is never an alias: that would shadow its
		// subcommands.
		if name, ok := telegramCommandNameFromRoute(route); ok && (len(route) > 1 || name != route[0]) {
			if _, exists := alias[name]; !exists {
				alias[name] = leaf
			}
		}
		for _, a := range c.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" || strings.Contains(a, " ") {
				continue
			}
			alias[a] = leaf
		}
	}
	menu := buildTelegramMenuCommands(root, leaves)

	m.mu.Lock()
	m.root = root
	m.alias = alias
	m.menu = menu
	m.mu.Unlock()

	if sup := m.Supervisor(); sup != nil {
		m.pushMenu(sup)
	}
}

func (m *Router) pushMenu(sup *supervisor.Supervisor) {
	up, ok := m.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	m.mu.RLock()
	menu := m.menu
	m.mu.RUnlock()
	sup.Go("telegram.menu.update", func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := up.UpdateMenuCommands(cctx, menu); err != nil {
			m.log.Warn("menu update failed", logx.Err(err))
		}
		return nil
	})
}

func (m *Router) tryEnqueue(fn func()) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

// DispatchLoop consumes updates until ctx is done or the channel closes.
func (m *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(m.log.With(logx.String("comp", "telegram.router"))),
		supervisor.WithCancelOnError(false),
	)
	m.setSupervisor(sup, true)
	m.log.Info("dispatcher started", logx.Int("workers", m.workers), logx.Int("job_queue_cap", cap(m.jobs)))

	for i := 0; i < m.workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			return m.worker(c, idx)
		},
			supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			supervisor.WithPublishFirstError(true),
			supervisor.WithStopOnCleanExit(true),
		)
	}
	m.pushMenu(sup)

	defer func() {
		m.setSupervisor(sup, false)
		close(m.jobs)
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.setSupervisor(nil, false)
		m.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if up.Kind == kit.UpdateMessage && up.Message != nil {
				m.routeMessage(ctx, *up.Message)
			}
		}
	}
}

func (m *Router) worker(ctx context.Context, idx int) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job, ok := <-m.jobs:
			if !ok {
				return nil
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						m.log.Error("panic in command job", logx.Int("worker", idx), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
					}
				}()
				job()
			}()
		}
	}
}

func (m *Router) routeMessage(ctx context.Context, msg kit.Message) {
	m.mu.RLock()
	hook := m.hook
	rootNode := m.root
	aliasMap := m.alias
	m.mu.RUnlock()

	if hook != nil {
		m.runHook(ctx, hook, msg)
	}

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	args := parts[1:]
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	if leaf, ok := aliasMap[word]; ok && leaf.cmd != nil {
		m.enqueue(ctx, msg, *leaf.cmd, splitRoute(leaf.cmd.Route), args)
		return
	}

	cur, ok := rootNode.child(word)
	if !ok {
		// Groups see plenty of commands meant for other bots.
		if !msg.IsGroup {
			_, _ = m.adapter.SendText(ctx, chat, "unknown command. try /help", nil)
		}
		return
	}
	path := []string{word}
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		next, ok := cur.child(args[0])
		if !ok {
			break
		}
		cur = next
		path = append(path, next.name)
		args = args[1:]
	}

	if cur.cmd == nil {
		_, _ = m.adapter.SendText(ctx, chat, m.helpText(path), &kit.SendOptions{DisablePreview: true, ParseMode: "HTML"})
		return
	}
	m.enqueue(ctx, msg, *cur.cmd, path, args)
}

func (m *Router) runHook(ctx context.Context, hook MessageHook, msg kit.Message) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in message hook",
				logx.Int64("chat_id", msg.ChatID), logx.Int("message_id", msg.ID),
				logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	hook(ctx, msg)
}

func (m *Router) enqueue(ctx context.Context, msg kit.Message, cmd Command, path, raw []string) {
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	if cmd.Access == AccessOwnerOnly && !m.IsOwner(msg.FromID) {
		_, _ = m.adapter.SendText(ctx, chat, "unauthorized", nil)
		return
	}

	pos, flags, bools := parseFlags(raw)
	rid := newReqID()
	req := &Request{
		Message:   msg,
		Chat:      chat,
		FromID:    msg.FromID,
		Path:      path,
		Command:   cmd.Route,
		Args:      pos,
		RawArgs:   raw,
		Flags:     flags,
		BoolFlags: bools,
		ReqID:     rid,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Route),
		),
		Adapter: m.adapter,
	}

	final := Chain(cmd.Handle,
		recoverPanics(m.log),
		logRequests(m.log),
		withTimeout(cmd.Timeout),
	)
	if !m.tryEnqueue(func() { _ = final(ctx, req) }) {
		_, _ = m.adapter.SendText(ctx, chat, "busy, try again", nil)
	}
}
