package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "standupbot/internal/transport"
	"standupbot/pkg/logx"
)

type sent struct {
	to   kit.ChatTarget
	text string
}

type fakeAdapter struct {
	mu   sync.Mutex
	sent []sent
	menu []kit.BotCommand
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }
func (f *fakeAdapter) DeleteMessage(context.Context, kit.MessageRef) error {
	return nil
}

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: to, text: text})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) UpdateMenuCommands(_ context.Context, cmds []kit.BotCommand) error {
	f.mu.Lock()
	f.menu = cmds
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.text)
	}
	return out
}

func startRouter(t *testing.T, r *Router) chan kit.Update {
	t.Helper()
	updates := make(chan kit.Update, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.DispatchLoop(ctx, updates)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return updates
}

func msgUpdate(id int, chat, from int64, text string, group bool) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ID: id, ChatID: chat, FromID: from, Text: text, IsGroup: group,
	}}
}

func TestHookSeesEveryMessageInOrder(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, nil)
	var (
		mu  sync.Mutex
		ids []int
	)
	r.SetMessageHook(func(_ context.Context, m kit.Message) {
		mu.Lock()
		ids = append(ids, m.ID)
		mu.Unlock()
	})
	r.SetRegistry(nil)
	updates := startRouter(t, r)

	for i := 1; i <= 5; i++ {
		text := "hello"
		if i == 3 {
			text = "/help"
		}
		updates <- msgUpdate(i, -100, 7, text, true)
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ids) == 5
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids)
}

func TestCommandRoutingAndAccess(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, []int64{1})
	got := make(chan *Request, 4)
	r.SetRegistry([]Command{{
		Route:  "rooms add",
		Access: AccessOwnerOnly,
		Handle: func(_ context.Context, req *Request) error {
			got <- req
			return nil
		},
	}})
	updates := startRouter(t, r)

	updates <- msgUpdate(1, 5, 1, `/rooms@standup_bot add -1001234 --note "a b"`, false)
	select {
	case req := <-got:
		assert.Equal(t, []string{"rooms", "add"}, req.Path)
		assert.Equal(t, []string{"-1001234"}, req.Args)
		assert.Equal(t, "a b", req.Flags["note"])
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}

	updates <- msgUpdate(2, 5, 2, "/rooms add 9", false)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"unauthorized"}, ad.texts())
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, got)

	// /rooms_add is the menu shortcut for "rooms add".
	updates <- msgUpdate(3, 5, 1, "/rooms_add 10", false)
	select {
	case req := <-got:
		assert.Equal(t, []string{"10"}, req.Args)
	case <-time.After(2 * time.Second):
		t.Fatal("shortcut not routed")
	}
}

func TestUnknownCommandRepliesOnlyInPrivate(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, nil)
	r.SetRegistry(nil)
	updates := startRouter(t, r)

	updates <- msgUpdate(1, -100, 7, "/nope", true)
	updates <- msgUpdate(2, 7, 7, "/nope", false)
	require.Eventually(t, func() bool { return len(ad.texts()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, ad.texts()[0], "unknown command")
}

func TestPanicInHandlerIsRecovered(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, nil)
	ok := make(chan struct{}, 1)
	r.SetRegistry([]Command{
		{Route: "boom", Handle: func(context.Context, *Request) error { panic("x") }},
		{Route: "ping", Handle: func(context.Context, *Request) error { ok <- struct{}{}; return nil }},
	})
	updates := startRouter(t, r)

	updates <- msgUpdate(1, 7, 7, "/boom", false)
	updates <- msgUpdate(2, 7, 7, "/ping", false)
	select {
	case <-ok:
	case <-time.After(2 * time.Second):
		t.Fatal("router stopped working after panic")
	}
}

func TestHelpAndMenu(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, nil)
	r.SetRegistry([]Command{
		{Route: "rooms add", Description: "register a room", Access: AccessOwnerOnly, Handle: noop},
		{Route: "rooms list", Description: "list rooms", Access: AccessOwnerOnly, Handle: noop},
		{Route: "info", Aliases: []string{"about"}, Description: "about this bot", Handle: noop},
	})

	top := r.helpText(nil)
	assert.Contains(t, top, "/info")
	assert.Contains(t, top, "🔒 <code>/rooms</code>")

	node := r.helpText([]string{"rooms"})
	assert.Contains(t, node, "/rooms add")
	assert.Contains(t, node, "/rooms list")

	assert.Contains(t, r.helpText([]string{"about"}), "about this bot")
	assert.Contains(t, r.helpText([]string{"missing"}), "Unknown command")

	r.mu.RLock()
	menu := r.menu
	r.mu.RUnlock()
	names := make([]string, 0, len(menu))
	for _, c := range menu {
		names = append(names, c.Command)
	}
	assert.Equal(t, []string{"help", "info", "rooms", "rooms_add", "rooms_list"}, names)
}

func TestSanitizeTelegramCommand(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "rooms_add", sanitizeTelegramCommand("Rooms-Add"))
	assert.Equal(t, "cmd_42", sanitizeTelegramCommand("42"))
	assert.Equal(t, "", sanitizeTelegramCommand("!!"))
	assert.Len(t, sanitizeTelegramCommand("abcdefghijklmnopqrstuvwxyz_abcdefghij"), 32)
}

func noop(context.Context, *Request) error { return nil }
