// Package admin implements the operator commands: room management, the
// audit trail and /info.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"standupbot/internal/standup"
	"standupbot/internal/storage"
	kit "standupbot/internal/transport"
	"standupbot/internal/transport/telegram/router"
	"standupbot/pkg/logx"
)

const ProjectURL = "https://www.github.com/skippi/standup"

// Rooms is the registry surface the commands mutate.
type Rooms interface {
	Register(ctx context.Context, channelID int64, roles []int64) (standup.Room, error)
	UpdateRoles(ctx context.Context, channelID int64, roles []int64) (standup.Room, error)
	UpdateCooldown(ctx context.Context, channelID int64, d time.Duration) (standup.Room, error)
	Remove(ctx context.Context, channelID int64) error
	List(ctx context.Context) ([]standup.Room, error)
}

type AuditLog interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
	RecentAudit(ctx context.Context, limit int) ([]storage.AuditEntry, error)
}

type Deps struct {
	Rooms Rooms
	// Chats filters role ids down to chats the bot can see. Nil accepts all.
	Chats kit.ChatResolver
	// Audit records every room mutation. Nil disables the trail and /audit.
	Audit AuditLog
	// Status returns extra lines for /info (uptime, sweeper state, ...).
	Status func(ctx context.Context) []string
	Log    logx.Logger
	Now    func() time.Time
}

type Handlers struct {
	d Deps
}

func New(d Deps) *Handlers {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handlers{d: d}
}

// Commands returns the router registry for the admin surface.
func (h *Handlers) Commands() []router.Command {
	cmds := []router.Command{
		{
			Route:       "rooms add",
			Description: "register a chat as a standup room",
			Usage:       "/rooms add <channel_id>",
			Access:      router.AccessOwnerOnly,
			Timeout:     10 * time.Second,
			Handle:      h.audited("rooms.add", h.roomsAdd),
		},
		{
			Route:       "rooms remove",
			Description: "stop treating a chat as a standup room",
			Usage:       "/rooms remove <channel_id>",
			Access:      router.AccessOwnerOnly,
			Timeout:     10 * time.Second,
			Handle:      h.audited("rooms.remove", h.roomsRemove),
		},
		{
			Route:       "rooms list",
			Description: "list standup rooms with their roles",
			Usage:       "/rooms list",
			Access:      router.AccessOwnerOnly,
			Timeout:     10 * time.Second,
			Handle:      h.roomsList,
		},
		{
			Route:       "rooms config",
			Description: "set a room's roles (comma separated access chat ids) or cooldown (seconds)",
			Usage:       "/rooms config <room> roles <id,id,...>\n/rooms config <room> cooldown <seconds>",
			Access:      router.AccessOwnerOnly,
			Timeout:     30 * time.Second,
			Handle:      h.audited("rooms.config", h.roomsConfig),
		},
		{
			Route:       "info",
			Aliases:     []string{"about"},
			Description: "information about the standup bot",
			Usage:       "/info",
			Access:      router.AccessEveryone,
			Timeout:     10 * time.Second,
			Handle:      h.info,
		},
	}
	if h.d.Audit != nil {
		cmds = append(cmds, router.Command{
			Route:       "audit",
			Description: "recent admin actions",
			Usage:       "/audit [limit]",
			Access:      router.AccessOwnerOnly,
			Timeout:     10 * time.Second,
			Handle:      h.audit,
		})
	}
	return cmds
}

// userError is a failure shown to the operator verbatim.
type userError struct{ msg string }

func (e *userError) Error() string { return e.msg }

func failf(format string, args ...any) error {
	return &userError{msg: "Failed: " + fmt.Sprintf(format, args...)}
}

// action runs a mutating command and returns the audited target.
type action func(ctx context.Context, req *router.Request) (target, ok string, err error)

// audited replies ✅/❌ for an action and appends it to the audit log.
// Only internal failures are returned (and logged by the middleware).
func (h *Handlers) audited(name string, fn action) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		start := h.d.Now()
		target, okText, err := fn(ctx, req)

		entry := storage.AuditEntry{
			At:            start.UTC(),
			ActorID:       req.FromID,
			ActorUsername: req.Message.FromUsername,
			ChatID:        req.Chat.ChatID,
			ThreadID:      req.Chat.ThreadID,
			Action:        name,
			Target:        target,
			OK:            err == nil,
			TookMS:        h.d.Now().Sub(start).Milliseconds(),
		}
		if err != nil {
			entry.Error = err.Error()
		}
		h.appendAudit(ctx, req, entry)

		var ue *userError
		switch {
		case err == nil:
			_ = req.Reply(ctx, "✅ "+okText)
			return nil
		case errors.As(err, &ue):
			_ = req.Reply(ctx, "❌ "+ue.msg)
			return nil
		default:
			_ = req.Reply(ctx, "❌ Failed: internal error.")
			return err
		}
	}
}

func (h *Handlers) appendAudit(ctx context.Context, req *router.Request, e storage.AuditEntry) {
	if h.d.Audit == nil {
		return
	}
	// The audit row outlives a handler that timed out.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.d.Audit.AppendAudit(actx, e); err != nil {
		req.Logger.Warn("audit append failed", logx.String("action", e.Action), logx.Err(err))
	}
}
