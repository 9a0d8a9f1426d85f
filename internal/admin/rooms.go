package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"standupbot/internal/standup"
	"standupbot/internal/transport/telegram/router"
	"standupbot/pkg/tgui"
)

func (h *Handlers) roomsAdd(ctx context.Context, req *router.Request) (string, string, error) {
	id, err := channelArg(req, 0, "/rooms add <channel_id>")
	if err != nil {
		return "", "", err
	}
	target := strconv.FormatInt(id, 10)
	if _, err := h.d.Rooms.Register(ctx, id, nil); err != nil {
		if errors.Is(err, standup.ErrAlreadyExists) {
			return target, "", failf("channel '%d' already is a room.", id)
		}
		return target, "", err
	}
	return target, fmt.Sprintf("Room %d added.", id), nil
}

// roomsRemove succeeds when the room is already absent.
func (h *Handlers) roomsRemove(ctx context.Context, req *router.Request) (string, string, error) {
	id, err := channelArg(req, 0, "/rooms remove <channel_id>")
	if err != nil {
		return "", "", err
	}
	target := strconv.FormatInt(id, 10)
	if err := h.d.Rooms.Remove(ctx, id); err != nil && !errors.Is(err, standup.ErrNotFound) {
		return target, "", err
	}
	return target, fmt.Sprintf("Room %d removed.", id), nil
}

func (h *Handlers) roomsList(ctx context.Context, req *router.Request) error {
	rooms, err := h.d.Rooms.List(ctx)
	if err != nil {
		_ = req.Reply(ctx, "❌ Failed: internal error.")
		return err
	}
	if len(rooms) == 0 {
		return req.Reply(ctx, "No rooms.")
	}
	return req.ReplyHTML(ctx, tgui.Pre(FormatRooms(rooms)).String())
}

// FormatRooms renders the numbered room listing.
func FormatRooms(rooms []standup.Room) string {
	lines := make([]string, 0, len(rooms))
	for i, r := range rooms {
		roles := make([]string, 0, len(r.RoleIDs))
		for _, id := range r.RoleIDs {
			roles = append(roles, strconv.FormatInt(id, 10))
		}
		lines = append(lines, fmt.Sprintf("%d: %d roles=[%s] cooldown=%s",
			i+1, r.ChannelID, strings.Join(roles, " "), r.Cooldown))
	}
	return strings.Join(lines, "\n")
}

func (h *Handlers) roomsConfig(ctx context.Context, req *router.Request) (string, string, error) {
	const usage = "/rooms config <room> roles|cooldown <value>"
	id, err := channelArg(req, 0, usage)
	if err != nil {
		return "", "", err
	}
	if len(req.Args) < 3 {
		return strconv.FormatInt(id, 10), "", failf("usage: %s", usage)
	}
	key, value := strings.ToLower(req.Args[1]), req.Args[2]
	target := fmt.Sprintf("%d %s", id, key)

	switch key {
	case "roles":
		ids, err := ParseIDList(value)
		if err != nil {
			return target, "", failf("%v", err)
		}
		known, unknown := h.filterChats(ctx, ids)
		room, err := h.d.Rooms.UpdateRoles(ctx, id, known)
		if err != nil {
			return target, "", roomErr(id, err)
		}
		msg := fmt.Sprintf("Room %d roles set to %v.", id, room.RoleIDs)
		if len(unknown) > 0 {
			msg += fmt.Sprintf(" Ignored unknown chats %v.", unknown)
		}
		return target, msg, nil
	case "cooldown":
		secs, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return target, "", failf("cooldown '%s' is not a number of seconds.", value)
		}
		if secs <= 0 || secs > maxCooldownSecs {
			return target, "", errCooldownRange
		}
		room, err := h.d.Rooms.UpdateCooldown(ctx, id, time.Duration(secs)*time.Second)
		if err != nil {
			return target, "", roomErr(id, err)
		}
		return target, fmt.Sprintf("Room %d cooldown set to %s.", id, room.Cooldown), nil
	default:
		return target, "", failf("unknown key '%s' (use roles or cooldown).", key)
	}
}

const maxCooldownSecs = int64(standup.MaxCooldown / time.Second)

var errCooldownRange = failf("cooldown must be between 1 and %d seconds.", maxCooldownSecs)

func roomErr(id int64, err error) error {
	switch {
	case errors.Is(err, standup.ErrNotFound):
		return failf("room '%d' does not exist.", id)
	case errors.Is(err, standup.ErrInvalidCooldown):
		return errCooldownRange
	default:
		return err
	}
}

// filterChats keeps the ids of chats the bot can see.
func (h *Handlers) filterChats(ctx context.Context, ids []int64) (known, unknown []int64) {
	known = make([]int64, 0, len(ids))
	for _, id := range ids {
		if h.d.Chats == nil || h.d.Chats.ChatExists(ctx, id) {
			known = append(known, id)
		} else {
			unknown = append(unknown, id)
		}
	}
	return known, unknown
}

// ParseIDList parses a comma separated id list. Empty items are skipped, so
// "" is the empty list.
func ParseIDList(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id '%s'.", part)
		}
		out = append(out, id)
	}
	return out, nil
}

func channelArg(req *router.Request, i int, usage string) (int64, error) {
	if len(req.Args) <= i {
		return 0, failf("usage: %s", usage)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(req.Args[i]), 10, 64)
	if err != nil {
		return 0, failf("invalid channel id '%s'.", req.Args[i])
	}
	return id, nil
}
