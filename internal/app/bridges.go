package app

import (
	"context"
	"errors"

	"standupbot/internal/notifier"
	"standupbot/internal/standup"
	kit "standupbot/internal/transport"
)

// membership maps standup roles onto Telegram access chats.
type membership struct {
	access kit.AccessManager
}

func (m membership) Grant(ctx context.Context, userID, _ int64, roles []int64) error {
	return m.access.GrantAccess(ctx, userID, roles)
}

func (m membership) Revoke(ctx context.Context, userID, _ int64, roles []int64) error {
	return m.access.RevokeAccess(ctx, userID, roles)
}

// directNotifier is the part of the notifier used for DMs.
type directNotifier interface {
	SendDirect(ctx context.Context, userID int64, text string) error
}

// messenger deletes room messages through the adapter and sends DMs
// through the notifier queue, falling back to a direct send when the
// notifier is off.
type messenger struct {
	adapter kit.Adapter
	notif   directNotifier
}

func (m messenger) DeleteMessage(ctx context.Context, channelID int64, messageID int) error {
	return m.adapter.DeleteMessage(ctx, kit.MessageRef{ChatID: channelID, MessageID: messageID})
}

func (m messenger) SendDirect(ctx context.Context, userID int64, text string) error {
	if m.notif != nil {
		err := m.notif.SendDirect(ctx, userID, text)
		if !errors.Is(err, notifier.ErrDisabled) && !errors.Is(err, notifier.ErrStopped) {
			return err
		}
	}
	_, err := m.adapter.SendText(ctx, kit.ChatTarget{ChatID: userID}, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// toStandupMessage converts an inbound Telegram message. ok is false for
// messages without a human sender (channel posts, service messages).
func toStandupMessage(m kit.Message) (standup.Message, bool) {
	if m.FromID == 0 || m.ID == 0 {
		return standup.Message{}, false
	}
	return standup.Message{
		ID:        m.ID,
		ChannelID: m.ChatID,
		ThreadID:  m.ThreadID,
		UserID:    m.FromID,
		Text:      m.Text,
		At:        m.SentAt,
	}, true
}

var (
	_ standup.Membership = membership{}
	_ standup.Messenger  = messenger{}
)
