package standup

import (
	"context"
	"fmt"
)

// Effector carries out intents against the chat platform.
type Effector interface {
	Apply(ctx context.Context, in Intent) error
}

// Membership grants and revokes a user's roles.
type Membership interface {
	Grant(ctx context.Context, userID, channelID int64, roles []int64) error
	Revoke(ctx context.Context, userID, channelID int64, roles []int64) error
}

// Messenger deletes channel messages and sends direct messages.
type Messenger interface {
	DeleteMessage(ctx context.Context, channelID int64, messageID int) error
	SendDirect(ctx context.Context, userID int64, text string) error
}

// Effects is the Effector backed by a Membership and a Messenger.
// HelpText returns the text of help messages; nil means HelpText.
type Effects struct {
	Membership Membership
	Messenger  Messenger
	HelpText   func() string
}

func (f Effects) Apply(ctx context.Context, in Intent) error {
	switch in.Kind {
	case IntentDeleteMessage:
		return f.Messenger.DeleteMessage(ctx, in.ChannelID, in.MessageID)
	case IntentSendHelp:
		text := HelpText
		if f.HelpText != nil {
			if s := f.HelpText(); s != "" {
				text = s
			}
		}
		return f.Messenger.SendDirect(ctx, in.UserID, text)
	case IntentGrantRoles:
		if len(in.RoleIDs) == 0 {
			return nil
		}
		return f.Membership.Grant(ctx, in.UserID, in.ChannelID, in.RoleIDs)
	case IntentRevokeRoles:
		if len(in.RoleIDs) == 0 {
			return nil
		}
		return f.Membership.Revoke(ctx, in.UserID, in.ChannelID, in.RoleIDs)
	default:
		return fmt.Errorf("unknown intent kind %d", int(in.Kind))
	}
}
