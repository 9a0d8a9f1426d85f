package standup

import "time"

// Outcome classifies how a message was handled.
type Outcome int

const (
	OutcomeIgnored   Outcome = iota // channel is not a room
	OutcomeCooldown                 // user still has an active entry
	OutcomeMalformed                // text misses the standup template
	OutcomeAccepted                 // entry created, roles granted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeCooldown:
		return "cooldown"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// IntentKind names the side effect an Intent asks for.
type IntentKind int

const (
	IntentDeleteMessage IntentKind = iota + 1 // remove the posted message
	IntentSendHelp                            // DM the template to the poster
	IntentGrantRoles                          // give the entry's roles
	IntentRevokeRoles                         // take the entry's roles back
)

func (k IntentKind) String() string {
	switch k {
	case IntentDeleteMessage:
		return "delete_message"
	case IntentSendHelp:
		return "send_help"
	case IntentGrantRoles:
		return "grant_roles"
	case IntentRevokeRoles:
		return "revoke_roles"
	default:
		return "unknown"
	}
}

// Intent is a side effect requested by a decision or a sweep.
type Intent struct {
	Kind      IntentKind
	ChannelID int64
	UserID    int64
	MessageID int
	ThreadID  int
	RoleIDs   []int64
	EntryID   string
}

// Decision is the result of Decide. Entry is non-nil only for OutcomeAccepted.
type Decision struct {
	Outcome Outcome
	Entry   *Entry
	Intents []Intent
}

// Decide applies the standup rules to msg. room is nil when the channel is
// not governed; latest is the user's most recent entry in the channel, if any.
// msg.At is taken as the current time.
func Decide(room *Room, latest *Entry, msg Message, newID func() string) Decision {
	if room == nil {
		return Decision{Outcome: OutcomeIgnored}
	}
	if latest != nil && latest.ActiveAt(msg.At) {
		return reject(OutcomeCooldown, msg)
	}
	if !IsFormatted(msg.Text) {
		return reject(OutcomeMalformed, msg)
	}

	cooldown := room.Cooldown
	switch {
	case cooldown <= 0:
		cooldown = DefaultCooldown
	case cooldown > MaxCooldown:
		cooldown = MaxCooldown
	}
	entry := &Entry{
		ID:        newID(),
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		RoleIDs:   NormalizeRoles(room.RoleIDs),
		CreatedAt: msg.At,
		ExpiresAt: msg.At.Add(cooldown),
	}
	return Decision{
		Outcome: OutcomeAccepted,
		Entry:   entry,
		Intents: []Intent{{
			Kind:      IntentGrantRoles,
			ChannelID: entry.ChannelID,
			UserID:    entry.UserID,
			RoleIDs:   entry.RoleIDs,
			EntryID:   entry.ID,
		}},
	}
}

func reject(o Outcome, msg Message) Decision {
	return Decision{
		Outcome: o,
		Intents: []Intent{
			{Kind: IntentDeleteMessage, ChannelID: msg.ChannelID, UserID: msg.UserID, MessageID: msg.ID, ThreadID: msg.ThreadID},
			{Kind: IntentSendHelp, ChannelID: msg.ChannelID, UserID: msg.UserID, MessageID: msg.ID, ThreadID: msg.ThreadID},
		},
	}
}

func revokeIntent(e Entry) Intent {
	return Intent{
		Kind:      IntentRevokeRoles,
		ChannelID: e.ChannelID,
		UserID:    e.UserID,
		RoleIDs:   e.RoleIDs,
		EntryID:   e.ID,
	}
}

func sinceOrZero(now, t time.Time) time.Duration {
	if t.IsZero() || now.Before(t) {
		return 0
	}
	return now.Sub(t)
}
