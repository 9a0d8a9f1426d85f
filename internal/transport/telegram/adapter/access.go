package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "standupbot/pkg/logx"
)

// GrantAccess lifts any ban the user has in each access chat and DMs a
// single-use invite link. Telegram has no per-member roles, so an access chat
// stands in for one.
func (a *Adapter) GrantAccess(ctx context.Context, userID int64, chatIDs []int64) error {
	user := &tele.User{ID: userID}
	var errs []error
	for _, id := range chatIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		chat := &tele.Chat{ID: id}
		if err := a.bot.Unban(chat, user, true); err != nil {
			errs = append(errs, fmt.Errorf("unban in %d: %w", id, err))
			continue
		}
		link, err := a.bot.CreateInviteLink(chat, &tele.ChatInviteLink{
			MemberLimit:    1,
			ExpireUnixtime: time.Now().Add(a.cfg.InviteTTL).Unix(),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("invite link for %d: %w", id, err))
			continue
		}
		if _, err := a.bot.Send(user, "Standup accepted. Your access link: "+link.InviteLink, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
			errs = append(errs, fmt.Errorf("send invite for %d: %w", id, err))
			continue
		}
		a.log.Debug("access granted", logx.Int64("user_id", userID), logx.Int64("access_chat", id))
	}
	return errors.Join(errs...)
}

// RevokeAccess removes the user from each access chat. The ban is lifted right
// after so the next standup can grant access again.
func (a *Adapter) RevokeAccess(ctx context.Context, userID int64, chatIDs []int64) error {
	user := &tele.User{ID: userID}
	var errs []error
	for _, id := range chatIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		chat := &tele.Chat{ID: id}
		if err := a.bot.Ban(chat, &tele.ChatMember{User: user}); err != nil {
			errs = append(errs, fmt.Errorf("remove from %d: %w", id, err))
			continue
		}
		if err := a.bot.Unban(chat, user, true); err != nil {
			errs = append(errs, fmt.Errorf("unban in %d: %w", id, err))
			continue
		}
		a.log.Debug("access revoked", logx.Int64("user_id", userID), logx.Int64("access_chat", id))
	}
	return errors.Join(errs...)
}
