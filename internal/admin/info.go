package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"standupbot/internal/transport/telegram/router"
	"standupbot/pkg/tgui"
)

func (h *Handlers) info(ctx context.Context, req *router.Request) error {
	lines := []tgui.H{
		"ℹ️ " + tgui.B("Info"),
		tgui.Esc("A Telegram bot for conducting daily stand-ups."),
		"",
		tgui.Field("GitHub", tgui.Link("skippi/standup", ProjectURL)),
		tgui.Field("Framework", tgui.Link("telebot", "https://github.com/tucnak/telebot")),
	}
	if h.d.Status != nil {
		if st := h.d.Status(ctx); len(st) > 0 {
			lines = append(lines, "")
			for _, s := range st {
				lines = append(lines, tgui.Esc(s))
			}
		}
	}
	return req.ReplyHTML(ctx, tgui.Lines(lines...).String())
}

func (h *Handlers) audit(ctx context.Context, req *router.Request) error {
	limit := 10
	if len(req.Args) > 0 {
		n, err := strconv.Atoi(req.Args[0])
		if err != nil || n <= 0 {
			return req.Reply(ctx, "❌ Failed: limit must be a positive number.")
		}
		limit = min(n, 50)
	}
	rows, err := h.d.Audit.RecentAudit(ctx, limit)
	if err != nil {
		_ = req.Reply(ctx, "❌ Failed: internal error.")
		return err
	}
	if len(rows) == 0 {
		return req.Reply(ctx, "No audit entries.")
	}
	lines := make([]string, 0, len(rows))
	for _, e := range rows {
		status := "ok"
		if !e.OK {
			status = "err: " + e.Error
		}
		actor := strconv.FormatInt(e.ActorID, 10)
		if e.ActorUsername != "" {
			actor = "@" + e.ActorUsername
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %s (%s)",
			e.At.Format("2006-01-02 15:04:05"), actor, e.Action, e.Target, status))
	}
	return req.ReplyHTML(ctx, tgui.Pre(strings.Join(lines, "\n")).String())
}
