package app

import (
	"context"
	"fmt"
	"time"

	"standupbot/internal/notifier"
)

// status feeds /info.
func (a *App) status(ctx context.Context) []string {
	lines := []string{fmt.Sprintf("Uptime: %s", time.Since(a.started).Truncate(time.Second))}

	if rooms, err := a.rooms.List(ctx); err == nil {
		lines = append(lines, fmt.Sprintf("Rooms: %d", len(rooms)))
	}
	if rep, ok := a.sweeper.Last(); ok {
		lines = append(lines, fmt.Sprintf("Last sweep: %d expired, %d revoked, %d deleted (%s)",
			rep.Expired, rep.Revoked, rep.Deleted, rep.Duration.Truncate(time.Millisecond)))
	}
	if next, ok := a.sched.Next(sweepJob); ok {
		lines = append(lines, "Next sweep: "+next.Format(time.RFC3339))
	}
	if a.notif != nil {
		lines = append(lines, dmStatus(a.notif.History(), a.notif.Enabled()))
	}
	if a.sup != nil {
		c := a.sup.Counters()
		lines = append(lines, fmt.Sprintf("Goroutines: %d active, %d restarts, %d panics", c.Active, c.Restarts, c.Panics))
	}
	return lines
}

func dmStatus(history []notifier.HistoryItem, enabled bool) string {
	state := "on"
	if !enabled {
		state = "off"
	}
	if len(history) == 0 {
		return fmt.Sprintf("DM queue: %s, none sent", state)
	}
	last := history[len(history)-1].At
	return fmt.Sprintf("DM queue: %s, %d recent, last %s", state, len(history), last.UTC().Format(time.RFC3339))
}
