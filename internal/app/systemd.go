package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"standupbot/pkg/logx"
)

// notifyReady tells systemd (Type=notify units) that startup finished.
// Outside systemd it is a no-op.
func notifyReady(log logx.Logger) {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("systemd ready notification failed", logx.Err(err))
	} else if ok {
		log.Debug("systemd notified ready")
	}
}

func notifyStopping(log logx.Logger) {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Debug("systemd stopping notification failed", logx.Err(err))
	}
}

// watchdogLoop pings the systemd watchdog at half its interval when
// WatchdogSec is configured for the unit.
func watchdogLoop(ctx context.Context, log logx.Logger) {
	every, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("systemd watchdog config invalid", logx.Err(err))
		return
	}
	if every <= 0 {
		return
	}
	t := time.NewTicker(every / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.Debug("systemd watchdog ping failed", logx.Err(err))
			}
		}
	}
}
