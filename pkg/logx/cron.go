package logx

import "github.com/robfig/cron/v3"

// CronLogger adapts l to cron.Logger. Cron's Info chatter ("wake", "run") is
// demoted to debug; errors keep their level.
func CronLogger(l Logger) cron.Logger { return cronLogger{l: l} }

type cronLogger struct{ l Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), Err(err))...)
}
