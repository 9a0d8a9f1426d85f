// Package logx configures standupbot's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional Telegram sink (min-level + rate limiting) for an operator group
//
// CronLogger bridges a Logger into robfig/cron so scheduler internals land in
// the same sinks.
package logx
