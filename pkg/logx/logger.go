package logx

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// callerSkip moves zerolog's caller lookup past log() and the level method.
const callerSkip = 2

// Logger is a value-type structured logger. The zero value discards
// everything. Loggers obtained from a Service follow its reconfiguration.
type Logger struct {
	svc    *Service
	zl     *zerolog.Logger
	fields []Field
}

func Nop() Logger {
	zl := zerolog.Nop()
	return Logger{zl: &zl}
}

// NewConsole builds a console logger detached from any Service, for use
// before the configuration is loaded.
func NewConsole(level string) Logger {
	return standalone(newConsoleWriter(Stdout()), parseLevel(level, zerolog.InfoLevel))
}

// NewJSON writes JSON lines to w.
func NewJSON(w io.Writer, level string) Logger {
	return standalone(w, parseLevel(level, zerolog.DebugLevel))
}

func standalone(w io.Writer, lvl zerolog.Level) Logger {
	setGlobals()
	zl := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return Logger{zl: &zl}
}

var globalsOnce sync.Once

func setGlobals() {
	globalsOnce.Do(func() {
		zerolog.TimeFieldFormat = timeLayout
		zerolog.ErrorFieldName = "err"
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			return filepath.Base(file) + ":" + strconv.Itoa(line)
		}
	})
}

func (l Logger) IsZero() bool { return l.svc == nil && l.zl == nil && len(l.fields) == 0 }

func (l Logger) target() zerolog.Logger {
	switch {
	case l.svc != nil:
		return l.svc.current()
	case l.zl != nil:
		return *l.zl
	}
	return zerolog.Nop()
}

// With returns a copy carrying fields on every subsequent record.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) > 0 {
		l.fields = append(l.fields[:len(l.fields):len(l.fields)], fields...)
	}
	return l
}

func (l Logger) Trace(msg string, fields ...Field) { l.log(zerolog.TraceLevel, msg, fields) }
func (l Logger) Debug(msg string, fields ...Field) { l.log(zerolog.DebugLevel, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.log(zerolog.InfoLevel, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.log(zerolog.WarnLevel, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.log(zerolog.ErrorLevel, msg, fields) }

func (l Logger) log(lvl zerolog.Level, msg string, fields []Field) {
	zl := l.target()
	e := zl.WithLevel(lvl)
	if e == nil {
		return
	}
	e.Caller(callerSkip)
	apply(e, l.fields)
	apply(e, fields)
	e.Msg(msg)
}

func apply(e *zerolog.Event, fields []Field) {
	for _, f := range fields {
		if f != nil {
			f(e)
		}
	}
}

func newConsoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:          w,
		TimeFormat:   timeLayout,
		FormatCaller: func(i any) string { s, _ := i.(string); return s },
	}
}

// parseLevel maps a config level name to zerolog, falling back to def for
// empty or unknown names.
func parseLevel(s string, def zerolog.Level) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	switch s {
	case "trace", "debug", "info", "warn", "error":
		lvl, err := zerolog.ParseLevel(s)
		if err == nil {
			return lvl
		}
	}
	return def
}

func Stdout() io.Writer { return os.Stdout }

func Stderr() io.Writer { return os.Stderr }
