package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"standupbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// slowRequest promotes the completion log of a successful command to info.
const slowRequest = 750 * time.Millisecond

// Chain wraps h so that m[0] is the outermost middleware.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func withTimeout(d time.Duration) Middleware {
	if d <= 0 {
		return func(next HandlerFunc) HandlerFunc { return next }
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}

// recoverPanics turns a handler panic into an error so one bad command
// cannot take down a dispatch worker.
func recoverPanics(fallback logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				req.logger(fallback).Error("command panicked",
					logx.Any("panic", r),
					logx.Stack(string(debug.Stack())),
				)
				err = fmt.Errorf("command %s panicked: %v", req.commandName(), r)
			}()
			return next(ctx, req)
		}
	}
}

func logRequests(fallback logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			began := time.Now()
			err := next(ctx, req)
			took := time.Since(began)

			log := req.logger(fallback).With(
				logx.Int("args", len(req.Args)),
				logx.Duration("took", took),
			)
			if err != nil {
				log.Warn("command failed", logx.Err(err))
			} else if took >= slowRequest {
				log.Info("command done")
			} else {
				log.Debug("command done")
			}
			return err
		}
	}
}

func (r *Request) logger(fallback logx.Logger) logx.Logger {
	if r == nil || r.Logger.IsZero() {
		return fallback
	}
	return r.Logger
}

func (r *Request) commandName() string {
	if r == nil {
		return "?"
	}
	return r.Command
}
