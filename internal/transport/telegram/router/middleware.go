package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "birthdaybot/pkg/logx"
)

// slowRequest promotes the request log line from DEBUG to INFO.
const slowRequest = 750 * time.Millisecond

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that m[0] is the outermost layer.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// MWTimeout bounds the handler context; d <= 0 leaves it unbounded.
func MWTimeout(d time.Duration) Middleware {
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

// MWPanicRecover turns a handler panic into an error.
func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				req.logger(log).Error("handler panic", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
				err = fmt.Errorf("handler %q panicked: %v", req.Command, r)
			}()
			return next(ctx, req)
		}
	}
}

// MWRequestLog logs the outcome of each command; fast successes at DEBUG.
func MWRequestLog(log logx.Logger, slow time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)

			l := req.logger(log).With(logx.Int("args", len(req.Args)), logx.Duration("took", took))
			if err != nil {
				l.Warn("command failed", logx.Err(err))
			} else if took >= slow {
				l.Info("command done (slow)")
			} else {
				l.Debug("command done")
			}
			return err
		}
	}
}

// MWErrorReply passes a failed request to onErr under a context that
// outlives the handler deadline, so the user still gets an answer.
func MWErrorReply(onErr func(ctx context.Context, req *Request, err error)) Middleware {
	if onErr == nil {
		return func(next HandlerFunc) HandlerFunc { return next }
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			err := next(ctx, req)
			if err != nil {
				onErr(context.WithoutCancel(ctx), req, err)
			}
			return err
		}
	}
}
