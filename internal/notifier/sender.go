package notifier

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "birthdaybot/pkg/logx"
)

const defaultRetryDelay = 5 * time.Second

// Sender retries a message until it is delivered, permanently rejected, or
// the context ends. It is safe for concurrent use.
type Sender struct {
	mu      sync.Mutex
	tr      Transport
	log     logx.Logger
	cfg     Config
	limiter *rate.Limiter

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

type Option func(*Sender)

// WithSleep replaces the wait between attempts.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *Sender) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// WithClock replaces time.Now for elapsed-time accounting.
func WithClock(fn func() time.Time) Option {
	return func(s *Sender) {
		if fn != nil {
			s.now = fn
		}
	}
}

func New(tr Transport, cfg Config, log logx.Logger, opts ...Option) *Sender {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Sender{
		tr:    tr,
		log:   log.With(logx.String("comp", "notifier")),
		sleep: Sleep,
		now:   time.Now,
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	s.Apply(cfg)
	return s
}

// Apply swaps the retry configuration. In-flight sends keep their snapshot.
func (s *Sender) Apply(cfg Config) {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	s.mu.Lock()
	s.cfg = cfg
	s.limiter = lim
	s.mu.Unlock()
}

// Send delivers text to chatID. The error is non-nil only when ctx ends
// before a terminal outcome; the Result then carries the attempts made.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) (Result, error) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	start := s.now()
	var res Result
	done := func() Result {
		res.Elapsed = s.now().Sub(start)
		return res
	}

	for {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return done(), ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return done(), err
		}

		res.Attempts++
		err := s.tr.SendPlain(ctx, chatID, text)
		if err != nil && ctx.Err() != nil {
			return done(), ctx.Err()
		}

		out := Classify(err, cfg.RetryDelay)
		switch out.Kind {
		case KindSuccess:
			res.Delivered = true
			res.Reason, res.Err = "", nil
			return done(), nil
		case KindPermanent:
			res.Reason, res.Err = out.Reason, err
			s.log.Warn("send aborted",
				logx.Int64("chat_id", chatID),
				logx.String("reason", out.Reason),
				logx.Int("attempt", res.Attempts),
				logx.Err(err),
			)
			return done(), nil
		default:
			res.Reason, res.Err = out.Reason, err
			s.log.Debug("send retry scheduled",
				logx.Int64("chat_id", chatID),
				logx.String("reason", out.Reason),
				logx.Int("attempt", res.Attempts),
				logx.Duration("delay", out.Delay),
				logx.Err(err),
			)
			if err := s.sleep(ctx, out.Delay); err != nil {
				return done(), err
			}
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
