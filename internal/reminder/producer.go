package reminder

import (
	"context"
	"errors"
	"time"

	"birthdaybot/internal/domain"
	"birthdaybot/internal/eventbus"
	"birthdaybot/internal/notifier"
	logx "birthdaybot/pkg/logx"
)

const defaultQueryRetryDelay = 5 * time.Second

// Producer discovers the events due in today's window once per civil day
// and hands them to the queue.
type Producer struct {
	resolver   *Resolver
	source     domain.ReminderSource
	queue      *Queue
	bus        eventbus.Bus
	log        logx.Logger
	retryDelay time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

type ProducerOption func(*Producer)

// WithProducerClock replaces time.Now and the wait between cycles.
func WithProducerClock(now func() time.Time, sleep func(context.Context, time.Duration) error) ProducerOption {
	return func(p *Producer) {
		if now != nil {
			p.now = now
		}
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// WithQueryRetryDelay sets the wait before retrying a failed window query.
func WithQueryRetryDelay(d time.Duration) ProducerOption {
	return func(p *Producer) {
		if d > 0 {
			p.retryDelay = d
		}
	}
}

func NewProducer(r *Resolver, src domain.ReminderSource, q *Queue, bus eventbus.Bus, log logx.Logger, opts ...ProducerOption) *Producer {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Producer{
		resolver:   r,
		source:     src,
		queue:      q,
		bus:        bus,
		log:        log.With(logx.String("comp", "producer")),
		retryDelay: defaultQueryRetryDelay,
		now:        time.Now,
		sleep:      notifier.Sleep,
	}
	for _, o := range opts {
		if o != nil {
			o(p)
		}
	}
	return p
}

// Run loops until ctx is done. It returns ctx.Err().
func (p *Producer) Run(ctx context.Context) error {
	for {
		res := p.resolver.Resolve(p.now())
		if res.Due {
			n, err := p.Cycle(ctx, res.Window)
			if err != nil {
				return err
			}
			p.log.Info("reminder cycle finished",
				logx.String("window", res.Window.String()),
				logx.Int("queued", n),
			)
			if p.bus != nil {
				p.bus.Publish(eventbus.Event{Type: eventbus.CycleFinished, Data: CycleEvent{Window: res.Window, Queued: n}})
			}
			// The query may have spanned retries; measure the wait from now.
			res = p.resolver.Resolve(p.now())
		}
		p.log.Debug("sleeping until next trigger",
			logx.Duration("sleep", res.Sleep),
			logx.Time("at", res.Now.Add(res.Sleep)),
		)
		if err := p.sleep(ctx, res.Sleep); err != nil {
			return err
		}
	}
}

// Cycle queries w until it succeeds and enqueues every result in source
// order. Only cancellation stops the retries.
func (p *Producer) Cycle(ctx context.Context, w domain.Window) (int, error) {
	for attempt := 1; ; attempt++ {
		events, err := p.source.ListByWindow(ctx, w)
		if err == nil {
			for _, ev := range events {
				p.queue.Push(ev)
				if p.bus != nil {
					p.bus.Publish(eventbus.Event{Type: eventbus.ReminderQueued, Data: ItemEvent{EventID: ev.ID, OwnerID: ev.OwnerID}})
				}
			}
			return len(events), nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		fields := []logx.Field{
			logx.String("window", w.String()),
			logx.Int("attempt", attempt),
			logx.Duration("retry_in", p.retryDelay),
			logx.Err(err),
		}
		if errors.Is(err, domain.ErrRepository) {
			p.log.Error("window query failed", fields...)
		} else {
			p.log.Error("window query failed", append(fields, logx.String("kind", "unexpected"))...)
		}
		if err := p.sleep(ctx, p.retryDelay); err != nil {
			return 0, err
		}
	}
}
