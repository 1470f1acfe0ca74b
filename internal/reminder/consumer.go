package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"birthdaybot/internal/domain"
	"birthdaybot/internal/eventbus"
	"birthdaybot/internal/notifier"
	logx "birthdaybot/pkg/logx"
)

// Sender delivers a rendered message; see notifier.Sender.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) (notifier.Result, error)
}

// Renderer turns a classified event into the recipient's message.
type Renderer interface {
	Reminder(locale string, cls domain.Classification, label string) string
}

// Disposition is what the consumer did with one queue item.
type Disposition int

const (
	Delivered Disposition = iota + 1
	Aborted
	Skipped
	Dropped
)

func (d Disposition) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case Aborted:
		return "aborted"
	case Skipped:
		return "skipped"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

type ConsumerConfig struct {
	// Pacing is the minimum gap between two processed items.
	Pacing time.Duration
	// RetryDelay separates attempts of a failing user or ledger lookup.
	RetryDelay time.Duration
	// LookupAttempts bounds those attempts.
	LookupAttempts int
	// RecordTimeout bounds the ledger write that follows a send.
	RecordTimeout time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.Pacing <= 0 {
		c.Pacing = 50 * time.Millisecond
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.LookupAttempts <= 0 {
		c.LookupAttempts = 3
	}
	if c.RecordTimeout <= 0 {
		c.RecordTimeout = 10 * time.Second
	}
	return c
}

// Consumer drains the queue one event at a time: resolve the owner,
// classify, check the ledger, deliver, record.
type Consumer struct {
	cfg      ConsumerConfig
	queue    *Queue
	resolver *Resolver
	users    domain.UserResolver
	ledger   domain.IdempotencyLedger
	sender   Sender
	render   Renderer
	bus      eventbus.Bus
	log      logx.Logger
	pace     *rate.Limiter

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

type ConsumerDeps struct {
	Queue    *Queue
	Resolver *Resolver
	Users    domain.UserResolver
	Ledger   domain.IdempotencyLedger
	Sender   Sender
	Renderer Renderer
	Bus      eventbus.Bus
	Log      logx.Logger
}

type ConsumerOption func(*Consumer)

// WithConsumerClock replaces time.Now and the wait between lookup attempts.
func WithConsumerClock(now func() time.Time, sleep func(context.Context, time.Duration) error) ConsumerOption {
	return func(c *Consumer) {
		if now != nil {
			c.now = now
		}
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func NewConsumer(cfg ConsumerConfig, d ConsumerDeps, opts ...ConsumerOption) *Consumer {
	cfg = cfg.withDefaults()
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Consumer{
		cfg:      cfg,
		queue:    d.Queue,
		resolver: d.Resolver,
		users:    d.Users,
		ledger:   d.Ledger,
		sender:   d.Sender,
		render:   d.Renderer,
		bus:      d.Bus,
		log:      log.With(logx.String("comp", "consumer")),
		pace:     rate.NewLimiter(rate.Every(cfg.Pacing), 1),
		now:      time.Now,
		sleep:    notifier.Sleep,
	}
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}
	return c
}

// Run processes items until ctx is done. It returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := c.pace.Wait(ctx); err != nil {
			return ctx.Err()
		}
		ev, err := c.queue.Pop(ctx)
		if err != nil {
			return err
		}
		if _, err := c.Process(ctx, ev); err != nil {
			return err
		}
	}
}

// Process handles one event. The error is non-nil only on cancellation,
// in which case nothing has been recorded for the event.
func (c *Consumer) Process(ctx context.Context, ev domain.Event) (Disposition, error) {
	log := c.log.With(logx.String("event_id", ev.ID.String()))

	user, err := c.lookupUser(ctx, ev.OwnerID)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("owner not found; dropping", logx.String("owner_id", ev.OwnerID.String()))
			c.publish(eventbus.ReminderDropped, ItemEvent{EventID: ev.ID, OwnerID: ev.OwnerID, Reason: "owner_not_found"})
		} else {
			log.Error("owner lookup failed; dropping", logx.String("owner_id", ev.OwnerID.String()), logx.Err(err))
			c.publish(eventbus.ReminderDropped, ItemEvent{EventID: ev.ID, OwnerID: ev.OwnerID, Reason: "owner_lookup_failed"})
		}
		return Dropped, nil
	}

	res := c.resolver.Resolve(c.now())
	cls := domain.Classify(res.Today, ev)
	key := domain.CompletionKey{EventID: ev.ID, Year: res.Year, Classification: cls}
	item := ItemEvent{EventID: ev.ID, OwnerID: ev.OwnerID, Classification: cls, Year: res.Year}
	log = log.With(logx.String("classification", string(cls)), logx.Int("year", res.Year))

	done, err := c.completed(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		log.Error("ledger lookup failed; dropping", logx.Err(err))
		item.Reason = "ledger_lookup_failed"
		c.publish(eventbus.ReminderDropped, item)
		return Dropped, nil
	}
	if done {
		log.Debug("already delivered; skipping")
		c.publish(eventbus.ReminderSkipped, item)
		return Skipped, nil
	}

	text := c.render.Reminder(user.Locale, cls, ev.Label)
	out, err := c.sender.Send(ctx, user.ChatID, text)
	if err != nil {
		log.Info("send interrupted", logx.Int("attempts", out.Attempts), logx.Duration("elapsed", out.Elapsed), logx.Err(err))
		return 0, err
	}

	disp := Delivered
	item.Attempts = out.Attempts
	if out.Delivered {
		log.Info("reminder delivered",
			logx.Int64("chat_id", user.ChatID), logx.Int("attempts", out.Attempts), logx.Duration("elapsed", out.Elapsed))
		c.publish(eventbus.ReminderSent, item)
	} else {
		disp = Aborted
		item.Reason = out.Reason
		log.Warn("reminder aborted",
			logx.Int64("chat_id", user.ChatID), logx.Int("attempts", out.Attempts), logx.Duration("elapsed", out.Elapsed),
			logx.String("reason", out.Reason), logx.Err(out.Err))
		c.publish(eventbus.ReminderAborted, item)
	}

	c.record(ctx, log, domain.CompletionRecord{
		ID:             domain.NewID(),
		EventID:        ev.ID,
		Year:           res.Year,
		Classification: cls,
		CreatedAt:      c.now().UTC(),
	})
	return disp, nil
}

// record writes the terminal outcome even if ctx is cancelled meanwhile:
// the message has already left.
func (c *Consumer) record(ctx context.Context, log logx.Logger, rec domain.CompletionRecord) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RecordTimeout)
	defer cancel()
	err := c.ledger.AddCompletion(wctx, rec)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAlreadyRecorded):
		log.Warn("completion already recorded; treating as delivered")
	default:
		log.Error("completion write failed", logx.Err(err))
	}
}

func (c *Consumer) lookupUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.LookupAttempts; attempt++ {
		u, err := c.users.GetUser(ctx, id)
		if err == nil || errors.Is(err, domain.ErrNotFound) || ctx.Err() != nil {
			return u, err
		}
		lastErr = err
		if attempt == c.cfg.LookupAttempts {
			break
		}
		c.log.Warn("owner lookup failed; retrying",
			logx.String("owner_id", id.String()),
			logx.Int("attempt", attempt),
			logx.Duration("retry_in", c.cfg.RetryDelay),
			logx.Err(err),
		)
		if err := c.sleep(ctx, c.cfg.RetryDelay); err != nil {
			return domain.User{}, err
		}
	}
	return domain.User{}, lastErr
}

func (c *Consumer) completed(ctx context.Context, key domain.CompletionKey) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.LookupAttempts; attempt++ {
		_, err := c.ledger.GetCompletion(ctx, key)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, domain.ErrNotFound):
			return false, nil
		case ctx.Err() != nil:
			return false, ctx.Err()
		}
		lastErr = err
		if attempt == c.cfg.LookupAttempts {
			break
		}
		if err := c.sleep(ctx, c.cfg.RetryDelay); err != nil {
			return false, err
		}
	}
	return false, lastErr
}

func (c *Consumer) publish(typ string, item ItemEvent) {
	if c.bus != nil {
		c.bus.Publish(eventbus.Event{Type: typ, Data: item})
	}
}
