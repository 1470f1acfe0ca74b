package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"birthdaybot/internal/domain"
	"birthdaybot/internal/eventbus"
	rtsup "birthdaybot/internal/runtime/supervisor"
	logx "birthdaybot/pkg/logx"
)

// Config is the engine's view of the reminder settings.
type Config struct {
	TriggerHour     int
	Timezone        string
	Pacing          time.Duration
	RetryDelay      time.Duration
	QueryRetryDelay time.Duration
	UserRetryMax    int
}

// Deps are the engine's collaborators.
type Deps struct {
	Source   domain.ReminderSource
	Users    domain.UserResolver
	Ledger   domain.IdempotencyLedger
	Sender   Sender
	Renderer Renderer
	Bus      eventbus.Bus
	Log      logx.Logger
}

// Engine owns the queue and runs the producer and the consumer as two
// supervised loops.
type Engine struct {
	log      logx.Logger
	resolver *Resolver
	queue    *Queue
	producer *Producer
	consumer *Consumer

	mu  sync.Mutex
	sup *rtsup.Supervisor
}

func NewEngine(cfg Config, d Deps) (*Engine, error) {
	if d.Source == nil || d.Users == nil || d.Ledger == nil || d.Sender == nil || d.Renderer == nil {
		return nil, errors.New("reminder engine: missing dependency")
	}
	res, err := NewResolver(cfg.TriggerHour, cfg.Timezone)
	if err != nil {
		return nil, err
	}
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	q := NewQueue()
	return &Engine{
		log:      log.With(logx.String("comp", "reminder")),
		resolver: res,
		queue:    q,
		producer: NewProducer(res, d.Source, q, d.Bus, log, WithQueryRetryDelay(cfg.QueryRetryDelay)),
		consumer: NewConsumer(ConsumerConfig{
			Pacing:         cfg.Pacing,
			RetryDelay:     cfg.RetryDelay,
			LookupAttempts: cfg.UserRetryMax,
		}, ConsumerDeps{
			Queue:    q,
			Resolver: res,
			Users:    d.Users,
			Ledger:   d.Ledger,
			Sender:   d.Sender,
			Renderer: d.Renderer,
			Bus:      d.Bus,
			Log:      log,
		}),
	}, nil
}

// Start launches both loops. Calling Start on a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sup != nil {
		return
	}
	e.sup = rtsup.New(ctx, rtsup.WithLogger(e.log))
	e.sup.GoRestart("reminder.producer", e.producer.Run)
	e.sup.GoRestart("reminder.consumer", e.consumer.Run)
	e.log.Info("reminder engine started",
		logx.Int("trigger_hour", e.resolver.TriggerHour()),
		logx.String("timezone", e.resolver.Location().String()),
	)
}

// Stop cancels both loops and waits for them within ctx. Queued items that
// were not yet processed are discarded.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	sup := e.sup
	e.sup = nil
	e.mu.Unlock()
	if sup == nil {
		return nil
	}
	snap := e.snapshot(sup)
	err := sup.Stop(ctx)
	if n := e.queue.Len(); n > 0 {
		e.log.Warn("reminder engine stopped with pending items", logx.Int("pending", n))
	}
	e.log.Info("reminder engine stopped", logx.Any("state", snap))
	return err
}

// Location is the timezone the daily window is computed in.
func (e *Engine) Location() *time.Location { return e.resolver.Location() }

// Snapshot is the engine state logged on Stop.
type Snapshot struct {
	Queued     int            `json:"queued"`
	Supervisor rtsup.Snapshot `json:"supervisor"`
	Next       time.Time      `json:"next_trigger"`
	Window     domain.Window  `json:"window"`
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	sup := e.sup
	e.mu.Unlock()
	return e.snapshot(sup)
}

func (e *Engine) snapshot(sup *rtsup.Supervisor) Snapshot {
	r := e.resolver.Resolve(time.Now())
	return Snapshot{
		Queued:     e.queue.Len(),
		Supervisor: sup.Snapshot(),
		Next:       r.Now.Add(r.Sleep),
		Window:     r.Window,
	}
}
