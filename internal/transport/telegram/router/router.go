package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"slices"
	"strconv"
	"sync"
	"time"

	rtsup "birthdaybot/internal/runtime/supervisor"
	kit "birthdaybot/internal/transport"
	logx "birthdaybot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	// Name is the bare command word, e.g. "add" for /add.
	Name        string
	Aliases     []string
	Description string
	Access      Access
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type Request struct {
	Message kit.Message
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	// ArgText is the text after the command word, unsplit.
	ArgText string
	ReqID   string
	IsOwner bool

	Adapter kit.Adapter
	Logger  logx.Logger
}

func (r *Request) logger(fallback logx.Logger) logx.Logger {
	if r != nil && !r.Logger.IsZero() {
		return r.Logger
	}
	return fallback
}

// Reply sends plain text back to the chat the request came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// Fallbacks answer requests that no command handles.
type Fallbacks struct {
	// Unknown handles an unregistered /command. Plain text is ignored.
	Unknown HandlerFunc
	// Forbidden handles an owner-only command sent by someone else.
	Forbidden HandlerFunc
	// Busy handles a command rejected because the job queue is full.
	Busy HandlerFunc
	// Error handles a command whose handler returned an error.
	Error func(ctx context.Context, req *Request, err error)
}

type Options struct {
	Workers        int
	QueueSize      int
	DefaultTimeout time.Duration
}

// Router dispatches incoming messages to commands on a bounded worker pool.
type Router struct {
	mu       sync.RWMutex
	commands []Command
	index    map[string]*Command
	owners   []int64

	log      logx.Logger
	adapter  kit.Adapter
	fallback Fallbacks
	opts     Options

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	jobs chan func()
}

func New(log logx.Logger, adapter kit.Adapter, owners []int64, fb Fallbacks, opts Options) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.Workers <= 0 {
		opts.Workers = max(2, runtime.NumCPU())
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Router{
		index:    map[string]*Command{},
		owners:   slices.Clone(owners),
		log:      log.With(logx.String("comp", "telegram.router")),
		adapter:  adapter,
		fallback: fb,
		opts:     opts,
		jobs:     make(chan func(), opts.QueueSize),
	}
}

// Supervisor returns the worker pool supervisor (nil if not running).
func (m *Router) Supervisor() *rtsup.Supervisor {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return nil
	}
	return m.sup
}

// SetOwners replaces the owner list used for AccessOwnerOnly checks.
func (m *Router) SetOwners(owners []int64) {
	m.mu.Lock()
	m.owners = slices.Clone(owners)
	m.mu.Unlock()
}

func (m *Router) isOwner(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.owners, id)
}

// SetCommands replaces the command set. Names and aliases are matched
// case-insensitively; a later duplicate loses.
func (m *Router) SetCommands(cmds []Command) {
	index := make(map[string]*Command, len(cmds)*2)
	kept := make([]Command, 0, len(cmds))
	seen := make(map[string]bool, len(cmds))
	for _, c := range cmds {
		name := sanitizeTelegramCommand(c.Name)
		if name == "" || c.Handle == nil || seen[name] {
			continue
		}
		seen[name] = true
		c.Name = name
		kept = append(kept, c)
	}
	for i := range kept {
		c := &kept[i]
		index[c.Name] = c
	}
	for i := range kept {
		c := &kept[i]
		for _, a := range c.Aliases {
			if a = sanitizeTelegramCommand(a); a != "" {
				if _, dup := index[a]; !dup {
					index[a] = c
				}
			}
		}
	}

	m.mu.Lock()
	m.commands = kept
	m.index = index
	m.mu.Unlock()
}

// Commands returns the registered commands in registration order.
func (m *Router) Commands() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.commands)
}

// PublishMenu pushes the public command list to the adapter when it supports it.
func (m *Router) PublishMenu(ctx context.Context) error {
	up, ok := m.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return up.UpdateMenuCommands(ctx, buildMenu(m.Commands()))
}

// tryEnqueue reports false when the queue is full or already closed.
func (m *Router) tryEnqueue(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

// Run dispatches updates until ctx is done or updates is closed.
func (m *Router) Run(ctx context.Context, updates <-chan kit.Message) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(m.log), rtsup.WithCancelOnError(false))
	m.runMu.Lock()
	m.sup, m.running = sup, true
	m.runMu.Unlock()

	m.log.Info("command dispatcher started", logx.Int("workers", m.opts.Workers), logx.Int("job_queue_cap", cap(m.jobs)))

	for i := 0; i < m.opts.Workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-m.jobs:
					if !ok {
						return nil
					}
					m.runJob(idx, job)
				}
			}
		}, rtsup.WithBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		m.runMu.Lock()
		m.running = false
		close(m.jobs)
		m.runMu.Unlock()

		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			m.Dispatch(ctx, msg)
		}
	}
}

func (m *Router) runJob(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

// Dispatch routes one message. Commands run on the worker pool; rejections
// are answered inline.
func (m *Router) Dispatch(ctx context.Context, msg kit.Message) {
	name, rest, ok := splitCommand(msg.Text)
	if !ok {
		return
	}

	m.mu.RLock()
	cmd := m.index[name]
	m.mu.RUnlock()

	rid := newReqID()
	req := &Request{
		Message: msg,
		Chat:    kit.ChatTarget{ChatID: msg.ChatID},
		FromID:  msg.FromID,
		Command: name,
		Args:    tokenize(rest),
		ArgText: rest,
		ReqID:   rid,
		IsOwner: m.isOwner(msg.FromID),
		Adapter: m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", name),
		),
	}

	if cmd == nil {
		m.inline(ctx, req, m.fallback.Unknown)
		return
	}
	if cmd.Access == AccessOwnerOnly && !req.IsOwner {
		m.inline(ctx, req, m.fallback.Forbidden)
		return
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = m.opts.DefaultTimeout
	}
	final := Chain(cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log, slowRequest),
		MWErrorReply(m.fallback.Error),
		MWTimeout(timeout),
	)
	if !m.tryEnqueue(func() { _ = final(ctx, req) }) {
		req.Logger.Warn("command rejected (queue full)")
		m.inline(ctx, req, m.fallback.Busy)
	}
}

func (m *Router) inline(ctx context.Context, req *Request, h HandlerFunc) {
	if h == nil {
		return
	}
	if err := MWPanicRecover(m.log)(h)(ctx, req); err != nil {
		req.Logger.Debug("fallback reply failed", logx.Err(err))
	}
}
