package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"birthdaybot/internal/domain"
	"birthdaybot/internal/notifier"
)

type fakeSource struct {
	mu     sync.Mutex
	errs   []error
	events []domain.Event
	calls  []domain.Window
}

func (f *fakeSource) ListByWindow(_ context.Context, w domain.Window) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, w)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return append([]domain.Event(nil), f.events...), nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
	errs  []error
	calls int
}

func (f *fakeUsers) GetUser(_ context.Context, id uuid.UUID) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return domain.User{}, err
	}
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	records map[domain.CompletionKey]domain.CompletionRecord
	addErr  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[domain.CompletionKey]domain.CompletionRecord{}}
}

func (f *fakeLedger) GetCompletion(_ context.Context, key domain.CompletionKey) (domain.CompletionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[key]
	if !ok {
		return domain.CompletionRecord{}, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeLedger) AddCompletion(_ context.Context, rec domain.CompletionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	if _, ok := f.records[rec.Key()]; ok {
		return domain.ErrAlreadyRecorded
	}
	f.records[rec.Key()] = rec
	return nil
}

func (f *fakeLedger) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	results []notifier.Result
	err     error
}

func (f *fakeSender) Send(_ context.Context, chatID int64, text string) (notifier.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return notifier.Result{Attempts: 1}, f.err
	}
	res := notifier.Result{Delivered: true, Attempts: 1}
	if len(f.results) > 0 {
		res = f.results[0]
		f.results = f.results[1:]
	}
	if res.Delivered {
		f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	}
	return res, nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type plainRenderer struct{}

func (plainRenderer) Reminder(locale string, cls domain.Classification, label string) string {
	return locale + "|" + string(cls) + "|" + label
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

// syncBuffer collects JSON log lines written from any goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if l == "" {
			continue
		}
		m := map[string]any{}
		if json.Unmarshal([]byte(l), &m) == nil {
			out = append(out, m)
		}
	}
	return out
}
