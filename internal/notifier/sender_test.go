package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "birthdaybot/pkg/logx"
)

type scriptedTransport struct {
	mu    sync.Mutex
	errs  []error
	calls int
	texts []string
}

func (t *scriptedTransport) SendPlain(_ context.Context, _ int64, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.texts = append(t.texts, text)
	if len(t.errs) == 0 {
		return nil
	}
	err := t.errs[0]
	t.errs = t.errs[1:]
	return err
}

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestSender(tr Transport, rec *recordedSleeps) *Sender {
	return New(tr, Config{RetryDelay: 5 * time.Second}, logx.Nop(), WithSleep(rec.sleep))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	fixed := 5 * time.Second

	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, Success()},
		{"rate limited", RateLimited(3*time.Second, base), RetryIn(3*time.Second, "rate_limited")},
		{"rate limited without delay", RateLimited(0, base), RetryIn(fixed, "rate_limited")},
		{"network", Network(base), RetryIn(fixed, "network_error")},
		{"server", Server(base), RetryIn(fixed, "server_error")},
		{"deadline", context.DeadlineExceeded, RetryIn(fixed, "network_error")},
		{"gone", RecipientGone(base), Permanent("recipient_gone")},
		{"unknown", base, Permanent("unclassified")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err, fixed))
		})
	}
}

func TestSenderHonoursRateLimitDelay(t *testing.T) {
	t.Parallel()

	tr := &scriptedTransport{errs: []error{RateLimited(3*time.Second, errors.New("429"))}}
	rec := &recordedSleeps{}
	s := newTestSender(tr, rec)

	res, err := s.Send(context.Background(), 42, "hi")
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []time.Duration{3 * time.Second}, rec.delays)
	assert.Equal(t, 2, tr.calls)
}

func TestSenderRateLimitRealWait(t *testing.T) {
	t.Parallel()

	tr := &scriptedTransport{errs: []error{RateLimited(150*time.Millisecond, nil)}}
	s := New(tr, Config{}, logx.Nop())

	start := time.Now()
	res, err := s.Send(context.Background(), 1, "hi")
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.GreaterOrEqual(t, res.Elapsed, 150*time.Millisecond)
	assert.Equal(t, 2, tr.calls)
}

func TestSenderRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	tr := &scriptedTransport{errs: []error{
		Network(errors.New("reset")),
		Server(errors.New("502")),
		Network(errors.New("reset")),
	}}
	rec := &recordedSleeps{}
	s := newTestSender(tr, rec)

	res, err := s.Send(context.Background(), 7, "hi")
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, rec.delays)
}

func TestSenderAbortsOnPermanentFailure(t *testing.T) {
	t.Parallel()

	for name, e := range map[string]error{
		"recipient_gone": RecipientGone(errors.New("blocked")),
		"unclassified":   errors.New("bad request"),
	} {
		t.Run(name, func(t *testing.T) {
			tr := &scriptedTransport{errs: []error{e}}
			rec := &recordedSleeps{}
			s := newTestSender(tr, rec)

			res, err := s.Send(context.Background(), 7, "hi")
			require.NoError(t, err)
			assert.False(t, res.Delivered)
			assert.True(t, res.Aborted())
			assert.Equal(t, name, res.Reason)
			assert.Equal(t, 1, res.Attempts)
			assert.Empty(t, rec.delays)
		})
	}
}

func TestSenderStopsOnCancel(t *testing.T) {
	t.Parallel()

	tr := &scriptedTransport{errs: []error{Network(errors.New("down"))}}
	ctx, cancel := context.WithCancel(context.Background())
	s := New(tr, Config{RetryDelay: time.Hour}, logx.Nop(), WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return Sleep(ctx, d)
	}))

	res, err := s.Send(ctx, 7, "hi")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Delivered)
	assert.Equal(t, 1, res.Attempts)
}

func TestSleepZero(t *testing.T) {
	t.Parallel()

	require.NoError(t, Sleep(context.Background(), 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Minute), context.Canceled)
}
