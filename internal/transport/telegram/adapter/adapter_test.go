package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"birthdaybot/internal/notifier"
	kit "birthdaybot/internal/transport"
	logx "birthdaybot/pkg/logx"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	const fixed = 5 * time.Second
	tests := []struct {
		name   string
		err    error
		kind   notifier.Kind
		reason string
		delay  time.Duration
	}{
		{"flood value", tele.FloodError{RetryAfter: 3}, notifier.KindRetry, "rate_limited", 3 * time.Second},
		{"flood pointer", &tele.FloodError{RetryAfter: 2}, notifier.KindRetry, "rate_limited", 2 * time.Second},
		{"blocked", tele.ErrBlockedByUser, notifier.KindPermanent, "recipient_gone", 0},
		{"chat not found", tele.ErrChatNotFound, notifier.KindPermanent, "recipient_gone", 0},
		{"server text", fmt.Errorf("telegram: Internal Server Error (500)"), notifier.KindRetry, "server_error", fixed},
		{"forbidden text", fmt.Errorf("telegram: Forbidden: user is deactivated (403)"), notifier.KindPermanent, "recipient_gone", 0},
		{"bad gateway", tele.NewError(502, "Bad Gateway"), notifier.KindRetry, "server_error", fixed},
		{"429 without retry_after", tele.NewError(429, "Too Many Requests"), notifier.KindRetry, "rate_limited", fixed},
		{"socket", fmt.Errorf("telebot: %w", &net.OpError{Op: "dial", Err: errors.New("refused")}), notifier.KindRetry, "network_error", fixed},
		{"deadline", context.DeadlineExceeded, notifier.KindRetry, "network_error", fixed},
		{"bad request", tele.NewError(400, "Bad Request: message is too long"), notifier.KindPermanent, "unclassified", 0},
		{"other", errors.New("boom"), notifier.KindPermanent, "unclassified", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := notifier.Classify(mapError(tt.err), fixed)
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.reason, out.Reason)
			assert.Equal(t, tt.delay, out.Delay)
		})
	}

	assert.NoError(t, mapError(nil))
}

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"short"}, splitTelegramText("short", 10, ""))

	lines := strings.Repeat("abcdefghi\n", 5)
	chunks := splitTelegramText(lines, 25, "")
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 25)
		assert.False(t, strings.HasSuffix(c, "\n"))
	}
	assert.Equal(t, strings.TrimRight(lines, "\n"), strings.Join(chunks, "\n"))

	// Runes, not bytes, are counted.
	cyr := strings.Repeat("я", 30)
	chunks = splitTelegramText(cyr, 10, "")
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("я", 10), chunks[0])

	html := "aaaaaaaa<b>bold</b>"
	chunks = splitTelegramText(html, 10, tele.ModeHTML)
	assert.Equal(t, "aaaaaaaa", chunks[0])
	assert.Equal(t, html, strings.Join(chunks, ""))
}

func TestMenuPayload(t *testing.T) {
	t.Parallel()

	p := menuPayload([]kit.BotCommand{
		{Command: "add", Description: "Add a birthday"},
		{Command: ""},
		{Command: "list"},
		{Command: "long", Description: strings.Repeat("ж", 300)},
	})
	require.Len(t, p.Commands, 3)
	assert.Equal(t, "list", p.Commands[1].Description)
	assert.Len(t, []rune(p.Commands[2].Description), maxMenuDescription)
}

func TestUpdateMenuCommands_SkipsUnchanged(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/bottok/setMyCommands", r.URL.Path)
		var body setMyCommands
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if len(body.Commands) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"empty"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer srv.Close()

	a := &Adapter{cfg: Config{Token: "tok", APIURL: srv.URL}, log: logx.Nop(), http: srv.Client()}
	cmds := []kit.BotCommand{{Command: "start", Description: "Start"}}

	require.NoError(t, a.UpdateMenuCommands(context.Background(), cmds))
	require.NoError(t, a.UpdateMenuCommands(context.Background(), cmds))
	assert.Equal(t, int32(1), calls.Load())

	err := a.UpdateMenuCommands(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
	assert.Equal(t, int32(2), calls.Load())
}

func TestDeliverDropsWhenFull(t *testing.T) {
	t.Parallel()

	a := &Adapter{log: logx.Nop()}
	var nilOut chan<- kit.Message
	a.out.Store(nilOut)
	a.deliver(kit.Message{Text: "ignored"})

	out := make(chan kit.Message, 1)
	a.out.Store((chan<- kit.Message)(out))
	a.deliver(kit.Message{Text: "one"})
	a.deliver(kit.Message{Text: "two"})
	assert.Equal(t, "one", (<-out).Text)
	assert.Equal(t, uint64(1), a.droppedUpdates.Load())
}

func TestSendPlainBoundedByRequestTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"bot"}}`))
			return
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":42}}}`))
	}))
	defer srv.Close()
	defer close(release)

	a, err := New(Config{
		Token:          "tok",
		APIURL:         srv.URL,
		PollTimeout:    50 * time.Millisecond,
		RequestTimeout: 50 * time.Millisecond,
	}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, clientTimeout(a.cfg))

	start := time.Now()
	err = a.SendPlain(context.Background(), 42, "hi")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	out := notifier.Classify(err, time.Second)
	assert.Equal(t, notifier.KindRetry, out.Kind)
	assert.Equal(t, "network_error", out.Reason)
}
