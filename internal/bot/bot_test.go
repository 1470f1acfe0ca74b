package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birthdaybot/internal/domain"
	"birthdaybot/internal/i18n"
	"birthdaybot/internal/storage"
	kit "birthdaybot/internal/transport"
	"birthdaybot/internal/transport/telegram/router"
	logx "birthdaybot/pkg/logx"
)

type chatLog struct {
	mu   sync.Mutex
	sent []string
}

func (c *chatLog) Start(context.Context, chan<- kit.Message) error { return nil }
func (c *chatLog) Stop(context.Context) error                      { return nil }

func (c *chatLog) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (c *chatLog) SendPlain(ctx context.Context, chatID int64, text string) error {
	_, err := c.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, nil)
	return err
}

func (c *chatLog) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}

type harness struct {
	t     *testing.T
	bot   *Bot
	store *storage.Memory
	chat  *chatLog
	cmds  map[string]router.Command
}

// 10 March 2024, 12:00 UTC.
var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat, err := i18n.Load("en", []string{"en", "ru"})
	require.NoError(t, err)
	st := storage.NewMemory()
	b := New(st, cat, time.UTC, logx.Nop(), WithClock(func() time.Time { return testNow }))

	cmds := map[string]router.Command{}
	for _, c := range b.Commands() {
		cmds[c.Name] = c
	}
	return &harness{t: t, bot: b, store: st, chat: &chatLog{}, cmds: cmds}
}

// send runs a command line as chat 100 and returns the reply.
func (h *harness) send(line string, lang string) string {
	h.t.Helper()
	return h.sendAs(100, false, line, lang)
}

func (h *harness) sendAs(chatID int64, owner bool, line string, lang string) string {
	h.t.Helper()
	name, rest, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	cmd, ok := h.cmds[name]
	require.True(h.t, ok, name)
	req := &router.Request{
		Message: kit.Message{ChatID: chatID, FromID: chatID, FirstName: "Kim", LanguageCode: lang, Text: line},
		Chat:    kit.ChatTarget{ChatID: chatID},
		FromID:  chatID,
		Command: name,
		Args:    strings.Fields(rest),
		ArgText: strings.TrimSpace(rest),
		IsOwner: owner,
		Adapter: h.chat,
		Logger:  logx.Nop(),
	}
	require.NoError(h.t, cmd.Handle(context.Background(), req))
	return h.chat.last()
}

func TestStartRegistersWithClientLanguage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	reply := h.send("/start", "ru-RU")
	assert.True(t, strings.HasPrefix(reply, "Привет, Kim!"), reply)

	u, err := h.store.GetUserByChatID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, "ru", u.Locale)
	assert.Equal(t, testNow, u.CreatedAt)

	// A second /start keeps the account.
	h.send("/start", "en")
	again, err := h.store.GetUserByChatID(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
}

func TestCommandsRequireRegistration(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	assert.Equal(t, "Please send /start first.", h.send("/list", "en"))
	assert.Equal(t, "Please send /start first.", h.send("/add 01.02 Ann", "en-US"))
}

func TestAddListDelete(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.send("/start", "en")

	assert.Equal(t, "Saved. I will remind you about Ann Lee on 05.11 and one day before.", h.send("/add 5.11 Ann Lee", ""))
	h.send("/add 10/03 Bob", "")
	h.send("/add 29.02 Leap", "")
	assert.Equal(t, "You already have this reminder.", h.send("/add 05.11 ann lee", ""))

	list := h.send("/list", "")
	assert.Equal(t, strings.Join([]string{
		"Your reminders:",
		"1. 10.03 Bob, today! 🎉",
		"2. 05.11 Ann Lee, in 240 d.",
		"3. 29.02 Leap, in 356 d.",
	}, "\n"), list)

	assert.Equal(t, "Reminder for Ann Lee deleted.", h.send("/delete 2", ""))
	assert.Equal(t, "There is no reminder number 5. See /list", h.send("/delete 5", ""))
	assert.Equal(t, "Usage: /delete <n>, where n is the number shown by /list", h.send("/delete x", ""))

	list = h.send("/list", "")
	assert.NotContains(t, list, "Ann Lee")
	assert.Contains(t, list, "2. 29.02 Leap")
}

func TestAddRejectsBadInput(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.send("/start", "en")

	assert.Equal(t, "Usage: /add <dd.mm> <name>, for example /add 29.02 Ann", h.send("/add", ""))
	assert.Equal(t, "Usage: /add <dd.mm> <name>, for example /add 29.02 Ann", h.send("/add 01.02", ""))
	assert.Equal(t, "31.04 is not a valid date. Use dd.mm, for example 05.11", h.send("/add 31.04 Ann", ""))
	assert.Equal(t, "You have no reminders yet. Add one with /add <dd.mm> <name>", h.send("/list", ""))
}

func TestLanguageSwitch(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.send("/start", "en")

	assert.Equal(t, "Current language: en. Available: en, ru. Use /language <code> to switch.", h.send("/language", ""))
	assert.Equal(t, "Unknown language de. Available: en, ru.", h.send("/language de", ""))
	assert.Equal(t, "Язык переключён на русский.", h.send("/language RU", ""))

	assert.Equal(t, "Напоминаний пока нет. Добавьте: /add <дд.мм> <имя>", h.send("/list", "en"))
}

func TestHelpShowsStatsToOwners(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	assert.NotContains(t, h.sendAs(1, false, "/help", "en"), "/stats")
	assert.Contains(t, h.sendAs(1, true, "/help", "en"), "/stats - Bot usage statistics")
}

func TestStats(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.sendAs(1, false, "/start", "en")
	h.sendAs(2, false, "/start", "en")
	h.sendAs(1, false, "/add 01.01 A", "")
	h.sendAs(1, false, "/add 02.01 B", "")
	h.sendAs(2, false, "/add 03.01 C", "")

	reply := h.sendAs(1, true, "/stats", "")
	assert.Contains(t, reply, "Total users: 2")
	assert.Contains(t, reply, "New users today: 2")
	assert.Contains(t, reply, "Total birthday reminders: 3")
	assert.Contains(t, reply, "Average birthday reminders per user: 1.50")

	var stats router.Command
	for _, c := range h.bot.Commands() {
		if c.Name == "stats" {
			stats = c
		}
	}
	assert.Equal(t, router.AccessOwnerOnly, stats.Access)
}

func TestFallbacksUseClientLanguage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	fb := h.bot.Fallbacks()
	req := &router.Request{
		Message: kit.Message{ChatID: 5, LanguageCode: "ru"},
		Chat:    kit.ChatTarget{ChatID: 5},
		Adapter: h.chat,
	}

	require.NoError(t, fb.Unknown(context.Background(), req))
	assert.Equal(t, "Неизвестная команда. Попробуйте /help", h.chat.last())

	fb.Error(context.Background(), req, errors.New("db down"))
	assert.Equal(t, "Что-то пошло не так. Попробуйте позже.", h.chat.last())

	req.Message.LanguageCode = "en"
	fb.Error(context.Background(), req, context.Canceled)
	assert.Equal(t, "Что-то пошло не так. Попробуйте позже.", h.chat.last())
}

type failingStore struct {
	*storage.Memory
}

func (failingStore) ListEventsByOwner(context.Context, uuid.UUID, domain.DayMonth) ([]domain.Event, error) {
	return nil, domain.ErrRepository
}

func TestStorageErrorsPropagate(t *testing.T) {
	t.Parallel()
	cat, err := i18n.Load("en", nil)
	require.NoError(t, err)
	st := failingStore{storage.NewMemory()}
	b := New(st, cat, nil, logx.Nop())
	require.NoError(t, st.CreateUser(context.Background(), domain.User{ID: domain.NewID(), ChatID: 7, Locale: "en"}))

	req := &router.Request{Chat: kit.ChatTarget{ChatID: 7}, Adapter: &chatLog{}, Logger: logx.Nop()}
	assert.ErrorIs(t, b.handleList(context.Background(), req), domain.ErrRepository)
}

func TestParseDayMonth(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]domain.DayMonth{
		"05.11": {Day: 5, Month: 11},
		"5.11":  {Day: 5, Month: 11},
		"29/02": {Day: 29, Month: 2},
		"31-12": {Day: 31, Month: 12},
	} {
		got, err := ParseDayMonth(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "5", "5.", ".5", "30.02", "1.13", "a.b", "1.2.3"} {
		_, err := ParseDayMonth(in)
		assert.ErrorIs(t, err, domain.ErrInvalidDate, in)
	}
}

func TestCleanLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Ann Lee", cleanLabel(`  "Ann   Lee" `))
	assert.Equal(t, "", cleanLabel(`""`))
	assert.Equal(t, maxLabelRunes, len([]rune(cleanLabel(strings.Repeat("ж", 150)))))
}
