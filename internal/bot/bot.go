// Package bot implements the chat commands users and owners send to the bot.
package bot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"birthdaybot/internal/domain"
	"birthdaybot/internal/i18n"
	"birthdaybot/internal/transport/telegram/router"
	logx "birthdaybot/pkg/logx"
)

// Store is the part of storage the command handlers use.
type Store interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUserByChatID(ctx context.Context, chatID int64) (domain.User, error)
	SetUserLocale(ctx context.Context, id uuid.UUID, locale string) error
	UserStats(ctx context.Context, now time.Time) (domain.Stats, error)

	CreateEvent(ctx context.Context, e domain.Event) error
	ListEventsByOwner(ctx context.Context, owner uuid.UUID, today domain.DayMonth) ([]domain.Event, error)
	DeleteEvent(ctx context.Context, owner, id uuid.UUID) error
	EventStats(ctx context.Context, now time.Time) (domain.Stats, error)
}

const maxLabelRunes = 100

type Bot struct {
	store Store
	cat   *i18n.Catalog
	loc   *time.Location
	now   func() time.Time
	log   logx.Logger
}

type Option func(*Bot)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(b *Bot) { b.now = now } }

// New builds the handlers. loc decides what "today" means for /list.
func New(store Store, cat *i18n.Catalog, loc *time.Location, log logx.Logger, opts ...Option) *Bot {
	if loc == nil {
		loc = time.UTC
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b := &Bot{store: store, cat: cat, loc: loc, now: time.Now, log: log.With(logx.String("comp", "bot"))}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Commands lists the chat commands with localized menu descriptions.
func (b *Bot) Commands() []router.Command {
	menu := func(name string) string { return b.cat.T(b.cat.Default(), i18n.MenuPrefix+name) }
	return []router.Command{
		{Name: "start", Description: menu("start"), Handle: b.handleStart},
		{Name: "help", Aliases: []string{"h"}, Description: menu("help"), Handle: b.handleHelp},
		{Name: "add", Description: menu("add"), Handle: b.handleAdd},
		{Name: "list", Aliases: []string{"ls"}, Description: menu("list"), Handle: b.handleList},
		{Name: "delete", Aliases: []string{"del", "rm"}, Description: menu("delete"), Handle: b.handleDelete},
		{Name: "language", Aliases: []string{"lang"}, Description: menu("language"), Handle: b.handleLanguage},
		{Name: "stats", Description: menu("stats"), Access: router.AccessOwnerOnly, Handle: b.handleStats},
	}
}

// Fallbacks answers requests the commands do not handle, in the sender's
// client language.
func (b *Bot) Fallbacks() router.Fallbacks {
	say := func(key string) router.HandlerFunc {
		return func(ctx context.Context, req *router.Request) error {
			return req.Reply(ctx, b.cat.T(req.Message.LanguageCode, key))
		}
	}
	return router.Fallbacks{
		Unknown:   say(i18n.KeyErrUnknownCmd),
		Forbidden: say(i18n.KeyErrForbidden),
		Busy:      say(i18n.KeyErrBusy),
		Error: func(ctx context.Context, req *router.Request, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			_ = req.Reply(ctx, b.cat.T(req.Message.LanguageCode, i18n.KeyErrGeneric))
		},
	}
}

// user loads the sender's account. ok is false when the sender has not
// registered yet; the handler has then already replied.
func (b *Bot) user(ctx context.Context, req *router.Request) (domain.User, bool, error) {
	u, err := b.store.GetUserByChatID(ctx, req.Chat.ChatID)
	switch {
	case err == nil:
		return u, true, nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.User{}, false, req.Reply(ctx, b.cat.T(req.Message.LanguageCode, i18n.KeyErrNoUser))
	default:
		return domain.User{}, false, err
	}
}

func (b *Bot) today() domain.DayMonth {
	return domain.DayMonthOf(b.now().In(b.loc))
}
