package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"birthdaybot/internal/domain"
	"birthdaybot/internal/i18n"
	"birthdaybot/internal/transport/telegram/router"
	logx "birthdaybot/pkg/logx"
)

func (b *Bot) handleStart(ctx context.Context, req *router.Request) error {
	u, err := b.store.GetUserByChatID(ctx, req.Chat.ChatID)
	if errors.Is(err, domain.ErrNotFound) {
		u = domain.User{
			ID:        domain.NewID(),
			ChatID:    req.Chat.ChatID,
			Locale:    b.cat.Match(req.Message.LanguageCode),
			CreatedAt: b.now().UTC(),
		}
		err = b.store.CreateUser(ctx, u)
		switch {
		case err == nil:
			req.Logger.Info("user registered", logx.String("user_id", u.ID.String()), logx.String("locale", u.Locale))
		case errors.Is(err, domain.ErrAlreadyExists):
			// A concurrent /start won.
			u, err = b.store.GetUserByChatID(ctx, req.Chat.ChatID)
		}
	}
	if err != nil {
		return err
	}

	name := req.Message.FirstName
	if name == "" {
		name = req.Message.Username
	}
	return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyStart, "first_name", name))
}

func (b *Bot) handleHelp(ctx context.Context, req *router.Request) error {
	locale := b.cat.Match(req.Message.LanguageCode)
	if u, err := b.store.GetUserByChatID(ctx, req.Chat.ChatID); err == nil {
		locale = u.Locale
	}
	text := b.cat.T(locale, i18n.KeyHelp)
	if req.IsOwner {
		text += "\n/stats - " + b.cat.T(locale, i18n.MenuPrefix+"stats")
	}
	return req.Reply(ctx, text)
}

func (b *Bot) handleLanguage(ctx context.Context, req *router.Request) error {
	u, ok, err := b.user(ctx, req)
	if !ok {
		return err
	}
	available := strings.Join(b.cat.Supported(), ", ")
	if len(req.Args) == 0 {
		return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyLangCurrent, "locale", u.Locale, "available", available))
	}

	code := strings.ToLower(strings.TrimSpace(req.Args[0]))
	if !b.cat.IsSupported(code) {
		return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyLangUnknown, "locale", req.Args[0], "available", available))
	}
	if err := b.store.SetUserLocale(ctx, u.ID, code); err != nil {
		return err
	}
	return req.Reply(ctx, b.cat.T(code, i18n.KeyLangSet))
}

func (b *Bot) handleAdd(ctx context.Context, req *router.Request) error {
	u, ok, err := b.user(ctx, req)
	if !ok {
		return err
	}
	rawDate, label, _ := strings.Cut(strings.TrimSpace(req.ArgText), " ")
	label = cleanLabel(label)
	if rawDate == "" || label == "" {
		return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyAddUsage))
	}
	date, err := ParseDayMonth(rawDate)
	if err != nil {
		return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyAddBadDate, "date", rawDate))
	}

	ev, err := domain.NewEvent(u.ID, label, date, b.now())
	if err != nil {
		return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyAddUsage))
	}
	switch err := b.store.CreateEvent(ctx, ev); {
	case errors.Is(err, domain.ErrAlreadyExists):
		return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyAddDuplicate))
	case err != nil:
		return err
	}
	req.Logger.Debug("event added", logx.String("event_id", ev.ID.String()), logx.String("date", date.String()))
	return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyAddDone, "name", label, "date", date.String()))
}

func (b *Bot) handleList(ctx context.Context, req *router.Request) error {
	u, ok, err := b.user(ctx, req)
	if !ok {
		return err
	}
	today := b.today()
	events, err := b.store.ListEventsByOwner(ctx, u.ID, today)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyListEmpty))
	}

	lines := make([]string, 0, len(events)+1)
	lines = append(lines, b.cat.T(u.Locale, i18n.KeyListHeader))
	for i, ev := range events {
		days := ev.DayMonth().DaysUntil(today)
		key := i18n.KeyListItem
		if days == 0 {
			key = i18n.KeyListItemToday
		}
		lines = append(lines, b.cat.T(u.Locale, key,
			"n", i+1, "date", ev.DayMonth().String(), "name", ev.Label, "days", days))
	}
	return req.Reply(ctx, strings.Join(lines, "\n"))
}

// handleDelete removes the n-th entry of the /list ordering.
func (b *Bot) handleDelete(ctx context.Context, req *router.Request) error {
	u, ok, err := b.user(ctx, req)
	if !ok {
		return err
	}
	if len(req.Args) != 1 {
		return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyDeleteUsage))
	}
	n, err := strconv.Atoi(strings.TrimPrefix(req.Args[0], "#"))
	if err != nil {
		return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyDeleteUsage))
	}

	events, err := b.store.ListEventsByOwner(ctx, u.ID, b.today())
	if err != nil {
		return err
	}
	if n < 1 || n > len(events) {
		return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyDeleteNotFound, "n", req.Args[0]))
	}
	ev := events[n-1]
	switch err := b.store.DeleteEvent(ctx, u.ID, ev.ID); {
	case errors.Is(err, domain.ErrNotFound):
		return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyDeleteNotFound, "n", req.Args[0]))
	case err != nil:
		return err
	}
	return req.Reply(ctx, b.cat.T(u.Locale, i18n.KeyDeleteDone, "name", ev.Label))
}

func (b *Bot) handleStats(ctx context.Context, req *router.Request) error {
	now := b.now()
	users, err := b.store.UserStats(ctx, now)
	if err != nil {
		return err
	}
	events, err := b.store.EventStats(ctx, now)
	if err != nil {
		return err
	}
	avg := 0.0
	if users.Total > 0 {
		avg = float64(events.Total) / float64(users.Total)
	}

	locale := b.cat.Match(req.Message.LanguageCode)
	if u, err := b.store.GetUserByChatID(ctx, req.Chat.ChatID); err == nil {
		locale = u.Locale
	}
	return req.Reply(ctx, b.cat.T(locale, i18n.KeyStats,
		"users_total", users.Total, "users_day", users.LastDay,
		"users_week", users.LastWeek, "users_month", users.LastMonth,
		"events_total", events.Total, "events_day", events.LastDay,
		"events_week", events.LastWeek, "events_month", events.LastMonth,
		"events_avg", fmt.Sprintf("%.2f", avg),
	))
}
