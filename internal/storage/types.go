package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"birthdaybot/internal/domain"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config configures storage.
type Config struct {
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the Postgres connection string.
	DSN string
	// BusyTimeout applies to SQLite only; 0 means 5s.
	BusyTimeout time.Duration
	// MaxConns caps the Postgres pool; 0 means 4.
	MaxConns int32
	// ConnectAttempts and ConnectInterval drive the Postgres startup retry.
	ConnectAttempts int
	ConnectInterval time.Duration
}

// Store is the persistence API used by the reminder engine and the bot.
type Store interface {
	domain.ReminderSource
	domain.UserResolver
	domain.IdempotencyLedger

	CreateUser(ctx context.Context, u domain.User) error
	GetUserByChatID(ctx context.Context, chatID int64) (domain.User, error)
	SetUserLocale(ctx context.Context, id uuid.UUID, locale string) error
	UserStats(ctx context.Context, now time.Time) (domain.Stats, error)

	CreateEvent(ctx context.Context, e domain.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error)
	// ListEventsByOwner returns the owner's events, nearest upcoming first.
	ListEventsByOwner(ctx context.Context, owner uuid.UUID, today domain.DayMonth) ([]domain.Event, error)
	// DeleteEvent removes an event only if owner owns it.
	DeleteEvent(ctx context.Context, owner, id uuid.UUID) error
	EventStats(ctx context.Context, now time.Time) (domain.Stats, error)

	Close() error
}

func repoErr(op string, err error) error {
	return fmt.Errorf("storage: %s: %w: %w", op, domain.ErrRepository, err)
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
}

// statsCutoffs returns the lower bounds for the day, week and month counters.
func statsCutoffs(now time.Time) (day, week, month time.Time) {
	return now.Add(-24 * time.Hour), now.AddDate(0, 0, -7), now.AddDate(0, 0, -30)
}

func sortByNearest(events []domain.Event, today domain.DayMonth) {
	sort.SliceStable(events, func(i, j int) bool {
		di := events[i].DayMonth().DaysUntil(today)
		dj := events[j].DayMonth().DaysUntil(today)
		if di != dj {
			return di < dj
		}
		return events[i].Label < events[j].Label
	})
}

func checkEvent(e domain.Event) error {
	if !e.DayMonth().Valid() {
		return fmt.Errorf("storage: event %s: %w", e.ID, domain.ErrInvalidDate)
	}
	if e.ID == uuid.Nil || e.OwnerID == uuid.Nil {
		return errors.New("storage: event id and owner are required")
	}
	return nil
}
