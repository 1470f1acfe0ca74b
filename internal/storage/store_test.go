package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birthdaybot/internal/domain"
	logx "birthdaybot/pkg/logx"
)

func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	out := map[string]Store{DriverMemory: NewMemory()}

	sq, err := Open(ctx, Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	require.NoError(t, err)
	out[DriverSQLite] = sq

	if dsn := os.Getenv("BIRTHDAYBOT_TEST_DATABASE_URL"); dsn != "" {
		pg, err := Open(ctx, Config{Driver: DriverPostgres, DSN: dsn, ConnectAttempts: 1}, logx.Nop())
		require.NoError(t, err)
		_, err = pg.(*postgresStore).pool.Exec(ctx, `TRUNCATE users CASCADE`)
		require.NoError(t, err)
		out[DriverPostgres] = pg
	}
	for _, s := range out {
		t.Cleanup(func() { _ = s.Close() })
	}
	return out
}

var epoch = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func mkUser(t *testing.T, s Store, chatID int64, created time.Time) domain.User {
	t.Helper()
	u := domain.User{ID: domain.NewID(), ChatID: chatID, Locale: "en", CreatedAt: created}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func mkEvent(t *testing.T, s Store, owner domain.User, label string, day, month int, created time.Time) domain.Event {
	t.Helper()
	e, err := domain.NewEvent(owner.ID, label, domain.DayMonth{Day: day, Month: month}, created)
	require.NoError(t, err)
	require.NoError(t, s.CreateEvent(context.Background(), e))
	return e
}

func labels(events []domain.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Label)
	}
	return out
}

func TestStoreUsers(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u := mkUser(t, s, 100, epoch)

			got, err := s.GetUser(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, u.ChatID, got.ChatID)
			assert.True(t, u.CreatedAt.Equal(got.CreatedAt))

			byChat, err := s.GetUserByChatID(ctx, 100)
			require.NoError(t, err)
			assert.Equal(t, u.ID, byChat.ID)

			dup := domain.User{ID: domain.NewID(), ChatID: 100, CreatedAt: epoch}
			assert.ErrorIs(t, s.CreateUser(ctx, dup), domain.ErrAlreadyExists)

			require.NoError(t, s.SetUserLocale(ctx, u.ID, "ru"))
			got, err = s.GetUser(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, "ru", got.Locale)

			_, err = s.GetUser(ctx, domain.NewID())
			assert.ErrorIs(t, err, domain.ErrNotFound)
			_, err = s.GetUserByChatID(ctx, 999)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			assert.ErrorIs(t, s.SetUserLocale(ctx, domain.NewID(), "en"), domain.ErrNotFound)
		})
	}
}

func TestStoreListByWindow(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u := mkUser(t, s, 1, epoch)
			mkEvent(t, s, u, "leap", 29, 2, epoch)
			mkEvent(t, s, u, "march", 1, 3, epoch.Add(time.Second))
			mkEvent(t, s, u, "feb28", 28, 2, epoch.Add(2*time.Second))
			mkEvent(t, s, u, "nye", 31, 12, epoch.Add(3*time.Second))
			mkEvent(t, s, u, "newyear", 1, 1, epoch.Add(4*time.Second))
			mkEvent(t, s, u, "jan2", 2, 1, epoch.Add(5*time.Second))

			got, err := s.ListByWindow(ctx, domain.Window{Start: domain.DayMonth{Day: 28, Month: 2}, End: domain.DayMonth{Day: 1, Month: 3}})
			require.NoError(t, err)
			assert.Equal(t, []string{"leap", "march", "feb28"}, labels(got))

			got, err = s.ListByWindow(ctx, domain.Window{Start: domain.DayMonth{Day: 31, Month: 12}, End: domain.DayMonth{Day: 1, Month: 1}})
			require.NoError(t, err)
			assert.Equal(t, []string{"nye", "newyear"}, labels(got))

			got, err = s.ListByWindow(ctx, domain.Window{Start: domain.DayMonth{Day: 5, Month: 5}, End: domain.DayMonth{Day: 6, Month: 5}})
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStoreEventsByOwner(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := mkUser(t, s, 1, epoch)
			b := mkUser(t, s, 2, epoch)
			mkEvent(t, s, a, "spring", 1, 4, epoch)
			winter := mkEvent(t, s, a, "winter", 1, 1, epoch)
			mkEvent(t, s, a, "today", 10, 3, epoch)
			mkEvent(t, s, b, "other", 11, 3, epoch)

			got, err := s.ListEventsByOwner(ctx, a.ID, domain.DayMonth{Day: 10, Month: 3})
			require.NoError(t, err)
			assert.Equal(t, []string{"today", "spring", "winter"}, labels(got))

			dup, err := domain.NewEvent(a.ID, "WINTER", domain.DayMonth{Day: 1, Month: 1}, epoch)
			require.NoError(t, err)
			assert.ErrorIs(t, s.CreateEvent(ctx, dup), domain.ErrAlreadyExists)

			orphan, err := domain.NewEvent(domain.NewID(), "x", domain.DayMonth{Day: 1, Month: 1}, epoch)
			require.NoError(t, err)
			assert.ErrorIs(t, s.CreateEvent(ctx, orphan), domain.ErrNotFound)

			assert.ErrorIs(t, s.DeleteEvent(ctx, b.ID, winter.ID), domain.ErrNotFound)
			require.NoError(t, s.DeleteEvent(ctx, a.ID, winter.ID))
			_, err = s.GetEvent(ctx, winter.ID)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestStoreLedger(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u := mkUser(t, s, 1, epoch)
			e := mkEvent(t, s, u, "Ann", 5, 5, epoch)
			key := domain.CompletionKey{EventID: e.ID, Year: 2024, Classification: domain.OnTheDay}

			_, err := s.GetCompletion(ctx, key)
			assert.ErrorIs(t, err, domain.ErrNotFound)

			rec := domain.CompletionRecord{ID: domain.NewID(), EventID: e.ID, Year: 2024, Classification: domain.OnTheDay, CreatedAt: epoch}
			require.NoError(t, s.AddCompletion(ctx, rec))

			got, err := s.GetCompletion(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, rec.ID, got.ID)
			assert.Equal(t, domain.OnTheDay, got.Classification)

			again := rec
			again.ID = domain.NewID()
			assert.ErrorIs(t, s.AddCompletion(ctx, again), domain.ErrAlreadyRecorded)

			other := rec
			other.ID = domain.NewID()
			other.Classification = domain.OneDayAhead
			require.NoError(t, s.AddCompletion(ctx, other))

			// Deleting the event drops its completions.
			require.NoError(t, s.DeleteEvent(ctx, u.ID, e.ID))
			_, err = s.GetCompletion(ctx, key)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestStoreStats(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			mkUser(t, s, 1, epoch.Add(-time.Hour))
			mkUser(t, s, 2, epoch.AddDate(0, 0, -3))
			old := mkUser(t, s, 3, epoch.AddDate(0, 0, -20))
			mkUser(t, s, 4, epoch.AddDate(0, -3, 0))
			mkEvent(t, s, old, "x", 1, 1, epoch)

			st, err := s.UserStats(ctx, epoch)
			require.NoError(t, err)
			assert.Equal(t, domain.Stats{Total: 4, LastDay: 1, LastWeek: 2, LastMonth: 3}, st)

			es, err := s.EventStats(ctx, epoch)
			require.NoError(t, err)
			assert.Equal(t, domain.Stats{Total: 1, LastDay: 1, LastWeek: 1, LastMonth: 1}, es)
		})
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Driver: "mongo"}, logx.Nop())
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{Driver: DriverSQLite}, logx.Nop())
	assert.Error(t, err)
}
