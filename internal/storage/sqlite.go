package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"birthdaybot/internal/domain"
	logx "birthdaybot/pkg/logx"
)

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (*sqliteStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	// Pragmas go into the DSN so every pooled connection gets them.
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, repoErr("open sqlite", err)
	}
	if err := migrate(ctx, db, goose.DialectSQLite3, "sqlite", log); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("sqlite storage ready", logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isSQLiteForeignKey(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func millis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

type rowScanner interface{ Scan(dest ...any) error }

func scanSQLiteUser(r rowScanner) (domain.User, error) {
	var (
		u       domain.User
		id      string
		created int64
	)
	if err := r.Scan(&id, &u.ChatID, &u.Locale, &created); err != nil {
		return domain.User{}, err
	}
	var err error
	if u.ID, err = uuid.Parse(id); err != nil {
		return domain.User{}, err
	}
	u.CreatedAt = fromMillis(created)
	return u, nil
}

func scanSQLiteEvent(r rowScanner) (domain.Event, error) {
	var (
		e         domain.Event
		id, owner string
		created   int64
	)
	if err := r.Scan(&id, &owner, &e.Label, &e.Day, &e.Month, &created); err != nil {
		return domain.Event{}, err
	}
	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return domain.Event{}, err
	}
	if e.OwnerID, err = uuid.Parse(owner); err != nil {
		return domain.Event{}, err
	}
	e.CreatedAt = fromMillis(created)
	return e, nil
}

const sqliteEventCols = `id, owner_id, label, day, month, created_at`

func (s *sqliteStore) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, chat_id, locale, created_at) VALUES (?, ?, ?, ?)`,
		u.ID.String(), u.ChatID, u.Locale, millis(u.CreatedAt),
	)
	switch {
	case err == nil:
		return nil
	case isSQLiteUnique(err):
		return domain.ErrAlreadyExists
	default:
		return repoErr("create user", err)
	}
}

func (s *sqliteStore) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	u, err := scanSQLiteUser(s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, locale, created_at FROM users WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, notFound("user " + id.String())
	}
	if err != nil {
		return domain.User{}, repoErr("get user", err)
	}
	return u, nil
}

func (s *sqliteStore) GetUserByChatID(ctx context.Context, chatID int64) (domain.User, error) {
	u, err := scanSQLiteUser(s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, locale, created_at FROM users WHERE chat_id = ?`, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, notFound("user")
	}
	if err != nil {
		return domain.User{}, repoErr("get user by chat", err)
	}
	return u, nil
}

func (s *sqliteStore) SetUserLocale(ctx context.Context, id uuid.UUID, locale string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET locale = ? WHERE id = ?`, locale, id.String())
	if err != nil {
		return repoErr("set locale", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("user " + id.String())
	}
	return nil
}

func (s *sqliteStore) stats(ctx context.Context, table string, now time.Time) (domain.Stats, error) {
	day, week, month := statsCutoffs(now)
	var st domain.Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(created_at >= ?), 0),
		COALESCE(SUM(created_at >= ?), 0),
		COALESCE(SUM(created_at >= ?), 0)
		FROM `+table, millis(day), millis(week), millis(month),
	).Scan(&st.Total, &st.LastDay, &st.LastWeek, &st.LastMonth)
	if err != nil {
		return domain.Stats{}, repoErr(table+" stats", err)
	}
	return st, nil
}

func (s *sqliteStore) UserStats(ctx context.Context, now time.Time) (domain.Stats, error) {
	return s.stats(ctx, "users", now)
}

func (s *sqliteStore) EventStats(ctx context.Context, now time.Time) (domain.Stats, error) {
	return s.stats(ctx, "events", now)
}

func (s *sqliteStore) CreateEvent(ctx context.Context, e domain.Event) error {
	if err := checkEvent(e); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (`+sqliteEventCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.OwnerID.String(), e.Label, e.Day, e.Month, millis(e.CreatedAt),
	)
	switch {
	case err == nil:
		return nil
	case isSQLiteUnique(err):
		return domain.ErrAlreadyExists
	case isSQLiteForeignKey(err):
		return notFound("owner " + e.OwnerID.String())
	default:
		return repoErr("create event", err)
	}
}

func (s *sqliteStore) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	e, err := scanSQLiteEvent(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteEventCols+` FROM events WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Event{}, notFound("event " + id.String())
	}
	if err != nil {
		return domain.Event{}, repoErr("get event", err)
	}
	return e, nil
}

func (s *sqliteStore) queryEvents(ctx context.Context, op, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, repoErr(op, err)
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		e, err := scanSQLiteEvent(rows)
		if err != nil {
			return nil, repoErr(op, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, repoErr(op, err)
	}
	return out, nil
}

func (s *sqliteStore) ListEventsByOwner(ctx context.Context, owner uuid.UUID, today domain.DayMonth) ([]domain.Event, error) {
	out, err := s.queryEvents(ctx, "list events",
		`SELECT `+sqliteEventCols+` FROM events WHERE owner_id = ? ORDER BY created_at, id`, owner.String())
	if err != nil {
		return nil, err
	}
	sortByNearest(out, today)
	return out, nil
}

func (s *sqliteStore) DeleteEvent(ctx context.Context, owner, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ? AND owner_id = ?`, id.String(), owner.String())
	if err != nil {
		return repoErr("delete event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("event " + id.String())
	}
	return nil
}

func (s *sqliteStore) ListByWindow(ctx context.Context, w domain.Window) ([]domain.Event, error) {
	start, end := w.Bounds()
	cond := `(month * 100 + day) BETWEEN ? AND ?`
	if w.Wraps() {
		cond = `((month * 100 + day) >= ? OR (month * 100 + day) <= ?)`
	}
	return s.queryEvents(ctx, "list by window",
		`SELECT `+sqliteEventCols+` FROM events WHERE `+cond+` ORDER BY created_at, id`, start, end)
}

func (s *sqliteStore) GetCompletion(ctx context.Context, key domain.CompletionKey) (domain.CompletionRecord, error) {
	var (
		r           domain.CompletionRecord
		id, eventID string
		cls         string
		created     int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, event_id, year, classification, created_at FROM completions
		 WHERE event_id = ? AND year = ? AND classification = ?`,
		key.EventID.String(), key.Year, string(key.Classification),
	).Scan(&id, &eventID, &r.Year, &cls, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CompletionRecord{}, notFound("completion")
	}
	if err != nil {
		return domain.CompletionRecord{}, repoErr("get completion", err)
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return domain.CompletionRecord{}, repoErr("get completion", err)
	}
	if r.EventID, err = uuid.Parse(eventID); err != nil {
		return domain.CompletionRecord{}, repoErr("get completion", err)
	}
	if r.Classification, err = domain.ParseClassification(cls); err != nil {
		return domain.CompletionRecord{}, repoErr("get completion", err)
	}
	r.CreatedAt = fromMillis(created)
	return r, nil
}

func (s *sqliteStore) AddCompletion(ctx context.Context, rec domain.CompletionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completions (id, event_id, year, classification, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.EventID.String(), rec.Year, string(rec.Classification), millis(rec.CreatedAt),
	)
	switch {
	case err == nil:
		return nil
	case isSQLiteUnique(err):
		return domain.ErrAlreadyRecorded
	case isSQLiteForeignKey(err):
		return notFound("event " + rec.EventID.String())
	default:
		return repoErr("add completion", err)
	}
}
