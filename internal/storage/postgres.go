package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"birthdaybot/internal/domain"
	logx "birthdaybot/pkg/logx"
)

type postgresStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (*postgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage: postgres dsn is required (storage.dsn or DATABASE_URL)")
	}
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Join(errors.New("storage: parse postgres dsn"), err)
	}
	pcfg.MaxConns = cfg.MaxConns
	if pcfg.MaxConns <= 0 {
		pcfg.MaxConns = 4
	}

	pool, err := connectPostgres(ctx, pcfg, cfg.ConnectAttempts, cfg.ConnectInterval, log)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, db, goose.DialectPostgres, "postgres", log)
	if cerr := db.Close(); cerr != nil {
		log.Warn("closing migration handle failed", logx.Err(cerr))
	}
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("postgres storage ready", logx.Int("max_conns", int(pcfg.MaxConns)))
	return &postgresStore{pool: pool, log: log}, nil
}

// connectPostgres retries with a linearly growing pause so the bot can start
// alongside its database.
func connectPostgres(ctx context.Context, pcfg *pgxpool.Config, attempts int, interval time.Duration, log logx.Logger) (*pgxpool.Pool, error) {
	if attempts <= 0 {
		attempts = 5
	}
	if interval <= 0 {
		interval = time.Second
	}
	var lastErr error
	for i := range attempts {
		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err
		wait := time.Duration(i+1) * interval
		log.Warn("postgres not reachable; retrying",
			logx.Int("attempt", i+1),
			logx.Duration("retry_in", wait),
			logx.Err(err),
		)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, repoErr("connect postgres", lastErr)
}

func (s *postgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const pgEventCols = `id, owner_id, label, day, month, created_at`

func scanPGEvent(r pgx.Row) (domain.Event, error) {
	var (
		e          domain.Event
		day, month int16
	)
	if err := r.Scan(&e.ID, &e.OwnerID, &e.Label, &day, &month, &e.CreatedAt); err != nil {
		return domain.Event{}, err
	}
	e.Day, e.Month = int(day), int(month)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func scanPGUser(r pgx.Row) (domain.User, error) {
	var u domain.User
	if err := r.Scan(&u.ID, &u.ChatID, &u.Locale, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *postgresStore) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, chat_id, locale, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.ChatID, u.Locale, u.CreatedAt.UTC(),
	)
	switch {
	case err == nil:
		return nil
	case pgCode(err) == pgUniqueViolation:
		return domain.ErrAlreadyExists
	default:
		return repoErr("create user", err)
	}
}

func (s *postgresStore) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	u, err := scanPGUser(s.pool.QueryRow(ctx,
		`SELECT id, chat_id, locale, created_at FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, notFound("user " + id.String())
	}
	if err != nil {
		return domain.User{}, repoErr("get user", err)
	}
	return u, nil
}

func (s *postgresStore) GetUserByChatID(ctx context.Context, chatID int64) (domain.User, error) {
	u, err := scanPGUser(s.pool.QueryRow(ctx,
		`SELECT id, chat_id, locale, created_at FROM users WHERE chat_id = $1`, chatID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, notFound("user")
	}
	if err != nil {
		return domain.User{}, repoErr("get user by chat", err)
	}
	return u, nil
}

func (s *postgresStore) SetUserLocale(ctx context.Context, id uuid.UUID, locale string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET locale = $1 WHERE id = $2`, locale, id)
	if err != nil {
		return repoErr("set locale", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("user " + id.String())
	}
	return nil
}

func (s *postgresStore) stats(ctx context.Context, table string, now time.Time) (domain.Stats, error) {
	day, week, month := statsCutoffs(now)
	var total, d, w, m int64
	err := s.pool.QueryRow(ctx, `SELECT
		count(*),
		count(*) FILTER (WHERE created_at >= $1),
		count(*) FILTER (WHERE created_at >= $2),
		count(*) FILTER (WHERE created_at >= $3)
		FROM `+table, day, week, month,
	).Scan(&total, &d, &w, &m)
	if err != nil {
		return domain.Stats{}, repoErr(table+" stats", err)
	}
	return domain.Stats{Total: int(total), LastDay: int(d), LastWeek: int(w), LastMonth: int(m)}, nil
}

func (s *postgresStore) UserStats(ctx context.Context, now time.Time) (domain.Stats, error) {
	return s.stats(ctx, "users", now)
}

func (s *postgresStore) EventStats(ctx context.Context, now time.Time) (domain.Stats, error) {
	return s.stats(ctx, "events", now)
}

func (s *postgresStore) CreateEvent(ctx context.Context, e domain.Event) error {
	if err := checkEvent(e); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (`+pgEventCols+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.OwnerID, e.Label, int16(e.Day), int16(e.Month), e.CreatedAt.UTC(),
	)
	switch {
	case err == nil:
		return nil
	case pgCode(err) == pgUniqueViolation:
		return domain.ErrAlreadyExists
	case pgCode(err) == pgForeignKeyViolation:
		return notFound("owner " + e.OwnerID.String())
	default:
		return repoErr("create event", err)
	}
}

func (s *postgresStore) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	e, err := scanPGEvent(s.pool.QueryRow(ctx, `SELECT `+pgEventCols+` FROM events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, notFound("event " + id.String())
	}
	if err != nil {
		return domain.Event{}, repoErr("get event", err)
	}
	return e, nil
}

func (s *postgresStore) queryEvents(ctx context.Context, op, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, repoErr(op, err)
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		e, err := scanPGEvent(rows)
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

func (s *postgresStore) ListEventsByOwner(ctx context.Context, owner uuid.UUID, today domain.DayMonth) ([]domain.Event, error) {
	out, err := s.queryEvents(ctx, "list events",
		`SELECT `+pgEventCols+` FROM events WHERE owner_id = $1 ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, err
	}
	sortByNearest(out, today)
	return out, nil
}

func (s *postgresStore) DeleteEvent(ctx context.Context, owner, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1 AND owner_id = $2`, id, owner)
	if err != nil {
		return repoErr("delete event", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("event " + id.String())
	}
	return nil
}

func (s *postgresStore) ListByWindow(ctx context.Context, w domain.Window) ([]domain.Event, error) {
	start, end := w.Bounds()
	cond := `(month * 100 + day) BETWEEN $1 AND $2`
	if w.Wraps() {
		cond = `((month * 100 + day) >= $1 OR (month * 100 + day) <= $2)`
	}
	return s.queryEvents(ctx, "list by window",
		`SELECT `+pgEventCols+` FROM events WHERE `+cond+` ORDER BY created_at, id`, start, end)
}

func (s *postgresStore) GetCompletion(ctx context.Context, key domain.CompletionKey) (domain.CompletionRecord, error) {
	var (
		r   domain.CompletionRecord
		cls string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, event_id, year, classification, created_at FROM completions
		 WHERE event_id = $1 AND year = $2 AND classification = $3`,
		key.EventID, key.Year, string(key.Classification),
	).Scan(&r.ID, &r.EventID, &r.Year, &cls, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CompletionRecord{}, notFound("completion")
	}
	if err != nil {
		return domain.CompletionRecord{}, repoErr("get completion", err)
	}
	if r.Classification, err = domain.ParseClassification(cls); err != nil {
		return domain.CompletionRecord{}, repoErr("get completion", err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func (s *postgresStore) AddCompletion(ctx context.Context, rec domain.CompletionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO completions (id, event_id, year, classification, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.EventID, rec.Year, string(rec.Classification), rec.CreatedAt.UTC(),
	)
	switch {
	case err == nil:
		return nil
	case pgCode(err) == pgUniqueViolation:
		return domain.ErrAlreadyRecorded
	case pgCode(err) == pgForeignKeyViolation:
		return notFound("event " + rec.EventID.String())
	default:
		return repoErr("add completion", err)
	}
}
