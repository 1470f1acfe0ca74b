package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"birthdaybot/internal/domain"
)

// Memory is a process-local Store. Events keep insertion order.
type Memory struct {
	mu          sync.RWMutex
	users       map[uuid.UUID]domain.User
	byChat      map[int64]uuid.UUID
	events      []domain.Event
	completions map[domain.CompletionKey]domain.CompletionRecord
}

func NewMemory() *Memory {
	return &Memory{
		users:       map[uuid.UUID]domain.User{},
		byChat:      map[int64]uuid.UUID{},
		completions: map[domain.CompletionKey]domain.CompletionRecord{},
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if _, ok := m.byChat[u.ChatID]; ok {
		return domain.ErrAlreadyExists
	}
	m.users[u.ID] = u
	m.byChat[u.ChatID] = u.ID
	return nil
}

func (m *Memory) GetUser(_ context.Context, id uuid.UUID) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, notFound("user " + id.String())
	}
	return u, nil
}

func (m *Memory) GetUserByChatID(_ context.Context, chatID int64) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byChat[chatID]
	if !ok {
		return domain.User{}, notFound("user")
	}
	return m.users[id], nil
}

func (m *Memory) SetUserLocale(_ context.Context, id uuid.UUID, locale string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return notFound("user " + id.String())
	}
	u.Locale = locale
	m.users[id] = u
	return nil
}

func (m *Memory) UserStats(_ context.Context, now time.Time) (domain.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var st domain.Stats
	for _, u := range m.users {
		countInto(&st, u.CreatedAt, now)
	}
	return st, nil
}

func (m *Memory) CreateEvent(_ context.Context, e domain.Event) error {
	if err := checkEvent(e); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[e.OwnerID]; !ok {
		return notFound("owner " + e.OwnerID.String())
	}
	for _, x := range m.events {
		if x.ID == e.ID || (x.OwnerID == e.OwnerID && x.DayMonth() == e.DayMonth() && strings.EqualFold(x.Label, e.Label)) {
			return domain.ErrAlreadyExists
		}
	}
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) GetEvent(_ context.Context, id uuid.UUID) (domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.events {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.Event{}, notFound("event " + id.String())
}

func (m *Memory) ListEventsByOwner(_ context.Context, owner uuid.UUID, today domain.DayMonth) ([]domain.Event, error) {
	m.mu.RLock()
	var out []domain.Event
	for _, e := range m.events {
		if e.OwnerID == owner {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()
	sortByNearest(out, today)
	return out, nil
}

func (m *Memory) DeleteEvent(_ context.Context, owner, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.events {
		if e.ID != id || e.OwnerID != owner {
			continue
		}
		m.events = append(m.events[:i], m.events[i+1:]...)
		for k := range m.completions {
			if k.EventID == id {
				delete(m.completions, k)
			}
		}
		return nil
	}
	return notFound("event " + id.String())
}

func (m *Memory) EventStats(_ context.Context, now time.Time) (domain.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var st domain.Stats
	for _, e := range m.events {
		countInto(&st, e.CreatedAt, now)
	}
	return st, nil
}

func (m *Memory) ListByWindow(_ context.Context, w domain.Window) ([]domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Event
	for _, e := range m.events {
		if w.Contains(e.DayMonth()) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) GetCompletion(_ context.Context, key domain.CompletionKey) (domain.CompletionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.completions[key]
	if !ok {
		return domain.CompletionRecord{}, notFound("completion")
	}
	return r, nil
}

func (m *Memory) AddCompletion(_ context.Context, rec domain.CompletionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.completions[rec.Key()]; ok {
		return domain.ErrAlreadyRecorded
	}
	m.completions[rec.Key()] = rec
	return nil
}

func countInto(st *domain.Stats, created, now time.Time) {
	day, week, month := statsCutoffs(now)
	st.Total++
	if !created.Before(day) {
		st.LastDay++
	}
	if !created.Before(week) {
		st.LastWeek++
	}
	if !created.Before(month) {
		st.LastMonth++
	}
}
