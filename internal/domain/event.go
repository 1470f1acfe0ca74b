package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID returns a time-ordered (v7) identifier.
func NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// DayMonth is a calendar date without a year.
type DayMonth struct {
	Day   int
	Month int
}

// DayMonthOf returns the civil (day, month) of t in t's location.
func DayMonthOf(t time.Time) DayMonth {
	return DayMonth{Day: t.Day(), Month: int(t.Month())}
}

// Valid reports whether d is a calendar date. 29 February is always valid:
// the resolver, not the event, deals with non-leap years.
func (d DayMonth) Valid() bool {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return false
	}
	return d.Day <= daysInMonth(d.Month)
}

func (d DayMonth) String() string { return fmt.Sprintf("%02d.%02d", d.Day, d.Month) }

// key orders dates on the cyclic calendar (Jan 1 = 101, Dec 31 = 1231).
func (d DayMonth) key() int { return d.Month*100 + d.Day }

// dayOfYear uses a leap-year calendar so 29 February has its own slot.
func (d DayMonth) dayOfYear() int {
	n := d.Day
	for m := 1; m < d.Month; m++ {
		n += daysInMonth(m)
	}
	return n
}

// DaysUntil is the number of days from today to the next occurrence of d,
// counted on a 366-day cycle. Zero means today.
func (d DayMonth) DaysUntil(today DayMonth) int {
	diff := d.dayOfYear() - today.dayOfYear()
	if diff < 0 {
		diff += 366
	}
	return diff
}

func daysInMonth(m int) int {
	switch m {
	case 2:
		return 29
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// Window is a day/month range on the 12-month cyclic calendar, inclusive at
// both ends. Start may be numerically after End (e.g. 31.12 -> 01.01).
type Window struct {
	Start DayMonth
	End   DayMonth
}

// Wraps reports whether the window crosses the year boundary.
func (w Window) Wraps() bool { return w.Start.key() > w.End.key() }

// Contains reports whether d falls inside the window.
func (w Window) Contains(d DayMonth) bool {
	k := d.key()
	if w.Wraps() {
		return k >= w.Start.key() || k <= w.End.key()
	}
	return k >= w.Start.key() && k <= w.End.key()
}

// Bounds returns the window ends as Month*100+Day keys, the form SQL
// backends filter on.
func (w Window) Bounds() (start, end int) { return w.Start.key(), w.End.key() }

func (w Window) String() string { return w.Start.String() + "-" + w.End.String() }

// Event is a recurring annual reminder owned by a user.
type Event struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Label     string
	Day       int
	Month     int
	CreatedAt time.Time
}

func (e Event) DayMonth() DayMonth { return DayMonth{Day: e.Day, Month: e.Month} }

// NewEvent validates the date and label and assigns an id.
func NewEvent(owner uuid.UUID, label string, date DayMonth, now time.Time) (Event, error) {
	if !date.Valid() {
		return Event{}, fmt.Errorf("%w: %d.%d", ErrInvalidDate, date.Day, date.Month)
	}
	if label == "" {
		return Event{}, fmt.Errorf("event label is empty")
	}
	return Event{
		ID:        NewID(),
		OwnerID:   owner,
		Label:     label,
		Day:       date.Day,
		Month:     date.Month,
		CreatedAt: now.UTC(),
	}, nil
}

// User is a chat participant that owns events.
type User struct {
	ID        uuid.UUID
	ChatID    int64
	Locale    string
	CreatedAt time.Time
}

// Stats counts entities created overall and within recent periods.
type Stats struct {
	Total     int
	LastDay   int
	LastWeek  int
	LastMonth int
}
