package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"birthdaybot/internal/domain"
)

// Resolution is the outcome of resolving "now" against the trigger hour.
type Resolution struct {
	// Now is the resolved instant in the configured location.
	Now   time.Time
	Year  int
	Today domain.DayMonth
	// Window spans today and the calendar-aware tomorrow.
	Window domain.Window
	// Due is false before today's trigger hour.
	Due bool
	// Sleep is the wait until the next trigger: today's when not yet due,
	// otherwise tomorrow's.
	Sleep time.Duration
}

// Resolver computes the daily query window and the next trigger instant.
// It is a pure function of its input and is safe for concurrent use.
type Resolver struct {
	hour  int
	loc   *time.Location
	sched cron.Schedule
}

// NewResolver builds a resolver for triggerHour (0-23) in timezone tz.
// An empty tz means UTC.
func NewResolver(triggerHour int, tz string) (*Resolver, error) {
	if triggerHour < 0 || triggerHour > 23 {
		return nil, fmt.Errorf("trigger hour must be within 0..23, got %d", triggerHour)
	}
	loc := time.UTC
	if tz = strings.TrimSpace(tz); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("timezone %q: %w", tz, err)
		}
		loc = l
	}
	// Parsed without CRON_TZ: Next() then follows the location of its argument.
	sched, err := cron.ParseStandard("0 " + strconv.Itoa(triggerHour) + " * * *")
	if err != nil {
		return nil, fmt.Errorf("daily trigger: %w", err)
	}
	return &Resolver{hour: triggerHour, loc: loc, sched: sched}, nil
}

func (r *Resolver) Location() *time.Location { return r.loc }

func (r *Resolver) TriggerHour() int { return r.hour }

// Resolve maps now onto the civil calendar of the configured location.
func (r *Resolver) Resolve(now time.Time) Resolution {
	local := now.In(r.loc)
	today := domain.DayMonthOf(local)
	_, tomorrow := NextDay(local.Year(), today)

	due := local.Hour() >= r.hour
	next := r.nextTrigger(local, due)
	return Resolution{
		Now:    local,
		Year:   local.Year(),
		Today:  today,
		Window: domain.Window{Start: today, End: tomorrow},
		Due:    due,
		Sleep:  next.Sub(local),
	}
}

// nextTrigger returns the trigger instant on today's civil date, or on
// tomorrow's when due. The cron schedule skips a day whose trigger hour falls
// in a DST gap and repeats one whose hour occurs twice; then the instant for
// the expected date wins.
func (r *Resolver) nextTrigger(local time.Time, due bool) time.Time {
	y, m, d := local.Date()
	if due {
		d++
	}
	want := r.triggerOn(y, m, d)
	if next := r.sched.Next(local); sameDate(next, want) {
		return next
	}
	return want
}

// triggerOn is the first instant of the civil date (y, m, d) whose local hour
// is at least the trigger hour. Inside a DST gap that is the transition.
func (r *Resolver) triggerOn(y int, m time.Month, d int) time.Time {
	noon := time.Date(y, m, d, 12, 0, 0, 0, r.loc)
	t := time.Date(y, m, d, r.hour, 0, 0, 0, r.loc)
	if t.Hour() == r.hour && t.Minute() == 0 && sameDate(t, noon) {
		return t
	}
	// Walk from the previous noon; noon is never inside a transition.
	for cur, i := noon.AddDate(0, 0, -1), 0; i < 4*48; i++ {
		if sameDate(cur, noon) && cur.Hour() >= r.hour {
			return cur
		}
		cur = cur.Add(15 * time.Minute)
	}
	return t
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// NextDay returns the date following d in the given year.
//
// 27 Feb and 28 Feb jump straight to 1 Mar in non-leap years so that a
// 29 February event stays reachable. 31 Dec rolls into the next year.
func NextDay(year int, d domain.DayMonth) (int, domain.DayMonth) {
	switch {
	case d.Month == 2 && d.Day == 27:
		if isLeap(year) {
			return year, domain.DayMonth{Day: 28, Month: 2}
		}
		return year, domain.DayMonth{Day: 1, Month: 3}
	case d.Month == 2 && d.Day == 28:
		if isLeap(year) {
			return year, domain.DayMonth{Day: 29, Month: 2}
		}
		return year, domain.DayMonth{Day: 1, Month: 3}
	case d.Month == 12 && d.Day == 31:
		return year + 1, domain.DayMonth{Day: 1, Month: 1}
	}
	if d.Day+1 > daysIn(year, d.Month) {
		return year, domain.DayMonth{Day: 1, Month: d.Month + 1}
	}
	return year, domain.DayMonth{Day: d.Day + 1, Month: d.Month}
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
