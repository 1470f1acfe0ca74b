package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Classification tells whether a reminder fires on the day itself or one day ahead.
type Classification string

const (
	OneDayAhead Classification = "BeforehandInOneDay"
	OnTheDay    Classification = "OnTheDay"
)

func (c Classification) Valid() bool { return c == OneDayAhead || c == OnTheDay }

func ParseClassification(s string) (Classification, error) {
	c := Classification(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown classification %q", s)
	}
	return c, nil
}

// Classify is OnTheDay iff today's (day, month) equals the event's.
func Classify(today DayMonth, e Event) Classification {
	if today == e.DayMonth() {
		return OnTheDay
	}
	return OneDayAhead
}

// CompletionRecord marks a terminal delivery outcome for (event, year, classification).
type CompletionRecord struct {
	ID             uuid.UUID
	EventID        uuid.UUID
	Year           int
	Classification Classification
	CreatedAt      time.Time
}

// CompletionKey is the idempotency key of a CompletionRecord.
type CompletionKey struct {
	EventID        uuid.UUID
	Year           int
	Classification Classification
}

func (r CompletionRecord) Key() CompletionKey {
	return CompletionKey{EventID: r.EventID, Year: r.Year, Classification: r.Classification}
}
