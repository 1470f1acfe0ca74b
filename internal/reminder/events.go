package reminder

import (
	"github.com/google/uuid"

	"birthdaybot/internal/domain"
)

// ItemEvent is the bus payload for per-event signals.
type ItemEvent struct {
	EventID        uuid.UUID             `json:"event_id"`
	OwnerID        uuid.UUID             `json:"owner_id"`
	Classification domain.Classification `json:"classification,omitempty"`
	Year           int                   `json:"year,omitempty"`
	Reason         string                `json:"reason,omitempty"`
	Attempts       int                   `json:"attempts,omitempty"`
}

// CycleEvent is published after each successful window query.
type CycleEvent struct {
	Window domain.Window `json:"window"`
	Queued int           `json:"queued"`
}
