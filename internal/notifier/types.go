package notifier

import (
	"context"
	"time"
)

// Transport sends one plain-text message. Implementations wrap their
// failures with RateLimited, Network, Server or RecipientGone so Classify
// can pick the retry policy, and bound each call themselves (the Telegram
// adapter through its HTTP client timeout).
type Transport interface {
	SendPlain(ctx context.Context, chatID int64, text string) error
}

// Config controls delivery retries.
type Config struct {
	// RetryDelay is the fixed wait after network and server failures.
	RetryDelay time.Duration
	// RatePerSec caps outgoing calls across all recipients. Zero disables it.
	RatePerSec float64
}

// Result describes a finished delivery. Delivered=false means aborted.
type Result struct {
	Delivered bool
	Attempts  int
	Reason    string
	Err       error
	Elapsed   time.Duration
}

// Aborted reports whether the message reached a terminal failure.
func (r Result) Aborted() bool { return !r.Delivered }
