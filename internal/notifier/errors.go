package notifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// RateLimited marks err as a rate-limit rejection carrying a server-specified delay.
//
// Example:
//
//	return notifier.RateLimited(time.Duration(fe.RetryAfter)*time.Second, err)
func RateLimited(after time.Duration, err error) error {
	if after < 0 {
		after = 0
	}
	return &RateLimitedError{After: after, Err: err}
}

// Network marks err as a transient transport failure.
func Network(err error) error {
	if err == nil {
		return nil
	}
	return &NetworkError{Err: err}
}

// Server marks err as a server-side (5xx-class) failure.
func Server(err error) error {
	if err == nil {
		return nil
	}
	return &ServerError{Err: err}
}

// RecipientGone marks err as a permanent, recipient-side rejection.
func RecipientGone(err error) error {
	if err == nil {
		return nil
	}
	return &RecipientGoneError{Err: err}
}

type RateLimitedError struct {
	After time.Duration
	Err   error
}

func (e *RateLimitedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("rate limited, retry after %s", e.After)
	}
	return fmt.Sprintf("rate limited, retry after %s: %v", e.After, e.Err)
}
func (e *RateLimitedError) Unwrap() error { return e.Err }

type NetworkError struct{ Err error }

func (e *NetworkError) Error() string { return fmt.Sprintf("network: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

type ServerError struct{ Err error }

func (e *ServerError) Error() string { return fmt.Sprintf("server: %v", e.Err) }
func (e *ServerError) Unwrap() error { return e.Err }

type RecipientGoneError struct{ Err error }

func (e *RecipientGoneError) Error() string { return fmt.Sprintf("recipient gone: %v", e.Err) }
func (e *RecipientGoneError) Unwrap() error { return e.Err }

// Kind tags an Outcome.
type Kind int

const (
	KindSuccess Kind = iota
	KindRetry
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRetry:
		return "retry"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of one delivery attempt.
type Outcome struct {
	Kind   Kind
	Delay  time.Duration // KindRetry only
	Reason string        // KindRetry and KindPermanent
}

func Success() Outcome { return Outcome{Kind: KindSuccess} }

func RetryIn(d time.Duration, reason string) Outcome {
	return Outcome{Kind: KindRetry, Delay: d, Reason: reason}
}

func Permanent(reason string) Outcome { return Outcome{Kind: KindPermanent, Reason: reason} }

// Classify reduces a transport error to an Outcome. fixed is the delay used
// for network and server failures and for rate limits without a delay.
func Classify(err error, fixed time.Duration) Outcome {
	if err == nil {
		return Success()
	}

	var rl *RateLimitedError
	if errors.As(err, &rl) {
		// A 429 without retry_after must not turn into a hot loop.
		if rl.After <= 0 {
			return RetryIn(fixed, "rate_limited")
		}
		return RetryIn(rl.After, "rate_limited")
	}
	var gone *RecipientGoneError
	if errors.As(err, &gone) {
		return Permanent("recipient_gone")
	}
	var se *ServerError
	if errors.As(err, &se) {
		return RetryIn(fixed, "server_error")
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return RetryIn(fixed, "network_error")
	}
	// Untyped transport failures: timeouts and socket errors are network trouble.
	if errors.Is(err, context.DeadlineExceeded) {
		return RetryIn(fixed, "network_error")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return RetryIn(fixed, "network_error")
	}
	return Permanent("unclassified")
}
