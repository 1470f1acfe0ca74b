package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldError names the config key a value was rejected for.
type FieldError struct {
	Key string
	Err error
}

func (e *FieldError) Error() string { return e.Key + ": " + e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }

// ParseDurationField parses a Go duration ("1500ms", "2m") or a bare number
// of seconds. Empty means zero; negative values are rejected.
func ParseDurationField(key, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	var d time.Duration
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		d = time.Duration(secs * float64(time.Second))
	} else if d, err = time.ParseDuration(s); err != nil {
		return 0, &FieldError{Key: key, Err: fmt.Errorf("invalid duration %q", raw)}
	}
	if d < 0 {
		return 0, &FieldError{Key: key, Err: fmt.Errorf("duration must be >= 0, got %s", d)}
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def standing in for zero.
func ParseDurationOrDefault(key, raw string, def time.Duration) (time.Duration, error) {
	switch d, err := ParseDurationField(key, raw); {
	case err != nil:
		return 0, err
	case d == 0:
		return def, nil
	default:
		return d, nil
	}
}
