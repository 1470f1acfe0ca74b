package adapter

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"birthdaybot/internal/notifier"
)

// telebot renders unknown API failures as "telegram: <description> (<code>)".
var apiCodeRe = regexp.MustCompile(`\((\d{3})\)\s*$`)

// mapError wraps a telebot failure with its notifier class. Errors that fit
// no class are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return notifier.RateLimited(time.Duration(flood.RetryAfter)*time.Second, err)
	}
	var floodPtr *tele.FloodError
	if errors.As(err, &floodPtr) && floodPtr != nil {
		return notifier.RateLimited(time.Duration(floodPtr.RetryAfter)*time.Second, err)
	}

	if errors.Is(err, tele.ErrChatNotFound) {
		return notifier.RecipientGone(err)
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		if wrapped := byCode(apiErr.Code, err); wrapped != nil {
			return wrapped
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return notifier.Network(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return notifier.Network(err)
	}

	if m := apiCodeRe.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		if wrapped := byCode(code, err); wrapped != nil {
			return wrapped
		}
	}
	return err
}

func byCode(code int, err error) error {
	switch {
	case code == 403:
		return notifier.RecipientGone(err)
	case code == 429:
		return notifier.RateLimited(0, err)
	case code >= 500 && code <= 599:
		return notifier.Server(err)
	}
	return nil
}
