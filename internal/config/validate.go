package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"golang.org/x/text/language"
)

// Validate reports every problem found in cfg at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add("telegram.token is required (or BOT_TOKEN)")
	}
	for _, id := range cfg.Telegram.OwnerUserIDs {
		if id <= 0 {
			add("telegram.owner_user_ids: invalid id %d", id)
		}
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("telegram.request_timeout", cfg.Telegram.RequestTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("telegram.handler_timeout", cfg.Telegram.HandlerTimeout); err != nil {
		errs = append(errs, err)
	}

	if lvl := strings.ToLower(strings.TrimSpace(cfg.Logging.Level)); lvl != "" &&
		!slices.Contains([]string{"trace", "debug", "info", "warn", "warning", "error", "critical"}, lvl) {
		add("logging.level: unknown level %q", cfg.Logging.Level)
	}
	if cfg.Logging.Telegram.Enabled && cfg.Telegram.LogChatID == 0 {
		add("logging.telegram.enabled requires telegram.log_chat_id")
	}

	if h := cfg.Reminder.Hour(); h < 0 || h > 23 {
		add("reminder.trigger_hour must be within 0..23, got %d", h)
	}
	if tz := strings.TrimSpace(cfg.Reminder.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add("reminder.timezone: %v", err)
		}
	}
	if cfg.Reminder.UserRetryMax < 0 {
		add("reminder.user_retry_max must be >= 0")
	}
	if cfg.Reminder.SendRatePerSec < 0 {
		add("reminder.send_rate_per_sec must be >= 0")
	}
	if _, err := cfg.Reminder.Parse(); err != nil {
		errs = append(errs, err)
	}

	def, supported := cfg.Locale.Resolve()
	for _, code := range append([]string{def}, supported...) {
		if _, err := language.Parse(code); err != nil {
			add("locale: invalid code %q", code)
		}
	}
	if len(cfg.Locale.Supported) > 0 && !slices.Contains(supported, def) {
		add("locale.default %q is not in locale.supported", def)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "memory":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add("storage.path is required for sqlite")
		}
	case "postgres", "postgresql", "pgx":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			add("storage.dsn is required for postgres (or DATABASE_URL)")
		}
	default:
		add("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
