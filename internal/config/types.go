package config

import "time"

// Config is the on-disk configuration (JSON or YAML), overlaid by
// environment variables. Durations are Go duration strings ("5s", "50ms")
// or bare seconds ("30").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Reminder ReminderConfig `json:"reminder"`
	Locale   LocaleConfig   `json:"locale"`
	Storage  StorageConfig  `json:"storage"`
	Systemd  SystemdConfig  `json:"systemd"`
}

type TelegramConfig struct {
	Token        string  `json:"token" env:"BOT_TOKEN"`
	OwnerUserIDs []int64 `json:"owner_user_ids" env:"BOT_OWNER_IDS"`
	// LogChatID receives warnings and errors when logging.telegram is enabled.
	LogChatID   int64  `json:"log_chat_id,omitempty" env:"BOT_LOG_CHAT_ID"`
	PollTimeout string `json:"poll_timeout,omitempty"`
	// Workers is the number of concurrent command handlers.
	Workers int `json:"workers,omitempty"`
	// HandlerTimeout bounds a single command handler.
	HandlerTimeout string `json:"handler_timeout,omitempty"`
	// RequestTimeout bounds a single Bot API call (sends included).
	RequestTimeout string `json:"request_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level" env:"LOGGING_LEVEL"`
	Console  bool            `json:"console"`
	JSON     bool            `json:"json,omitempty" env:"LOGGING_JSON"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// ReminderConfig drives the daily reminder engine.
//
// Defaults:
//   - trigger_hour: 9
//   - timezone: "UTC"
//   - pacing: "50ms"
//   - retry_delay: "5s" (send retries and owner lookups)
//   - query_retry_delay: "5s"
//   - user_retry_max: 3
type ReminderConfig struct {
	TriggerHour     *int   `json:"trigger_hour,omitempty" env:"REMINDER_TRIGGER_HOUR"`
	Timezone        string `json:"timezone,omitempty" env:"REMINDER_TIMEZONE"`
	Pacing          string `json:"pacing,omitempty"`
	RetryDelay      string `json:"retry_delay,omitempty"`
	QueryRetryDelay string `json:"query_retry_delay,omitempty"`
	UserRetryMax    int    `json:"user_retry_max,omitempty"`
	// SendRatePerSec caps outgoing reminder messages; 0 disables the cap.
	SendRatePerSec float64 `json:"send_rate_per_sec,omitempty"`
}

type LocaleConfig struct {
	Default   string   `json:"default" env:"LOCALE_DEFAULT"`
	Supported []string `json:"supported"`
}

// StorageConfig selects the persistence backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/birthdaybot.db" }
type StorageConfig struct {
	Driver      string `json:"driver" env:"STORAGE_DRIVER"`
	Path        string `json:"path,omitempty" env:"STORAGE_PATH"`
	DSN         string `json:"dsn,omitempty" env:"DATABASE_URL"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
	MaxConns    int32  `json:"max_conns,omitempty"`
}

// SystemdConfig enables sd_notify integration when running under systemd.
type SystemdConfig struct {
	Notify   bool `json:"notify,omitempty"`
	Watchdog bool `json:"watchdog,omitempty"`
}

const (
	DefaultTriggerHour    = 9
	DefaultTimezone       = "UTC"
	DefaultLocale         = "en"
	DefaultPollTimeout    = 10 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// Hour returns the configured trigger hour or the default.
func (r ReminderConfig) Hour() int {
	if r.TriggerHour == nil {
		return DefaultTriggerHour
	}
	return *r.TriggerHour
}

// Reminder holds the parsed reminder settings.
type Reminder struct {
	TriggerHour     int
	Timezone        string
	Pacing          time.Duration
	RetryDelay      time.Duration
	QueryRetryDelay time.Duration
	UserRetryMax    int
	SendRatePerSec  float64
}

// Parse resolves defaults and parses durations.
func (r ReminderConfig) Parse() (Reminder, error) {
	out := Reminder{
		TriggerHour:    r.Hour(),
		Timezone:       r.Timezone,
		UserRetryMax:   r.UserRetryMax,
		SendRatePerSec: r.SendRatePerSec,
	}
	if out.Timezone == "" {
		out.Timezone = DefaultTimezone
	}
	if out.UserRetryMax <= 0 {
		out.UserRetryMax = 3
	}
	var err error
	if out.Pacing, err = ParseDurationOrDefault("reminder.pacing", r.Pacing, 50*time.Millisecond); err != nil {
		return Reminder{}, err
	}
	if out.RetryDelay, err = ParseDurationOrDefault("reminder.retry_delay", r.RetryDelay, 5*time.Second); err != nil {
		return Reminder{}, err
	}
	if out.QueryRetryDelay, err = ParseDurationOrDefault("reminder.query_retry_delay", r.QueryRetryDelay, 5*time.Second); err != nil {
		return Reminder{}, err
	}
	return out, nil
}

// Resolve returns the default locale code and the supported set.
func (l LocaleConfig) Resolve() (def string, supported []string) {
	def = l.Default
	if def == "" {
		def = DefaultLocale
	}
	if len(l.Supported) == 0 {
		return def, []string{def}
	}
	return def, l.Supported
}
