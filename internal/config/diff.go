package config

import (
	"slices"
	"strings"

	logx "birthdaybot/pkg/logx"
)

// SummarizeChange compares two snapshots. It returns the changed sections,
// log fields describing the new values (never secrets), and the sections
// that only take effect after a restart.
func SummarizeChange(oldCfg, newCfg *Config) (changed []string, fields []logx.Field, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	mark := func(section string, hot bool, fs ...logx.Field) {
		changed = append(changed, section)
		fields = append(fields, fs...)
		if !hot {
			restart = append(restart, section)
		}
	}

	// Telegram: owners and the log chat apply live. The token and the poller do not.
	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if !slices.Equal(ot.OwnerUserIDs, nt.OwnerUserIDs) || ot.LogChatID != nt.LogChatID {
		mark("telegram", true,
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.log_chat_set", nt.LogChatID != 0),
		)
	}
	if ot.Token != nt.Token ||
		strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) ||
		ot.Workers != nt.Workers ||
		strings.TrimSpace(ot.HandlerTimeout) != strings.TrimSpace(nt.HandlerTimeout) ||
		strings.TrimSpace(ot.RequestTimeout) != strings.TrimSpace(nt.RequestTimeout) {
		mark("telegram.transport", false,
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.String("telegram.poll_timeout", strings.TrimSpace(nt.PollTimeout)),
			logx.Int("telegram.workers", nt.Workers),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		mark("logging", true,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}

	// Reminder: the sender picks up retry_delay and the rate cap live. The
	// schedule and the consumer (which also uses retry_delay for owner
	// lookups) keep their start-up values.
	or, nr := oldCfg.Reminder, newCfg.Reminder
	if or.RetryDelay != nr.RetryDelay || or.SendRatePerSec != nr.SendRatePerSec {
		mark("reminder.delivery", true,
			logx.String("reminder.retry_delay", nr.RetryDelay),
			logx.Any("reminder.send_rate_per_sec", nr.SendRatePerSec),
		)
	}
	if or.Hour() != nr.Hour() || or.Timezone != nr.Timezone || or.Pacing != nr.Pacing ||
		or.QueryRetryDelay != nr.QueryRetryDelay || or.UserRetryMax != nr.UserRetryMax ||
		or.RetryDelay != nr.RetryDelay {
		mark("reminder", false,
			logx.Int("reminder.trigger_hour", nr.Hour()),
			logx.String("reminder.timezone", nr.Timezone),
		)
	}

	if oldCfg.Locale.Default != newCfg.Locale.Default || !slices.Equal(oldCfg.Locale.Supported, newCfg.Locale.Supported) {
		def, supported := newCfg.Locale.Resolve()
		mark("locale", false,
			logx.String("locale.default", def),
			logx.String("locale.supported", strings.Join(supported, ",")),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		mark("storage", false,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.Bool("storage.dsn_set", newCfg.Storage.DSN != ""),
		)
	}

	if oldCfg.Systemd != newCfg.Systemd {
		mark("systemd", false, logx.Bool("systemd.notify", newCfg.Systemd.Notify))
	}
	return changed, fields, restart
}

// LogConfig maps the logging section onto the logging service config.
func (c *Config) LogConfig() logx.Config {
	l := c.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		JSON:    l.JSON,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ChatID:     c.Telegram.LogChatID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

// IsOwner reports whether userID is listed in telegram.owner_user_ids.
func (c *Config) IsOwner(userID int64) bool {
	return slices.Contains(c.Telegram.OwnerUserIDs, userID)
}
