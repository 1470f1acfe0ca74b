package app

import (
	"fmt"
	"time"

	"birthdaybot/internal/config"
	"birthdaybot/internal/notifier"
	"birthdaybot/internal/reminder"
	"birthdaybot/internal/storage"
	"birthdaybot/internal/transport/telegram/router"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: busy,
		MaxConns:    cfg.Storage.MaxConns,
	}, nil
}

func mapReminderConfig(cfg *config.Config) (reminder.Config, notifier.Config, error) {
	r, err := cfg.Reminder.Parse()
	if err != nil {
		return reminder.Config{}, notifier.Config{}, err
	}
	return reminder.Config{
			TriggerHour:     r.TriggerHour,
			Timezone:        r.Timezone,
			Pacing:          r.Pacing,
			RetryDelay:      r.RetryDelay,
			QueryRetryDelay: r.QueryRetryDelay,
			UserRetryMax:    r.UserRetryMax,
		}, notifier.Config{
			RetryDelay: r.RetryDelay,
			RatePerSec: r.SendRatePerSec,
		}, nil
}

func mapRouterOptions(cfg *config.Config) (router.Options, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.handler_timeout", cfg.Telegram.HandlerTimeout, 15*time.Second)
	if err != nil {
		return router.Options{}, err
	}
	if cfg.Telegram.Workers < 0 {
		return router.Options{}, fmt.Errorf("telegram.workers must be >= 0")
	}
	return router.Options{Workers: cfg.Telegram.Workers, DefaultTimeout: timeout}, nil
}
