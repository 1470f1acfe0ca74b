package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"birthdaybot/internal/config"
	rtsup "birthdaybot/internal/runtime/supervisor"
	logx "birthdaybot/pkg/logx"
)

// systemdNotifier reports lifecycle state over sd_notify. Outside systemd
// (no NOTIFY_SOCKET) every call is a no-op.
type systemdNotifier struct {
	cfg config.SystemdConfig
	log logx.Logger
	// notify is daemon.SdNotify, replaceable in tests.
	notify func(unsetEnv bool, state string) (bool, error)
	// interval is daemon.SdWatchdogEnabled, replaceable in tests.
	interval func(unsetEnv bool) (time.Duration, error)
}

func newSystemdNotifier(cfg config.SystemdConfig, log logx.Logger) *systemdNotifier {
	return &systemdNotifier{
		cfg:      cfg,
		log:      log.With(logx.String("comp", "systemd")),
		notify:   daemon.SdNotify,
		interval: daemon.SdWatchdogEnabled,
	}
}

func (n *systemdNotifier) send(state string) {
	if !n.cfg.Notify {
		return
	}
	sent, err := n.notify(false, state)
	switch {
	case err != nil:
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
	case !sent:
		n.log.Debug("sd_notify skipped (not running under systemd)", logx.String("state", state))
	}
}

func (n *systemdNotifier) ready()    { n.send(daemon.SdNotifyReady) }
func (n *systemdNotifier) stopping() { n.send(daemon.SdNotifyStopping) }

// startWatchdog pings at half the WatchdogSec interval while healthy reports true.
func (n *systemdNotifier) startWatchdog(sup *rtsup.Supervisor, healthy func() bool) {
	if !n.cfg.Notify || !n.cfg.Watchdog {
		return
	}
	every, err := n.interval(false)
	if err != nil {
		n.log.Warn("watchdog config invalid", logx.Err(err))
		return
	}
	if every <= 0 {
		n.log.Debug("watchdog not enabled for this unit")
		return
	}
	every /= 2
	n.log.Info("watchdog enabled", logx.Duration("interval", every))

	sup.GoRestart("systemd.watchdog", func(ctx context.Context) error {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				if healthy() {
					n.send(daemon.SdNotifyWatchdog)
				} else {
					n.log.Warn("watchdog ping withheld (unhealthy)")
				}
			}
		}
	})
}
