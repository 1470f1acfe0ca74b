package app

import (
	"context"
	"strings"

	"birthdaybot/internal/config"
	logx "birthdaybot/pkg/logx"
)

// reloadLoop applies hot-reloadable sections and reports the rest as
// restart-only.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest snapshot.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}
			a.apply(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) apply(oldCfg, newCfg *config.Config) {
	if newCfg == nil {
		return
	}
	changed, fields, restart := config.SummarizeChange(oldCfg, newCfg)
	if len(changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(newCfg.LogConfig())
	a.router.SetOwners(newCfg.Telegram.OwnerUserIDs)
	if _, sendCfg, err := mapReminderConfig(newCfg); err == nil {
		a.sender.Apply(sendCfg)
	} else {
		a.log.Warn("sender config not applied", logx.Err(err))
	}

	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(restart, ",")))
	}
	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, fields...)...)
}
