// Package systemd reports service state to systemd via sd_notify.
//
// All calls are no-ops when the process is not started by systemd
// (NOTIFY_SOCKET unset).
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends readiness and reload state.
type Notifier struct {
	unsetEnv bool
}

func NewNotifier() *Notifier { return &Notifier{} }

func (n *Notifier) send(state string) (bool, error) {
	return daemon.SdNotify(n.unsetEnv, state)
}

// Ready reports startup completion.
func (n *Notifier) Ready(status string) {
	_, _ = n.send(daemon.SdNotifyReady + "\nSTATUS=" + status)
}

// Reloading reports that configuration is being reloaded. Ready must follow.
func (n *Notifier) Reloading() {
	_, _ = n.send(daemon.SdNotifyReloading)
}

// Stopping reports shutdown start.
func (n *Notifier) Stopping() {
	_, _ = n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line.
func (n *Notifier) Status(status string) {
	_, _ = n.send("STATUS=" + status)
}

// Watchdog pings the systemd watchdog at half the configured interval until
// ctx is canceled. It returns immediately when the watchdog is not enabled.
func (n *Notifier) Watchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return err
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			_, _ = n.send(daemon.SdNotifyWatchdog)
		}
	}
}
