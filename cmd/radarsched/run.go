package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"radarsched/internal/app"
	"radarsched/pkg/systemd"
)

type RunCmd struct {
	StopTimeout time.Duration `help:"Upper bound for graceful shutdown." default:"10s"`
}

func (c *RunCmd) Run(g *Globals) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := systemd.NewNotifier()
	a, err := app.NewApp(g.Config, app.WithLifecycle(notifier))
	if err != nil {
		return err
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)

	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return err
	}
	a.Supervisor().Go("systemd.watchdog", notifier.Watchdog)

	reason := app.StopUnknown
	for reason == app.StopUnknown {
		select {
		case sig := <-sigc:
			switch sig {
			case syscall.SIGHUP:
				// failures are logged; the previous timeline stays active
				_ = a.Reload(ctx)
			case os.Interrupt:
				reason = app.StopSIGINT
			default:
				reason = app.StopSIGTERM
			}
		case <-a.Done():
			reason = app.StopFatalError
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), c.StopTimeout)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	return a.Err()
}
