package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"radarsched/internal/config"
	"radarsched/internal/eventbus"
	"radarsched/internal/observability/debughttp"
	"radarsched/internal/runner"
	"radarsched/internal/runtime/supervisor"
	"radarsched/internal/storage"
	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

// Lifecycle receives service state changes (sd_notify in production).
type Lifecycle interface {
	Ready(status string)
	Reloading()
	Stopping()
}

type nopLifecycle struct{}

func (nopLifecycle) Ready(string) {}
func (nopLifecycle) Reloading()   {}
func (nopLifecycle) Stopping()    {}

var errNoResolver = errors.New("app: no resolver")

type Option func(*App)

// WithExecutor replaces the default LogExecutor.
func WithExecutor(e runner.Executor) Option { return func(a *App) { a.exec = e } }

func WithLifecycle(l Lifecycle) Option {
	return func(a *App) {
		if l != nil {
			a.life = l
		}
	}
}

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log       logx.Logger
	logs      *logx.Service
	bus       eventbus.Bus
	store     storage.Store
	hasLedger bool

	// applied is the config the running resolver was built from. Only
	// NewApp and the config.reload goroutine write it.
	applied *config.Config

	exec     runner.Executor
	runner   *runner.Service
	observer timeline.Observer
	life     Lifecycle
	debug    *debughttp.Server
}

func NewApp(cfgPath string, opts ...Option) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     eventbus.New(),
		life:    nopLifecycle{},
	}
	for _, o := range opts {
		o(a)
	}
	if a.exec == nil {
		a.exec = runner.LogExecutor{Log: log.With(logx.String("comp", "executor"))}
	}

	// Storage (optional)
	store, err := OpenStore(cfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	a.store = store
	a.hasLedger = store != nil
	if store != nil {
		a.log.Info("execution ledger enabled", logx.String("driver", cfg.Storage.Driver))
	} else {
		a.log.Info("no execution ledger; once-per-day actions are not deduplicated")
	}

	a.observer = runner.NewObserver(log.With(logx.String("comp", "timeline")), a.bus)
	a.runner = runner.New(mapRunnerConfig(cfg), log.With(logx.String("comp", "runner")), a.bus, a.exec)

	resolver, err := a.buildResolver(cfg)
	if err != nil {
		a.closeStore()
		_ = logSvc.Close()
		return nil, err
	}
	a.runner.SetResolver(resolver)
	a.applied = cfg
	a.debug = debughttp.New(log.With(logx.String("comp", "debug")), debughttp.Sources{
		Status:   func() any { return a.Status() },
		Schedule: a.resolveNow,
	})
	a.log.Info("timeline loaded", timelineFields(cfg, resolver)...)
	return a, nil
}

func (a *App) buildResolver(cfg *config.Config) (*timeline.Resolver, error) {
	var ledger timeline.Ledger
	if a.store != nil {
		ledger = a.store
	}
	return BuildResolver(cfg, ledger, a.observer)
}

func (a *App) Bus() eventbus.Bus { return a.bus }
func (a *App) Runner() *runner.Service { return a.runner }
func (a *App) Config() *config.Config { return a.cfgm.Get() }
func (a *App) Logger() logx.Logger { return a.log }
func (a *App) Store() storage.Store { return a.store }
func (a *App) Supervisor() *supervisor.Supervisor { return a.sup }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return Validate(cfg)
	})

	if err := a.runner.Start(a.sup.Context()); err != nil {
		return err
	}

	// Debug trail of bus traffic.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				if a.applyConfig(a.applied, newCfg) {
					a.applied = newCfg
				}
			}
		}
	})

	a.debug.Reconfigure(a.sup.Context(), mapDebugConfig(a.cfgm.Get()))

	a.sup.GoRestart("config.watch", time.Second, 30*time.Second, func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	next := a.runner.Next()
	a.log.Info("app started", logx.Time("next_tick", next))
	a.life.Ready("next tick " + next.Format(time.RFC3339))
	return nil
}

// Reload re-reads the config and timeline files; applied changes arrive
// through the subscription like file-watch reloads.
func (a *App) Reload(ctx context.Context) error {
	changed, err := a.cfgm.Reload(ctx)
	if err != nil {
		a.log.Warn("config rejected", logx.Any("err", err))
		return err
	}
	if !changed {
		a.log.Info("config reload requested; no changes")
	}
	return nil
}

// applyConfig swaps in newCfg. On failure the previous timeline stays active.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) bool {
	a.life.Reloading()
	defer a.life.Ready("reloaded")

	sections, attrs, tlChanged := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return true
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)
	if len(tlChanged) > 0 {
		a.log.Debug("timeline changes detected", logx.Any("timelines", tlChanged))
	}

	resolver, err := a.buildResolver(newCfg)
	if err != nil {
		a.log.Warn("config rejected; keeping previous timeline", logx.Any("err", err))
		return false
	}
	if err := a.runner.Apply(mapRunnerConfig(newCfg)); err != nil {
		a.log.Warn("config rejected; keeping previous timeline", logx.Any("err", err))
		return false
	}

	a.logs.Apply(mapLogConfig(newCfg))
	a.debug.Reconfigure(context.Background(), mapDebugConfig(newCfg))
	for _, s := range sections {
		if s == "storage" {
			a.log.Warn("storage config changed; restart required for changes to take effect")
		}
	}
	a.runner.SetResolver(resolver)
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeScheduleReloaded, Data: sections})

	a.log.Info("config reloaded", append(fields, timelineFields(newCfg, resolver)...)...)
	return true
}

func timelineFields(cfg *config.Config, r *timeline.Resolver) []logx.Field {
	preset := strings.TrimSpace(cfg.Schedule.Preset)
	if preset == "" {
		preset = timeline.DefaultPreset
	}
	out := []logx.Field{
		logx.Bool("enabled", r.Enabled()),
		logx.String("preset", preset),
	}
	if tl := r.Timeline(); tl != nil {
		out = append(out,
			logx.Int("periods", len(tl.Periods)),
			logx.Int("day_plans", len(tl.DayPlans)),
			logx.String("overlap_policy", string(tl.Overlap.EffectivePolicy())),
		)
	}
	return out
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeStore()
		if a.logs != nil {
			_ = a.logs.Close()
		}
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.life.Stopping()

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	a.step(ctx, "debug", 2*time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })
	a.step(ctx, "runner", 3*time.Second, func(c context.Context) error { a.runner.Stop(c); return nil })
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.closeStore() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step bounded by max and the caller's deadline.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Any("err", err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Any("err", stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}

func (a *App) closeStore() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
