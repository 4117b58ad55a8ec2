package app

import (
	"strings"
	"time"

	"radarsched/internal/config"
	"radarsched/internal/observability/debughttp"
	"radarsched/internal/runner"
	"radarsched/internal/storage"
	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

// Validate is the full check applied at startup and before a hot reload is
// committed.
func Validate(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if _, err := runner.ParseSchedule(cfg.Schedule.Tick); err != nil {
		return err
	}
	return debughttp.CheckBind(mapDebugConfig(cfg))
}

// BuildResolver builds and validates the selected timeline and wraps it in a
// resolver bound to the configured time zone. ledger and observer may be nil.
func BuildResolver(cfg *config.Config, ledger timeline.Ledger, observer timeline.Observer) (*timeline.Resolver, error) {
	tl, err := config.BuildTimeline(cfg)
	if err != nil {
		return nil, err
	}
	loc, err := config.LoadLocation("schedule.timezone", cfg.Schedule.Timezone)
	if err != nil {
		return nil, err
	}
	opts := []timeline.Option{
		timeline.WithEnabled(cfg.Schedule.IsEnabled()),
		timeline.WithClock(func() time.Time { return time.Now().In(loc) }),
	}
	if observer != nil {
		opts = append(opts, timeline.WithObserver(observer))
	}
	if ledger != nil {
		opts = append(opts, timeline.WithLedger(ledger))
	}
	return timeline.NewResolver(tl, opts...), nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	f := cfg.Logging.File
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled:    f.Enabled,
			Path:       f.Path,
			MaxSizeMB:  f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAgeDays: f.MaxAgeDays,
			Compress:   f.Compress,
		},
	}
}

func mapRunnerConfig(cfg *config.Config) runner.Config {
	return runner.Config{
		Tick:     strings.TrimSpace(cfg.Schedule.Tick),
		Timezone: strings.TrimSpace(cfg.Schedule.Timezone),
	}
}

func mapDebugConfig(cfg *config.Config) debughttp.Config {
	if cfg == nil || cfg.Debug == nil {
		return debughttp.Config{}
	}
	d := cfg.Debug
	return debughttp.Config{
		Enabled:       d.Enabled,
		Addr:          strings.TrimSpace(d.Addr),
		Token:         strings.TrimSpace(d.Token),
		AllowInsecure: d.AllowInsecure,
		Pprof:         d.Pprof,
	}
}

// MapStorageConfig converts the storage section. The bool is false when
// storage is disabled.
func MapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	retention, err := config.ParseDurationOrDefault("storage.retention", sc.Retention, storage.DefaultRetention)
	if err != nil {
		return storage.Config{}, false, err
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(sc.Path),
		DSN:         strings.TrimSpace(sc.DSN),
		Addr:        strings.TrimSpace(sc.Addr),
		Password:    sc.Password,
		DB:          sc.DB,
		KeyPrefix:   strings.TrimSpace(sc.KeyPrefix),
		Retention:   retention,
		BusyTimeout: busy,
	}, true, nil
}

// OpenStore opens the configured ledger, or returns (nil, nil) when storage
// is disabled.
func OpenStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, enabled, err := MapStorageConfig(cfg)
	if err != nil || !enabled {
		return nil, err
	}
	return storage.Open(sc, log)
}
