package config

import (
	"strings"

	"radarsched/internal/timeline"
)

// Config is the process configuration (config.yaml / config.json).
//
// Unknown keys are rejected, so typos surface at load time and hot reloads
// with bad keys are refused instead of silently ignored.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Schedule ScheduleConfig `json:"schedule"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Debug    *DebugConfig   `json:"debug,omitempty"`

	// Timeline is loaded from Schedule.TimelinePath, or from the built-in
	// presets when no path is set.
	Timeline timeline.Source `json:"-"`

	// rawHash covers the config file and the timeline file bytes.
	rawHash uint64
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// ScheduleConfig selects the timeline and drives the tick loop.
//
// Enabled is a pointer so an omitted key defaults to true while an explicit
// false disables scheduling (everything runs every tick).
type ScheduleConfig struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Preset  string `json:"preset,omitempty"`

	// Timezone is an IANA name used for the clock supplier and cron triggers.
	// Empty means the process local zone.
	Timezone string `json:"timezone,omitempty"`

	// Tick is a cron spec or interval (see runner.ParseSchedule).
	// Default: "*/30 * * * *".
	Tick string `json:"tick,omitempty"`

	// TimelinePath points at the timeline source (presets + custom).
	// Relative paths resolve against the config file's directory.
	TimelinePath string `json:"timeline_path,omitempty"`
}

// IsEnabled reports the effective enabled flag.
func (s ScheduleConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// Selector maps the schedule section onto a timeline selector.
func (s ScheduleConfig) Selector() timeline.Selector {
	return timeline.Selector{Enabled: s.IsEnabled(), Preset: strings.TrimSpace(s.Preset)}
}

// StorageConfig selects the execution ledger backend.
//
// Example:
//
//	storage: { driver: sqlite, path: ./data/ledger.db, retention: 168h }
//
// Drivers: memory, file, sqlite, postgres (dsn), redis (addr/password/db).
// Durations are Go duration strings.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	Addr        string `json:"addr,omitempty"`
	Password    string `json:"password,omitempty"`
	DB          int    `json:"db,omitempty"`
	KeyPrefix   string `json:"key_prefix,omitempty"`
	Retention   string `json:"retention,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// DebugConfig controls the optional local HTTP debug server
// (/healthz, /status, /schedule and optionally /debug/pprof/).
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
}
