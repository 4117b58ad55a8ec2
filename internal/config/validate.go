package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownDrivers = map[string]bool{
	"memory":   true,
	"file":     true,
	"sqlite":   true,
	"postgres": true,
	"redis":    true,
}

// Validate checks everything that can be checked without opening resources:
// timezone, storage section shape, durations and the selected timeline.
// The tick spec is checked by the runner, which owns the parser.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if _, err := LoadLocation("schedule.timezone", cfg.Schedule.Timezone); err != nil {
		return err
	}
	if err := validateStorage(cfg.Storage); err != nil {
		return err
	}
	if _, err := BuildTimeline(cfg); err != nil {
		return err
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	if s == nil {
		return nil
	}
	driver := strings.ToLower(strings.TrimSpace(s.Driver))
	if driver == "" {
		return nil
	}
	if !knownDrivers[driver] {
		return fmt.Errorf("storage.driver: unsupported %q", s.Driver)
	}
	switch driver {
	case "file", "sqlite":
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("storage.path: required for driver %q", driver)
		}
	case "postgres":
		if strings.TrimSpace(s.DSN) == "" {
			return errors.New("storage.dsn: required for driver \"postgres\"")
		}
	case "redis":
		if strings.TrimSpace(s.Addr) == "" {
			return errors.New("storage.addr: required for driver \"redis\"")
		}
	}
	if _, err := ParseDurationField("storage.retention", s.Retention); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
		return err
	}
	return nil
}
