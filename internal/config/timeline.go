package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"radarsched/internal/timeline"
)

// TimelinePath resolves cfg.Schedule.TimelinePath against the config file's
// directory. It returns "" when no timeline file is configured.
func TimelinePath(configPath string, cfg *Config) string {
	if cfg == nil {
		return ""
	}
	p := strings.TrimSpace(cfg.Schedule.TimelinePath)
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

// LoadTimelineSource reads a timeline source file (YAML or JSON) with the
// shape { presets: {name: timeline}, custom: timeline }.
func LoadTimelineSource(path string) (timeline.Source, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return timeline.Source{}, err
	}
	return parseTimelineSource(path, b)
}

func parseTimelineSource(path string, b []byte) (timeline.Source, error) {
	var src timeline.Source
	if err := decodeStrict(path, b, &src); err != nil {
		return timeline.Source{}, fmt.Errorf("timeline %s: %w", filepath.Base(path), err)
	}
	if src.Presets == nil {
		src.Presets = map[string]*timeline.Timeline{}
	}
	return src, nil
}

// BuildTimeline builds the timeline selected by cfg and validates it when
// scheduling is enabled.
func BuildTimeline(cfg *Config) (*timeline.Timeline, error) {
	sel := cfg.Schedule.Selector()
	tl, err := timeline.Build(sel, cfg.Timeline)
	if err != nil {
		return nil, err
	}
	if sel.Enabled {
		if err := timeline.Validate(tl); err != nil {
			return nil, err
		}
	}
	return tl, nil
}
