package config

import (
	"sort"
	"strings"

	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like
// passwords or DSNs), and (3) the timeline entries that changed
// ("custom" or preset names).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Schedule
	oSch, nSch := oldCfg.Schedule, newCfg.Schedule
	if oSch.IsEnabled() != nSch.IsEnabled() ||
		strings.TrimSpace(oSch.Preset) != strings.TrimSpace(nSch.Preset) ||
		strings.TrimSpace(oSch.Timezone) != strings.TrimSpace(nSch.Timezone) ||
		strings.TrimSpace(oSch.Tick) != strings.TrimSpace(nSch.Tick) ||
		strings.TrimSpace(oSch.TimelinePath) != strings.TrimSpace(nSch.TimelinePath) {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.Bool("schedule.enabled", nSch.IsEnabled()),
			logx.String("schedule.preset", strings.TrimSpace(nSch.Preset)),
			logx.String("schedule.timezone", strings.TrimSpace(nSch.Timezone)),
			logx.String("schedule.tick", strings.TrimSpace(nSch.Tick)),
		)
	}

	// Storage. Nil means disabled.
	var oDriver, nDriver, oRet, nRet string
	var oTarget, nTarget uint64
	if s := oldCfg.Storage; s != nil {
		oDriver = strings.TrimSpace(s.Driver)
		oRet = strings.TrimSpace(s.Retention)
		oTarget = hashJSON(s)
	}
	if s := newCfg.Storage; s != nil {
		nDriver = strings.TrimSpace(s.Driver)
		nRet = strings.TrimSpace(s.Retention)
		nTarget = hashJSON(s)
	}
	if oTarget != nTarget {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.driver_changed", oDriver != nDriver),
			logx.String("storage.retention", nRet),
			logx.Bool("storage.retention_changed", oRet != nRet),
		)
	}

	// Debug server. The token is reported only as set/unset.
	var oDbg, nDbg DebugConfig
	if oldCfg.Debug != nil {
		oDbg = *oldCfg.Debug
	}
	if newCfg.Debug != nil {
		nDbg = *newCfg.Debug
	}
	if oDbg != nDbg {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", nDbg.Enabled),
			logx.String("debug.addr", strings.TrimSpace(nDbg.Addr)),
			logx.Bool("debug.pprof", nDbg.Pprof),
			logx.Bool("debug.token_set", nDbg.Token != ""),
		)
	}

	// Timeline (summarize only; details at debug)
	tlChanged := diffTimelines(oldCfg.Timeline, newCfg.Timeline)
	if len(tlChanged) > 0 {
		changed = append(changed, "timeline")
		attrs = append(attrs,
			logx.Int("timeline.changed_count", len(tlChanged)),
			logx.Int("timeline.preset_count", len(newCfg.Timeline.Presets)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, tlChanged
}

func diffTimelines(oldS, newS timeline.Source) []string {
	out := make([]string, 0)
	if hashJSON(oldS.Custom) != hashJSON(newS.Custom) {
		out = append(out, timeline.PresetCustom)
	}

	set := map[string]struct{}{}
	for k := range oldS.Presets {
		set[k] = struct{}{}
	}
	for k := range newS.Presets {
		set[k] = struct{}{}
	}
	for name := range set {
		o, oOK := oldS.Presets[name]
		n, nOK := newS.Presets[name]
		if oOK != nOK || hashJSON(o) != hashJSON(n) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
