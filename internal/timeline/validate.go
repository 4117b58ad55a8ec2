package timeline

import (
	"fmt"
	"sort"
)

// Validate checks a built timeline and returns the first problem found as a
// *ConfigError. Under PolicyErrorOnOverlap every overlapping pair of periods
// sharing a day plan is reported in ConfigError.Conflicts.
//
// Validate is only meaningful when scheduling is enabled; a disabled Resolver
// never reads the timeline.
func Validate(t *Timeline) error {
	if t == nil {
		return configErrorf("", "timeline is empty")
	}
	if err := validateSections(t); err != nil {
		return err
	}
	if err := validateWeekMap(t); err != nil {
		return err
	}
	if err := validateDayPlans(t); err != nil {
		return err
	}
	if err := validatePeriods(t); err != nil {
		return err
	}

	switch policy := t.Overlap.EffectivePolicy(); policy {
	case PolicyErrorOnOverlap:
		if conflicts := FindOverlaps(t); len(conflicts) > 0 {
			return &ConfigError{
				Section:   "day_plans",
				Msg:       fmt.Sprintf("%d overlapping period pair(s); adjust the windows or set overlap.policy to %q", len(conflicts), PolicyLastWins),
				Conflicts: conflicts,
			}
		}
	case PolicyLastWins:
	default:
		return configErrorf("overlap.policy", "unknown policy %q (want %q or %q)", policy, PolicyErrorOnOverlap, PolicyLastWins)
	}
	return nil
}

func validateSections(t *Timeline) error {
	switch {
	case t.Default == nil:
		return configErrorf("default", "missing required section")
	case t.Periods == nil:
		return configErrorf("periods", "missing required section")
	case t.DayPlans == nil:
		return configErrorf("day_plans", "missing required section")
	case t.WeekMap == nil:
		return configErrorf("week_map", "missing required section")
	}
	return nil
}

func validateWeekMap(t *Timeline) error {
	for day := 1; day <= 7; day++ {
		if _, ok := t.WeekMap[day]; !ok {
			return configErrorf("week_map", "missing weekday %d (1=Monday ... 7=Sunday)", day)
		}
	}
	for _, day := range sortedWeekdays(t.WeekMap) {
		if day < 1 || day > 7 {
			return configErrorf("week_map", "weekday %d out of range 1..7", day)
		}
		plan := t.WeekMap[day]
		if _, ok := t.DayPlans[plan]; !ok {
			return configErrorf(fmt.Sprintf("week_map[%d]", day), "references unknown day_plan %q", plan)
		}
	}
	return nil
}

func validateDayPlans(t *Timeline) error {
	for _, id := range sortedKeys(t.DayPlans) {
		dp := t.DayPlans[id]
		if dp == nil {
			return configErrorf("day_plans."+id, "is empty; list its periods (use periods: [] for none)")
		}
		for _, pid := range dp.Periods {
			if _, ok := t.Periods[pid]; !ok {
				return configErrorf("day_plans."+id, "references unknown period %q", pid)
			}
		}
	}
	return nil
}

func validatePeriods(t *Timeline) error {
	for _, id := range sortedKeys(t.Periods) {
		p := t.Periods[id]
		section := "periods." + id
		if p == nil || p.Start == "" || p.End == "" {
			return configErrorf(section, "both start and end are required")
		}
		if _, err := ParseClock(p.Start); err != nil {
			return configErrorf(section+".start", "%v", err)
		}
		if _, err := ParseClock(p.End); err != nil {
			return configErrorf(section+".end", "%v", err)
		}
		if p.Start == p.End {
			return configErrorf(section, "start and end must differ (both %s)", p.Start)
		}
	}
	return nil
}

// FindOverlaps returns every pair of periods sharing a day plan whose windows
// overlap, ordered by day plan ID and then list position. Day plans with fewer
// than two periods are skipped.
func FindOverlaps(t *Timeline) []Conflict {
	var out []Conflict
	for _, planID := range sortedKeys(t.DayPlans) {
		dp := t.DayPlans[planID]
		if dp == nil || len(dp.Periods) < 2 {
			continue
		}
		for i := 0; i < len(dp.Periods); i++ {
			a := t.Periods[dp.Periods[i]]
			if a == nil {
				continue
			}
			for j := i + 1; j < len(dp.Periods); j++ {
				b := t.Periods[dp.Periods[j]]
				if b == nil {
					continue
				}
				if a.Window().Overlaps(b.Window()) {
					out = append(out, Conflict{
						DayPlan: planID,
						A:       dp.Periods[i],
						B:       dp.Periods[j],
						WindowA: a.Window(),
						WindowB: b.Window(),
					})
				}
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedWeekdays(m WeekMap) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
