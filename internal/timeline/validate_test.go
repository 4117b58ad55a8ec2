package timeline

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
)

func validateErr(t *testing.T, tl *Timeline) *ConfigError {
	t.Helper()
	err := Validate(tl)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T: %v", err, err)
	}
	return cfgErr
}

func TestValidateScenario(t *testing.T) {
	t.Parallel()
	if err := Validate(mustBuild(t, scenarioTimeline())); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateMissingSections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		section string
		mutate  func(tl *Timeline)
	}{
		{"default", func(tl *Timeline) { tl.Default = nil }},
		{"periods", func(tl *Timeline) { tl.Periods = nil }},
		{"day_plans", func(tl *Timeline) { tl.DayPlans = nil }},
		{"week_map", func(tl *Timeline) { tl.WeekMap = nil }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.section, func(t *testing.T) {
			t.Parallel()
			tl := scenarioTimeline()
			tt.mutate(tl)
			if got := validateErr(t, tl); got.Section != tt.section {
				t.Fatalf("Section = %q, want %q", got.Section, tt.section)
			}
		})
	}
}

func TestValidateWeekMap(t *testing.T) {
	t.Parallel()

	tl := mustBuild(t, scenarioTimeline())
	delete(tl.WeekMap, 7)
	if got := validateErr(t, tl); !strings.Contains(got.Msg, "weekday 7") {
		t.Fatalf("unexpected error: %v", got)
	}

	tl = mustBuild(t, scenarioTimeline())
	tl.WeekMap[8] = "workday"
	if got := validateErr(t, tl); !strings.Contains(got.Msg, "out of range") {
		t.Fatalf("unexpected error: %v", got)
	}

	tl = mustBuild(t, scenarioTimeline())
	tl.WeekMap[6] = "weekend"
	if got := validateErr(t, tl); got.Section != "week_map[6]" || !strings.Contains(got.Msg, "weekend") {
		t.Fatalf("unexpected error: %v", got)
	}
}

func TestValidateDanglingPeriod(t *testing.T) {
	t.Parallel()
	tl := mustBuild(t, scenarioTimeline())
	tl.DayPlans["workday"].Periods = append(tl.DayPlans["workday"].Periods, "lunch")
	got := validateErr(t, tl)
	if got.Section != "day_plans.workday" || !strings.Contains(got.Msg, "lunch") {
		t.Fatalf("unexpected error: %v", got)
	}
}

func TestValidateRejectsEmptyDayPlan(t *testing.T) {
	t.Parallel()
	tl := mustBuild(t, scenarioTimeline())
	tl.DayPlans["workday"] = nil
	got := validateErr(t, tl)
	if got.Section != "day_plans.workday" {
		t.Fatalf("Section = %q, want day_plans.workday", got.Section)
	}

	// an explicit empty list is fine
	tl = mustBuild(t, scenarioTimeline())
	tl.DayPlans["workday"] = &DayPlan{ID: "workday", Periods: []string{}}
	if err := Validate(tl); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidatePeriodTimes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		start, end string
		section    string
	}{
		{name: "missing start", start: "", end: "09:00", section: "periods.morning"},
		{name: "missing end", start: "07:00", end: "", section: "periods.morning"},
		{name: "unpadded", start: "7:00", end: "09:00", section: "periods.morning.start"},
		{name: "hour range", start: "07:00", end: "24:00", section: "periods.morning.end"},
		{name: "minute range", start: "07:60", end: "09:00", section: "periods.morning.start"},
		{name: "garbage", start: "07:00", end: "late", section: "periods.morning.end"},
		{name: "equal bounds", start: "08:00", end: "08:00", section: "periods.morning"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tl := mustBuild(t, scenarioTimeline())
			tl.Periods["morning"].Start = tt.start
			tl.Periods["morning"].End = tt.end
			if got := validateErr(t, tl); got.Section != tt.section {
				t.Fatalf("Section = %q, want %q (%v)", got.Section, tt.section, got)
			}
		})
	}
}

func TestValidateEqualBoundsRegardlessOfOtherFields(t *testing.T) {
	t.Parallel()
	for _, clock := range []string{"00:00", "12:00", "23:59"} {
		tl := mustBuild(t, scenarioTimeline())
		tl.Overlap.Policy = PolicyLastWins
		tl.Periods["unused"] = &Period{ID: "unused", Start: clock, End: clock, Overrides: Overrides{Push: ptr(true)}}
		got := validateErr(t, tl)
		if got.Section != "periods.unused" || !strings.Contains(got.Msg, "differ") {
			t.Fatalf("unexpected error for %s: %v", clock, got)
		}
	}
}

func overlappingTimeline(policy OverlapPolicy) *Timeline {
	tl := scenarioTimeline()
	tl.Periods = map[string]*Period{
		"first":  {Start: "08:00", End: "09:00", Overrides: Overrides{Push: ptr(true)}},
		"second": {Start: "08:30", End: "09:30", Overrides: Overrides{Analyze: ptr(true)}},
	}
	tl.DayPlans = map[string]*DayPlan{"workday": {Periods: []string{"first", "second"}}}
	tl.Overlap.Policy = policy
	return tl
}

func TestValidateOverlapErrorPolicy(t *testing.T) {
	t.Parallel()
	got := validateErr(t, mustBuild(t, overlappingTimeline(PolicyErrorOnOverlap)))
	if len(got.Conflicts) != 1 {
		t.Fatalf("Conflicts = %v, want one pair", got.Conflicts)
	}
	c := got.Conflicts[0]
	if c.A != "first" || c.B != "second" || c.DayPlan != "workday" {
		t.Fatalf("unexpected conflict: %+v", c)
	}
	msg := got.Error()
	for _, want := range []string{"first", "second", "08:00-09:00", "08:30-09:30"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q does not mention %q", msg, want)
		}
	}

	// Omitted policy behaves like error_on_overlap.
	if err := Validate(mustBuild(t, overlappingTimeline(""))); err == nil {
		t.Fatal("expected overlap error with default policy")
	}
}

func TestValidateOverlapLastWinsPasses(t *testing.T) {
	t.Parallel()
	if err := Validate(mustBuild(t, overlappingTimeline(PolicyLastWins))); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateOverlapAcrossMidnight(t *testing.T) {
	t.Parallel()
	tl := scenarioTimeline()
	tl.Periods["early"] = &Period{Start: "05:00", End: "07:30"}
	tl.DayPlans["workday"].Periods = []string{"night", "early", "morning"}
	got := validateErr(t, mustBuild(t, tl))
	// night (22:00-06:00) hits early, early hits morning.
	if len(got.Conflicts) != 2 {
		t.Fatalf("Conflicts = %v, want 2", got.Conflicts)
	}
}

func TestValidateUnknownPolicy(t *testing.T) {
	t.Parallel()
	tl := mustBuild(t, scenarioTimeline())
	tl.Overlap.Policy = "first_wins"
	if got := validateErr(t, tl); got.Section != "overlap.policy" {
		t.Fatalf("unexpected error: %v", got)
	}
}

func TestWeekMapTotalityProperty(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	clock := func() string { return fmt.Sprintf("%02d:%02d", rng.Intn(24), rng.Intn(60)) }

	for iter := 0; iter < 200; iter++ {
		tl := &Timeline{
			Default:  &Overrides{},
			Periods:  map[string]*Period{},
			DayPlans: map[string]*DayPlan{},
			WeekMap:  WeekMap{},
			Overlap:  OverlapConfig{Policy: PolicyLastWins},
		}
		nPeriods := rng.Intn(6)
		ids := make([]string, 0, nPeriods)
		for i := 0; i < nPeriods; i++ {
			start, end := clock(), clock()
			for start == end {
				end = clock()
			}
			id := fmt.Sprintf("p%d", i)
			tl.Periods[id] = &Period{Start: start, End: end, Overrides: Overrides{Push: ptr(rng.Intn(2) == 0)}}
			ids = append(ids, id)
		}
		nPlans := 1 + rng.Intn(3)
		plans := make([]string, 0, nPlans)
		for i := 0; i < nPlans; i++ {
			id := fmt.Sprintf("plan%d", i)
			var list []string
			for _, pid := range ids {
				if rng.Intn(2) == 0 {
					list = append(list, pid)
				}
			}
			tl.DayPlans[id] = &DayPlan{Periods: list}
			plans = append(plans, id)
		}
		for d := 1; d <= 7; d++ {
			tl.WeekMap[d] = plans[rng.Intn(len(plans))]
		}

		built := mustBuild(t, tl)
		if err := Validate(built); err != nil {
			t.Fatalf("iter %d: Validate: %v", iter, err)
		}
		r := NewResolver(built)
		for d := 1; d <= 7; d++ {
			got, err := r.ResolveAt(d, clock())
			if err != nil {
				t.Fatalf("iter %d weekday %d: %v", iter, d, err)
			}
			plan, ok := built.DayPlans[got.DayPlanID]
			if !ok {
				t.Fatalf("iter %d weekday %d: day plan %q does not exist", iter, d, got.DayPlanID)
			}
			if got.PeriodID != "" && !contains(plan.Periods, got.PeriodID) {
				t.Fatalf("iter %d weekday %d: period %q not in plan %v", iter, d, got.PeriodID, plan.Periods)
			}
		}
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
