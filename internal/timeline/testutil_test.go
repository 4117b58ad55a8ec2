package timeline

import (
	"context"
	"sync"
	"testing"
)

// scenarioTimeline is the workday timeline used across resolver tests.
func scenarioTimeline() *Timeline {
	return &Timeline{
		Default: &Overrides{
			Collect:    ptr(true),
			Analyze:    ptr(false),
			Push:       ptr(false),
			ReportMode: ptr(ReportModeCurrent),
			AIMode:     ptr(AIModeFollowReport),
			Once:       &OnceOverrides{Analyze: ptr(false), Push: ptr(false)},
		},
		Periods: map[string]*Period{
			"morning": {
				Name:  "Morning",
				Start: "07:00",
				End:   "09:00",
				Overrides: Overrides{
					Analyze:    ptr(true),
					Push:       ptr(true),
					ReportMode: ptr("summary"),
				},
			},
			"night": {
				Name:      "Night",
				Start:     "22:00",
				End:       "06:00",
				Overrides: Overrides{Collect: ptr(false)},
			},
		},
		DayPlans: map[string]*DayPlan{
			"workday": {Periods: []string{"morning", "night"}},
		},
		WeekMap: everyDay("workday"),
	}
}

func mustBuild(t testing.TB, tl *Timeline) *Timeline {
	t.Helper()
	out, err := Build(Selector{Enabled: true, Preset: PresetCustom}, Source{Custom: tl})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return out
}

type memLedger struct {
	mu   sync.Mutex
	seen map[[3]string]bool
}

func newMemLedger() *memLedger { return &memLedger{seen: map[[3]string]bool{}} }

func (l *memLedger) HasExecuted(_ context.Context, date, periodID string, action Action) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen[[3]string{date, periodID, string(action)}], nil
}

func (l *memLedger) Record(_ context.Context, date, periodID string, action Action) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[[3]string{date, periodID, string(action)}] = true
	return nil
}
