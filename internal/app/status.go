package app

import (
	"time"

	"radarsched/internal/runner"
	"radarsched/internal/runtime/supervisor"
	"radarsched/internal/timeline"
)

// Status is served on the debug server's /status endpoint.
type Status struct {
	Now        time.Time          `json:"now"`
	NextTick   time.Time          `json:"next_tick"`
	Enabled    bool               `json:"enabled"`
	Ledger     bool               `json:"ledger"`
	LastTick   *TickStatus        `json:"last_tick,omitempty"`
	BusDropped uint64             `json:"bus_dropped"`
	Goroutines []supervisor.Stats `json:"goroutines,omitempty"`
}

type TickStatus struct {
	ID         string                     `json:"id"`
	At         time.Time                  `json:"at"`
	Date       string                     `json:"date"`
	DayPlan    string                     `json:"day_plan"`
	PeriodID   string                     `json:"period_id,omitempty"`
	Dispatched []timeline.Action          `json:"dispatched,omitempty"`
	Skipped    map[timeline.Action]string `json:"skipped,omitempty"`
	Failed     map[timeline.Action]string `json:"failed,omitempty"`
}

func tickStatus(rep runner.TickReport) *TickStatus {
	ts := &TickStatus{
		ID:         rep.ID,
		At:         rep.At,
		Date:       rep.Date,
		DayPlan:    rep.Schedule.DayPlanID,
		PeriodID:   rep.Schedule.PeriodID,
		Dispatched: rep.Dispatched,
		Skipped:    rep.Skipped,
	}
	if len(rep.Failed) > 0 {
		ts.Failed = make(map[timeline.Action]string, len(rep.Failed))
		for a, err := range rep.Failed {
			ts.Failed[a] = err.Error()
		}
	}
	return ts
}

// Status snapshots the running app.
func (a *App) Status() Status {
	st := Status{
		Now:        time.Now(),
		NextTick:   a.runner.Next(),
		Ledger:     a.hasLedger,
		BusDropped: a.bus.Dropped(),
	}
	if r := a.runner.Resolver(); r != nil {
		st.Now = r.Now()
		st.Enabled = r.Enabled()
	}
	if rep, ok := a.runner.LastReport(); ok {
		st.LastTick = tickStatus(rep)
	}
	if a.sup != nil {
		st.Goroutines = a.sup.Snapshot()
	}
	return st
}

func (a *App) resolveNow() (timeline.ResolvedSchedule, error) {
	r := a.runner.Resolver()
	if r == nil {
		return timeline.ResolvedSchedule{}, errNoResolver
	}
	return r.ResolveNow()
}
