package timeline

import (
	"fmt"
	"time"
)

// Resolver maps instants to ResolvedSchedules for one validated Timeline.
// It keeps no mutable state, so concurrent Resolve calls are safe.
type Resolver struct {
	tl       *Timeline
	enabled  bool
	observer Observer
	clock    func() time.Time
	ledger   Ledger
}

type Option func(*Resolver)

// WithEnabled toggles scheduling. A disabled resolver turns everything on.
func WithEnabled(enabled bool) Option { return func(r *Resolver) { r.enabled = enabled } }

// WithObserver installs a diagnostic event sink.
func WithObserver(fn Observer) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.observer = fn
		}
	}
}

// WithClock sets the supplier of the already-localized current time.
func WithClock(fn func() time.Time) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.clock = fn
		}
	}
}

// WithLedger sets the once-dedup ledger.
func WithLedger(l Ledger) Option { return func(r *Resolver) { r.ledger = l } }

// NewResolver wraps tl, which must already be validated when scheduling is
// enabled. Resolving against an unvalidated timeline is a programmer error and
// surfaces as a *ConfigError.
func NewResolver(tl *Timeline, opts ...Option) *Resolver {
	r := &Resolver{
		tl:       tl,
		enabled:  true,
		observer: nopObserver,
		clock:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Resolver) Timeline() *Timeline { return r.tl }

func (r *Resolver) Enabled() bool { return r.enabled }

// Now returns the clock supplier's current time.
func (r *Resolver) Now() time.Time { return r.clock() }

// ResolveNow resolves the clock supplier's current time.
func (r *Resolver) ResolveNow() (ResolvedSchedule, error) { return r.Resolve(r.Now()) }

// Resolve resolves the wall-clock weekday and HH:MM of now. now is used as
// given; time zone conversion is the caller's job.
func (r *Resolver) Resolve(now time.Time) (ResolvedSchedule, error) {
	return r.ResolveAt(ISOWeekday(now), FormatClock(now))
}

// ResolveAt resolves an ISO weekday and a zero-padded HH:MM clock.
func (r *Resolver) ResolveAt(weekday int, clock string) (ResolvedSchedule, error) {
	if !r.enabled {
		return disabledSchedule(), nil
	}
	if _, err := ParseClock(clock); err != nil {
		return ResolvedSchedule{}, fmt.Errorf("timeline: resolve: %w", err)
	}
	tl := r.tl
	if tl == nil {
		return ResolvedSchedule{}, configErrorf("", "resolve called without a timeline")
	}

	planID, ok := tl.WeekMap[weekday]
	if !ok {
		return ResolvedSchedule{}, configErrorf("week_map", "missing weekday %d; the timeline was not validated", weekday)
	}
	plan, ok := tl.DayPlans[planID]
	if !ok {
		return ResolvedSchedule{}, configErrorf(fmt.Sprintf("week_map[%d]", weekday), "references unknown day_plan %q; the timeline was not validated", planID)
	}

	matched := matchPeriods(tl, plan, clock)
	var active *Period
	switch len(matched) {
	case 0:
	case 1:
		active = tl.Periods[matched[0]]
	default:
		policy := tl.Overlap.EffectivePolicy()
		if policy != PolicyLastWins {
			return ResolvedSchedule{}, &ConfigError{
				Section: "day_plans." + planID,
				Msg:     fmt.Sprintf("periods %v overlap at %s; the timeline was not validated", matched, clock),
			}
		}
		winner := matched[len(matched)-1]
		active = tl.Periods[winner]
		r.observer(Event{
			Kind:    EventOverlap,
			Weekday: weekday,
			Clock:   clock,
			DayPlan: planID,
			Matched: matched,
			Winner:  winner,
			Policy:  policy,
		})
	}

	var overrides *Overrides
	if active != nil {
		overrides = &active.Overrides
	}
	profile := Merge(tl.Default, overrides)

	out := ResolvedSchedule{
		DayPlanID:   planID,
		Collect:     profile.Collect,
		Analyze:     profile.Analyze,
		Push:        profile.Push,
		ReportMode:  profile.ReportMode,
		AIMode:      profile.EffectiveAIMode(),
		OnceAnalyze: profile.Once.Analyze,
		OncePush:    profile.Once.Push,
		Weekday:     weekday,
		Clock:       clock,
	}
	ev := Event{Kind: EventResolved, Weekday: weekday, Clock: clock, DayPlan: planID}
	if active != nil {
		out.PeriodID = periodID(active, matched)
		out.PeriodName = active.Name
		ev.Window = active.Window()
	}
	if len(matched) > 1 {
		out.Conflicts = matched
	}
	ev.Schedule = &out
	r.observer(ev)
	return out, nil
}

// matchPeriods returns the IDs of every period in plan containing clock, in
// list order. Dangling references are skipped.
func matchPeriods(tl *Timeline, plan *DayPlan, clock string) []string {
	if plan == nil {
		return nil
	}
	var out []string
	for _, id := range plan.Periods {
		p := tl.Periods[id]
		if p == nil {
			continue
		}
		if p.Window().Contains(clock) {
			out = append(out, id)
		}
	}
	return out
}

// periodID prefers the stamped ID and falls back to the matched key for
// timelines that did not go through Build.
func periodID(p *Period, matched []string) string {
	if p.ID != "" {
		return p.ID
	}
	return matched[len(matched)-1]
}

// disabledSchedule turns everything on. AIMode is reported already resolved
// (follow_report against the current report mode), like every other
// ResolvedSchedule, so consumers never see follow_report.
func disabledSchedule() ResolvedSchedule {
	return ResolvedSchedule{
		DayPlanID:  DisabledDayPlan,
		Collect:    true,
		Analyze:    true,
		Push:       true,
		ReportMode: ReportModeCurrent,
		AIMode:     ReportModeCurrent,
	}
}
