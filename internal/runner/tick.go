package runner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"radarsched/internal/eventbus"
	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

// Skip reasons reported in TickReport and action.skipped events.
const (
	ReasonAlreadyExecuted = "already_executed"
	ReasonLedgerError     = "ledger_error"
)

// ActionEvent is the payload of action.* bus events.
type ActionEvent struct {
	TickID   string          `json:"tick_id"`
	Date     string          `json:"date"`
	Action   timeline.Action `json:"action"`
	PeriodID string          `json:"period_id,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Err      string          `json:"err,omitempty"`
}

// TickReport summarizes one tick.
type TickReport struct {
	ID         string
	At         time.Time
	Date       string
	Schedule   timeline.ResolvedSchedule
	Dispatched []timeline.Action
	Skipped    map[timeline.Action]string
	Failed     map[timeline.Action]error
}

// Tick resolves the schedule for the resolver's current time and runs the
// enabled actions.
//
// Collect runs whenever enabled. Analyze and push with their once flag set
// run at most once per (date, period) while a period is active: the ledger
// is checked first and written after a successful run. Without a ledger they
// run every tick. A failed action is not recorded.
func (s *Service) Tick(ctx context.Context) (TickReport, error) {
	r := s.Resolver()
	if r == nil {
		return TickReport{}, errNoResolver
	}

	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := r.Now()
	rep := TickReport{
		ID:      uuid.NewString(),
		At:      now,
		Date:    timeline.FormatDate(now),
		Skipped: map[timeline.Action]string{},
		Failed:  map[timeline.Action]error{},
	}
	log := s.log.With(logx.String("tick_id", rep.ID))

	sched, err := r.Resolve(now)
	if err != nil {
		return rep, err
	}
	rep.Schedule = sched
	logSummary(log, sched)

	for _, action := range sched.Actions() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		dedup := sched.Once(action) && sched.Active()
		if dedup {
			done, err := r.AlreadyExecuted(ctx, sched.PeriodID, action, rep.Date)
			switch {
			case errors.Is(err, timeline.ErrNoLedger):
				s.noLedgerOnce.Do(func() {
					log.Debug("no execution ledger; once-per-day actions run every tick")
				})
				dedup = false
			case err != nil:
				log.Warn("ledger check failed; skipping action",
					logx.String("action", string(action)), logx.Any("err", err))
				rep.Skipped[action] = ReasonLedgerError
				s.publish(eventbus.TypeActionSkipped, rep, sched, action, ReasonLedgerError, err)
				continue
			case done:
				log.Debug("action already executed today",
					logx.String("action", string(action)), logx.String("period", sched.PeriodID))
				rep.Skipped[action] = ReasonAlreadyExecuted
				s.publish(eventbus.TypeActionSkipped, rep, sched, action, ReasonAlreadyExecuted, nil)
				continue
			}
		}

		if err := s.exec.Execute(ctx, action, sched); err != nil {
			log.Warn("action failed", logx.String("action", string(action)), logx.Any("err", err))
			rep.Failed[action] = err
			s.publish(eventbus.TypeActionFailed, rep, sched, action, "", err)
			continue
		}
		rep.Dispatched = append(rep.Dispatched, action)
		s.publish(eventbus.TypeActionDispatched, rep, sched, action, "", nil)

		if dedup {
			if err := r.RecordExecution(ctx, sched.PeriodID, action, rep.Date); err != nil {
				log.Warn("ledger record failed", logx.String("action", string(action)), logx.Any("err", err))
			}
		}
	}
	s.last.Store(&rep)
	return rep, nil
}

// LastReport returns the report of the last completed tick.
func (s *Service) LastReport() (TickReport, bool) {
	rep := s.last.Load()
	if rep == nil {
		return TickReport{}, false
	}
	return *rep, true
}

func (s *Service) publish(typ string, rep TickReport, sched timeline.ResolvedSchedule, action timeline.Action, reason string, err error) {
	if s.bus == nil {
		return
	}
	ev := ActionEvent{
		TickID:   rep.ID,
		Date:     rep.Date,
		Action:   action,
		PeriodID: sched.PeriodID,
		Reason:   reason,
	}
	if err != nil {
		ev.Err = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: rep.At, Data: ev})
}

func logSummary(log logx.Logger, sched timeline.ResolvedSchedule) {
	actions := sched.Actions()
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, string(a))
	}
	fields := []logx.Field{
		logx.Int("weekday", sched.Weekday),
		logx.String("clock", sched.Clock),
		logx.String("day_plan", sched.DayPlanID),
		logx.String("period", periodLabel(sched)),
		logx.Strings("actions", names),
		logx.String("ai_mode", sched.AIMode),
		logx.String("report_mode", sched.ReportMode),
	}
	if len(sched.Conflicts) > 0 {
		fields = append(fields, logx.Strings("conflicts", sched.Conflicts))
	}
	log.Info("schedule resolved", fields...)
}
