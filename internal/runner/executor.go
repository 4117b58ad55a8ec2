package runner

import (
	"context"

	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

// Executor performs one action for a resolved schedule.
// A returned error means the action did not happen; it is not recorded in
// the ledger and will be attempted again on the next tick.
type Executor interface {
	Execute(ctx context.Context, action timeline.Action, sched timeline.ResolvedSchedule) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, action timeline.Action, sched timeline.ResolvedSchedule) error

func (f ExecutorFunc) Execute(ctx context.Context, action timeline.Action, sched timeline.ResolvedSchedule) error {
	return f(ctx, action, sched)
}

// LogExecutor only logs what would run.
type LogExecutor struct {
	Log logx.Logger
}

func (e LogExecutor) Execute(ctx context.Context, action timeline.Action, sched timeline.ResolvedSchedule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := e.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	fields := []logx.Field{
		logx.String("action", string(action)),
		logx.String("period", periodLabel(sched)),
	}
	switch action {
	case timeline.ActionAnalyze:
		fields = append(fields, logx.String("ai_mode", sched.AIMode))
	case timeline.ActionPush:
		fields = append(fields, logx.String("report_mode", sched.ReportMode))
	}
	log.Info("action executed", fields...)
	return nil
}

func periodLabel(s timeline.ResolvedSchedule) string {
	if s.PeriodID == "" {
		return "default"
	}
	return s.PeriodID
}
