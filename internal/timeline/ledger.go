package timeline

import (
	"context"
	"time"
)

// DateLayout is the date format used for ledger keys.
const DateLayout = "2006-01-02"

// Ledger is the durable record of (date, period_id, action) executions.
// Storage format, expiry and concurrency control belong to the implementation.
type Ledger interface {
	HasExecuted(ctx context.Context, date, periodID string, action Action) (bool, error)
	Record(ctx context.Context, date, periodID string, action Action) error
}

// AlreadyExecuted reports whether action already ran for periodID on date.
//
// The check and RecordExecution are separate calls; callers that need
// exactly-once behavior under concurrent ticks must serialize them.
func (r *Resolver) AlreadyExecuted(ctx context.Context, periodID string, action Action, date string) (bool, error) {
	if r.ledger == nil {
		return false, ErrNoLedger
	}
	return r.ledger.HasExecuted(ctx, date, periodID, action)
}

// RecordExecution marks action as executed for periodID on date.
func (r *Resolver) RecordExecution(ctx context.Context, periodID string, action Action, date string) error {
	if r.ledger == nil {
		return ErrNoLedger
	}
	return r.ledger.Record(ctx, date, periodID, action)
}

// Today returns the clock supplier's current date in DateLayout.
func (r *Resolver) Today() string { return FormatDate(r.Now()) }

// FormatDate renders t as a ledger date.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }
