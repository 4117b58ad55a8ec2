package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"radarsched/internal/timeline"
)

var ErrDisabled = errors.New("storage disabled")

// DefaultRetention is how long execution records are kept when
// Config.Retention is zero.
const DefaultRetention = 7 * 24 * time.Hour

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver string

	Path string // file, sqlite
	DSN  string // postgres

	// redis
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	Retention   time.Duration // 0 means DefaultRetention
	BusyTimeout time.Duration // sqlite only; 0 means default
}

func (c Config) retention() time.Duration {
	if c.Retention <= 0 {
		return DefaultRetention
	}
	return c.Retention
}

// Store is an execution ledger with a lifecycle.
type Store interface {
	timeline.Ledger
	Close() error
}

// Execution is one ledger record.
type Execution struct {
	Date       string          `json:"date"`
	PeriodID   string          `json:"period_id"`
	Action     timeline.Action `json:"action"`
	ExecutedAt int64           `json:"executed_at"` // unix milli
	Until      int64           `json:"until"`       // unix milli
}

func (e Execution) key() string { return ledgerKey(e.Date, e.PeriodID, e.Action) }

func ledgerKey(date, periodID string, action timeline.Action) string {
	return date + "|" + periodID + "|" + string(action)
}

// checkKey rejects records that could never be looked up again.
func checkKey(date, periodID string, action timeline.Action) error {
	switch {
	case strings.TrimSpace(date) == "":
		return errors.New("ledger: date is required")
	case strings.TrimSpace(periodID) == "":
		return errors.New("ledger: period id is required")
	case strings.TrimSpace(string(action)) == "":
		return errors.New("ledger: action is required")
	}
	if _, err := time.Parse(timeline.DateLayout, date); err != nil {
		return fmt.Errorf("ledger: date %q: %w", date, err)
	}
	return nil
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
