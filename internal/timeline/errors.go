package timeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoLedger is returned by once-dedup calls on a Resolver built without a Ledger.
var ErrNoLedger = errors.New("timeline: no execution ledger configured")

// Conflict describes two periods of one day plan whose windows overlap.
type Conflict struct {
	DayPlan string
	A, B    string
	WindowA Window
	WindowB Window
}

func (c Conflict) String() string {
	return fmt.Sprintf("day_plan %q: period %q (%s) overlaps %q (%s)", c.DayPlan, c.A, c.WindowA, c.B, c.WindowB)
}

// ConfigError reports a timeline configuration problem.
// Section names the offending part (e.g. "week_map", "periods.morning").
type ConfigError struct {
	Section   string
	Msg       string
	Conflicts []Conflict
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("timeline: ")
	if e.Section != "" {
		b.WriteString(e.Section)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	for _, c := range e.Conflicts {
		b.WriteString("\n  - ")
		b.WriteString(c.String())
	}
	return b.String()
}

func configErrorf(section, format string, args ...any) *ConfigError {
	return &ConfigError{Section: section, Msg: fmt.Sprintf(format, args...)}
}
