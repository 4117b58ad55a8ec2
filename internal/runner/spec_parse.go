package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTick fires on the hour and half hour.
const DefaultTick = "*/30 * * * *"

// SpecKind describes the normalized kind of a tick string.
type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// ParsedSpec represents a parsed tick string.
//
// Supported forms:
//   - Cron: "*/30 * * * *", "0 */15 * * * *" (seconds), "@hourly", "@every 10m"
//   - Interval duration: "10m", "1h30m"
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "every:" forces interval parsing
//
// HH:MM is rejected to avoid confusing tick intervals with timeline clocks.
type ParsedSpec struct {
	Kind  SpecKind
	Cron  string
	Every time.Duration
}

// Spec returns the expression handed to robfig/cron.
func (p ParsedSpec) Spec() string {
	if p.Kind == SpecInterval {
		return "@every " + p.Every.String()
	}
	return p.Cron
}

func newParser() cron.Parser {
	// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
	return cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// ParseSchedule parses a tick string into either a cron expression or an
// interval and checks that robfig/cron accepts it. Empty means DefaultTick.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		s = DefaultTick
	}

	var ps ParsedSpec
	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return ParsedSpec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		ps = ParsedSpec{Kind: SpecCron, Cron: expr}
	case strings.HasPrefix(low, "every:"):
		d, err := parseInterval(s[len("every:"):])
		if err != nil {
			return ParsedSpec{}, err
		}
		ps = ParsedSpec{Kind: SpecInterval, Every: d}
	case strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@"):
		ps = ParsedSpec{Kind: SpecCron, Cron: s}
	case strings.Contains(s, ":"):
		return ParsedSpec{}, fmt.Errorf("invalid tick %q: HH:MM is not an interval; use a duration like '30m'", raw)
	default:
		d, err := parseInterval(s)
		if err != nil {
			return ParsedSpec{}, fmt.Errorf(
				"invalid tick %q (use cron like '*/30 * * * *' or duration like '30m')", raw,
			)
		}
		ps = ParsedSpec{Kind: SpecInterval, Every: d}
	}

	if _, err := newParser().Parse(ps.Spec()); err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid tick %q: %w", raw, err)
	}
	return ps, nil
}

func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("interval required")
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q (use a Go duration like '30m')", v)
	}
	if d < time.Second {
		return 0, fmt.Errorf("interval must be >= 1s")
	}
	return d, nil
}
