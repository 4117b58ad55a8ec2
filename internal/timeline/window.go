package timeline

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	clockLayout     = "15:04"
	lastMinuteOfDay = 24*60 - 1
)

var reClock = regexp.MustCompile(`^\d{2}:\d{2}$`)

// ParseClock converts a strict zero-padded "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	if !reClock.MatchString(s) {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return h*60 + m, nil
}

// FormatClock renders t as "HH:MM" in t's own location.
func FormatClock(t time.Time) string { return t.Format(clockLayout) }

// ISOWeekday returns 1=Monday ... 7=Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Window is a closed [Start, End] wall-clock window.
// Start > End means the window crosses midnight.
type Window struct {
	Start string
	End   string
}

func (w Window) String() string { return w.Start + "-" + w.End }

// Wraps reports whether the window crosses midnight.
func (w Window) Wraps() bool { return w.Start > w.End }

// Contains reports whether clock (zero-padded HH:MM) falls inside the window.
// Both bounds are inclusive.
func (w Window) Contains(clock string) bool {
	if w.Wraps() {
		return clock >= w.Start || clock <= w.End
	}
	return w.Start <= clock && clock <= w.End
}

type segment struct{ from, to int }

// segments expands the window into minute ranges; a wrapping window becomes
// [start, 23:59] and [00:00, end].
func (w Window) segments() ([]segment, error) {
	s, err := ParseClock(w.Start)
	if err != nil {
		return nil, err
	}
	e, err := ParseClock(w.End)
	if err != nil {
		return nil, err
	}
	if s <= e {
		return []segment{{s, e}}, nil
	}
	return []segment{{s, lastMinuteOfDay}, {0, e}}, nil
}

// Overlaps reports whether any minute is covered by both windows.
// Windows that fail to parse never overlap.
func (w Window) Overlaps(o Window) bool {
	a, err := w.segments()
	if err != nil {
		return false
	}
	b, err := o.segments()
	if err != nil {
		return false
	}
	for _, x := range a {
		for _, y := range b {
			if x.from <= y.to && y.from <= x.to {
				return true
			}
		}
	}
	return false
}
