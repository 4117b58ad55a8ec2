package runner

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"radarsched/internal/eventbus"
	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

// overlapWarnEvery bounds overlap warnings per day plan.
const overlapWarnEvery = time.Hour

// NewObserver forwards resolver events to bus and logs overlaps, throttled
// per day plan.
func NewObserver(log logx.Logger, bus eventbus.Bus) timeline.Observer {
	if log.IsZero() {
		log = logx.Nop()
	}
	th := newThrottle(rate.Every(overlapWarnEvery), 1)
	return func(ev timeline.Event) {
		if bus != nil {
			bus.Publish(eventbus.Event{Type: string(ev.Kind), Data: ev})
		}
		if ev.Kind != timeline.EventOverlap {
			return
		}
		ok, suppressed := th.allow(ev.DayPlan)
		if !ok {
			return
		}
		log.Warn("overlapping periods; last one wins",
			logx.String("day_plan", ev.DayPlan),
			logx.String("clock", ev.Clock),
			logx.Any("matched", ev.Matched),
			logx.String("winner", ev.Winner),
			logx.Int("suppressed", suppressed),
		)
	}
}

// throttle keeps one token bucket per key and counts what it suppressed.
type throttle struct {
	mu         sync.Mutex
	limit      rate.Limit
	burst      int
	lims       map[string]*rate.Limiter
	suppressed map[string]int
	now        func() time.Time
}

func newThrottle(limit rate.Limit, burst int) *throttle {
	return &throttle{
		limit:      limit,
		burst:      burst,
		lims:       map[string]*rate.Limiter{},
		suppressed: map[string]int{},
		now:        time.Now,
	}
}

// allow reports whether key may log now, and how many calls were
// suppressed since the last allowed one.
func (t *throttle) allow(key string) (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	lim, ok := t.lims[key]
	if !ok {
		lim = rate.NewLimiter(t.limit, t.burst)
		t.lims[key] = lim
	}
	if !lim.AllowN(t.now(), 1) {
		t.suppressed[key]++
		return false, 0
	}
	n := t.suppressed[key]
	delete(t.suppressed, key)
	return true, n
}
