package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radarsched/internal/eventbus"
	"radarsched/internal/storage"
	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

// recorder is an Executor that remembers calls and can fail chosen actions.
type recorder struct {
	mu    sync.Mutex
	calls []timeline.Action
	fail  map[timeline.Action]error
}

func (r *recorder) Execute(_ context.Context, a timeline.Action, _ timeline.ResolvedSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, a)
	return r.fail[a]
}

func (r *recorder) take() []timeline.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.calls
	r.calls = nil
	return out
}

type brokenLedger struct{}

func (brokenLedger) HasExecuted(context.Context, string, string, timeline.Action) (bool, error) {
	return false, errors.New("connection refused")
}

func (brokenLedger) Record(context.Context, string, string, timeline.Action) error {
	return errors.New("connection refused")
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func buildPreset(t *testing.T, preset string) *timeline.Timeline {
	t.Helper()
	tl, err := timeline.Build(timeline.Selector{Enabled: true, Preset: preset}, timeline.DefaultSource())
	require.NoError(t, err)
	require.NoError(t, timeline.Validate(tl))
	return tl
}

func newLedger(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "memory"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// 2024-01-01 is a Monday.
func at(day int, hhmm string) time.Time {
	ts, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return time.Date(2024, 1, day, ts.Hour(), ts.Minute(), 0, 0, time.UTC)
}

var allActions = []timeline.Action{timeline.ActionCollect, timeline.ActionAnalyze, timeline.ActionPush}

func TestTickRunsOnceActionsOncePerDay(t *testing.T) {
	t.Parallel()
	clk := &clock{now: at(1, "07:30")}
	rec := &recorder{}
	svc := New(Config{}, logx.Nop(), nil, rec)
	svc.SetResolver(timeline.NewResolver(buildPreset(t, "morning_evening"),
		timeline.WithClock(clk.Now), timeline.WithLedger(newLedger(t))))
	ctx := context.Background()

	rep, err := svc.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, "morning", rep.Schedule.PeriodID)
	assert.Equal(t, "2024-01-01", rep.Date)
	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, allActions, rec.take())

	clk.Set(at(1, "08:00"))
	rep, err = svc.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []timeline.Action{timeline.ActionCollect}, rec.take())
	assert.Equal(t, ReasonAlreadyExecuted, rep.Skipped[timeline.ActionAnalyze])
	assert.Equal(t, ReasonAlreadyExecuted, rep.Skipped[timeline.ActionPush])

	// evening is a different period
	clk.Set(at(1, "19:30"))
	_, err = svc.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, allActions, rec.take())

	// next day starts fresh
	clk.Set(at(2, "07:30"))
	_, err = svc.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, allActions, rec.take())
}

func TestTickWithoutLedgerRunsEveryTime(t *testing.T) {
	t.Parallel()
	clk := &clock{now: at(1, "07:30")}
	rec := &recorder{}
	svc := New(Config{}, logx.Nop(), nil, rec)
	svc.SetResolver(timeline.NewResolver(buildPreset(t, "morning_evening"), timeline.WithClock(clk.Now)))

	for i := 0; i < 2; i++ {
		rep, err := svc.Tick(context.Background())
		require.NoError(t, err)
		assert.Empty(t, rep.Skipped)
		assert.Equal(t, allActions, rec.take())
	}
}

func TestTickDoesNotRecordFailedAction(t *testing.T) {
	t.Parallel()
	clk := &clock{now: at(1, "07:30")}
	rec := &recorder{fail: map[timeline.Action]error{timeline.ActionPush: errors.New("gateway down")}}
	svc := New(Config{}, logx.Nop(), nil, rec)
	svc.SetResolver(timeline.NewResolver(buildPreset(t, "morning_evening"),
		timeline.WithClock(clk.Now), timeline.WithLedger(newLedger(t))))

	rep, err := svc.Tick(context.Background())
	require.NoError(t, err)
	assert.Contains(t, rep.Failed, timeline.ActionPush)
	assert.Equal(t, []timeline.Action{timeline.ActionCollect, timeline.ActionAnalyze}, rep.Dispatched)
	rec.take()

	rec.mu.Lock()
	rec.fail = nil
	rec.mu.Unlock()
	rep, err = svc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []timeline.Action{timeline.ActionCollect, timeline.ActionPush}, rec.take())
	assert.Equal(t, ReasonAlreadyExecuted, rep.Skipped[timeline.ActionAnalyze])
}

func TestTickDefaultProfileAndDisabled(t *testing.T) {
	t.Parallel()
	clk := &clock{now: at(1, "12:00")}
	rec := &recorder{}
	svc := New(Config{}, logx.Nop(), nil, rec)
	svc.SetResolver(timeline.NewResolver(buildPreset(t, "morning_evening"),
		timeline.WithClock(clk.Now), timeline.WithLedger(brokenLedger{})))

	rep, err := svc.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Schedule.Active())
	assert.Equal(t, []timeline.Action{timeline.ActionCollect}, rec.take())

	svc.SetResolver(timeline.NewResolver(nil, timeline.WithEnabled(false),
		timeline.WithClock(clk.Now), timeline.WithLedger(brokenLedger{})))
	rep, err = svc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, timeline.DisabledDayPlan, rep.Schedule.DayPlanID)
	assert.Equal(t, allActions, rec.take())
	assert.Empty(t, rep.Skipped)
}

func TestTickSkipsOnLedgerError(t *testing.T) {
	t.Parallel()
	clk := &clock{now: at(1, "07:30")}
	rec := &recorder{}
	bus := eventbus.New()
	skipped, unsub := bus.Subscribe(8, eventbus.TypeActionSkipped)
	defer unsub()

	svc := New(Config{}, logx.Nop(), bus, rec)
	svc.SetResolver(timeline.NewResolver(buildPreset(t, "morning_evening"),
		timeline.WithClock(clk.Now), timeline.WithLedger(brokenLedger{})))

	rep, err := svc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []timeline.Action{timeline.ActionCollect}, rec.take())
	assert.Equal(t, ReasonLedgerError, rep.Skipped[timeline.ActionAnalyze])
	require.Len(t, skipped, 2)
	ev := (<-skipped).Data.(ActionEvent)
	assert.Equal(t, rep.ID, ev.TickID)
	assert.Equal(t, ReasonLedgerError, ev.Reason)
	assert.NotEmpty(t, ev.Err)
}

func TestTickPublishesDispatchedEvents(t *testing.T) {
	t.Parallel()
	clk := &clock{now: at(1, "07:30")}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8, eventbus.TypeActionDispatched)
	defer unsub()

	svc := New(Config{}, logx.Nop(), bus, &recorder{})
	svc.SetResolver(timeline.NewResolver(buildPreset(t, "morning_evening"), timeline.WithClock(clk.Now)))
	_, err := svc.Tick(context.Background())
	require.NoError(t, err)

	require.Len(t, ch, 3)
	ev := (<-ch).Data.(ActionEvent)
	assert.Equal(t, timeline.ActionCollect, ev.Action)
	assert.Equal(t, "morning", ev.PeriodID)
	assert.Equal(t, "2024-01-01", ev.Date)
}

func TestTickRequiresResolver(t *testing.T) {
	t.Parallel()
	svc := New(Config{}, logx.Nop(), nil, nil)
	_, err := svc.Tick(context.Background())
	assert.ErrorIs(t, err, errNoResolver)
}

func TestLastReport(t *testing.T) {
	t.Parallel()
	clk := &clock{now: at(1, "07:30")}
	svc := New(Config{}, logx.Nop(), nil, &recorder{})
	_, ok := svc.LastReport()
	assert.False(t, ok)

	svc.SetResolver(timeline.NewResolver(buildPreset(t, "morning_evening"), timeline.WithClock(clk.Now)))
	rep, err := svc.Tick(context.Background())
	require.NoError(t, err)

	last, ok := svc.LastReport()
	require.True(t, ok)
	assert.Equal(t, rep.ID, last.ID)
	assert.Equal(t, allActions, last.Dispatched)
}

func TestTickStopsOnCanceledContext(t *testing.T) {
	t.Parallel()
	clk := &clock{now: at(1, "07:30")}
	rec := &recorder{}
	svc := New(Config{}, logx.Nop(), nil, rec)
	svc.SetResolver(timeline.NewResolver(buildPreset(t, "morning_evening"), timeline.WithClock(clk.Now)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Tick(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.take())
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	svc := New(Config{Tick: "@hourly", Timezone: "UTC"}, logx.Nop(), nil, nil)
	require.NoError(t, svc.Start(context.Background()))
	next := svc.Next()
	assert.False(t, next.IsZero())
	assert.Equal(t, 0, next.Minute())

	require.NoError(t, svc.Apply(Config{Tick: "*/15 * * * *", Timezone: "UTC"}))
	assert.Zero(t, svc.Next().Minute()%15)
	assert.Error(t, svc.Apply(Config{Tick: "07:30"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	svc.Stop(ctx)
	assert.True(t, svc.Next().IsZero())

	bad := New(Config{Tick: "not a cron"}, logx.Nop(), nil, nil)
	assert.Error(t, bad.Start(context.Background()))
}
