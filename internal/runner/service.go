package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"radarsched/internal/eventbus"
	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

// Config controls the tick trigger.
type Config struct {
	// Tick is a cron spec or interval; see ParseSchedule.
	Tick string
	// Timezone is an IANA name for cron evaluation. Empty means time.Local.
	Timezone string
	// Timeout bounds one tick. 0 means 5m.
	Timeout time.Duration
}

const defaultTickTimeout = 5 * time.Minute

// Service triggers Tick on a cron schedule against the current resolver.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	log     logx.Logger
	bus     eventbus.Bus
	exec    Executor
	parser  cron.Parser
	c       *cron.Cron
	loc     *time.Location
	entryID cron.EntryID

	resolver atomic.Pointer[timeline.Resolver]
	last     atomic.Pointer[TickReport]

	// tickMu serializes ticks so the ledger check and record of one tick
	// never interleave with another.
	tickMu sync.Mutex

	noLedgerOnce sync.Once
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus, exec Executor) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if exec == nil {
		exec = LogExecutor{Log: log}
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		bus:    bus,
		exec:   exec,
		parser: newParser(),
	}
}

// SetResolver swaps the resolver used by subsequent ticks. A tick in flight
// keeps the resolver it started with.
func (s *Service) SetResolver(r *timeline.Resolver) { s.resolver.Store(r) }

func (s *Service) Resolver() *timeline.Resolver { return s.resolver.Load() }

// Apply updates the trigger config and re-registers the tick when it changed.
func (s *Service) Apply(cfg Config) error {
	if _, err := ParseSchedule(cfg.Tick); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cfg
	s.cfg = cfg
	if s.c == nil {
		return nil
	}
	if strings.TrimSpace(old.Timezone) != strings.TrimSpace(cfg.Timezone) ||
		strings.TrimSpace(old.Tick) != strings.TrimSpace(cfg.Tick) {
		s.restartLocked()
	}
	return nil
}

// Start starts cron triggering. It is a no-op when already started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	if _, err := ParseSchedule(s.cfg.Tick); err != nil {
		return err
	}
	s.log.Debug("start requested", logx.String("tick", s.cfg.Tick), logx.String("tz", strings.TrimSpace(s.cfg.Timezone)))
	if err := s.startLocked(ctx); err != nil {
		return err
	}
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.String("next", s.previewNextRunsLocked(3)))
	return nil
}

func (s *Service) startLocked(ctx context.Context) error {
	s.loc = s.loadLocationLocked()
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	ps, err := ParseSchedule(s.cfg.Tick)
	if err != nil {
		s.c = nil
		return err
	}
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTickTimeout
	}
	base := context.WithoutCancel(ctx)
	id, err := s.c.AddFunc(ps.Spec(), func() {
		tctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		if _, err := s.Tick(tctx); err != nil {
			s.log.Error("tick failed", logx.Any("err", err))
		}
	})
	if err != nil {
		s.c = nil
		return err
	}
	s.entryID = id
	s.c.Start()
	return nil
}

func (s *Service) restartLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	if err := s.startLocked(context.Background()); err != nil {
		s.log.Error("tick register failed", logx.String("tick", s.cfg.Tick), logx.Any("err", err))
		return
	}
	s.log.Info("tick re-registered", logx.String("tick", s.cfg.Tick), logx.String("tz", s.loc.String()))
}

// Stop stops cron triggering and waits for a running tick, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Next returns the next trigger time, or zero when not started.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(s.entryID).Next
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Any("err", err))
		return time.Local
	}
	return loc
}

func (s *Service) previewNextRunsLocked(n int) string {
	ps, err := ParseSchedule(s.cfg.Tick)
	if err != nil {
		return ""
	}
	sched, err := s.parser.Parse(ps.Spec())
	if err != nil {
		return ""
	}
	t := time.Now().In(s.loc)
	var b strings.Builder
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Format("2006-01-02 15:04"))
	}
	return b.String()
}

// cronLogger routes robfig/cron's own logging into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Any("err", err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}

var errNoResolver = errors.New("runner: no resolver installed")
