package storage

import (
	"context"
	"sync"
	"time"

	"radarsched/internal/timeline"
)

// memoryStore keeps records in process memory.
type memoryStore struct {
	mu        sync.Mutex
	recs      map[string]int64 // key -> until (unix milli)
	retention time.Duration
	now       func() time.Time
}

func newMemory(cfg Config, now func() time.Time) *memoryStore {
	return &memoryStore{
		recs:      map[string]int64{},
		retention: cfg.retention(),
		now:       now,
	}
}

func (s *memoryStore) HasExecuted(ctx context.Context, date, periodID string, action timeline.Action) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	if err := checkKey(date, periodID, action); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.recs[ledgerKey(date, periodID, action)]
	return ok && until >= s.now().UnixMilli(), nil
}

func (s *memoryStore) Record(ctx context.Context, date, periodID string, action timeline.Action) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if err := checkKey(date, periodID, action); err != nil {
		return err
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	pruneExpired(s.recs, now)
	s.recs[ledgerKey(date, periodID, action)] = now.Add(s.retention).UnixMilli()
	return nil
}

func (s *memoryStore) Close() error { return nil }

func pruneExpired(m map[string]int64, now time.Time) {
	ms := now.UnixMilli()
	for k, v := range m {
		if v < ms {
			delete(m, k)
		}
	}
}
