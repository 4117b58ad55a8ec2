package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

// fileStore is a dependency-free ledger backend.
//
// Files:
//   - <prefix>.ledger.snapshot.json (periodic snapshot)
//   - <prefix>.ledger.journal.jsonl (append-only journal)
//
// The journal is periodically compacted into the snapshot.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journal      *os.File
	recs         map[string]Execution

	retention    time.Duration
	now          func() time.Time
	writes       int
	compactEvery int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".ledger.snapshot.json"
	journalPath := prefix + ".ledger.journal.jsonl"

	now := time.Now
	recs := map[string]Execution{}
	if err := loadSnapshot(snapPath, recs); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("ledger snapshot unreadable; starting from journal", logx.Any("err", err))
	}
	if err := replayJournal(journalPath, recs); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("ledger journal replay failed", logx.Any("err", err))
	}
	pruneExpiredExecutions(recs, now())

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journal:      jf,
		recs:         recs,
		retention:    cfg.retention(),
		now:          now,
		compactEvery: 256,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

func (s *fileStore) HasExecuted(ctx context.Context, date, periodID string, action timeline.Action) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	if err := checkKey(date, periodID, action); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return false, errors.New("ledger journal closed")
	}
	e, ok := s.recs[ledgerKey(date, periodID, action)]
	return ok && e.Until >= s.now().UnixMilli(), nil
}

func (s *fileStore) Record(ctx context.Context, date, periodID string, action timeline.Action) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if err := checkKey(date, periodID, action); err != nil {
		return err
	}
	now := s.now()
	e := Execution{
		Date:       date,
		PeriodID:   periodID,
		Action:     action,
		ExecutedAt: now.UnixMilli(),
		Until:      now.Add(s.retention).UnixMilli(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return errors.New("ledger journal closed")
	}

	// Journal first: memory only holds persisted records.
	if err := json.NewEncoder(s.journal).Encode(e); err != nil {
		return err
	}
	s.recs[e.key()] = e

	s.writes++
	if s.compactEvery > 0 && s.writes%s.compactEvery == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("ledger compact failed", logx.Any("err", err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	pruneExpiredExecutions(s.recs, s.now())

	list := make([]Execution, 0, len(s.recs))
	for _, e := range s.recs {
		list = append(list, e)
	}

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(list); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, 2)
	return err
}

func loadSnapshot(path string, out map[string]Execution) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var list []Execution
	if err := json.NewDecoder(f).Decode(&list); err != nil {
		return err
	}
	for _, e := range list {
		out[e.key()] = e
	}
	return nil
}

func replayJournal(path string, out map[string]Execution) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Execution
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			// torn tail write
			continue
		}
		if e.Date == "" || e.PeriodID == "" {
			continue
		}
		out[e.key()] = e
	}
	return sc.Err()
}

func pruneExpiredExecutions(m map[string]Execution, now time.Time) {
	ms := now.UnixMilli()
	for k, e := range m {
		if e.Until < ms {
			delete(m, k)
		}
	}
}
