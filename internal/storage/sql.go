package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqlStore is the ledger over database/sql, shared by the sqlite and
// postgres drivers. Queries are written with '?' placeholders and rebound
// per dialect.
type sqlStore struct {
	db     *sql.DB
	log    logx.Logger
	rebind func(string) string

	retention  time.Duration
	now        func() time.Time
	opCount    atomic.Uint64
	pruneEvery uint64
}

func newSQLStore(db *sql.DB, cfg Config, log logx.Logger, rebind func(string) string) *sqlStore {
	if rebind == nil {
		rebind = func(q string) string { return q }
	}
	return &sqlStore{
		db:         db,
		log:        log,
		rebind:     rebind,
		retention:  cfg.retention(),
		now:        time.Now,
		pruneEvery: 500,
	}
}

func (s *sqlStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) HasExecuted(ctx context.Context, date, periodID string, action timeline.Action) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	if err := checkKey(date, periodID, action); err != nil {
		return false, err
	}
	var until int64
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT until FROM executions WHERE date = ? AND period_id = ? AND action = ?`),
		date, periodID, string(action),
	).Scan(&until)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return until >= s.now().UnixMilli(), nil
}

func (s *sqlStore) Record(ctx context.Context, date, periodID string, action timeline.Action) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if err := checkKey(date, periodID, action); err != nil {
		return err
	}
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO executions(date, period_id, action, executed_at, until) VALUES(?,?,?,?,?)
		 ON CONFLICT(date, period_id, action) DO UPDATE SET executed_at=excluded.executed_at, until=excluded.until`),
		date, periodID, string(action), now.UnixMilli(), now.Add(s.retention).UnixMilli(),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		if perr := s.pruneExpired(pctx); perr != nil {
			s.log.Debug("ledger prune failed", logx.Any("err", perr))
		}
		cancel()
	}
	return err
}

func (s *sqlStore) pruneExpired(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM executions WHERE until < ?`), s.now().UnixMilli())
	return err
}

// rebindDollar rewrites '?' placeholders to $1..$n.
func rebindDollar(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}
