package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

const defaultKeyPrefix = "radarsched"

// redisStore keeps one key per execution with TTL = retention, so expiry
// needs no pruning.
type redisStore struct {
	rdb       redis.Cmdable
	closeFn   func() error
	prefix    string
	retention time.Duration
	now       func() time.Time
	log       logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	log.Debug("redis ledger connected", logx.String("addr", addr), logx.Int("db", cfg.DB))
	return newRedisStore(client, client.Close, cfg, log), nil
}

func newRedisStore(rdb redis.Cmdable, closeFn func() error, cfg Config, log logx.Logger) *redisStore {
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &redisStore{
		rdb:       rdb,
		closeFn:   closeFn,
		prefix:    prefix,
		retention: cfg.retention(),
		now:       time.Now,
		log:       log,
	}
}

// key renders <prefix>:exec:<date>:<period>:<action>.
func (s *redisStore) key(date, periodID string, action timeline.Action) string {
	return s.prefix + ":exec:" + date + ":" + periodID + ":" + string(action)
}

func (s *redisStore) HasExecuted(ctx context.Context, date, periodID string, action timeline.Action) (bool, error) {
	if err := checkKey(date, periodID, action); err != nil {
		return false, err
	}
	n, err := s.rdb.Exists(ctx, s.key(date, periodID, action)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisStore) Record(ctx context.Context, date, periodID string, action timeline.Action) error {
	if err := checkKey(date, periodID, action); err != nil {
		return err
	}
	at := strconv.FormatInt(s.now().UnixMilli(), 10)
	return s.rdb.Set(ctx, s.key(date, periodID, action), at, s.retention).Err()
}

func (s *redisStore) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}
