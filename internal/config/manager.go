package config

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

type ConfigManager struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	// subsMu is held while sending so Unsubscribe never closes a channel
	// mid-send.
	subsMu sync.Mutex
	subs   []chan *Config

	log       logx.Logger
	validator func(ctx context.Context, cfg *Config) error

	// lastHash is the content hash of the committed config and timeline.
	lastHash uint64

	// retarget is signaled when the committed config points at a different
	// timeline file, so Watch re-subscribes to the right directories.
	retarget chan struct{}
}

func NewConfigManager(path string) *ConfigManager {
	return &ConfigManager{path: path, retarget: make(chan struct{}, 1)}
}

func (m *ConfigManager) Path() string { return m.path }

func (m *ConfigManager) SetLogger(log logx.Logger) { m.log = log }

// SetValidator installs a validation hook used by Watch() before committing/publishing.
func (m *ConfigManager) SetValidator(fn func(ctx context.Context, cfg *Config) error) {
	m.validator = fn
}

// Parse reads the config file and the timeline source it points at.
// Without schedule.timeline_path the built-in presets are used.
func (m *ConfigManager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := decodeStrict(m.path, b, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var tb []byte
	if p := TimelinePath(m.path, &cfg); p != "" {
		tb, err = os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("schedule.timeline_path: %w", err)
		}
		src, err := parseTimelineSource(p, tb)
		if err != nil {
			return nil, err
		}
		cfg.Timeline = src
	} else {
		cfg.Timeline = timeline.DefaultSource()
	}

	cfg.rawHash = hashBytes(b, tb)
	return &cfg, nil
}

func (m *ConfigManager) Commit(cfg *Config) {
	m.mu.Lock()
	prev := m.cfg
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()

	if prev != nil && TimelinePath(m.path, prev) != TimelinePath(m.path, cfg) {
		select {
		case m.retarget <- struct{}{}:
		default:
		}
	}
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	if cfg.rawHash != 0 {
		return cfg.rawHash
	}
	return hashJSON(cfg)
}

func (m *ConfigManager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

func (m *ConfigManager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *ConfigManager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *ConfigManager) Unsubscribe(ch chan *Config) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			// swap-remove (order doesn't matter)
			last := len(m.subs) - 1
			m.subs[i] = m.subs[last]
			m.subs[last] = nil
			m.subs = m.subs[:last]
			close(ch)
			return
		}
	}
}

func (m *ConfigManager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		if ch == nil {
			continue
		}
		// full buffer: drop the oldest pending config, then deliver the newest
		select {
		case ch <- cfg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- cfg:
			default:
				m.log.Debug("config update dropped (subscriber slow)", logx.Int("queue_cap", cap(ch)))
			}
		}
	}
}

// Reload parses, validates, commits and publishes the current files.
// Unchanged content is a no-op that reports false.
func (m *ConfigManager) Reload(ctx context.Context) (bool, error) {
	cfg, err := m.Parse()
	if err != nil {
		return false, err
	}

	h := hashConfig(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	// validate before commit/publish (transactional)
	if m.validator != nil {
		vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := m.validator(vctx, cfg)
		cancel()
		if err != nil {
			return false, err
		}
	}

	m.Commit(cfg)
	m.publish(cfg)
	return true, nil
}

// watchTargets maps watched directories to the file names of interest.
func (m *ConfigManager) watchTargets() map[string][]string {
	out := map[string][]string{}
	add := func(p string) {
		if p == "" {
			return
		}
		dir := filepath.Dir(p)
		out[dir] = append(out[dir], filepath.Base(p))
	}
	add(m.path)
	add(TimelinePath(m.path, m.Get()))
	return out
}

func matchTarget(targets map[string][]string, name string) bool {
	base := filepath.Base(name)
	for _, files := range targets {
		for _, f := range files {
			if strings.EqualFold(base, f) {
				return true
			}
		}
	}
	return false
}

// Watch reloads on changes to the config file or the timeline file until ctx
// is done. Bursts of events are debounced; a broken watcher is recreated
// with jittered backoff.
func (m *ConfigManager) Watch(ctx context.Context) error {
	const (
		backoffMin = 250 * time.Millisecond
		backoffMax = 5 * time.Second
	)
	backoff := backoffMin
	sleep := func() bool {
		wait := backoff + rand.N(backoff/2+1)
		backoff = min(backoff*2, backoffMax)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
			return true
		}
	}

	d := &debouncer{delay: 250 * time.Millisecond, fn: func() { m.reloadFromWatch(ctx) }}
	defer d.stop()

	for ctx.Err() == nil {
		retargeted, err := m.watchOnce(ctx, d, func() { backoff = backoffMin })
		switch {
		case ctx.Err() != nil:
			return nil
		case retargeted:
			m.log.Debug("timeline path changed; re-arming watcher")
		default:
			m.log.Warn("config watcher stopped; restarting", logx.Any("err", err), logx.Duration("backoff", backoff))
			if !sleep() {
				return nil
			}
		}
	}
	return nil
}

// watchOnce runs one fsnotify watcher over the current targets. It returns
// when ctx is done, the timeline path changes, or the watcher breaks.
func (m *ConfigManager) watchOnce(ctx context.Context, d *debouncer, healthy func()) (retargeted bool, err error) {
	targets := m.watchTargets()
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false, fmt.Errorf("watch init: %w", err)
	}
	defer w.Close()
	for dir := range targets {
		if err := w.Add(dir); err != nil {
			return false, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	healthy()
	m.log.Debug("config watcher started", logx.Int("dirs", len(targets)))

	const interesting = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove | fsnotify.Chmod
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case <-m.retarget:
			return true, nil
		case ev, ok := <-w.Events:
			if !ok {
				return false, fsnotify.ErrClosed
			}
			if ev.Op&interesting != 0 && matchTarget(targets, ev.Name) {
				m.log.Debug("config change detected; scheduling reload", logx.String("file", ev.Name))
				d.trigger()
			}
		case err, ok := <-w.Errors:
			switch {
			case !ok || errors.Is(err, fsnotify.ErrClosed):
				return false, fsnotify.ErrClosed
			case errors.Is(err, fsnotify.ErrEventOverflow):
				// events may be lost; reload once to catch up
				m.log.Warn("config watch overflow; forcing reload")
				d.trigger()
			case err != nil:
				m.log.Warn("config watch error", logx.Any("err", err))
			}
		}
	}
}

func (m *ConfigManager) reloadFromWatch(ctx context.Context) {
	changed, err := m.Reload(ctx)
	switch {
	case err != nil:
		m.log.Warn("config rejected", logx.String("path", m.path), logx.Any("err", err))
	case !changed:
		m.log.Debug("config unchanged; skipping publish", logx.String("path", m.path))
	default:
		m.log.Debug("config published", logx.String("path", m.path), logx.String("hash", fmt.Sprintf("%x", hashConfig(m.Get()))))
	}
}

// debouncer runs fn once after delay has passed without another trigger.
type debouncer struct {
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
