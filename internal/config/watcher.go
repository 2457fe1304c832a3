package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// defaultPollInterval is how often the watcher re-stats the config file.
const defaultPollInterval = 5 * time.Second

// Watcher polls a config file and reports validated changes, so analysis
// tunables and the log level can be adjusted on a running server without a
// restart. Polling keeps it portable; the interval is coarse because config
// edits are a human-speed event.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu      sync.RWMutex
	current *Config

	lastMod time.Time
	lastSum [sha256.Size]byte

	stop chan struct{}
	done chan struct{}
}

// WatcherOption adjusts a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Intervals below 100ms are mostly
// useful in tests.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path, validates it, and starts polling for edits.
// onChange runs with the previous and the freshly validated config every
// time the file content actually changes; edits that fail validation are
// logged and skipped, leaving the last good config in effect.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		interval: defaultPollInterval,
		onChange: onChange,
		current:  cfg,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if info, err := os.Stat(path); err == nil {
		w.lastMod = info.ModTime()
	}
	if raw, err := os.ReadFile(path); err == nil {
		w.lastSum = sha256.Sum256(raw)
	}

	go w.poll()
	return w, nil
}

// Current returns the last config that passed validation.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop ends polling and waits for the poll loop to exit.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Watcher) poll() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if err := w.check(); err != nil {
				slog.Warn("config reload skipped", "path", w.path, "error", err)
			}
		}
	}
}

// check looks for an edit, cheapest signal first: mtime, then a content
// hash so touch(1) and atomic same-content rewrites don't trigger reloads.
func (w *Watcher) check() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	if info.ModTime().Equal(w.lastMod) {
		return nil
	}
	w.lastMod = info.ModTime()

	raw, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	sum := sha256.Sum256(raw)
	if sum == w.lastSum {
		return nil
	}

	cfg, err := LoadFromReader(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("edited config rejected: %w", err)
	}
	w.lastSum = sum

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()

	slog.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return nil
}
