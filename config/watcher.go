package config

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher polls the config file and reloads it when the modification time
// changes. A reload that fails validation keeps the previous config and
// logs the error.
type Watcher struct {
	loader   *Loader
	path     string
	interval time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	current  *Config
	modTime  time.Time
	onReload []func(*Config)
}

// NewWatcher creates a watcher around an already loaded config.
func NewWatcher(loader *Loader, path string, initial *Config, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		loader:   loader,
		path:     path,
		interval: time.Second,
		logger:   logger.With(zap.String("component", "config-watcher")),
		current:  initial,
	}
	if info, err := os.Stat(path); err == nil {
		w.modTime = info.ModTime()
	}
	return w
}

// Current returns the most recently loaded config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnReload registers a callback invoked after each successful reload.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Start polls until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.check()
			}
		}
	}()
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		return
	}
	w.mu.RLock()
	unchanged := !info.ModTime().After(w.modTime)
	w.mu.RUnlock()
	if unchanged {
		return
	}

	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Error("config reload failed, keeping previous config", zap.Error(err))
		w.mu.Lock()
		w.modTime = info.ModTime()
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.modTime = info.ModTime()
	callbacks := make([]func(*Config), len(w.onReload))
	copy(callbacks, w.onReload)
	w.mu.Unlock()

	w.logger.Info("config reloaded", zap.String("path", w.path))
	for _, fn := range callbacks {
		fn(cfg)
	}
}
