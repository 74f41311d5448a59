package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"go.uber.org/zap"
)

// DynamicConfig is the runtime-changeable overlay. Only settings that are
// safe to change while the service runs live here.
type DynamicConfig struct {
	Sweeper SweeperConfig `yaml:"sweeper"`
}

// Watcher watches the dynamic overlay file and notifies listeners when it
// changes. Invalid overlays are rejected and the current values kept.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  *DynamicConfig
	mu       sync.RWMutex
	onChange []func(*DynamicConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
}

// NewWatcher creates a watcher over the overlay file at path
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	current, err := loadOverlay(path)
	if err != nil {
		return nil, fmt.Errorf("loading initial overlay: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching overlay file: %w", err)
	}
	// Watch the directory too so atomic saves (write then rename) are seen.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		logger.Warn("watching overlay directory", zap.Error(err))
	}

	return &Watcher{
		path:    path,
		watcher: fsw,
		current: current,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for overlay changes
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("config watcher started", zap.String("path", w.path))
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

// OnChange registers a callback invoked after a successful reload
func (w *Watcher) OnChange(handler func(*DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the active overlay
func (w *Watcher) Current() *DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) watchLoop() {
	var debounce *time.Timer
	const debounceWindow = 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceWindow, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	overlay, err := loadOverlay(w.path)
	if err != nil {
		w.logger.Error("reloading overlay, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = overlay
	handlers := make([]func(*DynamicConfig), len(w.onChange))
	copy(handlers, w.onChange)
	w.mu.Unlock()

	if old.Sweeper != overlay.Sweeper {
		w.logger.Info("sweeper configuration changed",
			zap.Int("intervalSeconds", overlay.Sweeper.IntervalSeconds),
			zap.Int("stalenessMinutes", overlay.Sweeper.StalenessMinutes),
			zap.Bool("enabled", overlay.Sweeper.Enabled))
	}
	for _, handler := range handlers {
		go handler(overlay)
	}
}

func loadOverlay(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading overlay: %w", err)
	}
	var overlay DynamicConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parsing overlay: %w", err)
	}
	if overlay.Sweeper.IntervalSeconds <= 0 {
		return nil, fmt.Errorf("sweeper interval must be positive")
	}
	if overlay.Sweeper.StalenessMinutes <= 0 {
		return nil, fmt.Errorf("sweeper staleness must be positive")
	}
	return &overlay, nil
}
