package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ChangeHandler receives the freshly loaded config after the file changes.
type ChangeHandler func(cfg *Config)

// Watcher reloads the config file on change. Events are debounced so a
// single editor save does not trigger a burst of reloads. Configs that
// fail Validate are dropped and the previous one stays active.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	log      zerolog.Logger
	debounce time.Duration
	stopChan chan struct{}

	mu       sync.Mutex
	handlers []ChangeHandler
}

// NewWatcher creates a config file watcher.
func NewWatcher(path string, log zerolog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	return &Watcher{
		path:     path,
		watcher:  w,
		log:      log,
		debounce: 300 * time.Millisecond,
	}, nil
}

// OnChange registers a handler to be called after each successful reload.
func (cw *Watcher) OnChange(handler ChangeHandler) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.handlers = append(cw.handlers, handler)
}

// Start begins watching the config file.
func (cw *Watcher) Start() error {
	if err := cw.watcher.Add(cw.path); err != nil {
		return fmt.Errorf("watch %s: %w", cw.path, err)
	}
	cw.stopChan = make(chan struct{})
	go cw.watchLoop()
	cw.log.Info().Str("path", cw.path).Msg("config watcher started")
	return nil
}

// Stop halts the file watcher.
func (cw *Watcher) Stop() {
	if cw.stopChan != nil {
		close(cw.stopChan)
	}
	cw.watcher.Close()
}

func (cw *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-cw.stopChan:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(cw.debounce, cw.reload)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log.Error().Err(err).Msg("config watcher error")
		}
	}
}

func (cw *Watcher) reload() {
	cfg, err := Load(cw.path)
	if err != nil {
		cw.log.Error().Err(err).Msg("config reload failed")
		return
	}
	if err := cfg.Validate(); err != nil {
		cw.log.Error().Err(err).Msg("reloaded config invalid, keeping previous")
		return
	}

	cw.mu.Lock()
	handlers := make([]ChangeHandler, len(cw.handlers))
	copy(handlers, cw.handlers)
	cw.mu.Unlock()

	for _, h := range handlers {
		h(cfg)
	}
	cw.log.Info().Str("path", cw.path).Msg("config reloaded")
}
