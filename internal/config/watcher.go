package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const debounceDelay = 500 * time.Millisecond

// Watcher reloads the configuration when the file changes or SIGHUP arrives
type Watcher struct {
	configPath string
	logger     zerolog.Logger
	watcher    *fsnotify.Watcher
	reloadFunc func(*Config) error
	cancel     context.CancelFunc
	done       chan struct{}
	stopOnce   sync.Once
}

// NewWatcher creates a watcher for configPath. The parent directory is watched
// so files replaced by rename, as most editors save them, are still seen.
func NewWatcher(configPath string, reloadFunc func(*Config) error, logger zerolog.Logger) (*Watcher, error) {
	configPath = filepath.Clean(configPath)
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("cannot watch config: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsWatcher.Add(filepath.Dir(configPath)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		configPath: configPath,
		logger:     logger.With().Str("component", "config-watcher").Logger(),
		watcher:    fsWatcher,
		reloadFunc: reloadFunc,
		done:       make(chan struct{}),
	}, nil
}

// Start starts watching for config changes until ctx is cancelled or Stop is called
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)

	go func() {
		defer close(w.done)
		defer signal.Stop(sigChan)
		defer w.watcher.Close()

		var debounceTimer *time.Timer

		for {
			select {
			case <-ctx.Done():
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				w.logger.Info().Msg("Config watcher stopped")
				return

			case sig := <-sigChan:
				w.logger.Info().Str("signal", sig.String()).Msg("Received signal, reloading configuration")
				w.reload()

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.configPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Config file changed")

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, w.reload)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error().Err(err).Msg("Config watcher error")
			}
		}
	}()

	w.logger.Info().Str("path", w.configPath).Msg("Config watcher started")
}

// Stop stops the watcher and waits for the loop to exit
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel == nil {
			w.watcher.Close()
			return
		}
		w.cancel()
		<-w.done
	})
}

// reload loads and applies the new configuration, keeping the current one on failure
func (w *Watcher) reload() {
	newCfg, err := Load(w.configPath)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to load new configuration - keeping current config")
		return
	}

	if err := w.reloadFunc(newCfg); err != nil {
		w.logger.Error().Err(err).Msg("Failed to apply new configuration - keeping current config")
		return
	}

	w.logger.Info().Msg("Configuration reloaded successfully")
}
