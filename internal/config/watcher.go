// SPDX-License-Identifier: MIT
package config

import (
	"context"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"

	applog "kws/internal/log"
)

// HotConfig wraps Config with hot-reload support. Subscribers are told about
// every successful reload; a file that fails to parse or validate keeps the
// previous configuration.
type HotConfig struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
	subs []func(*Config)
}

func NewHotConfig(path string) (*HotConfig, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return &HotConfig{cfg: cfg, path: path}, nil
}

func (hc *HotConfig) Get() *Config {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.cfg
}

// OnReload registers a callback for config changes.
func (hc *HotConfig) OnReload(fn func(*Config)) {
	hc.mu.Lock()
	hc.subs = append(hc.subs, fn)
	hc.mu.Unlock()
}

func (hc *HotConfig) reload() {
	cfg, err := LoadConfig(hc.path)
	if err != nil {
		applog.Errorf("Config: reload of %s failed, keeping previous settings: %v", hc.path, err)
		return
	}
	hc.mu.Lock()
	hc.cfg = cfg
	subs := slices.Clone(hc.subs)
	hc.mu.Unlock()

	applog.Infof("Config: reloaded %s", hc.path)
	for _, fn := range subs {
		fn(cfg)
	}
}

// Watch reloads the configuration whenever the file is written or
// recreated, until ctx is done. The parent directory is watched so editors
// that replace the file atomically are still seen.
func (hc *HotConfig) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(hc.path)); err != nil {
		watcher.Close()
		return err
	}
	target := filepath.Clean(hc.path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					hc.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				applog.Errorf("Config: watcher error: %v", err)
			}
		}
	}()
	return nil
}
