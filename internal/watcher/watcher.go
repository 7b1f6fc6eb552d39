// Package watcher watches a theme settings file and delivers debounced,
// parsed snapshots of its raw values. Editors that write via rename are
// handled by watching the parent directory rather than the file itself.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/adminstyler/adminstyler/internal/logging"
)

// DefaultDebounce groups rapid successive writes into one reload
const DefaultDebounce = 300 * time.Millisecond

// ChangeHandler receives the parsed raw settings after each debounced
// change. Values are untrusted; callers run them through the sanitizer.
type ChangeHandler func(raw map[string]string) error

// ThemeWatcher watches one theme file with debouncing
type ThemeWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	delay    time.Duration
	logger   logging.Logger
	handlers []ChangeHandler

	mutex sync.Mutex
	timer *time.Timer
}

// NewThemeWatcher creates a watcher for the theme file at path
func NewThemeWatcher(path string, delay time.Duration, logger logging.Logger) (*ThemeWatcher, error) {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("resolving theme path: %w", err)
	}
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("theme path contains directory traversal: %s", path)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}

	return &ThemeWatcher{
		watcher: fsw,
		path:    absPath,
		delay:   delay,
		logger:  logger.WithComponent("watcher"),
	}, nil
}

// AddHandler registers a change handler
func (tw *ThemeWatcher) AddHandler(handler ChangeHandler) {
	tw.mutex.Lock()
	defer tw.mutex.Unlock()
	tw.handlers = append(tw.handlers, handler)
}

// Start begins watching. The parent directory is watched so that
// atomic-rename saves still produce events.
func (tw *ThemeWatcher) Start(ctx context.Context) error {
	if err := tw.watcher.Add(filepath.Dir(tw.path)); err != nil {
		tw.watcher.Close()
		return fmt.Errorf("watching theme directory: %w", err)
	}

	go tw.watchLoop(ctx)
	return nil
}

// Stop stops the watcher and cleans up resources
func (tw *ThemeWatcher) Stop() error {
	tw.mutex.Lock()
	if tw.timer != nil {
		tw.timer.Stop()
	}
	tw.mutex.Unlock()
	return tw.watcher.Close()
}

func (tw *ThemeWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			tw.handleEvent(event)
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			tw.logger.Warn(ctx, err, "theme watcher error")
		}
	}
}

func (tw *ThemeWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != tw.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	tw.mutex.Lock()
	defer tw.mutex.Unlock()

	if tw.timer != nil {
		tw.timer.Stop()
	}
	tw.timer = time.AfterFunc(tw.delay, tw.reload)
}

// reload parses the theme file and fans it out to handlers
func (tw *ThemeWatcher) reload() {
	raw, err := ParseThemeFile(tw.path)
	if err != nil {
		tw.logger.Warn(context.Background(), err, "theme reload failed", "path", tw.path)
		return
	}

	tw.mutex.Lock()
	handlers := make([]ChangeHandler, len(tw.handlers))
	copy(handlers, tw.handlers)
	tw.mutex.Unlock()

	for _, handler := range handlers {
		if err := handler(raw); err != nil {
			tw.logger.Warn(context.Background(), err, "theme change handler error")
		}
	}
}

// ParseThemeFile reads a YAML theme file into a raw settings map. Values
// of any scalar type are stringified; the sanitizer decides validity.
func ParseThemeFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading theme file: %w", err)
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing theme file: %w", err)
	}

	raw := make(map[string]string, len(parsed))
	for key, value := range parsed {
		raw[key] = fmt.Sprintf("%v", value)
	}
	return raw, nil
}
