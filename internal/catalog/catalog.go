// Package catalog keeps the list of base models available to the web form
// and refreshes it when files are added to or removed from the bases directory.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/philipparndt/smithforge/internal/preconditions"
)

// DefaultDebounce is how long the directory must be quiet before a rescan
const DefaultDebounce = 300 * time.Millisecond

// Catalog lists the base models of one directory
type Catalog struct {
	dir      string
	logger   *zap.Logger
	debounce time.Duration

	mu      sync.RWMutex
	names   []string
	pending time.Time
	watcher *fsnotify.Watcher
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates the directory if needed and scans it once
func New(dir string, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bases directory: %w", err)
	}
	c := &Catalog{
		dir:      dir,
		logger:   logger.Named("catalog"),
		debounce: DefaultDebounce,
	}
	if err := c.Refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir returns the watched directory
func (c *Catalog) Dir() string {
	return c.dir
}

// Refresh rescans the directory
func (c *Catalog) Refresh() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to list bases: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !preconditions.IsMeshFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	c.mu.Lock()
	c.names = names
	c.mu.Unlock()
	return nil
}

// List returns the sorted base model file names
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Has reports whether name is a known base model
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := sort.SearchStrings(c.names, name)
	return i < len(c.names) && c.names[i] == name
}

// Path returns the full path of a base model
func (c *Catalog) Path(name string) string {
	return filepath.Join(c.dir, filepath.Base(name))
}

// Start watches the directory in the background until ctx ends or Close is called
func (c *Catalog) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", c.dir, err)
	}

	c.watcher = watcher
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.run(ctx)

	c.logger.Info("watching bases", zap.String("dir", c.dir))
	return nil
}

// Close stops watching, the last known list stays available
func (c *Catalog) Close() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()

	<-c.doneCh
	return c.watcher.Close()
}

func (c *Catalog) run(ctx context.Context) {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.debounce / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.handleEvent(event)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("watcher error", zap.Error(err))
		case <-ticker.C:
			c.refreshIfSettled()
		}
	}
}

func (c *Catalog) handleEvent(event fsnotify.Event) {
	if !preconditions.IsMeshFile(event.Name) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	c.logger.Debug("bases changed", zap.String("file", filepath.Base(event.Name)), zap.Stringer("op", event.Op))

	c.mu.Lock()
	c.pending = time.Now()
	c.mu.Unlock()
}

func (c *Catalog) refreshIfSettled() {
	c.mu.Lock()
	if c.pending.IsZero() || time.Since(c.pending) < c.debounce {
		c.mu.Unlock()
		return
	}
	c.pending = time.Time{}
	c.mu.Unlock()

	if err := c.Refresh(); err != nil {
		c.logger.Warn("rescan failed", zap.Error(err))
		return
	}
	c.logger.Info("bases updated", zap.Int("count", len(c.List())))
}
