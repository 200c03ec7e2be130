// package cache maintains the source-run to destination-record identity
// mapping on disk, so repeated sync passes never create duplicate records.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mlsync/internal/shared"
)

const cacheFileName = "mlsync_run_cache.json"

// RunCache is the single owner of the run-id mapping. Every access goes
// through Get/Set/Refresh; the mapping is never handed out directly.
// Safe for concurrent use by commit workers and fetch tasks.
type RunCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
	dirty   bool
	logger  *log.Logger
}

// Open loads the cache for a destination store directory.
//
// A missing file starts an empty cache silently. A present-but-unreadable
// file also starts empty, but is logged so operators can spot state loss.
// When noCache is set, any existing file is deleted first, forcing full
// re-creation of destination records.
func Open(dir string, noCache bool, logger *log.Logger) (*RunCache, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	c := &RunCache{
		path:    filepath.Join(dir, cacheFileName),
		entries: map[string]string{},
		logger:  logger,
	}

	if noCache {
		if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove run cache: %w", err)
		}
		return c, nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("run cache unreadable, starting empty", "path", c.path, "err", err)
		}
		return c, nil
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		logger.Warn("run cache corrupt, starting empty", "path", c.path, "err", err)
		c.entries = map[string]string{}
	}

	return c, nil
}

// Get returns the destination record id for a source run id, if one was
// recorded by a prior pass.
func (c *RunCache) Get(sourceRunID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[sourceRunID]
	return id, ok
}

// Set records the destination record id for a source run. Setting the same
// value again is a no-op and does not mark the cache dirty.
func (c *RunCache) Set(sourceRunID, destinationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[sourceRunID] == destinationID {
		return
	}
	c.entries[sourceRunID] = destinationID
	c.dirty = true
}

// Refresh persists the mapping to disk if it changed since the last refresh.
// The write is atomic (temp file then rename) so a crash never leaves a
// half-written cache. A persistence failure is fatal to the pass: without
// the file, the next invocation would duplicate records.
func (c *RunCache) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCachePersist, err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCachePersist, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCachePersist, err)
	}

	c.dirty = false
	return nil
}

// Len returns the number of cached run mappings.
func (c *RunCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Path returns the on-disk location of the cache file.
func (c *RunCache) Path() string {
	return c.path
}

// Clear removes the persisted cache file and empties the in-memory mapping.
func (c *RunCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]string{}
	c.dirty = false
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove run cache: %w", err)
	}
	return nil
}
