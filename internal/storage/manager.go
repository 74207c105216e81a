// Package storage wires the file backend, the tile cache and the worker
// pool behind the single handle the query layer talks to.
package storage

import (
	"context"
	"fmt"

	"github.com/soltixdb/gridstore/internal/cache"
	"github.com/soltixdb/gridstore/internal/config"
	"github.com/soltixdb/gridstore/internal/logging"
	"github.com/soltixdb/gridstore/internal/pool"
	"github.com/soltixdb/gridstore/internal/vfs"
)

// Manager exposes tile I/O, the decoded-tile cache and the reader thread
// pool to queries
type Manager struct {
	cfg       *config.Config
	fs        vfs.VFS
	tileCache cache.TileCache
	readers   *pool.ThreadPool
	logger    *logging.Logger
}

// NewManager creates a storage manager
func NewManager(cfg *config.Config, fs vfs.VFS, tileCache cache.TileCache, readers *pool.ThreadPool, logger *logging.Logger) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if fs == nil || tileCache == nil || readers == nil {
		return nil, fmt.Errorf("storage manager requires a vfs, a cache and a pool")
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Manager{
		cfg:       cfg,
		fs:        fs,
		tileCache: tileCache,
		readers:   readers,
		logger:    logger,
	}, nil
}

// Config returns the engine configuration
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// VFS returns the file backend
func (m *Manager) VFS() vfs.VFS {
	return m.fs
}

// ReaderPool returns the thread pool used for reads, filtering and copies
func (m *Manager) ReaderPool() *pool.ThreadPool {
	return m.readers
}

// Logger returns the manager's logger
func (m *Manager) Logger() *logging.Logger {
	return m.logger
}

// ReadFromCache fills dest with the decoded tile at (uri, offset) if
// cached. Entries whose size does not match dest are treated as misses.
func (m *Manager) ReadFromCache(ctx context.Context, uri string, offset uint64, dest []byte) (bool, error) {
	data, hit, err := m.tileCache.Get(ctx, uri, offset)
	if err != nil {
		return false, fmt.Errorf("tile cache get failed: %w", err)
	}
	if !hit || len(data) != len(dest) {
		return false, nil
	}
	copy(dest, data)
	return true, nil
}

// WriteToCache stores a decoded tile buffer
func (m *Manager) WriteToCache(ctx context.Context, uri string, offset uint64, data []byte) error {
	if err := m.tileCache.Put(ctx, uri, offset, data); err != nil {
		return fmt.Errorf("tile cache put failed: %w", err)
	}
	return nil
}
