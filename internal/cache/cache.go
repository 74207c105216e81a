// Package cache provides the tile cache: a read-through/write-through
// key-value store holding decoded tile buffers keyed by (uri, offset).
package cache

import "context"

// TileCache stores decoded tile bytes
type TileCache interface {
	// Get returns the cached bytes for (uri, offset) and whether it hit
	Get(ctx context.Context, uri string, offset uint64) ([]byte, bool, error)

	// Put stores the bytes for (uri, offset)
	Put(ctx context.Context, uri string, offset uint64, data []byte) error

	// Close releases cache resources
	Close() error
}
