package vfs

import (
	"fmt"
	"os"

	"github.com/soltixdb/gridstore/internal/pool"
)

// LocalFS reads files from the local file system
type LocalFS struct{}

// NewLocalFS creates a local file system backend
func NewLocalFS() *LocalFS {
	return &LocalFS{}
}

func (l *LocalFS) readAt(uri string, offset uint64, p []byte) error {
	f, err := os.Open(uri)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", uri, err)
	}
	defer f.Close()

	if _, err := f.ReadAt(p, int64(offset)); err != nil {
		return fmt.Errorf("failed to read %s at %d: %w", uri, offset, err)
	}
	return nil
}

// ReadAll schedules the regions of one URI on the thread pool
func (l *LocalFS) ReadAll(uri string, regions []Region, tp *pool.ThreadPool) []*pool.Task {
	return readAll(l, uri, regions, tp)
}
