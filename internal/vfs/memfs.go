package vfs

import (
	"fmt"
	"sync"

	"github.com/soltixdb/gridstore/internal/pool"
)

// MemFS is an in-memory file system, used by tests and embedded setups
type MemFS struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemFS creates an empty in-memory file system
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

// Write replaces the contents of a file
func (m *MemFS) Write(uri string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.files[uri] = buf
}

// Append appends to a file and returns the offset the data landed at
func (m *MemFS) Append(uri string, data []byte) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	offset := uint64(len(m.files[uri]))
	m.files[uri] = append(m.files[uri], data...)
	return offset
}

// Size returns the current size of a file
func (m *MemFS) Size(uri string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.files[uri]))
}

func (m *MemFS) readAt(uri string, offset uint64, p []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[uri]
	if !ok {
		return fmt.Errorf("no such file: %s", uri)
	}
	if offset+uint64(len(p)) > uint64(len(data)) {
		return fmt.Errorf("read past end of %s: offset %d size %d file %d",
			uri, offset, len(p), len(data))
	}
	copy(p, data[offset:])
	return nil
}

// ReadAll schedules the regions of one URI on the thread pool
func (m *MemFS) ReadAll(uri string, regions []Region, tp *pool.ThreadPool) []*pool.Task {
	return readAll(m, uri, regions, tp)
}
