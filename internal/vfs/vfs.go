package vfs

import (
	"sort"

	"github.com/soltixdb/gridstore/internal/pool"
)

// Region is one byte range to read from a file into a caller-owned buffer
type Region struct {
	Offset uint64
	Dest   []byte
}

// VFS abstracts the file backend tiles are read from
type VFS interface {
	// ReadAll schedules the regions of one URI on the thread pool and
	// returns one task per coalesced batch. Adjacent regions are merged
	// into single reads.
	ReadAll(uri string, regions []Region, tp *pool.ThreadPool) []*pool.Task
}

// readAtFS is the primitive both backends implement
type readAtFS interface {
	readAt(uri string, offset uint64, p []byte) error
}

// batch is a run of contiguous regions served by a single read
type batch struct {
	offset  uint64
	size    uint64
	regions []Region
}

// coalesce sorts regions by offset and merges adjacent ones
func coalesce(regions []Region) []batch {
	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	var batches []batch
	for _, r := range sorted {
		size := uint64(len(r.Dest))
		if n := len(batches); n > 0 && batches[n-1].offset+batches[n-1].size == r.Offset {
			batches[n-1].size += size
			batches[n-1].regions = append(batches[n-1].regions, r)
			continue
		}
		batches = append(batches, batch{
			offset:  r.Offset,
			size:    size,
			regions: []Region{r},
		})
	}
	return batches
}

// readAll schedules the coalesced batches of one URI on the pool
func readAll(fs readAtFS, uri string, regions []Region, tp *pool.ThreadPool) []*pool.Task {
	batches := coalesce(regions)
	tasks := make([]*pool.Task, len(batches))
	for i, b := range batches {
		b := b
		tasks[i] = tp.Submit(func() error {
			if len(b.regions) == 1 {
				return fs.readAt(uri, b.offset, b.regions[0].Dest)
			}
			scratch := make([]byte, b.size)
			if err := fs.readAt(uri, b.offset, scratch); err != nil {
				return err
			}
			for _, r := range b.regions {
				start := r.Offset - b.offset
				copy(r.Dest, scratch[start:start+uint64(len(r.Dest))])
			}
			return nil
		})
	}
	return tasks
}
