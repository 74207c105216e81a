// Package query implements the read path of the array engine: given a
// subarray over a typed coordinate space, it returns the attribute values
// of every logical cell inside it, merging fragments so newer writes win,
// honoring the requested traversal order, and resuming across calls when
// the user buffers fill.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/soltixdb/gridstore/internal/fragment"
	"github.com/soltixdb/gridstore/internal/logging"
	"github.com/soltixdb/gridstore/internal/schema"
	"github.com/soltixdb/gridstore/internal/storage"
)

// attrBuffer describes one attribute's user output buffers
type attrBuffer struct {
	fixed             []byte
	fixedSize         *uint64
	originalFixedSize uint64

	varData         []byte
	varSize         *uint64
	originalVarSize uint64
}

// Reader drives one read query over an array opened at a snapshot of
// fragments
type Reader[T schema.Coord] struct {
	sm        *storage.Manager
	schema    *schema.Schema[T]
	fragments []*fragment.Metadata[T]

	layout     schema.Layout
	sparseMode bool
	encKey     []byte
	subarray   *Subarray[T]

	attrs   []string
	buffers map[string]*attrBuffer

	part        *Partitioner[T]
	overflowed  bool
	initialized bool
	emptyArray  bool

	logger *logging.Logger
}

// NewReader creates a reader over a schema
func NewReader[T schema.Coord](sm *storage.Manager, sch *schema.Schema[T]) *Reader[T] {
	var logger *logging.Logger
	if sm != nil {
		logger = sm.Logger().WithQueryID()
	} else {
		logger = logging.Global()
	}
	return &Reader[T]{
		sm:      sm,
		schema:  sch,
		layout:  schema.RowMajor,
		buffers: make(map[string]*attrBuffer),
		logger:  logger,
	}
}

// SetFragmentMetadata registers the fragment snapshot. Fragments are kept
// sorted by ID so index order equals age order.
func (r *Reader[T]) SetFragmentMetadata(frags []*fragment.Metadata[T]) {
	r.fragments = append([]*fragment.Metadata[T](nil), frags...)
	sort.Slice(r.fragments, func(i, j int) bool {
		return r.fragments[i].ID() < r.fragments[j].ID()
	})
}

// SetLayout sets the traversal order of the results
func (r *Reader[T]) SetLayout(layout schema.Layout) {
	r.layout = layout
}

// SetEncryptionKey arms the reverse encryption filter for every tile
func (r *Reader[T]) SetEncryptionKey(key []byte) {
	r.encKey = key
}

// SetSparseMode routes a dense array through the sparse path. Applicable
// only when every fragment is sparse.
func (r *Reader[T]) SetSparseMode(on bool) error {
	if !r.schema.Dense() {
		return fmt.Errorf("%w: sparse mode applies to dense arrays only", ErrInvalidRange)
	}
	for _, f := range r.fragments {
		if f.Dense() {
			return fmt.Errorf("%w: sparse mode requires all fragments sparse", ErrInvalidRange)
		}
	}
	r.sparseMode = on
	return nil
}

// SetSubarray sets the query region
func (r *Reader[T]) SetSubarray(s *Subarray[T]) error {
	if s == nil {
		return fmt.Errorf("%w: nil subarray", ErrInvalidRange)
	}
	s.FillDefault()
	r.subarray = s
	return nil
}

// SetBuffer registers a fixed-length attribute's output buffer. *size is
// the byte budget and is updated to the bytes written after each read.
func (r *Reader[T]) SetBuffer(attr string, buf []byte, size *uint64) error {
	if buf == nil || size == nil {
		return fmt.Errorf("%w: nil buffer for %q", ErrInvalidAttribute, attr)
	}
	if attr != schema.CoordsName && r.schema.Attribute(attr) == nil {
		return fmt.Errorf("%w: %q", ErrInvalidAttribute, attr)
	}
	if r.schema.VarSize(attr) {
		return fmt.Errorf("%w: %q is var-sized", ErrVarLengthMismatch, attr)
	}
	if *size > uint64(len(buf)) {
		return fmt.Errorf("%w: budget %d exceeds buffer capacity %d", ErrInvalidRange, *size, len(buf))
	}
	_, exists := r.buffers[attr]
	if r.initialized && !exists {
		return fmt.Errorf("%w: cannot add attribute %q after init", ErrInvalidAttribute, attr)
	}
	if !exists {
		r.attrs = append(r.attrs, attr)
	}
	r.buffers[attr] = &attrBuffer{
		fixed:             buf,
		fixedSize:         size,
		originalFixedSize: *size,
	}
	if r.part != nil {
		r.part.SetResultBudget(attr, *size)
	}
	return nil
}

// SetBufferVar registers a var-length attribute's offsets and value
// buffers
func (r *Reader[T]) SetBufferVar(attr string, offBuf []byte, offSize *uint64, valBuf []byte, valSize *uint64) error {
	if offBuf == nil || offSize == nil || valBuf == nil || valSize == nil {
		return fmt.Errorf("%w: nil buffer for %q", ErrInvalidAttribute, attr)
	}
	if r.schema.Attribute(attr) == nil {
		return fmt.Errorf("%w: %q", ErrInvalidAttribute, attr)
	}
	if !r.schema.VarSize(attr) {
		return fmt.Errorf("%w: %q is fixed-sized", ErrVarLengthMismatch, attr)
	}
	if *offSize > uint64(len(offBuf)) || *valSize > uint64(len(valBuf)) {
		return fmt.Errorf("%w: budget exceeds buffer capacity", ErrInvalidRange)
	}
	_, exists := r.buffers[attr]
	if r.initialized && !exists {
		return fmt.Errorf("%w: cannot add attribute %q after init", ErrInvalidAttribute, attr)
	}
	if !exists {
		r.attrs = append(r.attrs, attr)
	}
	r.buffers[attr] = &attrBuffer{
		fixed:             offBuf,
		fixedSize:         offSize,
		originalFixedSize: *offSize,
		varData:           valBuf,
		varSize:           valSize,
		originalVarSize:   *valSize,
	}
	if r.part != nil {
		r.part.SetResultBudgetVar(attr, *offSize, *valSize)
	}
	return nil
}

// GetBuffer returns the registered buffers of an attribute
func (r *Reader[T]) GetBuffer(attr string) ([]byte, *uint64) {
	ab, ok := r.buffers[attr]
	if !ok {
		return nil, nil
	}
	return ab.fixed, ab.fixedSize
}

// GetBufferVar returns the registered var buffers of an attribute
func (r *Reader[T]) GetBufferVar(attr string) ([]byte, *uint64, []byte, *uint64) {
	ab, ok := r.buffers[attr]
	if !ok {
		return nil, nil, nil, nil
	}
	return ab.fixed, ab.fixedSize, ab.varData, ab.varSize
}

// Init validates the query and builds the partitioner. Must run after all
// setters and before Read.
func (r *Reader[T]) Init() error {
	if r.sm == nil {
		return fmt.Errorf("%w: storage manager not set", ErrNotInitialized)
	}
	if r.schema == nil {
		return fmt.Errorf("%w: schema not set", ErrNotInitialized)
	}
	if len(r.buffers) == 0 {
		return fmt.Errorf("%w: buffers not set", ErrNotInitialized)
	}

	cfg := r.sm.Config()
	if cfg.Memory.Budget == 0 || cfg.Memory.BudgetVar == 0 {
		return fmt.Errorf("%w: zero memory budget", ErrInvalidConfig)
	}

	if r.subarray == nil {
		s := NewSubarray(r.schema.Domain)
		s.FillDefault()
		r.subarray = s
	}

	dense := r.schema.Dense() && !r.sparseMode
	if dense && !r.subarray.SingleRange() {
		return fmt.Errorf("%w: dense reads take a single range per dimension", ErrInvalidRange)
	}

	// 1-D queries always traverse in global order
	if r.schema.DimNum() == 1 {
		r.layout = schema.GlobalOrder
	}

	r.part = NewPartitioner(r.subarray.clone(), r.layout, r.estimateResultSizes)
	for attr, ab := range r.buffers {
		if r.schema.VarSize(attr) {
			r.part.SetResultBudgetVar(attr, ab.originalFixedSize, ab.originalVarSize)
		} else {
			r.part.SetResultBudget(attr, ab.originalFixedSize)
		}
	}
	r.part.SetMemoryBudget(cfg.Memory.Budget, cfg.Memory.BudgetVar)

	r.emptyArray = len(r.fragments) == 0
	r.overflowed = false
	r.initialized = true

	r.logger.Debug("Reader initialized",
		"layout", r.layout.String(),
		"fragments", len(r.fragments),
		"attributes", len(r.attrs))
	return nil
}

// Incomplete reports whether another Read call can produce more results.
// Overflow keeps the query incomplete until the caller enlarges buffers.
func (r *Reader[T]) Incomplete() bool {
	if !r.initialized || r.emptyArray {
		return false
	}
	if r.overflowed {
		return true
	}
	// The partitioner is exhausted once the last pending sub-region has
	// been emitted, before Next reports Done
	return !r.part.Done() && (r.part.Current() == nil || len(r.part.queue) > 0)
}

// Read produces the next batch of results into the registered buffers.
// When a sub-region overflows, the partitioner splits it and retries; an
// unsplittable overflow returns with zeroed sizes and Incomplete() still
// true, signalling the caller to enlarge buffers.
func (r *Reader[T]) Read(ctx context.Context) error {
	if !r.initialized {
		return ErrNotInitialized
	}

	// Empty array or exhausted subarray
	if r.emptyArray {
		r.zeroBufferSizes()
		return nil
	}

	// Advance to the next sub-region, unless stuck on an unsplittable one
	if !r.part.Unsplittable() {
		if err := r.part.Next(); err != nil {
			r.zeroBufferSizes()
			return err
		}
	}

	for {
		if r.part.Done() {
			r.overflowed = false
			r.zeroBufferSizes()
			return nil
		}

		r.overflowed = false
		r.resetBufferSizes()

		var err error
		if r.schema.Dense() && !r.sparseMode {
			err = r.denseRead(ctx)
		} else {
			err = r.sparseRead(ctx)
		}
		if err != nil {
			// Leave no partially garbled output behind
			r.overflowed = false
			r.zeroBufferSizes()
			return err
		}

		if r.overflowed {
			// Split the current sub-region and retry without advancing
			r.zeroBufferSizes()
			if err := r.part.SplitCurrent(); err != nil {
				r.zeroBufferSizes()
				return err
			}
			if r.part.Unsplittable() {
				// Caller must enlarge buffers
				r.logger.Debug("Unsplittable sub-region overflowed")
				return nil
			}
			continue
		}

		if r.noResults() {
			if err := r.part.Next(); err != nil {
				r.zeroBufferSizes()
				return err
			}
			continue
		}

		// The sub-region was emitted in full; release any unsplittable
		// latch so the next call advances
		r.part.clearUnsplittable()
		return nil
	}
}

// noResults reports whether every buffer came back empty
func (r *Reader[T]) noResults() bool {
	for _, ab := range r.buffers {
		if *ab.fixedSize != 0 {
			return false
		}
	}
	return true
}

// resetBufferSizes restores every size field to its original budget
func (r *Reader[T]) resetBufferSizes() {
	for _, ab := range r.buffers {
		*ab.fixedSize = ab.originalFixedSize
		if ab.varSize != nil {
			*ab.varSize = ab.originalVarSize
		}
	}
}

// zeroBufferSizes marks every buffer empty
func (r *Reader[T]) zeroBufferSizes() {
	for _, ab := range r.buffers {
		*ab.fixedSize = 0
		if ab.varSize != nil {
			*ab.varSize = 0
		}
	}
}
