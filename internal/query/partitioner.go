package query

import (
	"fmt"

	"github.com/soltixdb/gridstore/internal/schema"
)

// estSizes is the estimated result size of one attribute over a sub-region
type estSizes struct {
	fixed    uint64 // fixed stream bytes (offsets stream for var attributes)
	varBytes uint64 // var stream bytes
}

// estimateFn returns per-attribute result estimates plus the fixed and var
// tile bytes the sub-region would hold in flight
type estimateFn[T schema.Coord] func(s *Subarray[T]) (map[string]estSizes, uint64, uint64, error)

// resultBudget caps one attribute's output bytes
type resultBudget struct {
	size    uint64 // fixed stream budget
	varSize uint64 // var stream budget
}

// Partitioner converts a subarray into a stream of sub-regions whose
// estimated results fit the registered budgets. It maintains a deque of
// pending sub-regions, splitting the front until it fits.
type Partitioner[T schema.Coord] struct {
	layout       schema.Layout
	queue        []*Subarray[T]
	current      *Subarray[T]
	budgets      map[string]resultBudget
	memBudget    uint64
	memBudgetVar uint64
	estimate     estimateFn[T]
	done         bool
	unsplittable bool
}

// NewPartitioner creates a partitioner over the full subarray. The layout
// steers split-dimension choice so that sub-region results concatenate in
// traversal order.
func NewPartitioner[T schema.Coord](sub *Subarray[T], layout schema.Layout, estimate estimateFn[T]) *Partitioner[T] {
	return &Partitioner[T]{
		layout:       layout,
		queue:        []*Subarray[T]{sub},
		budgets:      make(map[string]resultBudget),
		memBudget:    ^uint64(0),
		memBudgetVar: ^uint64(0),
		estimate:     estimate,
	}
}

// SetResultBudget caps a fixed-length attribute's output bytes
func (p *Partitioner[T]) SetResultBudget(attr string, size uint64) {
	p.budgets[attr] = resultBudget{size: size, varSize: ^uint64(0)}
}

// SetResultBudgetVar caps a var-length attribute's offsets and var bytes
func (p *Partitioner[T]) SetResultBudgetVar(attr string, offsetsSize, varSize uint64) {
	p.budgets[attr] = resultBudget{size: offsetsSize, varSize: varSize}
}

// SetMemoryBudget caps the in-flight tile bytes of a sub-region
func (p *Partitioner[T]) SetMemoryBudget(fixed, varBytes uint64) {
	p.memBudget = fixed
	p.memBudgetVar = varBytes
}

// Current returns the sub-region being processed, or nil
func (p *Partitioner[T]) Current() *Subarray[T] {
	return p.current
}

// Done reports whether the partitioner is exhausted
func (p *Partitioner[T]) Done() bool {
	return p.done
}

// Unsplittable reports whether the current sub-region overflowed and
// cannot be split further
func (p *Partitioner[T]) Unsplittable() bool {
	return p.unsplittable
}

// clearUnsplittable releases the unsplittable latch once the current
// sub-region has been emitted successfully
func (p *Partitioner[T]) clearUnsplittable() {
	p.unsplittable = false
}

// Next advances to the next sub-region whose estimate fits every budget.
// Sub-regions with no estimated results are skipped. A sub-region that
// exceeds a budget but cannot be split becomes current with the
// unsplittable flag raised; the caller may still process it and report
// overflow to the user.
func (p *Partitioner[T]) Next() error {
	p.unsplittable = false

	for {
		if len(p.queue) == 0 {
			p.current = nil
			p.done = true
			return nil
		}

		next := p.queue[0]
		p.queue = p.queue[1:]

		est, memFixed, memVar, err := p.estimate(next)
		if err != nil {
			return fmt.Errorf("result estimation failed: %w", err)
		}

		// Skip sub-regions that cannot contribute results
		noResults := true
		for _, e := range est {
			if e.fixed != 0 {
				noResults = false
				break
			}
		}
		if noResults {
			continue
		}

		overBudget := false
		for attr, e := range est {
			b, ok := p.budgets[attr]
			if !ok {
				continue
			}
			if e.fixed > b.size || e.varBytes > b.varSize {
				overBudget = true
				break
			}
		}
		overMemory := memFixed > p.memBudget || memVar > p.memBudgetVar

		if overBudget || overMemory {
			a, b, ok := next.split(p.layout)
			if !ok {
				if overMemory {
					// A single cell still blows the tile memory budget;
					// no amount of splitting can help
					return fmt.Errorf("%w: single-cell region requires %d fixed / %d var tile bytes",
						ErrMemoryBudgetExceeded, memFixed, memVar)
				}
				// Estimates are upper bounds; let the copier decide
				// whether this region actually overflows
				p.current = next
				return nil
			}
			p.queue = append([]*Subarray[T]{a, b}, p.queue...)
			continue
		}

		p.current = next
		return nil
	}
}

// SplitCurrent splits the current sub-region after an overflow and
// advances to the first fitting half. If the sub-region cannot be split
// the unsplittable flag is raised and current is left in place.
func (p *Partitioner[T]) SplitCurrent() error {
	if p.current == nil {
		return fmt.Errorf("%w: split with no current sub-region", ErrInternal)
	}

	a, b, ok := p.current.split(p.layout)
	if !ok {
		p.unsplittable = true
		return nil
	}

	p.queue = append([]*Subarray[T]{a, b}, p.queue...)
	return p.Next()
}
