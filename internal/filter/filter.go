package filter

import (
	"fmt"

	"github.com/soltixdb/gridstore/internal/compression"
)

// Filter transforms a tile buffer in one direction or the other. The write
// path runs filters forward; the read path runs them in reverse.
type Filter interface {
	// Name returns a short identifier for diagnostics
	Name() string

	// RunForward encodes data
	RunForward(data []byte) ([]byte, error)

	// RunReverse decodes data produced by RunForward
	RunReverse(data []byte) ([]byte, error)
}

// Pipeline is an ordered chain of filters applied to tile buffers
type Pipeline struct {
	filters []Filter
}

// NewPipeline creates a pipeline from the given filters, applied in order
// on the forward pass
func NewPipeline(filters ...Filter) *Pipeline {
	return &Pipeline{filters: filters}
}

// Empty reports whether the pipeline has no filters
func (p *Pipeline) Empty() bool {
	return p == nil || len(p.filters) == 0
}

// RunForward encodes a tile buffer through all filters in order
func (p *Pipeline) RunForward(data []byte) ([]byte, error) {
	if p == nil {
		return data, nil
	}
	var err error
	for _, f := range p.filters {
		data, err = f.RunForward(data)
		if err != nil {
			return nil, fmt.Errorf("filter %s forward failed: %w", f.Name(), err)
		}
	}
	return data, nil
}

// RunReverse decodes a tile buffer through all filters in reverse order
func (p *Pipeline) RunReverse(data []byte) ([]byte, error) {
	if p == nil {
		return data, nil
	}
	var err error
	for i := len(p.filters) - 1; i >= 0; i-- {
		f := p.filters[i]
		data, err = f.RunReverse(data)
		if err != nil {
			return nil, fmt.Errorf("filter %s reverse failed: %w", f.Name(), err)
		}
	}
	return data, nil
}

// WithEncryption returns a copy of the pipeline with an encryption filter
// appended. A nil or empty key returns the pipeline unchanged.
func (p *Pipeline) WithEncryption(key []byte) (*Pipeline, error) {
	if len(key) == 0 {
		return p, nil
	}
	enc, err := NewEncryptionFilter(key)
	if err != nil {
		return nil, err
	}
	var filters []Filter
	if p != nil {
		filters = append(filters, p.filters...)
	}
	filters = append(filters, enc)
	return &Pipeline{filters: filters}, nil
}

// CompressionFilter wraps a Compressor as a pipeline filter
type CompressionFilter struct {
	comp compression.Compressor
}

// NewCompressionFilter creates a filter for the given algorithm
func NewCompressionFilter(algo compression.Algorithm) (*CompressionFilter, error) {
	comp, err := compression.GetCompressor(algo)
	if err != nil {
		return nil, err
	}
	return &CompressionFilter{comp: comp}, nil
}

// Name returns the filter identifier
func (f *CompressionFilter) Name() string {
	switch f.comp.Algorithm() {
	case compression.Snappy:
		return "snappy"
	case compression.Delta:
		return "delta"
	default:
		return "none"
	}
}

// RunForward compresses data
func (f *CompressionFilter) RunForward(data []byte) ([]byte, error) {
	return f.comp.Compress(data)
}

// RunReverse decompresses data
func (f *CompressionFilter) RunReverse(data []byte) ([]byte, error) {
	return f.comp.Decompress(data)
}
