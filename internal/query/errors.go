package query

import "errors"

// Error kinds surfaced by the read path
var (
	// ErrNotInitialized reports a read attempted before required setters ran
	ErrNotInitialized = errors.New("reader not initialized")

	// ErrInvalidAttribute reports an unknown attribute name
	ErrInvalidAttribute = errors.New("invalid attribute")

	// ErrVarLengthMismatch reports a buffer of the wrong flavor for an
	// attribute
	ErrVarLengthMismatch = errors.New("var-length buffer mismatch")

	// ErrInvalidRange reports a range outside the domain or malformed
	ErrInvalidRange = errors.New("invalid range")

	// ErrUnsupportedDomainType reports an operation the domain type cannot
	// support, e.g. a dense read over a floating-point domain
	ErrUnsupportedDomainType = errors.New("unsupported domain type")

	// ErrMemoryBudgetExceeded reports a single tile exceeding the
	// configured memory budget
	ErrMemoryBudgetExceeded = errors.New("memory budget exceeded")

	// ErrIO reports a storage read failure
	ErrIO = errors.New("io error")

	// ErrDecode reports a filter pipeline failure
	ErrDecode = errors.New("decode error")

	// ErrInvalidConfig reports malformed configuration
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInternal reports an invariant violation
	ErrInternal = errors.New("internal error")
)
