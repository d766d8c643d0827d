package vecdb

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a collection (or embedding, where noted)
	// does not exist.
	ErrNotFound = errors.New("collection not found")

	// ErrAlreadyExists is returned when creating a collection whose name is
	// already taken.
	ErrAlreadyExists = errors.New("collection already exists")

	// ErrInvalidK is returned when the requested result count is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrZeroVector is returned when a cosine collection receives a vector
	// with zero L2 norm, which cannot be normalized.
	ErrZeroVector = errors.New("cannot normalize zero vector")

	// ErrPersistence indicates that a WAL append or flush did not complete.
	// The mutation was not applied to memory; the caller may retry.
	ErrPersistence = errors.New("persistence failure")

	// ErrCorruptLog indicates that restore encountered a well-formed but
	// semantically invalid entry. The rebuilt state would be inconsistent,
	// so restore aborts.
	ErrCorruptLog = errors.New("corrupt persistence log")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured collection dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}
