package graph

import (
	"errors"
	"fmt"

	"github.com/roach88/taxon/internal/store"
)

// Sentinel errors matched by errors.Is against any *GraphError of the
// corresponding code.
var (
	ErrCyclicGraph  = errors.New("cyclic graph")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// ErrorCode categorizes graph errors.
type ErrorCode string

const (
	// ErrCodeCyclicGraph indicates an edge would make a node its own ancestor.
	ErrCodeCyclicGraph ErrorCode = "CYCLIC_GRAPH"

	// ErrCodeNotFound indicates a referenced node, edge or assignment does
	// not exist or has been deleted.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidInput indicates a request that fails validation before
	// touching the store.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// GraphError is the error type returned by catalog operations.
type GraphError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Kind names the record type involved ("node", "edge", "assignment").
	Kind string

	// ID identifies the record involved, if any.
	ID string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s (%s=%s)", e.Code, e.Message, e.Kind, e.ID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's code.
func (e *GraphError) Is(target error) bool {
	switch e.Code {
	case ErrCodeCyclicGraph:
		return target == ErrCyclicGraph
	case ErrCodeNotFound:
		return target == ErrNotFound
	case ErrCodeInvalidInput:
		return target == ErrInvalidInput
	}
	return false
}

// IsCyclicError returns true if the error rejected an edge that would close
// a cycle. Uses errors.As to handle wrapped errors.
func IsCyclicError(err error) bool {
	return hasCode(err, ErrCodeCyclicGraph)
}

// IsNotFoundError returns true if the error reports a missing record.
// Uses errors.As to handle wrapped errors.
func IsNotFoundError(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsInvalidInputError returns true if the error reports a rejected request.
func IsInvalidInputError(err error) bool {
	return hasCode(err, ErrCodeInvalidInput)
}

func hasCode(err error, code ErrorCode) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}

// NewCyclicError creates the error returned when parent -> child would
// close a cycle.
func NewCyclicError(parentID, childID string) *GraphError {
	return &GraphError{
		Code:    ErrCodeCyclicGraph,
		Message: fmt.Sprintf("node %s is already an ancestor of %s", childID, parentID),
		Kind:    "edge",
		ID:      parentID + "->" + childID,
	}
}

// NewNotFoundError creates the error returned for a missing record.
func NewNotFoundError(kind, id string) *GraphError {
	return &GraphError{
		Code:    ErrCodeNotFound,
		Message: kind + " does not exist",
		Kind:    kind,
		ID:      id,
	}
}

func newInvalidInputError(message string) *GraphError {
	return &GraphError{Code: ErrCodeInvalidInput, Message: message}
}

// translate converts store-level not-found errors into GraphErrors and
// passes everything else through with context.
func translate(err error, kind, id, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		ge := NewNotFoundError(kind, id)
		ge.Err = err
		return ge
	}
	return fmt.Errorf("%s: %w", op, err)
}
