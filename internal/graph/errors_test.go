package graph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/taxon/internal/store"
)

func TestGraphError_Is(t *testing.T) {
	cyclic := NewCyclicError("B", "R")
	wrapped := fmt.Errorf("create edge: %w", cyclic)

	assert.True(t, errors.Is(wrapped, ErrCyclicGraph))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.True(t, IsCyclicError(wrapped))
	assert.False(t, IsNotFoundError(wrapped))
	assert.Equal(t, "CYCLIC_GRAPH: node R is already an ancestor of B (edge=B->R)", cyclic.Error())
}

func TestTranslate(t *testing.T) {
	err := translate(fmt.Errorf("delete edge: %w", store.ErrNotFound), "edge", "e1", "delete edge")
	assert.True(t, IsNotFoundError(err))
	assert.True(t, errors.Is(err, store.ErrNotFound), "store cause stays reachable")
	assert.Equal(t, "NOT_FOUND: edge does not exist (edge=e1)", err.Error())

	other := errors.New("disk full")
	err = translate(other, "edge", "e1", "delete edge")
	assert.False(t, IsNotFoundError(err))
	assert.True(t, errors.Is(err, other))
	assert.Equal(t, "delete edge: disk full", err.Error())

	assert.NoError(t, translate(nil, "edge", "e1", "delete edge"))
}

func TestTranslate_WithoutID(t *testing.T) {
	err := translate(fmt.Errorf("update edge sort keys: edge x: %w", store.ErrNotFound), "edge", "", "reorder edges")
	assert.True(t, IsNotFoundError(err))
	assert.Contains(t, err.Error(), "edge x")
}
