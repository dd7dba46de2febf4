package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxon/internal/model"
)

func graphErrorOf(t *testing.T, err error) *GraphError {
	t.Helper()
	var ge *GraphError
	require.True(t, errors.As(err, &ge), "not a graph error: %v", err)
	return ge
}

func childIDs(edges []model.Edge) []string {
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.ChildID
	}
	return ids
}

func TestCatalog_ReorderChildren(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	for _, id := range []string{"R", "A", "B", "C"} {
		env.node(t, id)
	}
	env.edge(t, "R", "A")
	env.edge(t, "R", "B")
	env.edge(t, "R", "C")
	env.assign(t, "A", "a1")
	env.assign(t, "B", "b1")
	env.assign(t, "C", "c1")
	require.Equal(t, []string{"a1", "b1", "c1"}, env.items(t, "R"))

	updated, err := env.cat.ReorderChildren(ctx, "R", []string{"C", "A"})
	require.NoError(t, err)
	assert.Len(t, updated, 3)

	edges, err := env.cat.ChildEdges(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, childIDs(edges))
	for i, e := range edges {
		assert.Equal(t, int64(i+1), e.SortKey)
	}

	// Same set in a new order: the record is left as it was.
	assert.Equal(t, []string{"a1", "b1", "c1"}, env.items(t, "R"))
	assert.Equal(t, []string{"c1", "a1", "b1"}, env.liveItems(t, "R"))
}

func TestCatalog_ReorderChildrenErrors(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	env.node(t, "R")
	env.node(t, "A")
	env.edge(t, "R", "A")

	_, err := env.cat.ReorderChildren(ctx, "R", []string{"A", "A"})
	assert.True(t, IsInvalidInputError(err))

	_, err = env.cat.ReorderChildren(ctx, "R", []string{"missing"})
	require.True(t, IsNotFoundError(err))
	ge := graphErrorOf(t, err)
	assert.Equal(t, "edge", ge.Kind)
	assert.Equal(t, "R->missing", ge.ID)

	_, err = env.cat.ReorderChildren(ctx, "nope", nil)
	assert.True(t, IsNotFoundError(err))

	// Nothing was renumbered by the failed calls.
	edges, err := env.cat.ChildEdges(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, int64(1), edges[0].SortKey)
}

func TestCatalog_ReorderItems(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	env.node(t, "P")
	env.node(t, "R")
	env.edge(t, "P", "R")
	env.assign(t, "R", "x")
	env.assign(t, "R", "y")
	env.assign(t, "R", "z")

	writes := env.counting.writes.Load()
	updated, err := env.cat.ReorderItems(ctx, "R", []string{"z"})
	require.NoError(t, err)
	assert.Len(t, updated, 3)

	own, err := env.cat.ItemIDs(ctx, "R", ItemQuery{IgnoreChildren: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "x", "y"}, own)

	// Reordering never changes a set, so no record is written until a rebuild.
	assert.Equal(t, writes, env.counting.writes.Load())
	assert.Equal(t, []string{"x", "y", "z"}, env.items(t, "R"))
	assert.Equal(t, []string{"x", "y", "z"}, env.items(t, "P"))
	assert.Equal(t, []string{"z", "x", "y"}, env.liveItems(t, "P"))

	inv, err := env.cat.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"R", "P"}, inv.Written)
	assert.Equal(t, []string{"z", "x", "y"}, env.items(t, "R"))
	assert.Equal(t, []string{"z", "x", "y"}, env.items(t, "P"))
}

func TestCatalog_ReorderItemsErrors(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	env.node(t, "R")
	env.assign(t, "R", "x")

	_, err := env.cat.ReorderItems(ctx, "R", []string{"x", "x"})
	assert.True(t, IsInvalidInputError(err))

	_, err = env.cat.ReorderItems(ctx, "R", []string{"y"})
	require.True(t, IsNotFoundError(err))
	ge := graphErrorOf(t, err)
	assert.Equal(t, "assignment", ge.Kind)
	assert.Equal(t, "R/y", ge.ID)
}

func TestCatalog_EdgeBetween(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	env.node(t, "R")
	env.node(t, "A")
	created := env.edge(t, "R", "A")

	edge, err := env.cat.EdgeBetween(ctx, "R", "A")
	require.NoError(t, err)
	assert.Equal(t, created.ID, edge.ID)

	_, err = env.cat.EdgeBetween(ctx, "A", "R")
	require.True(t, IsNotFoundError(err))
	ge := graphErrorOf(t, err)
	assert.Equal(t, "A->R", ge.ID)
}

func TestCatalog_AssignmentOf(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	env.node(t, "R")
	created := env.assign(t, "R", "x")

	a, err := env.cat.AssignmentOf(ctx, "R", "x")
	require.NoError(t, err)
	assert.Equal(t, created.ID, a.ID)

	_, err = env.cat.AssignmentOf(ctx, "R", "y")
	require.True(t, IsNotFoundError(err))
	ge := graphErrorOf(t, err)
	assert.Equal(t, "assignment", ge.Kind)
	assert.Equal(t, "R/y", ge.ID)
}

func TestPositionalUpdates(t *testing.T) {
	current := []keyedID{{"a", "id-1"}, {"b", "id-2"}, {"c", "id-3"}}

	updates, err := positionalUpdates(current, []string{"c"}, "edge", "R->")
	require.NoError(t, err)
	assert.Equal(t, []model.SortKeyUpdate{
		{ID: "id-3", SortKey: 1},
		{ID: "id-1", SortKey: 2},
		{ID: "id-2", SortKey: 3},
	}, updates)

	updates, err = positionalUpdates(current, nil, "edge", "R->")
	require.NoError(t, err)
	assert.Len(t, updates, 3)
	assert.Equal(t, "id-1", updates[0].ID)
}
