package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxon/internal/model"
)

// buildChain creates R -> A -> B with p1 in B and p2 in A.
func buildChain(t *testing.T, env *testEnv) {
	t.Helper()
	env.node(t, "R")
	env.node(t, "A")
	env.node(t, "B")
	env.edge(t, "R", "A")
	env.edge(t, "A", "B")
	env.assign(t, "B", "p1")
	env.assign(t, "A", "p2")
}

func TestCatalog_ChainScenario(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	buildChain(t, env)

	assert.ElementsMatch(t, []string{"p1", "p2"}, env.items(t, "R"))
	assert.Equal(t, []string{"p2", "p1"}, env.items(t, "A"))
	assert.Equal(t, []string{"p1"}, env.items(t, "B"))

	edges, err := env.cat.ChildEdges(ctx, "A")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.NoError(t, env.cat.DeleteEdge(ctx, edges[0].ID))

	assert.Equal(t, []string{"p2"}, env.items(t, "R"))
	assert.Equal(t, []string{"p2"}, env.items(t, "A"))

	own, err := env.cat.ItemIDs(ctx, "A", ItemQuery{IgnoreChildren: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, own)
}

func TestCatalog_CreateEdgeRejectsCycle(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	buildChain(t, env)

	_, err := env.cat.CreateEdge(ctx, EdgeInput{ParentID: "B", ChildID: "R"})
	require.Error(t, err)
	assert.True(t, IsCyclicError(err))
	assert.True(t, errors.Is(err, ErrCyclicGraph))

	_, err = env.cat.CreateEdge(ctx, EdgeInput{ParentID: "A", ChildID: "A"})
	assert.True(t, IsCyclicError(err), "self links are cyclic")

	parents, err := env.cat.ParentEdges(ctx, "R")
	require.NoError(t, err)
	assert.Empty(t, parents, "rejected edge must not be written")

	children, err := env.cat.ChildEdges(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestCatalog_CreateEdgeUnknownNode(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	env.node(t, "R")

	_, err := env.cat.CreateEdge(ctx, EdgeInput{ParentID: "R", ChildID: "missing"})
	assert.True(t, IsNotFoundError(err))
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = env.cat.CreateEdge(ctx, EdgeInput{ParentID: "R"})
	assert.True(t, IsInvalidInputError(err))
}

func TestCatalog_CreateEdgeIsUpsert(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	env.node(t, "R")
	env.node(t, "A")
	env.node(t, "B")

	first := env.edge(t, "R", "A")
	second := env.edge(t, "R", "B")
	assert.Equal(t, int64(1), first.SortKey)
	assert.Equal(t, int64(2), second.SortKey)

	again := env.edge(t, "R", "A")
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, int64(1), again.SortKey, "omitted sort key keeps the stored one")

	moved, err := env.cat.CreateEdge(ctx, EdgeInput{ParentID: "R", ChildID: "A", SortKey: int64Ptr(9)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, moved.ID)
	assert.Equal(t, int64(9), moved.SortKey)

	edges, err := env.cat.ChildEdges(ctx, "R")
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, "B", edges[0].ChildID)
	assert.Equal(t, "A", edges[1].ChildID)
}

func TestCatalog_DeleteEdgeUnknown(t *testing.T) {
	env := createTestCatalog(t)
	err := env.cat.DeleteEdge(context.Background(), "missing")
	assert.True(t, IsNotFoundError(err))
}

func TestCatalog_DedupAcrossPaths(t *testing.T) {
	env := createTestCatalog(t)
	for _, id := range []string{"R", "A", "B", "C"} {
		env.node(t, id)
	}
	env.edge(t, "R", "A")
	env.edge(t, "R", "B")
	env.edge(t, "A", "C")
	env.edge(t, "B", "C")
	env.assign(t, "C", "x")
	env.assign(t, "A", "x")

	assert.Equal(t, []string{"x"}, env.items(t, "R"))
	assert.Equal(t, []string{"x"}, env.items(t, "A"))
}

func TestCatalog_UpstreamPropagation(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	for _, id := range []string{"R1", "R2", "A", "B", "C"} {
		env.node(t, id)
	}
	env.edge(t, "R1", "A")
	env.edge(t, "R2", "B")
	env.edge(t, "A", "C")
	env.edge(t, "B", "C")

	env.assign(t, "C", "deep")

	for _, id := range []string{"R1", "R2", "A", "B", "C"} {
		rec, err := env.store.GetCacheRecord(ctx, id)
		require.NoError(t, err, "node %s must be materialized", id)
		assert.Contains(t, rec.ItemIDs, "deep", "node %s", id)
	}
}

func TestCatalog_InterleavesChildren(t *testing.T) {
	env := createTestCatalog(t)
	for _, id := range []string{"R", "A", "B"} {
		env.node(t, id)
	}
	env.edge(t, "R", "A")
	env.edge(t, "R", "B")
	env.assign(t, "A", "a1")
	env.assign(t, "A", "a2")
	env.assign(t, "A", "a3")
	env.assign(t, "B", "b1")
	env.assign(t, "R", "r1")

	assert.Equal(t, []string{"r1", "a1", "b1", "a2", "a3"}, env.items(t, "R"))
	assert.Equal(t, env.liveItems(t, "R"), env.items(t, "R"))
}

func TestCatalog_SetActive(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	env.node(t, "R")
	env.node(t, "A")
	env.edge(t, "R", "A")
	env.assign(t, "R", "r1")
	env.assign(t, "A", "a1")
	require.Equal(t, []string{"r1", "a1"}, env.items(t, "R"))

	node, err := env.cat.SetActive(ctx, "A", false)
	require.NoError(t, err)
	assert.False(t, node.IsActive)
	assert.Equal(t, []string{"r1"}, env.items(t, "R"))
	assert.Equal(t, []string{"a1"}, env.items(t, "A"), "inactive nodes keep their own list")

	_, err = env.cat.SetActive(ctx, "A", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "a1"}, env.items(t, "R"))
}

func TestCatalog_UpdateNode(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	env.node(t, "R")

	root := true
	node, err := env.cat.UpdateNode(ctx, "R", NodePatch{
		IsRoot: &root,
		Tags:   []string{"Sale", "new"},
		Slugs:  []string{" Shoes "},
	})
	require.NoError(t, err)
	assert.True(t, node.IsRoot)
	assert.Equal(t, []string{"new", "sale"}, node.Tags)
	assert.Equal(t, []string{"shoes"}, node.Slugs)

	_, err = env.cat.UpdateNode(ctx, "missing", NodePatch{IsRoot: &root})
	assert.True(t, IsNotFoundError(err))
}

func TestCatalog_Nodes(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)

	_, err := env.cat.CreateNode(ctx, NodeInput{ID: "b", IsActive: true, IsRoot: true, Sequence: 2})
	require.NoError(t, err)
	_, err = env.cat.CreateNode(ctx, NodeInput{ID: "a", IsActive: true, Sequence: 1, Tags: []string{"Sale"}})
	require.NoError(t, err)
	_, err = env.cat.CreateNode(ctx, NodeInput{ID: "c", Sequence: 3})
	require.NoError(t, err)

	all, err := env.cat.Nodes(ctx, model.NodeFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, nodeIDs(all))

	roots, err := env.cat.Nodes(ctx, model.NodeFilter{OnlyRoots: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, nodeIDs(roots))

	active, err := env.cat.Nodes(ctx, model.NodeFilter{OnlyActive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, nodeIDs(active))

	tagged, err := env.cat.Nodes(ctx, model.NodeFilter{Tags: []string{"SALE"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, nodeIDs(tagged))
}

func TestCatalog_CreateNodeGeneratesID(t *testing.T) {
	env := createTestCatalog(t)
	n, err := env.cat.CreateNode(context.Background(), NodeInput{IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "id-1", n.ID)
}

func TestCatalog_DeleteNode(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	buildChain(t, env)

	require.NoError(t, env.cat.DeleteNode(ctx, "A"))

	assert.Empty(t, env.items(t, "R"))
	assert.Equal(t, []string{"p1"}, env.items(t, "B"))

	_, err := env.cat.Node(ctx, "A")
	assert.True(t, IsNotFoundError(err))
	_, err = env.cat.ItemIDs(ctx, "A", ItemQuery{})
	assert.True(t, IsNotFoundError(err))

	parents, err := env.cat.ParentEdges(ctx, "B")
	require.NoError(t, err)
	assert.Empty(t, parents)

	own, err := env.cat.Assignments(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, own)

	err = env.cat.DeleteNode(ctx, "A")
	assert.True(t, IsNotFoundError(err), "deleting twice is not a no-op")
}

func TestCatalog_SetBase(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	env.node(t, "X")
	env.node(t, "Y")

	_, err := env.cat.BaseNode(ctx)
	assert.True(t, IsNotFoundError(err))

	require.NoError(t, env.cat.SetBase(ctx, "X"))
	base, err := env.cat.BaseNode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "X", base.ID)

	require.NoError(t, env.cat.SetBase(ctx, "Y"))
	base, err = env.cat.BaseNode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Y", base.ID)

	x, err := env.cat.Node(ctx, "X")
	require.NoError(t, err)
	assert.False(t, x.IsBase)

	err = env.cat.SetBase(ctx, "missing")
	assert.True(t, IsNotFoundError(err))
}

func TestCatalog_ConcurrentEdgesStayAcyclic(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)

	const n = 8
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%d", i)
		env.node(t, ids[i])
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			i, j := i, j
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.cat.CreateEdge(ctx, EdgeInput{ParentID: ids[i], ChildID: ids[j]})
				if err != nil && !IsCyclicError(err) {
					t.Errorf("CreateEdge(%s, %s): unexpected error: %v", ids[i], ids[j], err)
				}
			}()
		}
	}
	wg.Wait()

	nodes, err := env.cat.Nodes(ctx, model.NodeFilter{})
	require.NoError(t, err)
	edges, err := env.store.AllEdges(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, edges)

	_, err = childrenFirst(nodes, edges)
	assert.NoError(t, err, "edge relation must stay acyclic")

	pairs := make(map[string]bool)
	for _, e := range edges {
		pairs[e.ParentID+">"+e.ChildID] = true
	}
	for _, e := range edges {
		assert.False(t, pairs[e.ChildID+">"+e.ParentID], "both %s>%s and its reverse exist", e.ParentID, e.ChildID)
	}
}

func TestCatalog_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	buildChain(t, env)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := env.cat.ItemIDs(ctx, "R", ItemQuery{})
			if assert.NoError(t, err) {
				assert.ElementsMatch(t, []string{"p1", "p2"}, items)
			}
			crumbs, err := env.cat.NodeBreadcrumbs(ctx, "B")
			if assert.NoError(t, err) {
				assert.Len(t, crumbs, 1)
			}
		}()
	}
	wg.Wait()
}

func nodeIDs(nodes []model.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
