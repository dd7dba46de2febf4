package graph

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxon/internal/model"
)

// buildDiamond creates R -> {A, B} -> C with item x in C and in A.
func buildDiamond(t *testing.T, env *testEnv) {
	t.Helper()
	for _, id := range []string{"R", "A", "B", "C"} {
		env.node(t, id)
	}
	env.edge(t, "R", "A")
	env.edge(t, "R", "B")
	env.edge(t, "A", "C")
	env.edge(t, "B", "C")
	env.assign(t, "C", "x")
	env.assign(t, "A", "x")
}

func renderBreadcrumbs(buf *bytes.Buffer, label string, crumbs []model.Breadcrumb) {
	if len(crumbs) == 0 {
		fmt.Fprintf(buf, "%s: none\n", label)
		return
	}
	for _, b := range crumbs {
		path := strings.Join(b.NodeIDs(), ">")
		if len(b.Edges) == 0 && b.Assignment == nil {
			path = "(root)"
		}
		var edgeIDs []string
		for _, e := range b.Edges {
			edgeIDs = append(edgeIDs, e.ID)
		}
		line := fmt.Sprintf("%s: %s [%s]", label, path, strings.Join(edgeIDs, " "))
		if b.Assignment != nil {
			line += fmt.Sprintf(" via %s@%s", b.Assignment.ID, b.Assignment.NodeID)
		}
		buf.WriteString(line + "\n")
	}
}

func TestBreadcrumbs_Golden(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	buildDiamond(t, env)

	var buf bytes.Buffer
	for _, id := range []string{"R", "A", "C"} {
		crumbs, err := env.cat.NodeBreadcrumbs(ctx, id)
		require.NoError(t, err)
		renderBreadcrumbs(&buf, "node "+id, crumbs)
	}
	for _, id := range []string{"x", "unassigned"} {
		crumbs, err := env.cat.ItemBreadcrumbs(ctx, id)
		require.NoError(t, err)
		renderBreadcrumbs(&buf, "item "+id, crumbs)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "breadcrumbs", buf.Bytes())
}

func TestNodeBreadcrumbs_RootFirst(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	buildChain(t, env)

	crumbs, err := env.cat.NodeBreadcrumbs(ctx, "B")
	require.NoError(t, err)
	require.Len(t, crumbs, 1)
	require.Len(t, crumbs[0].Edges, 2)
	assert.Equal(t, "R", crumbs[0].Edges[0].ParentID)
	assert.Equal(t, "B", crumbs[0].Edges[1].ChildID)
	assert.Equal(t, []string{"R", "A", "B"}, crumbs[0].NodeIDs())
}

func TestNodeBreadcrumbs_UnknownOrDeleted(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	buildChain(t, env)

	_, err := env.cat.NodeBreadcrumbs(ctx, "missing")
	assert.True(t, IsNotFoundError(err))

	require.NoError(t, env.cat.DeleteNode(ctx, "A"))
	_, err = env.cat.NodeBreadcrumbs(ctx, "A")
	assert.True(t, IsNotFoundError(err))

	crumbs, err := env.cat.NodeBreadcrumbs(ctx, "B")
	require.NoError(t, err)
	require.Len(t, crumbs, 1)
	assert.Empty(t, crumbs[0].Edges, "B lost its only parent")
}

func TestItemBreadcrumbs_CarryAssignment(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	buildChain(t, env)

	crumbs, err := env.cat.ItemBreadcrumbs(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, crumbs, 1)
	require.NotNil(t, crumbs[0].Assignment)
	assert.Equal(t, "B", crumbs[0].Assignment.NodeID)
	assert.Equal(t, "p1", crumbs[0].Assignment.ItemID)
	assert.Equal(t, []string{"R", "A", "B"}, crumbs[0].NodeIDs())
}

func TestAncestors(t *testing.T) {
	ctx := context.Background()
	env := createTestCatalog(t)
	buildDiamond(t, env)

	resolver := NewPathResolver(env.store)

	got, err := resolver.Ancestors(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"A": {}, "B": {}, "R": {}}, got)

	got, err = resolver.Ancestors(ctx, "R")
	require.NoError(t, err)
	assert.Empty(t, got)
}
