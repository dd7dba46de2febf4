package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxon/internal/graph"
	"github.com/roach88/taxon/internal/model"
	"github.com/roach88/taxon/internal/store"
	"github.com/roach88/taxon/internal/testutil"
)

func createTestCatalog(t *testing.T) *graph.Catalog {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return graph.New(st, graph.Options{
		IDs:   model.NewSequenceGenerator("id"),
		Clock: testutil.NewStepClock(),
	})
}

func TestLoadFile_YAML(t *testing.T) {
	f, err := LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)

	require.Len(t, f.Nodes, 4)
	assert.Equal(t, "shoes", f.Nodes[0].ID)
	assert.True(t, f.Nodes[0].Root)
	assert.Nil(t, f.Nodes[0].Active)
	require.NotNil(t, f.Nodes[3].Active)
	assert.False(t, *f.Nodes[3].Active)
	assert.Len(t, f.Edges, 3)
	assert.Len(t, f.Assignments, 5)
	assert.Equal(t, "shoes", f.Base)
}

func TestLoadFile_CUE(t *testing.T) {
	f, err := LoadFile("testdata/catalog.cue")
	require.NoError(t, err)

	require.Len(t, f.Nodes, 3)
	assert.Equal(t, "sneakers", f.Nodes[1].ID)
	assert.Equal(t, int64(3), f.Nodes[2].Sequence)
	require.Len(t, f.Edges, 2)
	assert.Equal(t, Edge{Parent: "shoes", Child: "boots"}, f.Edges[1])
	require.Len(t, f.Assignments, 2)
	require.NotNil(t, f.Assignments[1].SortKey)
	assert.Equal(t, int64(5), *f.Assignments[1].SortKey)
}

func TestLoadFile_RejectsUnknownFields(t *testing.T) {
	_, err := LoadFile("testdata/unknown_field.yaml")
	assert.Error(t, err)

	_, err = LoadFile("testdata/unknown_field.cue")
	assert.Error(t, err)
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	_, err := LoadFile("testdata/catalog.toml")
	assert.Error(t, err)
}

func TestParseYAML_Validation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing node id", "nodes:\n  - root: true\n"},
		{"duplicate node", "nodes:\n  - id: a\n  - id: a\n"},
		{"edge without child", "edges:\n  - parent: a\n"},
		{"assignment without item", "assignments:\n  - node: a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestParseYAML_Empty(t *testing.T) {
	f, err := ParseYAML(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Nodes)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	cat := createTestCatalog(t)

	f, err := LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)

	sum, err := Apply(ctx, cat, f)
	require.NoError(t, err)
	assert.Equal(t, Summary{NodesCreated: 4, Edges: 3, Assignments: 5}, sum)

	items, err := cat.ItemIDs(ctx, "shoes", graph.ItemQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"sku-0", "sku-1", "sku-3", "sku-2"}, items, "inactive archive is excluded")

	base, err := cat.BaseNode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shoes", base.ID)

	shoes, err := cat.Node(ctx, "shoes")
	require.NoError(t, err)
	assert.Equal(t, []string{"shoes"}, shoes.Slugs)

	sneakers, err := cat.Node(ctx, "sneakers")
	require.NoError(t, err)
	assert.Equal(t, []string{"sale"}, sneakers.Tags)
}

func TestApply_Twice(t *testing.T) {
	ctx := context.Background()
	cat := createTestCatalog(t)

	f, err := LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)

	_, err = Apply(ctx, cat, f)
	require.NoError(t, err)
	before, err := cat.ItemIDs(ctx, "shoes", graph.ItemQuery{})
	require.NoError(t, err)

	sum, err := Apply(ctx, cat, f)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.NodesUpdated)
	assert.Zero(t, sum.NodesCreated)

	after, err := cat.ItemIDs(ctx, "shoes", graph.ItemQuery{})
	require.NoError(t, err)
	assert.Equal(t, before, after)

	edges, err := cat.ChildEdges(ctx, "shoes")
	require.NoError(t, err)
	assert.Len(t, edges, 3)
}

func TestApply_CyclicSeedFails(t *testing.T) {
	ctx := context.Background()
	cat := createTestCatalog(t)

	f := &File{
		Nodes: []Node{{ID: "a"}, {ID: "b"}},
		Edges: []Edge{{Parent: "a", Child: "b"}, {Parent: "b", Child: "a"}},
	}
	sum, err := Apply(ctx, cat, f)
	require.Error(t, err)
	assert.True(t, graph.IsCyclicError(err))
	assert.Equal(t, 1, sum.Edges)
}

func TestApply_UnknownReference(t *testing.T) {
	ctx := context.Background()
	cat := createTestCatalog(t)

	_, err := Apply(ctx, cat, &File{
		Assignments: []Assignment{{Node: "ghost", Item: "sku-1"}},
	})
	assert.True(t, graph.IsNotFoundError(err))
}
