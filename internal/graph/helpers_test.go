package graph

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxon/internal/model"
	"github.com/roach88/taxon/internal/store"
	"github.com/roach88/taxon/internal/testutil"
)

// countingStore records how many cache records were written.
type countingStore struct {
	Store
	writes atomic.Int64
}

func (s *countingStore) SetCacheRecord(ctx context.Context, rec model.CacheRecord) error {
	s.writes.Add(1)
	return s.Store.SetCacheRecord(ctx, rec)
}

// testEnv bundles a catalog with its backing store.
type testEnv struct {
	cat      *Catalog
	store    *store.Store
	counting *countingStore
	registry *prometheus.Registry
}

// createTestCatalog opens a fresh database in a temp directory and wires a
// catalog over it with deterministic ids and timestamps.
func createTestCatalog(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	counting := &countingStore{Store: st}
	registry := prometheus.NewRegistry()
	cat := New(counting, Options{
		IDs:        model.NewSequenceGenerator("id"),
		Clock:      testutil.NewStepClock(),
		Registerer: registry,
	})
	return &testEnv{cat: cat, store: st, counting: counting, registry: registry}
}

func (e *testEnv) node(t *testing.T, id string) model.Node {
	t.Helper()
	n, err := e.cat.CreateNode(context.Background(), NodeInput{ID: id, IsActive: true})
	require.NoError(t, err)
	return n
}

func (e *testEnv) edge(t *testing.T, parent, child string) model.Edge {
	t.Helper()
	edge, err := e.cat.CreateEdge(context.Background(), EdgeInput{ParentID: parent, ChildID: child})
	require.NoError(t, err)
	return edge
}

func (e *testEnv) assign(t *testing.T, node, item string) model.Assignment {
	t.Helper()
	a, err := e.cat.CreateAssignment(context.Background(), AssignmentInput{NodeID: node, ItemID: item})
	require.NoError(t, err)
	return a
}

func (e *testEnv) items(t *testing.T, node string) []string {
	t.Helper()
	ids, err := e.cat.ItemIDs(context.Background(), node, ItemQuery{})
	require.NoError(t, err)
	return ids
}

func (e *testEnv) liveItems(t *testing.T, node string) []string {
	t.Helper()
	ids, err := e.cat.ItemIDs(context.Background(), node, ItemQuery{ForceLive: true})
	require.NoError(t, err)
	return ids
}

func int64Ptr(v int64) *int64 {
	return &v
}
