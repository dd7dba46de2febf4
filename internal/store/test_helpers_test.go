package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/taxon/internal/model"
)

var testTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// createTestStore opens a fresh database in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestNode inserts an active node with the given id.
func insertTestNode(t *testing.T, s *Store, id string) model.Node {
	t.Helper()
	n := model.Node{
		ID:       id,
		IsActive: true,
		Created:  testTime,
		Updated:  testTime,
	}
	if err := s.InsertNode(context.Background(), n); err != nil {
		t.Fatalf("InsertNode(%s) failed: %v", id, err)
	}
	return n
}

func testEdge(id, parent, child string, sortKey int64) model.Edge {
	return model.Edge{
		ID:       id,
		ParentID: parent,
		ChildID:  child,
		SortKey:  sortKey,
		Created:  testTime,
		Updated:  testTime,
	}
}

func testAssignment(id, node, item string, sortKey int64) model.Assignment {
	return model.Assignment{
		ID:      id,
		NodeID:  node,
		ItemID:  item,
		SortKey: sortKey,
		Created: testTime,
		Updated: testTime,
	}
}
