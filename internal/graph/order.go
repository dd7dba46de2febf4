package graph

import (
	"fmt"

	"github.com/roach88/taxon/internal/model"
)

// childrenFirst orders nodes so that every node comes after all of its
// children, using Kahn's algorithm over the reversed edge relation.
// Leaves come first in listing order. Edges touching nodes outside the
// list are ignored.
func childrenFirst(nodes []model.Node, edges []model.Edge) ([]string, error) {
	remaining := make(map[string]int, len(nodes))
	for _, n := range nodes {
		remaining[n.ID] = 0
	}

	parents := make(map[string][]string)
	for _, e := range edges {
		if _, ok := remaining[e.ParentID]; !ok {
			continue
		}
		if _, ok := remaining[e.ChildID]; !ok {
			continue
		}
		remaining[e.ParentID]++
		parents[e.ChildID] = append(parents[e.ChildID], e.ParentID)
	}

	var queue []string
	for _, n := range nodes {
		if remaining[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	sorted := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, current)

		for _, parentID := range parents[current] {
			remaining[parentID]--
			if remaining[parentID] == 0 {
				queue = append(queue, parentID)
			}
		}
	}

	if len(sorted) != len(nodes) {
		return nil, fmt.Errorf("order nodes: %w", ErrCyclicGraph)
	}
	return sorted, nil
}
