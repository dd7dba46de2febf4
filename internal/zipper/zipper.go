// Package zipper merges nested item-id lists into one flat listing.
//
// Items are interleaved by depth rather than by subtree: every item that
// sits directly at depth 0 comes first, then the depth-1 lists of all
// sibling subtrees zipped together round-robin, then depth 2, and so on.
// A large subtree therefore cannot push its siblings to the end of a
// merged catalog listing.
//
// The package is pure: no I/O, no shared state, deterministic output.
package zipper

// Tree is one vertex of a nested item-id tree.
//
// Items are the ids located at this vertex. Children are subtrees one
// level deeper. In catalog terms a node's own assignments are Items and
// each child node's materialized list is a Child with only Items.
type Tree struct {
	Items    []string
	Children []Tree
}

// Leaf returns a tree vertex holding only items.
func Leaf(items ...string) Tree {
	return Tree{Items: items}
}

// Flatten zips the tree by depth and removes duplicates, keeping the
// first occurrence of every id.
func Flatten(t Tree) []string {
	levels := partition(t)

	var out []string
	for _, sequences := range levels {
		out = append(out, Zip(sequences...)...)
	}
	return Dedupe(out)
}

// partition groups the item sequences of every vertex by depth.
// levels[d] holds one sequence per vertex at depth d, in tree order.
func partition(t Tree) [][][]string {
	var levels [][][]string

	var walk func(t Tree, depth int)
	walk = func(t Tree, depth int) {
		for len(levels) <= depth {
			levels = append(levels, nil)
		}
		if len(t.Items) > 0 {
			levels[depth] = append(levels[depth], t.Items)
		}
		for _, child := range t.Children {
			walk(child, depth+1)
		}
	}
	walk(t, 0)

	return levels
}

// Zip folds sequences pairwise, keeping every pairwise result grouped by
// position: Zip(a, b, c) groups as ((a0, b0), c0), ((a1, b1), c1), ...
// The groups are flattened once at the end and missing positions act as
// padding, so each round takes one element from every sequence in order.
func Zip(sequences ...[]string) []string {
	var rows [][]string
	for _, seq := range sequences {
		rows = zipRows(rows, seq)
	}

	var out []string
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

// zipRows appends seq[i] to rows[i], growing rows when seq is the longest
// sequence so far.
func zipRows(rows [][]string, seq []string) [][]string {
	for i, id := range seq {
		if i == len(rows) {
			rows = append(rows, nil)
		}
		rows[i] = append(rows[i], id)
	}
	return rows
}

// Dedupe removes repeated ids, keeping the first occurrence. Empty ids
// are dropped.
func Dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SameSet reports whether a and b contain the same ids, ignoring order
// and multiplicity.
func SameSet(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, id := range a {
		as[id] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, id := range b {
		if _, ok := as[id]; !ok {
			return false
		}
		bs[id] = struct{}{}
	}
	return len(as) == len(bs)
}

// SameOrder reports whether a and b are identical sequences.
func SameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
