package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/taxon/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// marshalStrings converts a string list to JSON TEXT. nil encodes as "[]".
func marshalStrings(list []string) (string, error) {
	if len(list) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings parses JSON TEXT into a string list. Always returns a
// non-nil slice.
func unmarshalStrings(data string) ([]string, error) {
	list := []string{}
	if data == "" || data == "[]" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	return list, nil
}

const nodeColumns = `id, is_active, is_root, is_base, sequence, tags, slugs, meta, created, updated, deleted`

func scanNode(row scanner) (model.Node, error) {
	var (
		n                        model.Node
		isActive, isRoot, isBase int
		tags, slugs, meta        string
		created, updated         string
		deleted                  sql.NullString
	)
	if err := row.Scan(&n.ID, &isActive, &isRoot, &isBase, &n.Sequence,
		&tags, &slugs, &meta, &created, &updated, &deleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Node{}, ErrNotFound
		}
		return model.Node{}, fmt.Errorf("scan node: %w", err)
	}

	n.IsActive = isActive != 0
	n.IsRoot = isRoot != 0
	n.IsBase = isBase != 0

	var err error
	if n.Tags, err = unmarshalStrings(tags); err != nil {
		return model.Node{}, fmt.Errorf("node %s: %w", n.ID, err)
	}
	if n.Slugs, err = unmarshalStrings(slugs); err != nil {
		return model.Node{}, fmt.Errorf("node %s: %w", n.ID, err)
	}
	if n.Meta, err = model.UnmarshalMeta(meta); err != nil {
		return model.Node{}, fmt.Errorf("node %s: %w", n.ID, err)
	}
	if n.Created, err = parseTime(created); err != nil {
		return model.Node{}, fmt.Errorf("node %s: %w", n.ID, err)
	}
	if n.Updated, err = parseTime(updated); err != nil {
		return model.Node{}, fmt.Errorf("node %s: %w", n.ID, err)
	}
	if deleted.Valid {
		t, err := parseTime(deleted.String)
		if err != nil {
			return model.Node{}, fmt.Errorf("node %s: %w", n.ID, err)
		}
		n.Deleted = &t
	}
	return n, nil
}

const edgeColumns = `id, parent_id, child_id, sort_key, tags, meta, created, updated`

func scanEdge(row scanner) (model.Edge, error) {
	var (
		e                model.Edge
		tags, meta       string
		created, updated string
	)
	if err := row.Scan(&e.ID, &e.ParentID, &e.ChildID, &e.SortKey,
		&tags, &meta, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Edge{}, ErrNotFound
		}
		return model.Edge{}, fmt.Errorf("scan edge: %w", err)
	}

	var err error
	if e.Tags, err = unmarshalStrings(tags); err != nil {
		return model.Edge{}, fmt.Errorf("edge %s: %w", e.ID, err)
	}
	if e.Meta, err = model.UnmarshalMeta(meta); err != nil {
		return model.Edge{}, fmt.Errorf("edge %s: %w", e.ID, err)
	}
	if e.Created, err = parseTime(created); err != nil {
		return model.Edge{}, fmt.Errorf("edge %s: %w", e.ID, err)
	}
	if e.Updated, err = parseTime(updated); err != nil {
		return model.Edge{}, fmt.Errorf("edge %s: %w", e.ID, err)
	}
	return e, nil
}

const assignmentColumns = `id, node_id, item_id, sort_key, tags, meta, created, updated`

func scanAssignment(row scanner) (model.Assignment, error) {
	var (
		a                model.Assignment
		tags, meta       string
		created, updated string
	)
	if err := row.Scan(&a.ID, &a.NodeID, &a.ItemID, &a.SortKey,
		&tags, &meta, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Assignment{}, ErrNotFound
		}
		return model.Assignment{}, fmt.Errorf("scan assignment: %w", err)
	}

	var err error
	if a.Tags, err = unmarshalStrings(tags); err != nil {
		return model.Assignment{}, fmt.Errorf("assignment %s: %w", a.ID, err)
	}
	if a.Meta, err = model.UnmarshalMeta(meta); err != nil {
		return model.Assignment{}, fmt.Errorf("assignment %s: %w", a.ID, err)
	}
	if a.Created, err = parseTime(created); err != nil {
		return model.Assignment{}, fmt.Errorf("assignment %s: %w", a.ID, err)
	}
	if a.Updated, err = parseTime(updated); err != nil {
		return model.Assignment{}, fmt.Errorf("assignment %s: %w", a.ID, err)
	}
	return a, nil
}

// collect drains rows with scan. Returns an empty slice (not nil) when
// there are no rows.
func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
