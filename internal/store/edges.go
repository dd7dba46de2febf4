package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/taxon/internal/model"
)

// FindEdge retrieves an edge by id. Returns ErrNotFound if absent.
func (s *Store) FindEdge(ctx context.Context, id string) (model.Edge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+edgeColumns+`
		FROM edges
		WHERE id = ?
	`, id)
	return scanEdge(row)
}

// FindEdgeByPair retrieves the edge parentID → childID.
// Returns ErrNotFound if absent.
func (s *Store) FindEdgeByPair(ctx context.Context, parentID, childID string) (model.Edge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+edgeColumns+`
		FROM edges
		WHERE parent_id = ? AND child_id = ?
	`, parentID, childID)
	return scanEdge(row)
}

// FindEdgesByParent returns the outgoing edges of a node ordered by
// sort_key ASC, id ASC.
func (s *Store) FindEdgesByParent(ctx context.Context, parentID string) ([]model.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+edgeColumns+`
		FROM edges
		WHERE parent_id = ?
		ORDER BY sort_key ASC, id COLLATE BINARY ASC
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("query edges by parent: %w", err)
	}
	return collect(rows, scanEdge)
}

// FindEdgesByChild returns the incoming edges of a node ordered by
// sort_key ASC, id ASC.
func (s *Store) FindEdgesByChild(ctx context.Context, childID string) ([]model.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+edgeColumns+`
		FROM edges
		WHERE child_id = ?
		ORDER BY sort_key ASC, id COLLATE BINARY ASC
	`, childID)
	if err != nil {
		return nil, fmt.Errorf("query edges by child: %w", err)
	}
	return collect(rows, scanEdge)
}

// AllEdges returns every edge ordered by parent, sort_key, id.
func (s *Store) AllEdges(ctx context.Context) ([]model.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+edgeColumns+`
		FROM edges
		ORDER BY parent_id COLLATE BINARY ASC, sort_key ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all edges: %w", err)
	}
	return collect(rows, scanEdge)
}

// MaxEdgeSortKey returns the highest sort key among the outgoing edges of
// parentID, or 0 when it has none.
func (s *Store) MaxEdgeSortKey(ctx context.Context, parentID string) (int64, error) {
	var max int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sort_key), 0) FROM edges WHERE parent_id = ?
	`, parentID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max edge sort key: %w", err)
	}
	return max, nil
}

// UpsertEdge inserts e, or touches the existing (parent_id, child_id) edge.
//
// On conflict the existing id, tags, meta and created are kept. The sort
// key is replaced only when replaceSortKey is set. Returns the stored edge.
func (s *Store) UpsertEdge(ctx context.Context, e model.Edge, replaceSortKey bool) (model.Edge, error) {
	tags, err := marshalStrings(e.Tags)
	if err != nil {
		return model.Edge{}, fmt.Errorf("upsert edge: %w", err)
	}
	meta, err := model.MarshalMeta(e.Meta)
	if err != nil {
		return model.Edge{}, fmt.Errorf("upsert edge: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO edges
		(id, parent_id, child_id, sort_key, tags, meta, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(parent_id, child_id) DO UPDATE SET
			updated = excluded.updated,
			sort_key = CASE WHEN ? THEN excluded.sort_key ELSE edges.sort_key END
	`,
		e.ID,
		e.ParentID,
		e.ChildID,
		e.SortKey,
		tags,
		meta,
		formatTime(e.Created),
		formatTime(e.Updated),
		boolToInt(replaceSortKey),
	)
	if err != nil {
		return model.Edge{}, fmt.Errorf("upsert edge: %w", err)
	}

	return s.FindEdgeByPair(ctx, e.ParentID, e.ChildID)
}

// DeleteEdge removes an edge and returns it as it was.
// Returns ErrNotFound if absent.
func (s *Store) DeleteEdge(ctx context.Context, id string) (model.Edge, error) {
	var deleted model.Edge
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		e, err := scanEdge(tx.QueryRowContext(ctx, `
			SELECT `+edgeColumns+` FROM edges WHERE id = ?
		`, id))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id); err != nil {
			return err
		}
		deleted = e
		return nil
	})
	if err != nil {
		return model.Edge{}, fmt.Errorf("delete edge: %w", err)
	}
	return deleted, nil
}

// UpdateEdgeSortKeys applies all updates in one transaction and returns the
// updated edges in input order. If any id is unknown nothing is written and
// ErrNotFound is returned.
func (s *Store) UpdateEdgeSortKeys(ctx context.Context, updates []model.SortKeyUpdate, now time.Time) ([]model.Edge, error) {
	out := make([]model.Edge, 0, len(updates))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, u := range updates {
			result, err := tx.ExecContext(ctx, `
				UPDATE edges SET sort_key = ?, updated = ? WHERE id = ?
			`, u.SortKey, formatTime(now), u.ID)
			if err != nil {
				return err
			}
			if err := requireAffected(result, "edge "+u.ID); err != nil {
				return err
			}
		}
		for _, u := range updates {
			e, err := scanEdge(tx.QueryRowContext(ctx, `
				SELECT `+edgeColumns+` FROM edges WHERE id = ?
			`, u.ID))
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update edge sort keys: %w", err)
	}
	return out, nil
}
