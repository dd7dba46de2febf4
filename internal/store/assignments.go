package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/taxon/internal/model"
)

// FindAssignment retrieves an assignment by id. Returns ErrNotFound if absent.
func (s *Store) FindAssignment(ctx context.Context, id string) (model.Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments
		WHERE id = ?
	`, id)
	return scanAssignment(row)
}

// FindAssignmentByPair retrieves the assignment of itemID to nodeID.
// Returns ErrNotFound if absent.
func (s *Store) FindAssignmentByPair(ctx context.Context, nodeID, itemID string) (model.Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments
		WHERE node_id = ? AND item_id = ?
	`, nodeID, itemID)
	return scanAssignment(row)
}

// FindAssignmentsByNode returns the direct items of a node ordered by
// sort_key ASC, id ASC.
func (s *Store) FindAssignmentsByNode(ctx context.Context, nodeID string) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments
		WHERE node_id = ?
		ORDER BY sort_key ASC, id COLLATE BINARY ASC
	`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("query assignments by node: %w", err)
	}
	return collect(rows, scanAssignment)
}

// FindAssignmentsByItem returns every assignment of an item ordered by
// id, which for generated ids is creation order.
func (s *Store) FindAssignmentsByItem(ctx context.Context, itemID string) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments
		WHERE item_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query assignments by item: %w", err)
	}
	return collect(rows, scanAssignment)
}

// MaxAssignmentSortKey returns the highest sort key among the assignments
// of nodeID, or 0 when it has none.
func (s *Store) MaxAssignmentSortKey(ctx context.Context, nodeID string) (int64, error) {
	var max int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sort_key), 0) FROM assignments WHERE node_id = ?
	`, nodeID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max assignment sort key: %w", err)
	}
	return max, nil
}

// UpsertAssignment inserts a, or touches the existing (node_id, item_id)
// assignment. Conflict handling matches UpsertEdge. Returns the stored
// assignment.
func (s *Store) UpsertAssignment(ctx context.Context, a model.Assignment, replaceSortKey bool) (model.Assignment, error) {
	tags, err := marshalStrings(a.Tags)
	if err != nil {
		return model.Assignment{}, fmt.Errorf("upsert assignment: %w", err)
	}
	meta, err := model.MarshalMeta(a.Meta)
	if err != nil {
		return model.Assignment{}, fmt.Errorf("upsert assignment: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assignments
		(id, node_id, item_id, sort_key, tags, meta, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(node_id, item_id) DO UPDATE SET
			updated = excluded.updated,
			sort_key = CASE WHEN ? THEN excluded.sort_key ELSE assignments.sort_key END
	`,
		a.ID,
		a.NodeID,
		a.ItemID,
		a.SortKey,
		tags,
		meta,
		formatTime(a.Created),
		formatTime(a.Updated),
		boolToInt(replaceSortKey),
	)
	if err != nil {
		return model.Assignment{}, fmt.Errorf("upsert assignment: %w", err)
	}

	return s.FindAssignmentByPair(ctx, a.NodeID, a.ItemID)
}

// DeleteAssignment removes an assignment and returns it as it was.
// Returns ErrNotFound if absent.
func (s *Store) DeleteAssignment(ctx context.Context, id string) (model.Assignment, error) {
	var deleted model.Assignment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		a, err := scanAssignment(tx.QueryRowContext(ctx, `
			SELECT `+assignmentColumns+` FROM assignments WHERE id = ?
		`, id))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, id); err != nil {
			return err
		}
		deleted = a
		return nil
	})
	if err != nil {
		return model.Assignment{}, fmt.Errorf("delete assignment: %w", err)
	}
	return deleted, nil
}

// UpdateAssignmentSortKeys applies all updates in one transaction and
// returns the updated assignments in input order. If any id is unknown
// nothing is written and ErrNotFound is returned.
func (s *Store) UpdateAssignmentSortKeys(ctx context.Context, updates []model.SortKeyUpdate, now time.Time) ([]model.Assignment, error) {
	out := make([]model.Assignment, 0, len(updates))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, u := range updates {
			result, err := tx.ExecContext(ctx, `
				UPDATE assignments SET sort_key = ?, updated = ? WHERE id = ?
			`, u.SortKey, formatTime(now), u.ID)
			if err != nil {
				return err
			}
			if err := requireAffected(result, "assignment "+u.ID); err != nil {
				return err
			}
		}
		for _, u := range updates {
			a, err := scanAssignment(tx.QueryRowContext(ctx, `
				SELECT `+assignmentColumns+` FROM assignments WHERE id = ?
			`, u.ID))
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update assignment sort keys: %w", err)
	}
	return out, nil
}
