package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/taxon/internal/model"
)

// InsertNode writes a new node. Fails if the id is already taken.
func (s *Store) InsertNode(ctx context.Context, n model.Node) error {
	tags, err := marshalStrings(n.Tags)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	slugs, err := marshalStrings(n.Slugs)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	meta, err := model.MarshalMeta(n.Meta)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nodes
		(id, is_active, is_root, is_base, sequence, tags, slugs, meta, created, updated)
		VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?, ?)
	`,
		n.ID,
		boolToInt(n.IsActive),
		boolToInt(n.IsRoot),
		n.Sequence,
		tags,
		slugs,
		meta,
		formatTime(n.Created),
		formatTime(n.Updated),
	)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	return nil
}

// UpdateNode overwrites the mutable fields of a live node. is_base is not
// touched here; use SetBaseNode. Returns ErrNotFound for unknown or
// deleted nodes.
func (s *Store) UpdateNode(ctx context.Context, n model.Node) error {
	tags, err := marshalStrings(n.Tags)
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	slugs, err := marshalStrings(n.Slugs)
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	meta, err := model.MarshalMeta(n.Meta)
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE nodes
		SET is_active = ?, is_root = ?, sequence = ?, tags = ?, slugs = ?, meta = ?, updated = ?
		WHERE id = ? AND deleted IS NULL
	`,
		boolToInt(n.IsActive),
		boolToInt(n.IsRoot),
		n.Sequence,
		tags,
		slugs,
		meta,
		formatTime(n.Updated),
		n.ID,
	)
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	return requireAffected(result, "update node")
}

// FindNode retrieves a node by id, including soft-deleted nodes.
// Returns ErrNotFound if no such node was ever created.
func (s *Store) FindNode(ctx context.Context, id string) (model.Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE id = ?
	`, id)
	return scanNode(row)
}

// ListNodes returns nodes matching the filter ordered by sequence, id.
// Tag filtering requires every listed tag to be present.
func (s *Store) ListNodes(ctx context.Context, filter model.NodeFilter) ([]model.Node, error) {
	var (
		where []string
		args  []any
	)
	if !filter.IncludeDeleted {
		where = append(where, "deleted IS NULL")
	}
	if filter.OnlyRoots {
		where = append(where, "is_root = 1")
	}
	if filter.OnlyActive {
		where = append(where, "is_active = 1")
	}
	for _, tag := range filter.Tags {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(nodes.tags) WHERE json_each.value = ?)")
		args = append(args, tag)
	}

	query := `SELECT ` + nodeColumns + ` FROM nodes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY sequence ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	return collect(rows, scanNode)
}

// SetBaseNode makes id the single base node: every other node loses the
// flag in the same transaction.
func (s *Store) SetBaseNode(ctx context.Context, id string, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireLiveNode(ctx, tx, id); err != nil {
			return fmt.Errorf("set base node: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE nodes SET is_base = 0, updated = ?
			WHERE is_base = 1 AND id != ?
		`, formatTime(now), id); err != nil {
			return fmt.Errorf("set base node: clear: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE nodes SET is_base = 1, updated = ?
			WHERE id = ?
		`, formatTime(now), id); err != nil {
			return fmt.Errorf("set base node: set: %w", err)
		}
		return nil
	})
}

// BaseNode returns the current base node, or ErrNotFound if none is set.
func (s *Store) BaseNode(ctx context.Context) (model.Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE is_base = 1 AND deleted IS NULL
		ORDER BY id COLLATE BINARY ASC
		LIMIT 1
	`)
	return scanNode(row)
}

// SoftDeleteNode marks a node deleted and, in the same transaction,
// hard-deletes every edge touching it, its assignments and its cache
// record. Returns the ids of its former parents ordered by the edge
// (sort_key, id) so callers can invalidate them.
func (s *Store) SoftDeleteNode(ctx context.Context, id string, now time.Time) ([]string, error) {
	var parents []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireLiveNode(ctx, tx, id); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT parent_id FROM edges
			WHERE child_id = ?
			ORDER BY sort_key ASC, id COLLATE BINARY ASC
		`, id)
		if err != nil {
			return fmt.Errorf("query parents: %w", err)
		}
		parents, err = collect(rows, func(row scanner) (string, error) {
			var p string
			err := row.Scan(&p)
			return p, err
		})
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM edges WHERE parent_id = ? OR child_id = ?
		`, id, id); err != nil {
			return fmt.Errorf("cascade edges: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM assignments WHERE node_id = ?
		`, id); err != nil {
			return fmt.Errorf("cascade assignments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM cache_records WHERE node_id = ?
		`, id); err != nil {
			return fmt.Errorf("cascade cache record: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE nodes SET deleted = ?, updated = ?, is_base = 0
			WHERE id = ?
		`, formatTime(now), formatTime(now), id); err != nil {
			return fmt.Errorf("mark deleted: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("soft delete node: %w", err)
	}
	return parents, nil
}

// requireLiveNode returns ErrNotFound unless id names a non-deleted node.
func requireLiveNode(ctx context.Context, q querier, id string) error {
	var exists int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM nodes WHERE id = ? AND deleted IS NULL
	`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check node: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return nil
}

// requireAffected maps a zero-row update or delete to ErrNotFound.
func requireAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
