package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/taxon/internal/model"
)

// GetCacheRecord returns the materialized item list of a node.
// Returns ErrNotFound if the node was never materialized.
func (s *Store) GetCacheRecord(ctx context.Context, nodeID string) (model.CacheRecord, error) {
	var (
		rec              model.CacheRecord
		itemIDs          string
		created, updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT node_id, item_ids, created, updated
		FROM cache_records
		WHERE node_id = ?
	`, nodeID).Scan(&rec.NodeID, &itemIDs, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CacheRecord{}, ErrNotFound
	}
	if err != nil {
		return model.CacheRecord{}, fmt.Errorf("get cache record: %w", err)
	}

	if rec.ItemIDs, err = unmarshalStrings(itemIDs); err != nil {
		return model.CacheRecord{}, fmt.Errorf("cache record %s: %w", nodeID, err)
	}
	if rec.Created, err = parseTime(created); err != nil {
		return model.CacheRecord{}, fmt.Errorf("cache record %s: %w", nodeID, err)
	}
	if rec.Updated, err = parseTime(updated); err != nil {
		return model.CacheRecord{}, fmt.Errorf("cache record %s: %w", nodeID, err)
	}
	return rec, nil
}

// SetCacheRecord stores the item list of a node, replacing any previous
// list. The original created timestamp is kept.
func (s *Store) SetCacheRecord(ctx context.Context, rec model.CacheRecord) error {
	itemIDs, err := marshalStrings(rec.ItemIDs)
	if err != nil {
		return fmt.Errorf("set cache record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_records (node_id, item_ids, created, updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			item_ids = excluded.item_ids,
			updated = excluded.updated
	`,
		rec.NodeID,
		itemIDs,
		formatTime(rec.Created),
		formatTime(rec.Updated),
	)
	if err != nil {
		return fmt.Errorf("set cache record: %w", err)
	}
	return nil
}

// DeleteCacheRecord removes the cache record of a node. Deleting a
// missing record is not an error.
func (s *Store) DeleteCacheRecord(ctx context.Context, nodeID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_records WHERE node_id = ?`, nodeID); err != nil {
		return fmt.Errorf("delete cache record: %w", err)
	}
	return nil
}
