package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/dsquery/internal/indexshape"
	"github.com/roach88/dsquery/internal/queryir"
)

// MissingIndexError reports a native query that no declared composite
// index set can serve.
type MissingIndexError struct {
	Query queryir.Query
	Index indexshape.CompositeIndex
}

func (e *MissingIndexError) Error() string {
	return fmt.Sprintf("no composite index serves %s; add %s", e.Query, e.Index)
}

// AddIndex declares a composite index. Declaring an index twice is a no-op.
func (s *Store) AddIndex(ctx context.Context, ci indexshape.CompositeIndex) error {
	props, err := json.Marshal(ci.Properties)
	if err != nil {
		return fmt.Errorf("add index %s: %w", ci, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO composite_indexes (id, kind, ancestor, properties)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, ci.String(), ci.Kind, ci.Ancestor, string(props))
	if err != nil {
		return fmt.Errorf("add index %s: %w", ci, err)
	}
	return nil
}

// DropIndex removes a declared composite index.
func (s *Store) DropIndex(ctx context.Context, ci indexshape.CompositeIndex) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM composite_indexes WHERE id = ?`, ci.String()); err != nil {
		return fmt.Errorf("drop index %s: %w", ci, err)
	}
	return nil
}

// Indexes returns the composite indexes declared for kind, ordered by id.
func (s *Store) Indexes(ctx context.Context, kind string) ([]indexshape.CompositeIndex, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, ancestor, properties
		FROM composite_indexes
		WHERE kind = ?
		ORDER BY id ASC COLLATE BINARY
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("read indexes: %w", err)
	}
	defer rows.Close()

	var indexes []indexshape.CompositeIndex
	for rows.Next() {
		var (
			ci    indexshape.CompositeIndex
			props string
		)
		if err := rows.Scan(&ci.Kind, &ci.Ancestor, &props); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		if err := json.Unmarshal([]byte(props), &ci.Properties); err != nil {
			return nil, fmt.Errorf("index properties: %w", err)
		}
		indexes = append(indexes, ci)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indexes: %w", err)
	}
	return indexes, nil
}

func (s *Store) checkIndexes(ctx context.Context, q queryir.Query) error {
	existing, err := s.Indexes(ctx, q.Kind)
	if err != nil {
		return err
	}
	missing := indexshape.MinimumCompositeIndexForQuery(indexshape.Extract(q), existing)
	if missing != nil {
		return &MissingIndexError{Query: q, Index: *missing}
	}
	return nil
}
