package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dsquery/internal/ir"
)

// ErrInvalidEntity is returned for entities the store refuses to write.
var ErrInvalidEntity = errors.New("invalid entity")

// Put writes an entity, replacing any stored entity with the same key.
func (s *Store) Put(ctx context.Context, e ir.Entity) error {
	return s.PutAll(ctx, []ir.Entity{e})
}

// PutAll writes entities in one transaction. Either every entity is stored
// or none is.
func (s *Store) PutAll(ctx context.Context, entities []ir.Entity) error {
	rows := make([]entityRow, 0, len(entities))
	for _, e := range entities {
		row, err := newEntityRow(e)
		if err != nil {
			return fmt.Errorf("put: %w", err)
		}
		rows = append(rows, row)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put: begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		if err := writeRow(ctx, tx, row); err != nil {
			return fmt.Errorf("put %s: %w", row.entity.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put: commit: %w", err)
	}
	return nil
}

// Delete removes the entity with key k. Deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, k ir.Key) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE key = ?`, ir.EncodeKey(k))
	if err != nil {
		return fmt.Errorf("delete %s: %w", k, err)
	}
	return nil
}

// entityRow is an entity in its stored form.
type entityRow struct {
	entity    ir.Entity
	key       []byte
	record    ir.Record
	keyRecord ir.Record
}

func newEntityRow(e ir.Entity) (entityRow, error) {
	if e.Key.IsZero() {
		return entityRow{}, fmt.Errorf("%w: key has no path", ErrInvalidEntity)
	}
	for name, values := range e.Properties {
		if name == "" || name == ir.KeyProperty {
			return entityRow{}, fmt.Errorf("%w: %s: reserved property name %q", ErrInvalidEntity, e.Key, name)
		}
		for _, v := range values {
			if v == nil {
				return entityRow{}, fmt.Errorf("%w: %s: property %q has a nil value", ErrInvalidEntity, e.Key, name)
			}
		}
	}

	record, err := ir.EncodeEntity(e)
	if err != nil {
		return entityRow{}, err
	}
	keyRecord, err := ir.EncodeEntity(e.KeyOnly())
	if err != nil {
		return entityRow{}, err
	}
	return entityRow{
		entity:    e,
		key:       ir.EncodeKey(e.Key),
		record:    record,
		keyRecord: keyRecord,
	}, nil
}

// writeRow replaces the entity row. Deleting first cascades to the old
// value rows.
func writeRow(ctx context.Context, tx *sql.Tx, row entityRow) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE key = ?`, row.key); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO entities (key, kind, record, key_record)
		VALUES (?, ?, ?, ?)
	`, row.key, row.entity.Key.Kind(), []byte(row.record), []byte(row.keyRecord))
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entity_values (key, property, value)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, name := range row.entity.PropertyNames() {
		for _, v := range row.entity.Properties[name] {
			if _, err := stmt.ExecContext(ctx, row.key, name, ir.EncodeValue(v)); err != nil {
				return fmt.Errorf("property %q: %w", name, err)
			}
		}
	}
	return nil
}
