// Package kvstore is a native executor over an ordered key-value store.
//
// Entities are stored in badger under E/<encoded key>. The key encoding is
// order-preserving and a prefix of every descendant's encoding, so a prefix
// scan yields an ancestor's subtree in key order. Queries whose results
// follow key order are streamed from the iterator; other orders are
// evaluated over the scanned candidates with native.Select.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/dsquery/internal/ir"
)

var entityPrefix = []byte("E/")

// Store is a badger-backed entity store.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	inMemory bool
}

// WithLogger routes badger's own logging and query tracing to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// InMemory keeps all data in memory. The path given to Open is ignored.
func InMemory() Option {
	return func(c *config) {
		c.inMemory = true
	}
}

// Open opens (or creates) a badger database in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	bopts := badger.DefaultOptions(dir).WithLogger(badgerLogger{cfg.logger})
	if cfg.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{cfg.logger})
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, logger: cfg.logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func entityKey(k ir.Key) []byte {
	return ir.AppendKey(append([]byte(nil), entityPrefix...), k)
}

// Put writes an entity, replacing any stored entity with the same key.
func (s *Store) Put(ctx context.Context, e ir.Entity) error {
	return s.PutAll(ctx, []ir.Entity{e})
}

// PutAll writes entities in one transaction.
func (s *Store) PutAll(ctx context.Context, entities []ir.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, e := range entities {
			if e.Key.IsZero() {
				return fmt.Errorf("put: key has no path")
			}
			record, err := ir.EncodeEntity(e)
			if err != nil {
				return fmt.Errorf("put: %w", err)
			}
			if err := txn.Set(entityKey(e.Key), record); err != nil {
				return fmt.Errorf("put %s: %w", e.Key, err)
			}
		}
		return nil
	})
}

// Delete removes the entity with key k.
func (s *Store) Delete(ctx context.Context, k ir.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entityKey(k))
	})
}

// Get reads the entity stored under k.
func (s *Store) Get(ctx context.Context, k ir.Key) (ir.Entity, bool, error) {
	if err := ctx.Err(); err != nil {
		return ir.Entity{}, false, err
	}
	var record []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entityKey(k))
		if err != nil {
			return err
		}
		record, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ir.Entity{}, false, nil
	}
	if err != nil {
		return ir.Entity{}, false, fmt.Errorf("get %s: %w", k, err)
	}

	e, err := ir.DecodeEntity(record)
	if err != nil {
		return ir.Entity{}, false, fmt.Errorf("get %s: %w", k, err)
	}
	return e, true, nil
}

// All returns every stored entity in key order.
func (s *Store) All(ctx context.Context) ([]ir.Entity, error) {
	return s.scan(ctx, entityPrefix)
}

// scan decodes every entity whose stored key starts with prefix.
func (s *Store) scan(ctx context.Context, prefix []byte) ([]ir.Entity, error) {
	var entities []ir.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
			Prefix:         prefix,
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			e, err := ir.DecodeEntity(record)
			if err != nil {
				return err
			}
			entities = append(entities, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan entities: %w", err)
	}
	return entities, nil
}

// badgerLogger adapts slog to badger.Logger. Badger's info chatter goes to
// debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
