package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/querysql"
	"github.com/roach88/dsquery/internal/queryir"
)

// Get reads the entity stored under k. The boolean is false when no entity
// has that key.
func (s *Store) Get(ctx context.Context, k ir.Key) (ir.Entity, bool, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM entities WHERE key = ?`, ir.EncodeKey(k)).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Entity{}, false, nil
	}
	if err != nil {
		return ir.Entity{}, false, fmt.Errorf("get %s: %w", k, err)
	}

	e, err := ir.DecodeEntity(ir.Record(record))
	if err != nil {
		return ir.Entity{}, false, fmt.Errorf("get %s: %w", k, err)
	}
	return e, true, nil
}

// All returns every stored entity in key order.
func (s *Store) All(ctx context.Context) ([]ir.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM entities ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("read all entities: %w", err)
	}
	defer rows.Close()

	var entities []ir.Entity
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e, err := ir.DecodeEntity(ir.Record(record))
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

// ExecuteNative compiles q to SQL and returns a source that reads its rows
// in chunks. It implements native.Executor.
func (s *Store) ExecuteNative(ctx context.Context, q queryir.Query, opts native.FetchOptions) (native.Source, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	query, args, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, err
	}
	if s.requireIndexes {
		if err := s.checkIndexes(ctx, q); err != nil {
			return nil, err
		}
	}

	s.logger.DebugContext(ctx, "native query",
		"query", q.String(),
		"limit", opts.Limit,
		"offset", opts.Offset,
	)

	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	remaining := -1
	if opts.Limit > 0 {
		remaining = opts.Limit
	}
	return &rowSource{
		db:        s.db,
		sql:       query,
		args:      args,
		offset:    opts.Offset,
		remaining: remaining,
		chunk:     chunk,
		prefetch:  opts.PrefetchSize,
	}, nil
}

// rowSource pages through a compiled query with LIMIT/OFFSET. Each chunk's
// rows are read fully and closed before Next returns, so no connection is
// held between calls.
type rowSource struct {
	db   *sql.DB
	sql  string
	args []any

	offset    int
	remaining int // -1 when unlimited
	chunk     int
	prefetch  int
	fetched   bool

	buf    []ir.Record
	pos    int
	done   bool
	closed bool
}

// Next implements native.Source.
func (r *rowSource) Next(ctx context.Context) (ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.closed {
		return nil, io.EOF
	}
	if r.pos >= len(r.buf) {
		if r.done {
			return nil, io.EOF
		}
		if err := r.fill(ctx); err != nil {
			return nil, err
		}
		if len(r.buf) == 0 {
			return nil, io.EOF
		}
	}
	rec := r.buf[r.pos]
	r.pos++
	return rec, nil
}

// Close implements native.Source.
func (r *rowSource) Close() error {
	r.closed = true
	r.buf = nil
	return nil
}

func (r *rowSource) fill(ctx context.Context) error {
	n := r.chunk
	if !r.fetched && r.prefetch > 0 {
		n = r.prefetch
	}
	r.fetched = true
	if r.remaining >= 0 {
		n = min(n, r.remaining)
	}
	r.buf, r.pos = r.buf[:0], 0
	if n == 0 {
		r.done = true
		return nil
	}

	query, args := querysql.Window(r.sql, r.args, n, r.offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return fmt.Errorf("scan entity: %w", err)
		}
		r.buf = append(r.buf, ir.Record(record))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate entities: %w", err)
	}

	r.offset += len(r.buf)
	if r.remaining >= 0 {
		r.remaining -= len(r.buf)
	}
	if len(r.buf) < n {
		r.done = true
	}
	return nil
}
