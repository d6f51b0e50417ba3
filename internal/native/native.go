package native

import (
	"context"
	"fmt"
	"io"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/queryir"
)

// FetchOptions carries paging and batching hints for a native query.
type FetchOptions struct {
	// Limit caps the number of results; 0 means no limit.
	Limit int
	// Offset skips leading results.
	Offset int
	// ChunkSize is how many results a source fetches per round trip.
	ChunkSize int
	// PrefetchSize is how many results the first round trip fetches.
	PrefetchSize int
}

// Validate rejects negative limits and offsets.
func (o FetchOptions) Validate() error {
	if o.Limit < 0 {
		return fmt.Errorf("limit must be positive, got %d", o.Limit)
	}
	if o.Offset < 0 {
		return fmt.Errorf("offset must not be negative, got %d", o.Offset)
	}
	return nil
}

// Source is a lazy, forward-only sequence of records. Next returns io.EOF
// after the last record. Sources are owned by one goroutine.
type Source interface {
	Next(ctx context.Context) (ir.Record, error)
	Close() error
}

// Executor runs native queries. Implementations must reject queries that
// fail queryir.ValidateNative and must return results in the order
// match.AdjustedOrders describes for the query.
type Executor interface {
	ExecuteNative(ctx context.Context, q queryir.Query, opts FetchOptions) (Source, error)
}

// SliceSource serves records from memory.
type SliceSource struct {
	records []ir.Record
	pos     int
	closed  bool
}

// NewSliceSource returns a source over records.
func NewSliceSource(records []ir.Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed || s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

// Close implements Source.
func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}
