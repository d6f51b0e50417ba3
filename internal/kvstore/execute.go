package kvstore

import (
	"context"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/match"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/queryir"
)

// ExecuteNative implements native.Executor.
func (s *Store) ExecuteNative(ctx context.Context, q queryir.Query, opts native.FetchOptions) (native.Source, error) {
	if err := queryir.ValidateNative(q); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := entityPrefix
	if q.Ancestor != nil {
		prefix = entityKey(*q.Ancestor)
	}

	if keyOrdered(q) {
		s.logger.DebugContext(ctx, "native query", "query", q.String(), "mode", "stream")
		return s.stream(q, opts, prefix)
	}

	s.logger.DebugContext(ctx, "native query", "query", q.String(), "mode", "select")
	candidates, err := s.scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	selected, err := native.Select(q, opts, candidates)
	if err != nil {
		return nil, err
	}
	records, err := native.EncodeAll(selected)
	if err != nil {
		return nil, err
	}
	return native.NewSliceSource(records), nil
}

// keyOrdered reports whether q's results come out in ascending key order,
// the order badger iterates in.
func keyOrdered(q queryir.Query) bool {
	for _, order := range match.AdjustedOrders(q.Sorts, q.Filters) {
		if order.Property != ir.KeyProperty || order.Direction != queryir.Ascending {
			return false
		}
	}
	return true
}

func (s *Store) stream(q queryir.Query, opts native.FetchOptions, prefix []byte) (native.Source, error) {
	matcher, err := match.NewMatcher(q)
	if err != nil {
		return nil, err
	}

	prefetch := opts.PrefetchSize
	if prefetch <= 0 {
		prefetch = opts.ChunkSize
	}
	if prefetch <= 0 {
		prefetch = 100
	}

	txn := s.db.NewTransaction(false)
	it := txn.NewIterator(badger.IteratorOptions{
		PrefetchValues: true,
		PrefetchSize:   prefetch,
		Prefix:         prefix,
	})
	it.Rewind()
	return &iterSource{
		txn:      txn,
		it:       it,
		matcher:  matcher,
		keysOnly: q.KeysOnly,
		skip:     opts.Offset,
		limit:    opts.Limit,
	}, nil
}

// iterSource streams matching entities from an open read transaction.
type iterSource struct {
	txn      *badger.Txn
	it       *badger.Iterator
	matcher  *match.Matcher
	keysOnly bool

	skip    int
	limit   int
	emitted int
	closed  bool
}

// Next implements native.Source.
func (s *iterSource) Next(ctx context.Context) (ir.Record, error) {
	if s.closed || (s.limit > 0 && s.emitted >= s.limit) {
		return nil, io.EOF
	}
	for ; s.it.Valid(); s.it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := s.it.Item().ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("read entity: %w", err)
		}
		e, err := ir.DecodeEntity(record)
		if err != nil {
			return nil, err
		}
		if !s.matcher.Matches(e) {
			continue
		}
		if s.skip > 0 {
			s.skip--
			continue
		}

		s.it.Next()
		s.emitted++
		if s.keysOnly {
			return ir.EncodeEntity(e.KeyOnly())
		}
		return record, nil
	}
	return nil, io.EOF
}

// Close implements native.Source. It releases the read transaction.
func (s *iterSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.it.Close()
	s.txn.Discard()
	return nil
}
