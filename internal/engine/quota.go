package engine

import "github.com/roach88/dsquery/internal/native"

// pageQuota applies a run's offset and limit to accepted entities.
//
// Rejected entities never reach the quota, so they consume neither offset nor
// limit. One pageQuota belongs to one run.
type pageQuota struct {
	offset  int // accepted entities still to skip
	limit   int // 0 means unbounded
	emitted int
}

func newPageQuota(offset, limit int) *pageQuota {
	return &pageQuota{offset: offset, limit: limit}
}

// admit reports whether the next accepted entity is delivered. Entities
// inside the offset are counted off and dropped.
func (q *pageQuota) admit() bool {
	if q.offset > 0 {
		q.offset--
		return false
	}
	q.emitted++
	return true
}

// exhausted reports whether the limit has been reached.
func (q *pageQuota) exhausted() bool {
	return q.limit > 0 && q.emitted >= q.limit
}

// Emitted returns how many entities have been delivered.
func (q *pageQuota) Emitted() int {
	return q.emitted
}

// splitFetchOptions decides what paging a native query carries. With a
// single native query and nothing to reject, offset and limit go to the
// store; otherwise the store sees only batching hints and the quota pages.
func splitFetchOptions(opts native.FetchOptions, pushdown bool, chunkSize int) (native.FetchOptions, *pageQuota) {
	fetch := native.FetchOptions{
		ChunkSize:    opts.ChunkSize,
		PrefetchSize: opts.PrefetchSize,
	}
	if fetch.ChunkSize == 0 {
		fetch.ChunkSize = chunkSize
	}
	if pushdown {
		fetch.Offset = opts.Offset
		fetch.Limit = opts.Limit
		return fetch, newPageQuota(0, opts.Limit)
	}
	return fetch, newPageQuota(opts.Offset, opts.Limit)
}
