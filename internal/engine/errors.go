package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/queryir"
)

// ErrTooManyResults is returned by AsSingleEntity when more than one entity
// matches.
var ErrTooManyResults = errors.New("query returned more than one result")

// ErrorCode categorizes runtime failures of a prepared query.
type ErrorCode string

const (
	// ErrCodeSourceFailed indicates a native sub-query failed.
	ErrCodeSourceFailed ErrorCode = "SOURCE_FAILED"

	// ErrCodeAcceptorContract indicates an entity came back from a native
	// query with no value the query's filters allow for a sorted property.
	ErrCodeAcceptorContract ErrorCode = "ACCEPTOR_CONTRACT"

	// ErrCodeDecode indicates a native record could not be decoded.
	ErrCodeDecode ErrorCode = "DECODE_FAILED"
)

// SourceExecutionError reports a failed native sub-query. The batch it
// belonged to is abandoned; entities delivered from earlier batches stay
// valid.
type SourceExecutionError struct {
	Code ErrorCode

	// Batch is the index of the batch being executed.
	Batch int

	// Alternative is the query's position within the batch.
	Alternative int

	Query queryir.Query
	Err   error
}

func (e *SourceExecutionError) Error() string {
	return fmt.Sprintf("%s: batch %d alternative %d (%s): %v",
		e.Code, e.Batch, e.Alternative, e.Query, e.Err)
}

func (e *SourceExecutionError) Unwrap() error {
	return e.Err
}

// AcceptorContractError reports an entity that has no plausible value for a
// sorted property. The data disagrees with the filters that selected it, so
// the merge cannot place it.
type AcceptorContractError struct {
	Alternative int
	Query       queryir.Query
	Key         ir.Key
	Err         error
}

func (e *AcceptorContractError) Error() string {
	return fmt.Sprintf("%s: entity %s from alternative %d (%s): %v",
		ErrCodeAcceptorContract, e.Key, e.Alternative, e.Query, e.Err)
}

func (e *AcceptorContractError) Unwrap() error {
	return e.Err
}

// IsSourceError returns true if err is a SourceExecutionError.
// Uses errors.As to handle wrapped errors.
func IsSourceError(err error) bool {
	var se *SourceExecutionError
	return errors.As(err, &se)
}

// IsAcceptorContractError returns true if err is an AcceptorContractError.
func IsAcceptorContractError(err error) bool {
	var ae *AcceptorContractError
	return errors.As(err, &ae)
}

// CodeOf returns the runtime error code carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var se *SourceExecutionError
	if errors.As(err, &se) {
		return se.Code, true
	}
	if IsAcceptorContractError(err) {
		return ErrCodeAcceptorContract, true
	}
	return "", false
}
