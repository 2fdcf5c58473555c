package domain

import "errors"

var (
	// ErrNotFound is returned by stores when no row matches.
	ErrNotFound = errors.New("not found")

	// ErrNoEndpoint means every candidate blockchain endpoint failed its
	// health probe. Transient: the record is retried on a later tick.
	ErrNoEndpoint = errors.New("no healthy endpoint available")

	// ErrTxNotFound means the referenced transaction is unknown to the
	// node. Permanent for the record until an operator intervenes.
	ErrTxNotFound = errors.New("transaction not found")

	// ErrReceiptPending means the transaction exists but has not been
	// mined yet. Transient: retried on a later tick.
	ErrReceiptPending = errors.New("transaction receipt pending")

	// ErrValueTooSmall means the decoded on-chain value is effectively
	// zero, which almost always indicates the decoder found no matching
	// transfer logs. Permanent for the record; never persisted.
	ErrValueTooSmall = errors.New("onchain value below minimum threshold")
)

// Transient reports whether err is a retryable per-record failure, as
// opposed to one that needs operator attention.
func Transient(err error) bool {
	return errors.Is(err, ErrNoEndpoint) || errors.Is(err, ErrReceiptPending)
}
