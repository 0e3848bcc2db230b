package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	// ErrInvalidOrder rejects a malformed order before any book interaction.
	ErrInvalidOrder = errors.New("invalid_order")
	// ErrDuplicateOrderID rejects a resubmission of a known identifier.
	ErrDuplicateOrderID = errors.New("duplicate_order_id")
	// ErrOrderNotFound is returned for lookups and cancels of unknown or
	// already-terminal order ids.
	ErrOrderNotFound = errors.New("order_not_found")
	// ErrUnfillable rejects a fill-or-kill order that cannot be satisfied
	// atomically against current liquidity.
	ErrUnfillable = errors.New("unfillable")
	// ErrSymbolNotFound is returned for market data queries on symbols no
	// order has ever referenced.
	ErrSymbolNotFound = errors.New("symbol_not_found")
	// ErrBookCorrupted indicates an invariant violation detected during
	// matching. It aborts the enclosing operation and is a core defect,
	// never a caller error.
	ErrBookCorrupted = errors.New("book_corrupted")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
