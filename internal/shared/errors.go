package shared

import "errors"

var (
	// ErrInsufficientStock indicates requested quantity exceeds the available
	// balance at item, batch, or serial level.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidStateTransition indicates a batch or serial operation was
	// attempted from a state that does not permit it.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrDuplicateIdentifier indicates a SKU, batch number, serial number or
	// transaction number collision within tenant scope.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	// ErrNotFound indicates a referenced item/batch/serial/transaction/ledger
	// row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidConfiguration indicates tenant-level policy rejected an
	// otherwise well-formed request.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrConsistencyViolation indicates a balance invariant would be broken by
	// the requested mutation. Should be unreachable when locking is correct,
	// but is always checked and surfaced.
	ErrConsistencyViolation = errors.New("consistency violation")
)

// UserSafeMessage returns a message safe to surface to API clients. Known
// business errors pass through; anything else is masked.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInvalidStateTransition),
		errors.Is(err, ErrDuplicateIdentifier),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidConfiguration),
		errors.Is(err, ErrConsistencyViolation):
		return err.Error()
	default:
		return "internal error"
	}
}
