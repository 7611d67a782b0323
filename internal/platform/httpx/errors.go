package httpx

import (
	"errors"
	"net/http"

	"github.com/stockcore/stockcore/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrDuplicateIdentifier):
		Problem(w, http.StatusConflict, "Duplicate Identifier", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInsufficientStock):
		Problem(w, http.StatusConflict, "Insufficient Stock", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInvalidStateTransition):
		Problem(w, http.StatusConflict, "Invalid State Transition", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrConsistencyViolation):
		Problem(w, http.StatusConflict, "Consistency Violation", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInvalidConfiguration):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Configuration", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
