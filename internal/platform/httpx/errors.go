// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/mini-erp/mini-erp/internal/shared"
)

// ErrBadRequest marks malformed request bodies and parameters.
var ErrBadRequest = errors.New("bad request")

// StatusFor maps the ledger error taxonomy onto HTTP status codes.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrEmptyEntry):
		return http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, shared.ErrAlreadyApproved):
		return http.StatusConflict, "Already Approved"
	case errors.Is(err, shared.ErrInvalidStatus):
		return http.StatusConflict, "Invalid Status"
	case errors.Is(err, shared.ErrConstraintViolation):
		return http.StatusConflict, "Constraint Violation"
	case errors.Is(err, shared.ErrDuplicateRequest):
		return http.StatusConflict, "Duplicate Request"
	case errors.Is(err, shared.ErrUnbalancedEntry):
		return http.StatusUnprocessableEntity, "Unbalanced Entry"
	case errors.Is(err, shared.ErrOverpayment):
		return http.StatusUnprocessableEntity, "Overpayment"
	case errors.Is(err, shared.ErrUnknownReference):
		return http.StatusUnprocessableEntity, "Unknown Reference"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Internal errors never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = ""
	}
	Problem(w, status, title, detail)
}
