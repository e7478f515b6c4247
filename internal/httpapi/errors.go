package httpapi

import (
	"errors"
	"net/http"

	"github.com/turgut5534/amic-card-app/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
}

func badRequest(w http.ResponseWriter, msg string) {
	toJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeDomainErr maps ledger sentinels to HTTP status codes.
func writeDomainErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrInsufficientBalance):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrInvalidAmount), errors.Is(err, errs.ErrUnsupported):
		status = http.StatusBadRequest
	}
	toJSON(w, status, errorResponse{Error: err.Error()})
}
