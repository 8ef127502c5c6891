// Package handlers exposes the fee engine as a JSON API.
package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/diewo77/go-fees/auth"
	"github.com/diewo77/go-fees/httpx"
	"github.com/diewo77/go-fees/internal/services"
	"github.com/diewo77/go-fees/validation"
)

const dateLayout = "2006-01-02"

// writeError maps a service error to its HTTP status and error code.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		viol validation.Violations
		nf   *services.NotFoundError
		is   *services.InvalidStateError
		ia   *services.InvalidAmountError
		iv   *services.InvariantViolationError
		dup  *services.DuplicateError
		cf   *services.ConflictError
		arg  *services.InvalidArgumentError
	)
	switch {
	case errors.As(err, &viol):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", viol)
	case errors.As(err, &nf):
		httpx.JSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &is):
		httpx.JSONError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.As(err, &ia):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "invalid_amount", err.Error())
	case errors.As(err, &iv):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "invariant_violation", err.Error())
	case errors.As(err, &dup):
		httpx.JSONError(w, http.StatusConflict, "duplicate", err.Error())
	case errors.As(err, &cf):
		httpx.JSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.As(err, &arg):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_argument", map[string]string{arg.Field: arg.Reason})
	default:
		log.Error("request failed", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// decode reads and validates a JSON body, writing the error response itself.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	if err := validation.Struct(dst); err != nil {
		var viol validation.Violations
		if errors.As(err, &viol) {
			httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", viol)
			return false
		}
		httpx.JSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

// pathID parses the {name} path value as a uuid.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", map[string]string{name: "must be a uuid"})
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional uuid query parameter.
func queryID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &services.InvalidArgumentError{Field: name, Reason: "must be a uuid"}
	}
	return &id, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter. endOfDay moves it to the last instant of the day.
func queryDate(r *http.Request, name string, endOfDay bool) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, &services.InvalidArgumentError{Field: name, Reason: "must be a date like 2025-01-31"}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func currentUser(r *http.Request) uuid.UUID {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}
