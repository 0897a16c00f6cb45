package apierr

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/yungbote/hatchmark-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From maps domain sentinels to an HTTP-shaped error. Unknown errors
// become 500s so handlers never leak raw internals by accident.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case stderrors.Is(err, errors.ErrInvalidImage):
		return New(http.StatusBadRequest, "invalid_image", err)
	case stderrors.Is(err, errors.ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_argument", err)
	case stderrors.Is(err, errors.ErrUnauthorized):
		return New(http.StatusUnauthorized, "unauthorized", err)
	case stderrors.Is(err, errors.ErrLedgerConflict):
		return New(http.StatusConflict, "conflict", err)
	case errors.IsTransient(err):
		return New(http.StatusServiceUnavailable, "store_unavailable", err)
	default:
		return New(http.StatusInternalServerError, "internal", err)
	}
}
