package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/yungbote/pythagon-backend/internal/domain"
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

// FromDomain maps a domain sentinel to its HTTP status and error code.
// resource names the entity for not-found codes ("problem", "solution").
// Anything unrecognised is reported as an internal error.
func FromDomain(err error, resource string) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, domain.ErrAuth):
		return New(http.StatusUnauthorized, "unauthorized", domain.ErrAuth)
	case errors.Is(err, domain.ErrUnsupportedMedia):
		return New(http.StatusBadRequest, "unsupported_media_type", domain.ErrUnsupportedMedia)
	case errors.Is(err, domain.ErrNotFound):
		code := "not_found"
		msg := "not found"
		if resource != "" {
			code = resource + "_not_found"
			msg = strings.ToUpper(resource[:1]) + resource[1:] + " not found"
		}
		return New(http.StatusNotFound, code, errors.New(msg))
	case errors.Is(err, domain.ErrNotReady):
		return New(http.StatusBadRequest, "problem_not_ready", domain.ErrNotReady)
	case errors.Is(err, domain.ErrConflict):
		return New(http.StatusConflict, "problem_in_use", err)
	case errors.Is(err, domain.ErrProcessingFailed):
		return New(http.StatusUnprocessableEntity, "processing_failed", err)
	case errors.Is(err, domain.ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_argument", err)
	default:
		return New(http.StatusInternalServerError, "internal_error", errors.New("internal server error"))
	}
}
