package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/garage-workshops/internal/apperr"
)

// apiError maps a domain error onto the huma error for its kind. Only the
// public message leaves the server; causes were logged where they happened.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	var e *apperr.Error
	if !errors.As(err, &e) {
		return huma.Error500InternalServerError("Something went wrong")
	}
	switch e.Kind {
	case apperr.KindNotFound:
		return huma.Error404NotFound(e.Message)
	case apperr.KindForbidden:
		return huma.Error403Forbidden(e.Message)
	case apperr.KindUnauthorized:
		return huma.Error401Unauthorized(e.Message)
	case apperr.KindValidation:
		return huma.Error422UnprocessableEntity(e.Message, fieldDetails(e.Fields)...)
	case apperr.KindConflict:
		return huma.Error409Conflict(e.Message)
	}
	return huma.Error500InternalServerError(e.Message)
}

func fieldDetails(fields map[string]string) []error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	details := make([]error, 0, len(keys))
	for _, k := range keys {
		details = append(details, &huma.ErrorDetail{
			Location: "body." + k,
			Message:  fields[k],
		})
	}
	return details
}

// httpStatus is the status code a page answers with for err.
func httpStatus(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
