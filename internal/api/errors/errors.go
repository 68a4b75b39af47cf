// Package errors provides error handling and HTTP status code mapping.
package errors

import (
	"errors"
	"net/http"

	"github.com/nightshade-os/wifi-keystore/internal/api/dto"
	"github.com/nightshade-os/wifi-keystore/pkg/grant"
	"github.com/nightshade-os/wifi-keystore/pkg/keystore"
	"github.com/nightshade-os/wifi-keystore/pkg/wifikeystore"
)

// Error codes for API responses.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeNotFound        = "NOT_FOUND"
	CodeGrantDenied     = "GRANT_DENIED"
	CodeMissingMaterial = "MISSING_CREDENTIALS"
	CodeImportRejected  = "KEY_IMPORT_UNSUPPORTED"
	CodeSuiteBRejected  = "SUITEB_POLICY_FAILED"
	CodeInternal        = "INTERNAL_ERROR"
)

// MapError maps an internal error to an HTTP status code and APIError.
func MapError(err error) (int, *dto.APIError) {
	if err == nil {
		return http.StatusOK, nil
	}

	switch {
	case errors.Is(err, keystore.ErrNotFound):
		return http.StatusNotFound, &dto.APIError{
			Code:    CodeNotFound,
			Message: err.Error(),
		}
	case errors.Is(err, keystore.ErrKeyImportUnsupported):
		return http.StatusUnprocessableEntity, &dto.APIError{
			Code:    CodeImportRejected,
			Message: err.Error(),
		}
	case errors.Is(err, wifikeystore.ErrGrantDenied), errors.Is(err, grant.ErrNoGrant):
		return http.StatusForbidden, &dto.APIError{
			Code:    CodeGrantDenied,
			Message: err.Error(),
		}
	case errors.Is(err, wifikeystore.ErrMissingCredentials):
		return http.StatusBadRequest, &dto.APIError{
			Code:    CodeMissingMaterial,
			Message: err.Error(),
		}
	}

	// Default internal error
	return http.StatusInternalServerError, &dto.APIError{
		Code:    CodeInternal,
		Message: "An internal error occurred",
	}
}

// NewBadRequest creates a bad request error.
func NewBadRequest(message string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeInvalidRequest,
		Message: message,
	}
}

// NewNotFound creates a not found error.
func NewNotFound(resource, id string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeNotFound,
		Message: resource + " not found",
		Details: map[string]string{"id": id},
	}
}
