// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	// ID is the request ID, for correlating the response with the logs
	ID string `json:"id,omitempty"`
	// Name identifies the kind of failure
	Name string `json:"name"`
	// Message is the human readable cause
	Message string `json:"message"`

	status int
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status the error is written with.
func (e *ErrorResponse) StatusCode() int {
	return e.status
}

func newErrorResponse(status int, message string) *ErrorResponse {
	return &ErrorResponse{
		Name:    http.StatusText(status),
		Message: message,
		status:  status,
	}
}

func wrapError(ctx context.Context, err error) error {

	f := func(err error) error {
		if err == nil {
			return newErrorResponse(http.StatusInternalServerError, "unknown error")
		}

		switch e := err.(type) {
		case *ErrorResponse:
			return e
		case errors.Validation:
			return newErrorResponse(http.StatusBadRequest, e.Error())
		case errors.Unauthorized:
			return newErrorResponse(http.StatusUnauthorized, e.Error())
		case errors.Forbidden:
			return newErrorResponse(http.StatusForbidden, e.Error())
		case errors.NotFound:
			return newErrorResponse(http.StatusNotFound, e.Error())
		case errors.Conflict:
			return newErrorResponse(http.StatusConflict, e.Error())
		case errors.ServiceUnavailable:
			return newErrorResponse(http.StatusServiceUnavailable, e.Error())
		default:
			return newErrorResponse(http.StatusInternalServerError, err.Error())
		}
	}

	slog.ErrorContext(ctx, "request failed",
		"error", err,
	)
	wrapped := f(err)
	if response, ok := wrapped.(*ErrorResponse); ok && response.ID == "" {
		response.ID = middleware.RequestID(ctx)
	}
	return wrapped
}
