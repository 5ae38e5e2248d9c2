// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

type requestIDHeaderType string

// RequestIDHeader is the header name for the request ID
const RequestIDHeader requestIDHeaderType = "X-REQUEST-ID"

type contextKey string

const (
	// RequesterContextID is the context key holding the authenticated model.Requester
	RequesterContextID contextKey = "requester"
)
