// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package errors

import "errors"

// IsNotFound reports whether err, or any error it wraps, is a NotFound.
func IsNotFound(err error) bool {
	var target NotFound
	return errors.As(err, &target)
}

// IsUnauthorized reports whether err, or any error it wraps, is an Unauthorized.
func IsUnauthorized(err error) bool {
	var target Unauthorized
	return errors.As(err, &target)
}
