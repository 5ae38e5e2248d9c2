// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package model

import (
	"slices"
	"strings"

	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
)

// Requester is the identity a search or index request runs as.
type Requester struct {
	UserID string
	// ProjectID is the tenant the requester is scoped to
	ProjectID string
	Roles     []string
	IsAdmin   bool
}

// NewRequester builds a Requester, deriving the admin flag from the roles.
func NewRequester(userID, projectID string, roles []string) Requester {
	r := Requester{
		UserID:    userID,
		ProjectID: projectID,
		Roles:     roles,
	}
	r.IsAdmin = r.HasRole(constants.AdminRole)
	return r
}

// HasRole reports whether the requester carries role, ignoring case.
func (r Requester) HasRole(role string) bool {
	return slices.ContainsFunc(r.Roles, func(candidate string) bool {
		return strings.EqualFold(candidate, role)
	})
}
