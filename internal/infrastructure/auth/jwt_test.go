// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeimdallClaimsValidate(t *testing.T) {
	assertion := assert.New(t)

	assertion.Error((&HeimdallClaims{ProjectID: "p1"}).Validate(context.Background()))
	assertion.NoError((&HeimdallClaims{Principal: "alice", ProjectID: "p1"}).Validate(context.Background()))
}

func TestTrimValidationError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "single segment",
			err:      fmt.Errorf("token is expired"),
			expected: "token is expired",
		},
		{
			name:     "two segments",
			err:      fmt.Errorf("could not parse the token: malformed"),
			expected: "could not parse the token: malformed",
		},
		{
			name:     "deeper segments are dropped",
			err:      fmt.Errorf("could not parse the token: go-jose/go-jose: compact JWS format must have three parts: detail"),
			expected: "could not parse the token: go-jose/go-jose",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, trimValidationError(tc.err))
		})
	}
}

func TestParseRequesterRejectsMalformedToken(t *testing.T) {
	assertion := assert.New(t)
	jwtAuth, err := NewJWTAuth(JWTAuthConfig{})
	require.NoError(t, err)

	_, err = jwtAuth.ParseRequester(context.Background(), "not-a-jwt")

	assertion.True(errors.IsUnauthorized(err))
}

func TestParseRequesterWithoutValidator(t *testing.T) {
	_, err := (&JWTAuth{}).ParseRequester(context.Background(), "token")

	assert.Error(t, err)
}
