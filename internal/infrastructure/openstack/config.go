// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package openstack

import (
	"fmt"
	"time"
)

const defaultDomain = "Default"

// Config holds the credentials and endpoints for the upstream services
type Config struct {
	// AuthURL is the identity endpoint, without the /v3 suffix
	AuthURL           string
	Username          string
	Password          string
	ProjectName       string
	UserDomainName    string
	ProjectDomainName string

	GlanceURL    string
	NovaURL      string
	DesignateURL string

	// PageSize is the limit sent on every listing request
	PageSize int

	// Timeout is the HTTP client timeout for API requests
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for failed requests
	MaxRetries int

	// RetryDelay is the delay between retry attempts
	RetryDelay time.Duration

	// RequestsPerSecond bounds the rate of upstream calls, zero disables it
	RequestsPerSecond float64
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		UserDomainName:    defaultDomain,
		ProjectDomainName: defaultDomain,
		PageSize:          100,
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		RetryDelay:        1 * time.Second,
		RequestsPerSecond: 20,
	}
}

// Validate reports the first missing setting
func (c Config) Validate() error {
	switch {
	case c.AuthURL == "":
		return fmt.Errorf("identity URL is required for OpenStack configuration")
	case c.Username == "" || c.Password == "":
		return fmt.Errorf("username and password are required for OpenStack configuration")
	case c.ProjectName == "":
		return fmt.Errorf("project name is required for OpenStack configuration")
	}
	return nil
}
