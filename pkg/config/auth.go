// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"fmt"
	"net/url"
	"time"
)

// AuthConfig configures JWT authentication.
type AuthConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled"`

	// JWKSURL serves the identity provider's public keys.
	JWKSURL string `yaml:"jwks_url,omitempty" json:"jwks_url,omitempty" jsonschema:"title=JWKS URL"`

	Issuer   string `yaml:"issuer,omitempty" json:"issuer,omitempty" jsonschema:"title=Issuer"`
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty" jsonschema:"title=Audience"`

	// RefreshInterval is the minimum JWKS refresh interval.
	// Default: 15m
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty" json:"refresh_interval,omitempty" jsonschema:"title=Refresh Interval"`

	// Roles, when set, restricts access to tokens whose role claim is listed.
	Roles []string `yaml:"roles,omitempty" json:"roles,omitempty" jsonschema:"title=Allowed Roles"`

	// ExcludedPaths skip authentication.
	ExcludedPaths []string `yaml:"excluded_paths,omitempty" json:"excluded_paths,omitempty" jsonschema:"title=Excluded Paths"`
}

// SetDefaults applies auth defaults.
func (c *AuthConfig) SetDefaults() {
	if c.Enabled && c.RefreshInterval == 0 {
		c.RefreshInterval = 15 * time.Minute
	}
}

// Validate checks the JWKS URL and issuer of enabled auth.
func (c *AuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.JWKSURL == "" {
		return fmt.Errorf("jwks_url is required when auth is enabled")
	}
	u, err := url.Parse(c.JWKSURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid jwks_url %q", c.JWKSURL)
	}
	if c.Issuer == "" {
		return fmt.Errorf("issuer is required when auth is enabled")
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh_interval must be positive")
	}
	return nil
}
