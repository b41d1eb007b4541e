// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package config loads the web app's configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/cap-adfs/oidc"
	"github.com/hashicorp/cap-adfs/session"
	"github.com/hashicorp/go-hclog"
)

// Configuration of the web app.  Keys are matched case-insensitively, so
// "AzureAd.ClientId" in a config file sets AzureAd.ClientId.
type Configuration struct {
	Serve   Serve   `koanf:"serve"`
	Session Session `koanf:"session"`
	Log     Log     `koanf:"log"`
	AzureAd AzureAd `koanf:"azuread"`
}

// Serve configures the http listener.
type Serve struct {
	Address     string `koanf:"address" validate:"required"`
	Development bool   `koanf:"development"`
}

// Session configures the session cookie.
type Session struct {
	Key      string        `koanf:"key" validate:"required,min=32"`
	Lifetime time.Duration `koanf:"lifetime" validate:"gt=0"`
	Secure   bool          `koanf:"secure"`
	SameSite string        `koanf:"samesite" validate:"omitempty,oneof=lax strict none Lax Strict None"`
}

// Log configures logging.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error off"`
}

// AzureAd configures the relying party's registration with the provider.
type AzureAd struct {
	ClientId        string        `koanf:"clientid" validate:"required"`
	ClientSecret    string        `koanf:"clientsecret" validate:"required"`
	RedirectUri     string        `koanf:"redirecturi" validate:"required,url"`
	Authority       string        `koanf:"authority" validate:"required,url"`
	MetadataAddress string        `koanf:"metadataaddress" validate:"omitempty,url"`
	ValidIssuer     string        `koanf:"validissuer"`
	ResponseType    string        `koanf:"responsetype" validate:"omitempty,oneof=code 'code id_token'"`
	Scopes          []string      `koanf:"scopes"`
	NameClaimType   string        `koanf:"nameclaimtype"`
	ProviderCA      string        `koanf:"providerca"`
	ExchangeTimeout time.Duration `koanf:"exchangetimeout" validate:"gte=0"`
}

// Defaults returns the configuration used for keys which are neither in the
// config file nor the environment.
func Defaults() Configuration {
	return Configuration{
		Serve: Serve{
			Address: "127.0.0.1:8080",
		},
		Session: Session{
			Lifetime: session.DefaultLifetime,
			Secure:   true,
			SameSite: "lax",
		},
		Log: Log{
			Level: "info",
		},
		AzureAd: AzureAd{
			ResponseType:    oidc.ResponseTypeCodeIdToken,
			NameClaimType:   oidc.DefaultNameClaimType,
			ExchangeTimeout: oidc.DefaultExchangeTimeout,
		},
	}
}

// OIDCConfig returns the provider configuration described by the AzureAd
// section.
func (c *Configuration) OIDCConfig() (*oidc.Config, error) {
	const op = "Configuration.OIDCConfig"
	a := c.AzureAd
	opts := []oidc.Option{
		oidc.WithNameClaimType(a.NameClaimType),
		oidc.WithExchangeTimeout(a.ExchangeTimeout),
	}
	if a.MetadataAddress != "" {
		opts = append(opts, oidc.WithMetadataAddress(a.MetadataAddress))
	}
	if a.ValidIssuer != "" {
		opts = append(opts, oidc.WithValidIssuer(a.ValidIssuer))
	}
	if a.ResponseType != "" {
		opts = append(opts, oidc.WithResponseType(a.ResponseType))
	}
	if len(a.Scopes) > 0 {
		opts = append(opts, oidc.WithScopes(a.Scopes...))
	}
	if a.ProviderCA != "" {
		ca, err := readPEM(a.ProviderCA)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		opts = append(opts, oidc.WithProviderCA(ca))
	}
	oc, err := oidc.NewConfig(a.Authority, a.ClientId, oidc.ClientSecret(a.ClientSecret), a.RedirectUri, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return oc, nil
}

// CookiePolicy returns the policy described by the Session section.
func (c *Configuration) CookiePolicy() (session.CookiePolicy, error) {
	return session.NewCookiePolicy(c.Session.Secure, c.Session.SameSite)
}

// LogLevel returns the configured hclog level.
func (c *Configuration) LogLevel() hclog.Level {
	l := hclog.LevelFromString(c.Log.Level)
	if l == hclog.NoLevel {
		return hclog.Info
	}
	return l
}

// readPEM returns s when it's a pem-encoded value, otherwise s is a path to
// read the pem from.
func readPEM(s string) (string, error) {
	const op = "config.readPEM"
	if strings.HasPrefix(strings.TrimSpace(s), "-----BEGIN") {
		return s, nil
	}
	b, err := os.ReadFile(s)
	if err != nil {
		return "", fmt.Errorf("%s: unable to read %s: %w", op, s, err)
	}
	return string(b), nil
}
