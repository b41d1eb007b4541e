// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/cap-adfs/oidc/internal/strutils"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-multierror"
)

// ClientSecret is an oauth client Secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret.
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret.
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret.
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// ResponseType values supported for the authentication request.
const (
	ResponseTypeCode        = "code"
	ResponseTypeCodeIdToken = "code id_token"
)

const (
	// WellKnownPath is appended to the authority when no metadata address
	// is configured.
	WellKnownPath = "/.well-known/openid-configuration"

	// DefaultExchangeTimeout bounds a single authorization code redemption.
	DefaultExchangeTimeout = 30 * time.Second
)

// Config represents the configuration for an OIDC relying party which signs
// users in with an ADFS (or any OIDC) provider using the hybrid
// "code id_token" flow and redeems the code as a confidential client.
//
// A Config is built once at startup and must be treated as read-only.
type Config struct {
	// ClientId is the relying party id.
	ClientId string

	// ClientSecret is the relying party secret.
	ClientSecret ClientSecret

	// RedirectUrl is the url the provider posts the authentication response
	// to, e.g. https://localhost:44321/signin-oidc
	RedirectUrl string

	// Authority is the provider's base URL, e.g. https://sts.example.com/adfs
	Authority string

	// MetadataAddress is where the OIDC discovery document is fetched from.
	MetadataAddress string

	// Scopes is a list of additional scopes to request. The required
	// "openid" scope is always requested.
	Scopes []string

	// ResponseType is the authentication request response_type.
	ResponseType string

	// SupportedSigningAlgs is a list of supported signing algorithms.
	SupportedSigningAlgs []Alg

	// Audiences is an optional list of additional case-sensitive strings
	// accepted in an id_token's "aud" claim.
	Audiences []string

	// ProviderCA is an optional CA cert to use when sending requests to the
	// provider.
	ProviderCA string

	// ExchangeTimeout bounds the token endpoint round trip.
	ExchangeTimeout time.Duration

	// ValidationParameters are applied to every verified id_token.
	ValidationParameters ValidationParameters
}

// NewConfig composes a new relying party config.
//
// Supported options:
//   - WithMetadataAddress
//   - WithValidIssuer
//   - WithIssuerValidator
//   - WithNameClaimType
//   - WithScopes
//   - WithAudiences
//   - WithResponseType
//   - WithSupportedSigningAlgs
//   - WithProviderCA
//   - WithExchangeTimeout
func NewConfig(authority string, clientId string, clientSecret ClientSecret, redirectUrl string, opt ...Option) (*Config, error) {
	const op = "NewConfig"
	authority = strings.TrimSuffix(authority, "/")
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientId:             clientId,
		ClientSecret:         clientSecret,
		RedirectUrl:          redirectUrl,
		Authority:            authority,
		MetadataAddress:      opts.withMetadataAddress,
		Scopes:               opts.withScopes,
		ResponseType:         opts.withResponseType,
		SupportedSigningAlgs: opts.withSupportedSigningAlgs,
		Audiences:            opts.withAudiences,
		ProviderCA:           opts.withProviderCA,
		ExchangeTimeout:      opts.withExchangeTimeout,
		ValidationParameters: ValidationParameters{
			ValidIssuer:     opts.withValidIssuer,
			NameClaimType:   opts.withNameClaimType,
			IssuerValidator: opts.withIssuerValidator,
		},
	}
	if c.MetadataAddress == "" && authority != "" {
		c.MetadataAddress = authority + WellKnownPath
	}
	if c.ValidationParameters.ValidIssuer == "" {
		// ADFS issues tokens with the authority as the issuer.
		c.ValidationParameters.ValidIssuer = authority
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration.  All problems found are returned
// together.  It doesn't verify the MetadataAddress is reachable.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientId == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter))
	}
	if c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter))
	}
	if err := validateURL("redirect URL", c.RedirectUrl); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
	}
	if err := validateURL("authority", c.Authority); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
	}
	if err := validateURL("metadata address", c.MetadataAddress); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
	}
	if c.ValidationParameters.ValidIssuer == "" {
		result = multierror.Append(result, fmt.Errorf("%s: valid issuer is empty: %w", op, ErrInvalidParameter))
	}
	if !strutils.StrListContains([]string{ResponseTypeCode, ResponseTypeCodeIdToken}, c.ResponseType) {
		result = multierror.Append(result, fmt.Errorf("%s: unsupported response type %q: %w", op, c.ResponseType, ErrInvalidParameter))
	}
	if len(c.SupportedSigningAlgs) == 0 {
		result = multierror.Append(result, fmt.Errorf("%s: supported algorithms is empty: %w", op, ErrInvalidParameter))
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			result = multierror.Append(result, fmt.Errorf("%s: unsupported algorithm %s: %w", op, a, ErrInvalidParameter))
		}
	}
	if c.ExchangeTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s: exchange timeout must be greater than zero: %w", op, ErrInvalidParameter))
	}
	if c.ProviderCA != "" {
		if ok := x509.NewCertPool().AppendCertsFromPEM([]byte(c.ProviderCA)); !ok {
			result = multierror.Append(result, fmt.Errorf("%s: %w", op, ErrInvalidCACert))
		}
	}
	return result.ErrorOrNil()
}

func validateURL(name, u string) error {
	if u == "" {
		return fmt.Errorf("%s is empty: %w", name, ErrInvalidParameter)
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("%s %s is invalid: %w", name, u, ErrInvalidParameter)
	}
	if !strutils.StrListContains([]string{"https", "http"}, parsed.Scheme) {
		return fmt.Errorf("%s %s scheme is not http or https: %w", name, u, ErrInvalidParameter)
	}
	return nil
}

// scopes returns the scopes to request, always led by "openid".
func (c *Config) scopes() []string {
	scopes := []string{oidc.ScopeOpenID}
	for _, s := range c.Scopes {
		if s != oidc.ScopeOpenID {
			scopes = append(scopes, s)
		}
	}
	return strutils.RemoveDuplicatesStable(scopes, false)
}

// HttpClient is a helper function that creates a new http client for the
// provider configured.  It uses a cleanhttp pooled transport and the optional
// ProviderCA instead of the system roots.
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "Config.HttpClient"
	tr := cleanhttp.DefaultPooledTransport()
	if c.ProviderCA != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(c.ProviderCA)); !ok {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCACert)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}
	return &http.Client{
		Transport: tr,
	}, nil
}

// HttpClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HttpClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}

// configOptions is the set of available options
type configOptions struct {
	withMetadataAddress      string
	withValidIssuer          string
	withIssuerValidator      IssuerValidatorFunc
	withNameClaimType        string
	withScopes               []string
	withAudiences            []string
	withResponseType         string
	withSupportedSigningAlgs []Alg
	withProviderCA           string
	withExchangeTimeout      time.Duration
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{
		withNameClaimType:        DefaultNameClaimType,
		withResponseType:         ResponseTypeCodeIdToken,
		withSupportedSigningAlgs: []Alg{RS256},
		withExchangeTimeout:      DefaultExchangeTimeout,
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithMetadataAddress provides an optional discovery document URL.  The
// default is the authority with WellKnownPath appended.
func WithMetadataAddress(addr string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withMetadataAddress = addr
		}
	}
}

// WithValidIssuer provides the trusted issuer.  The default is the authority.
func WithValidIssuer(iss string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withValidIssuer = iss
		}
	}
}

// WithIssuerValidator replaces ValidateIssuer.
func WithIssuerValidator(fn IssuerValidatorFunc) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withIssuerValidator = fn
		}
	}
}

// WithNameClaimType provides the claim used as a user's display name.
func WithNameClaimType(claim string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && claim != "" {
			o.withNameClaimType = claim
		}
	}
}

// WithScopes provides an optional list of additional scopes.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithAudiences provides an optional list of additional audiences.
func WithAudiences(auds ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAudiences = auds
		}
	}
}

// WithResponseType provides the authentication request response_type.
func WithResponseType(rt string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && rt != "" {
			o.withResponseType = rt
		}
	}
}

// WithSupportedSigningAlgs provides the accepted id_token signing algs.
func WithSupportedSigningAlgs(algs ...Alg) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && len(algs) > 0 {
			o.withSupportedSigningAlgs = algs
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config.
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithExchangeTimeout bounds the authorization code redemption.
func WithExchangeTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && d != 0 {
			o.withExchangeTimeout = d
		}
	}
}
