// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/cap-adfs/oidc/internal/strutils"
	"golang.org/x/oauth2"
)

// Provider provides integration with an OIDC provider for a confidential
// client: building authentication requests, redeeming authorization codes
// and verifying id_tokens.
type Provider struct {
	config   *Config
	provider *oidc.Provider
	client   *http.Client

	mu sync.Mutex

	// backgroundCtx is the context used by the provider for background
	// activities like: refreshing JWKs key sets.
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates and initializes a Provider.  Initializing the provider
// includes an http request to the config's MetadataAddress for the discovery
// document.
//
// See Provider.Done() which must be called to release provider resources.
func NewProvider(ctx context.Context, c *Config) (*Provider, error) {
	const op = "NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	// initializing the Provider with it's background ctx/cancel will
	// allow us to use p.Done() to release any resources when returning errors
	// from this function.
	p := &Provider{
		config:              c,
		backgroundCtx:       bgCtx,
		backgroundCtxCancel: cancel,
	}

	client, err := c.HttpClient()
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	p.client = client

	pc, err := discover(ctx, client, c.MetadataAddress)
	if err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// the key set created here refreshes using the background ctx, which
	// outlives the discovery request.
	p.provider = pc.NewProvider(HttpClientContext(p.backgroundCtx, client))
	return p, nil
}

// discover fetches and decodes the discovery document.  The document's issuer
// is not compared to the configured issuer here; ADFS farms commonly publish
// metadata on a different host than the one that issues tokens.  Tokens are
// checked by the issuer validator instead.
func discover(ctx context.Context, client *http.Client, metadataAddress string) (*oidc.ProviderConfig, error) {
	const op = "discover"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataAddress, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create discovery request: %w", op, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to fetch discovery document: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read discovery document: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: discovery document request returned %s: %s", op, resp.Status, body)
	}
	var pc oidc.ProviderConfig
	if err := json.Unmarshal(body, &pc); err != nil {
		return nil, fmt.Errorf("%s: unable to decode discovery document: %w", op, err)
	}
	switch {
	case pc.AuthURL == "":
		return nil, fmt.Errorf("%s: discovery document is missing authorization_endpoint: %w", op, ErrInvalidParameter)
	case pc.TokenURL == "":
		return nil, fmt.Errorf("%s: discovery document is missing token_endpoint: %w", op, ErrInvalidParameter)
	case pc.JWKSURL == "":
		return nil, fmt.Errorf("%s: discovery document is missing jwks_uri: %w", op, ErrInvalidParameter)
	}
	return &pc, nil
}

// Done with the provider's background resources and must be called for every
// Provider created
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// Config returns the provider's config.
func (p *Provider) Config() *Config { return p.config }

// oauth2Config builds the confidential client's oauth2 config.  Credentials
// are sent in the token request body.
func (p *Provider) oauth2Config() oauth2.Config {
	endpoint := p.provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return oauth2.Config{
		ClientID:     p.config.ClientId,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  p.config.RedirectUrl,
		Endpoint:     endpoint,
		Scopes:       p.config.scopes(),
	}
}

// AuthURL will generate a URL the caller can use to kick off an OIDC
// authentication request with the provider.  For the hybrid "code id_token"
// response type the provider is asked to post its response back
// (response_mode=form_post).
//
// See NewState() to create an oidc flow State with a valid ID and Nonce.
func (p *Provider) AuthURL(_ context.Context, s State) (string, error) {
	const op = "Provider.AuthURL"
	if s == nil {
		return "", fmt.Errorf("%s: state is nil: %w", op, ErrNilParameter)
	}
	if s.ID() == s.Nonce() {
		return "", fmt.Errorf("%s: state id and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	if s.IsExpired() {
		return "", fmt.Errorf("%s: state is expired: %w", op, ErrExpiredState)
	}
	oauth2Config := p.oauth2Config()
	authCodeOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(s.Nonce()),
		oauth2.SetAuthURLParam("response_type", p.config.ResponseType),
	}
	if p.config.ResponseType == ResponseTypeCodeIdToken {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("response_mode", "form_post"))
	}
	return oauth2Config.AuthCodeURL(s.ID(), authCodeOpts...), nil
}

// Exchange redeems an authorization code at the provider's token endpoint
// using the authorization code grant with the config's client credentials,
// requesting the "openid" scope.
//
// The round trip is bounded by the config's ExchangeTimeout and is cancelled
// when ctx is.  It makes a single attempt: any transport error or error
// response from the provider is returned wrapping ErrRedemptionFailed.
//
// The returned Token's id_token has not been verified.  See VerifyIdToken.
func (p *Provider) Exchange(ctx context.Context, authorizationCode string) (*Tk, error) {
	const op = "Provider.Exchange"
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	ctx, cancel := context.WithTimeout(ctx, p.config.ExchangeTimeout)
	defer cancel()

	oauth2Config := p.oauth2Config()
	oauth2Token, err := oauth2Config.Exchange(
		HttpClientContext(ctx, p.client),
		authorizationCode,
		oauth2.SetAuthURLParam("scope", strings.Join(oauth2Config.Scopes, " ")),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w: %w", op, ErrRedemptionFailed, err)
	}

	idToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w: %w", op, ErrRedemptionFailed, ErrMissingIdToken)
	}
	t, err := NewToken(IdToken(idToken), oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create new token: %w", op, err)
	}
	return t, nil
}

// VerifyIdToken verifies an id_token: its signature against the provider's
// JWKS, its alg, expiry and audience, then its nonce, and finally its issuer
// with the config's issuer validator.  The verified token is returned.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (p *Provider) VerifyIdToken(ctx context.Context, t IdToken, nonce string) (*oidc.IDToken, error) {
	const op = "Provider.VerifyIdToken"
	if t == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if nonce == "" {
		return nil, fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}
	algs := make([]string, 0, len(p.config.SupportedSigningAlgs))
	for _, a := range p.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	verifier := p.provider.Verifier(&oidc.Config{
		ClientID:             p.config.ClientId,
		SupportedSigningAlgs: algs,
		SkipClientIDCheck:    len(p.config.Audiences) > 0,
		// the issuer is checked below by the configured issuer validator
		SkipIssuerCheck: true,
	})
	oidcIdToken, err := verifier.Verify(HttpClientContext(ctx, p.client), string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrIdTokenVerificationFailed, err)
	}
	if oidcIdToken.Nonce != nonce {
		return nil, fmt.Errorf("%s: invalid id_token nonce: %w", op, ErrInvalidNonce)
	}

	vp := &p.config.ValidationParameters
	if _, err := vp.issuerValidator()(oidcIdToken.Issuer, oidcIdToken, vp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(p.config.Audiences) > 0 {
		accepted := append([]string{p.config.ClientId}, p.config.Audiences...)
		found := false
		for _, v := range accepted {
			if strutils.StrListContains(oidcIdToken.Audience, v) {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%s: invalid id_token audiences: %w", op, ErrInvalidAudience)
		}
	}
	return oidcIdToken, nil
}
