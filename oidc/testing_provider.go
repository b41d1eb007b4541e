// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/cap-adfs/oidc/internal/strutils"
	"github.com/stretchr/testify/require"
)

// testKeyID is the "kid" of the TestProvider's signing key.
const testKeyID = "test-provider-key"

// TestProvider is a local ADFS-like OIDC provider which makes writing tests
// much easier.  It serves discovery, an authorize endpoint supporting the
// hybrid flow with form_post, a token endpoint for the authorization code
// grant and a JWKS endpoint.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	jwks *jose.JSONWebKeySet

	ecdsaPublicKey  string
	ecdsaPrivateKey string

	mu                  sync.Mutex
	issuer              string
	clientID            string
	clientSecret        string
	allowedRedirectURIs []string
	replySubject        string
	expectedAuthCode    string
	expectedAuthNonce   string
	customClaims        map[string]interface{}
	customAudience      string
	omitIDToken         bool
	omitCodeHash        bool
	tokenErrStatus      int
	tokenErrCode        string
	tokenDelay          time.Duration
	tokenRequests       []url.Values

	t testing.TB
}

// StartTestProvider creates a disposable TestProvider which is stopped by
// t.Cleanup.
func StartTestProvider(t testing.TB) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		allowedRedirectURIs: []string{
			"https://example.com/signin-oidc",
		},
		replySubject: "alice@example.com",
		customClaims: map[string]interface{}{},
		t:            t,
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = TestGenerateKeys(t)
	p.jwks = testJWKS(t, p.ecdsaPublicKey)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running webserver.
// It's also the default issuer.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// SigningKeys returns the test provider's pem-encoded keys used to sign JWTs.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.ecdsaPublicKey, p.ecdsaPrivateKey
}

// SetIssuer overrides the issuer used in discovery and issued id_tokens.
func (p *TestProvider) SetIssuer(iss string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issuer = iss
}

// SetClientCreds is for configuring the client information required for the
// OIDC workflows.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the auth code to return from /authorize and
// the allowed auth code for /token.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetExpectedAuthNonce configures the nonce required for /authorize and
// embedded in id_tokens issued by /token.
func (p *TestProvider) SetExpectedAuthNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthNonce = nonce
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect URIs.
// If not configured "https://example.com/signin-oidc" is used.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetCustomClaims lets you set claims to return in issued id_tokens.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if customClaims == nil {
		customClaims = map[string]interface{}{}
	}
	p.customClaims = customClaims
}

// SetCustomAudience configures the audience of issued id_tokens.
func (p *TestProvider) SetCustomAudience(customAudience string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customAudience = customAudience
}

// OmitIDTokens forces an error state where /token does not return an id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// OmitCodeHash stops issued id_tokens from carrying a c_hash claim.
func (p *TestProvider) OmitCodeHash() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitCodeHash = true
}

// SetTokenError forces /token to reply with the given status and oauth error
// code.  A zero status clears it.
func (p *TestProvider) SetTokenError(status int, code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenErrStatus = status
	p.tokenErrCode = code
}

// SetTokenDelay makes /token wait before replying.
func (p *TestProvider) SetTokenDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenDelay = d
}

// TokenRequests returns the form values of every request made to /token.
func (p *TestProvider) TokenRequests() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	reqs := make([]url.Values, len(p.tokenRequests))
	copy(reqs, p.tokenRequests)
	return reqs
}

// IdToken returns a freshly signed id_token, as /token would issue it.
func (p *TestProvider) IdToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signIdToken()
}

// signIdToken must be called with p.mu held.
func (p *TestProvider) signIdToken() string {
	stdClaims := jwt.Claims{
		Subject:   p.replySubject,
		Issuer:    p.issuerLocked(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		NotBefore: jwt.NewNumericDate(time.Now().Add(-5 * time.Second)),
		Expiry:    jwt.NewNumericDate(time.Now().Add(time.Minute)),
		Audience:  jwt.Audience{p.clientID},
	}
	if p.customAudience != "" {
		stdClaims.Audience = jwt.Audience{p.customAudience}
	}
	privateClaims := map[string]interface{}{}
	if p.expectedAuthCode != "" && !p.omitCodeHash {
		// ES256 id_tokens hash with sha256
		sum := sha256.Sum256([]byte(p.expectedAuthCode))
		privateClaims["c_hash"] = base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
	}
	for k, v := range p.customClaims {
		privateClaims[k] = v
	}
	if p.expectedAuthNonce != "" {
		privateClaims["nonce"] = p.expectedAuthNonce
	}
	return TestSignJWT(p.t, p.ecdsaPrivateKey, testKeyID, stdClaims, privateClaims)
}

func (p *TestProvider) issuerLocked() string {
	if p.issuer != "" {
		return p.issuer
	}
	return p.Addr()
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}

	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

var formPostTmpl = template.Must(template.New("form_post").Parse(`<html><body onload="document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{range $k, $v := .Fields}}<input type="hidden" name="{{$k}}" value="{{$v}}"/>
{{end}}</form></body></html>`))

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.t.Helper()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reply := struct {
			Issuer        string   `json:"issuer"`
			AuthEndpoint  string   `json:"authorization_endpoint"`
			TokenEndpoint string   `json:"token_endpoint"`
			JWKSURI       string   `json:"jwks_uri"`
			Algs          []string `json:"id_token_signing_alg_values_supported"`
		}{
			Issuer:        p.issuerLocked(),
			AuthEndpoint:  p.Addr() + "/authorize",
			TokenEndpoint: p.Addr() + "/token",
			JWKSURI:       p.Addr() + "/keys",
			Algs:          []string{string(ES256)},
		}
		_ = p.writeJSON(w, &reply)

	case "/authorize":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()

		responseType := qv.Get("response_type")
		if !strutils.StrListContains([]string{ResponseTypeCode, ResponseTypeCodeIdToken}, responseType) {
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		}
		if !strutils.StrListContains(strings.Fields(qv.Get("scope")), "openid") {
			p.writeAuthErrorResponse(w, req, "invalid_scope", "")
			return
		}
		if p.expectedAuthCode == "" {
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}
		if p.expectedAuthNonce != "" && p.expectedAuthNonce != qv.Get("nonce") {
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}
		state := qv.Get("state")
		if state == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		}
		redirectURI := qv.Get("redirect_uri")
		if !strutils.StrListContains(p.allowedRedirectURIs, redirectURI) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		fields := map[string]string{
			"state": state,
			"code":  p.expectedAuthCode,
		}
		if responseType == ResponseTypeCodeIdToken {
			fields["id_token"] = p.signIdToken()
		}
		if qv.Get("response_mode") == "form_post" {
			w.Header().Set("Content-Type", "text/html")
			_ = formPostTmpl.Execute(w, struct {
				Action string
				Fields map[string]string
			}{redirectURI, fields})
			return
		}
		v := url.Values{}
		for k, f := range fields {
			v.Set(k, f)
		}
		http.Redirect(w, req, redirectURI+"?"+v.Encode(), http.StatusFound)

	case "/keys":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = p.writeJSON(w, p.jwks)

	case "/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := req.ParseForm(); err != nil {
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		p.tokenRequests = append(p.tokenRequests, req.PostForm)
		if p.tokenDelay > 0 {
			select {
			case <-time.After(p.tokenDelay):
			case <-req.Context().Done():
				return
			}
		}
		if p.tokenErrStatus != 0 {
			_ = p.writeTokenErrorResponse(w, p.tokenErrStatus, p.tokenErrCode, "forced token error")
			return
		}

		switch {
		case req.PostFormValue("grant_type") != "authorization_code":
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
			return
		case req.PostFormValue("client_id") != p.clientID || req.PostFormValue("client_secret") != p.clientSecret:
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "bad client credentials")
			return
		case !strutils.StrListContains(p.allowedRedirectURIs, req.PostFormValue("redirect_uri")):
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
			return
		case req.PostFormValue("code") != p.expectedAuthCode:
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
			return
		}

		reply := struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int    `json:"expires_in"`
			IDToken     string `json:"id_token,omitempty"`
		}{
			AccessToken: "access-" + p.expectedAuthCode,
			TokenType:   "bearer",
			ExpiresIn:   3600,
		}
		if !p.omitIDToken {
			reply.IDToken = p.signIdToken()
		}
		_ = p.writeJSON(w, &reply)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// testJWKS converts a pem-encoded public key into JWKS data suitable for a
// verification endpoint response
func testJWKS(t testing.TB, pubKey string) *jose.JSONWebKeySet {
	t.Helper()
	require := require.New(t)

	block, _ := pem.Decode([]byte(pubKey))
	require.NotNil(block)

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(err)

	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       pub,
				KeyID:     testKeyID,
				Algorithm: string(jose.ES256),
				Use:       "sig",
			},
		},
	}
}

const (
	// TestClientID and TestClientSecret are the client credentials used by
	// TestConfig.
	TestClientID     = "test-client-id"
	TestClientSecret = "test-client-secret"
)

// TestConfig registers TestClientID and TestClientSecret with tp and returns
// a Config for it.  The redirect URL is tp's first allowed redirect URI.
func TestConfig(t testing.TB, tp *TestProvider, opt ...Option) *Config {
	t.Helper()
	tp.SetClientCreds(TestClientID, TestClientSecret)
	tp.mu.Lock()
	redirect := tp.allowedRedirectURIs[0]
	tp.mu.Unlock()
	opts := append([]Option{
		WithProviderCA(tp.CACert()),
		WithSupportedSigningAlgs(ES256),
	}, opt...)
	c, err := NewConfig(tp.Addr(), TestClientID, TestClientSecret, redirect, opts...)
	require.NoError(t, err)
	return c
}
