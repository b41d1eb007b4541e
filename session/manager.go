// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/cap-adfs/oidc"
	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultCookieName is the name of the session cookie.
	DefaultCookieName = "webapp.session"

	// CorrelationCookieName is the name of the cookie binding a sign-in
	// callback to the browser which started it.
	CorrelationCookieName = "webapp.correlation"

	// DefaultLifetime of an issued session.
	DefaultLifetime = 8 * time.Hour

	// MinKeyLength is the minimum length of the session signing key.
	MinKeyLength = 32
)

var sessionAlgs = []jose.SignatureAlgorithm{jose.HS256}

// Session is an authenticated user's session.
type Session struct {
	ID        string
	Subject   string
	Name      string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type sessionClaims struct {
	Name   string `json:"name,omitempty"`
	Issuer string `json:"idp,omitempty"`
}

// Manager issues and reads session cookies.  The cookie's value is a JWS
// signed with HS256.
type Manager struct {
	key        []byte
	signer     jose.Signer
	lifetime   time.Duration
	cookieName string
	policy     CookiePolicy
	nowFunc    func() time.Time
	logger     hclog.Logger
}

// NewManager creates a Manager which signs sessions with key.
//
// Supported options:
//   - WithLifetime
//   - WithCookiePolicy
//   - WithCookieName
//   - WithNow
//   - WithLogger
func NewManager(key []byte, opt ...Option) (*Manager, error) {
	const op = "session.NewManager"
	if len(key) < MinKeyLength {
		return nil, fmt.Errorf("%s: key must be at least %d bytes: %w", op, MinKeyLength, ErrInvalidParameter)
	}
	opts := getManagerOpts(opt...)
	if err := opts.withPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create signer: %w", op, err)
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Manager{
		key:        k,
		signer:     signer,
		lifetime:   opts.withLifetime,
		cookieName: opts.withCookieName,
		policy:     *opts.withPolicy,
		nowFunc:    opts.withNow,
		logger:     opts.withLogger.Named("session"),
	}, nil
}

// Policy returns the manager's cookie policy.
func (m *Manager) Policy() CookiePolicy { return m.policy }

// Issue a session for the subject and write its cookie.
func (m *Manager) Issue(w http.ResponseWriter, subject, name, issuer string) (*Session, error) {
	const op = "Manager.Issue"
	if w == nil {
		return nil, fmt.Errorf("%s: response writer is nil: %w", op, ErrInvalidParameter)
	}
	if subject == "" {
		return nil, fmt.Errorf("%s: subject is empty: %w", op, ErrInvalidParameter)
	}
	id, err := oidc.NewID(oidc.WithPrefix("s"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := m.now()
	s := &Session{
		ID:        id,
		Subject:   subject,
		Name:      name,
		Issuer:    issuer,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.lifetime),
	}
	raw, err := jwt.Signed(m.signer).
		Claims(jwt.Claims{
			ID:        s.ID,
			Subject:   s.Subject,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			NotBefore: jwt.NewNumericDate(s.IssuedAt),
			Expiry:    jwt.NewNumericDate(s.ExpiresAt),
		}).
		Claims(sessionClaims{Name: s.Name, Issuer: s.Issuer}).
		Serialize()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to sign session: %w", op, err)
	}
	m.setCookie(w, m.cookieName, raw, s.ExpiresAt, 0)
	return s, nil
}

// Read the session from req's cookie.  ErrNoSession is returned when there's
// no cookie.
func (m *Manager) Read(req *http.Request) (*Session, error) {
	const op = "Manager.Read"
	if req == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrInvalidParameter)
	}
	c, err := req.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSession)
	}
	tok, err := jwt.ParseSigned(c.Value, sessionAlgs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSession, err)
	}
	var std jwt.Claims
	var priv sessionClaims
	if err := tok.Claims(m.key, &std, &priv); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSession, err)
	}
	if err := std.ValidateWithLeeway(jwt.Expected{Time: m.now()}, 0); err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrExpiredSession)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSession, err)
	}
	if std.Subject == "" || std.Expiry == nil {
		return nil, fmt.Errorf("%s: missing subject or expiry: %w", op, ErrInvalidSession)
	}
	s := &Session{
		ID:        std.ID,
		Subject:   std.Subject,
		Name:      priv.Name,
		Issuer:    priv.Issuer,
		ExpiresAt: std.Expiry.Time(),
	}
	if std.IssuedAt != nil {
		s.IssuedAt = std.IssuedAt.Time()
	}
	return s, nil
}

// Clear the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	m.setCookie(w, m.cookieName, "", time.Unix(0, 0), 0)
}

// SetCorrelation writes the correlation cookie for a sign-in started with
// stateID.  It's SameSite=None so it comes back with the provider's
// cross-site form post.
func (m *Manager) SetCorrelation(w http.ResponseWriter, stateID string, expiresAt time.Time) {
	m.setCookie(w, CorrelationCookieName, stateID, expiresAt, http.SameSiteNoneMode)
}

// Correlation returns the state id from the correlation cookie, or "" when
// there isn't one.
func (m *Manager) Correlation(req *http.Request) string {
	c, err := req.Cookie(CorrelationCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// VerifyCorrelation checks that req came from the browser which started the
// sign-in for stateID.  A missing cookie fails too.  Without Secure cookies
// the correlation cookie is SameSite=Lax and only comes back when the
// provider's form post is same-site, so deployments using a cross-site
// provider need the Secure policy.
func (m *Manager) VerifyCorrelation(req *http.Request, stateID string) error {
	const op = "Manager.VerifyCorrelation"
	if req == nil {
		return fmt.Errorf("%s: request is nil: %w", op, ErrInvalidParameter)
	}
	got := m.Correlation(req)
	switch {
	case got == "":
		return fmt.Errorf("%s: correlation cookie is missing: %w", op, ErrCorrelationFailed)
	case subtle.ConstantTimeCompare([]byte(got), []byte(stateID)) != 1:
		return fmt.Errorf("%s: correlation cookie does not match state: %w", op, ErrCorrelationFailed)
	}
	return nil
}

// ClearCorrelation clears the correlation cookie.
func (m *Manager) ClearCorrelation(w http.ResponseWriter) {
	m.setCookie(w, CorrelationCookieName, "", time.Unix(0, 0), http.SameSiteNoneMode)
}

// Authenticate is a middleware which puts the request's session, if any, into
// its context.  Invalid sessions are ignored.
func (m *Manager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Read(r)
		switch {
		case err == nil:
			r = r.WithContext(NewContext(r.Context(), s))
		case !errors.Is(err, ErrNoSession):
			m.logger.Debug("ignoring session cookie", "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Manager) setCookie(w http.ResponseWriter, name, value string, expires time.Time, sameSite http.SameSite) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		SameSite: sameSite,
	}
	if value == "" {
		c.MaxAge = -1
	}
	m.policy.Apply(c)
	http.SetCookie(w, c)
}

func (m *Manager) now() time.Time {
	if m.nowFunc != nil {
		return m.nowFunc()
	}
	return time.Now()
}
