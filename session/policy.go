// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"fmt"
	"net/http"
	"strings"
)

// CookiePolicy is applied to every cookie the application writes.
type CookiePolicy struct {
	// Secure cookies are only sent over https.
	Secure bool

	// SameSite is used for cookies which don't set their own mode and
	// defaults to http.SameSiteLaxMode.  http.SameSiteNoneMode is only
	// allowed along with Secure.
	SameSite http.SameSite
}

// NewCookiePolicy parses sameSite ("lax", "strict" or "none"; empty means
// lax) and returns a validated policy.
func NewCookiePolicy(secure bool, sameSite string) (CookiePolicy, error) {
	const op = "session.NewCookiePolicy"
	p := CookiePolicy{Secure: secure}
	switch strings.ToLower(strings.TrimSpace(sameSite)) {
	case "", "lax":
		p.SameSite = http.SameSiteLaxMode
	case "strict":
		p.SameSite = http.SameSiteStrictMode
	case "none":
		p.SameSite = http.SameSiteNoneMode
	default:
		return CookiePolicy{}, fmt.Errorf("%s: unknown SameSite mode %q: %w", op, sameSite, ErrInvalidParameter)
	}
	if err := p.Validate(); err != nil {
		return CookiePolicy{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Validate the policy.
func (p CookiePolicy) Validate() error {
	const op = "CookiePolicy.Validate"
	if p.SameSite == http.SameSiteNoneMode && !p.Secure {
		return fmt.Errorf("%s: %w", op, ErrInsecureSameSite)
	}
	return nil
}

// Apply the policy to c.  Cookies are always HttpOnly, and SameSite=None is
// lowered to Lax for cookies which aren't Secure since browsers reject them.
func (p CookiePolicy) Apply(c *http.Cookie) {
	if c == nil {
		return
	}
	c.HttpOnly = true
	if p.Secure {
		c.Secure = true
	}
	if c.SameSite == 0 || c.SameSite == http.SameSiteDefaultMode {
		c.SameSite = p.SameSite
	}
	switch {
	case c.SameSite == 0 || c.SameSite == http.SameSiteDefaultMode:
		c.SameSite = http.SameSiteLaxMode
	case c.SameSite == http.SameSiteNoneMode && !c.Secure:
		c.SameSite = http.SameSiteLaxMode
	}
}

// Middleware rewrites every Set-Cookie header written by next so it
// conforms to the policy.
func (p CookiePolicy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&policyWriter{ResponseWriter: w, policy: p}, r)
	})
}

type policyWriter struct {
	http.ResponseWriter
	policy      CookiePolicy
	wroteHeader bool
}

func (w *policyWriter) rewrite() {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	h := w.Header()
	raw := h.Values("Set-Cookie")
	if len(raw) == 0 {
		return
	}
	h.Del("Set-Cookie")
	for _, v := range raw {
		c, err := http.ParseSetCookie(v)
		if err != nil {
			h.Add("Set-Cookie", v)
			continue
		}
		w.policy.Apply(c)
		h.Add("Set-Cookie", c.String())
	}
}

func (w *policyWriter) WriteHeader(code int) {
	w.rewrite()
	w.ResponseWriter.WriteHeader(code)
}

func (w *policyWriter) Write(b []byte) (int, error) {
	w.rewrite()
	return w.ResponseWriter.Write(b)
}

func (w *policyWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
