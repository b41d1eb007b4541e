// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

// testRequestWithCookies returns a request carrying the cookies set on rec.
func testRequestWithCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestNewManager(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		key       []byte
		opt       []Option
		wantErr   bool
		wantIsErr error
	}{
		{name: "valid", key: testKey},
		{name: "short-key", key: []byte("too-short"), wantErr: true, wantIsErr: ErrInvalidParameter},
		{
			name:      "insecure-same-site-none",
			key:       testKey,
			opt:       []Option{WithCookiePolicy(CookiePolicy{SameSite: http.SameSiteNoneMode})},
			wantErr:   true,
			wantIsErr: ErrInsecureSameSite,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			m, err := NewManager(tt.key, tt.opt...)
			if tt.wantErr {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			assert.NotNil(m)
		})
	}
}

func TestManager_IssueRead(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("round-trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m, err := NewManager(testKey, WithNow(func() time.Time { return now }), WithLifetime(time.Hour))
		require.NoError(err)

		rec := httptest.NewRecorder()
		issued, err := m.Issue(rec, "alice@example.com", "Alice", "https://adfs.example.com/adfs")
		require.NoError(err)
		assert.Equal(now.Add(time.Hour), issued.ExpiresAt)

		cookies := rec.Result().Cookies()
		require.Len(cookies, 1)
		assert.Equal(DefaultCookieName, cookies[0].Name)
		assert.True(cookies[0].HttpOnly)
		assert.Equal(http.SameSiteLaxMode, cookies[0].SameSite)

		got, err := m.Read(testRequestWithCookies(rec))
		require.NoError(err)
		assert.Equal(issued.ID, got.ID)
		assert.Equal("alice@example.com", got.Subject)
		assert.Equal("Alice", got.Name)
		assert.Equal("https://adfs.example.com/adfs", got.Issuer)
		assert.True(issued.ExpiresAt.Equal(got.ExpiresAt))
	})
	t.Run("expired", func(t *testing.T) {
		require := require.New(t)
		clock := now
		m, err := NewManager(testKey, WithNow(func() time.Time { return clock }), WithLifetime(time.Minute))
		require.NoError(err)
		rec := httptest.NewRecorder()
		_, err = m.Issue(rec, "alice@example.com", "Alice", "")
		require.NoError(err)
		clock = now.Add(2 * time.Minute)
		_, err = m.Read(testRequestWithCookies(rec))
		require.ErrorIs(err, ErrExpiredSession)
	})
	t.Run("tampered", func(t *testing.T) {
		require := require.New(t)
		m, err := NewManager(testKey)
		require.NoError(err)
		rec := httptest.NewRecorder()
		_, err = m.Issue(rec, "alice@example.com", "Alice", "")
		require.NoError(err)

		c := rec.Result().Cookies()[0]
		parts := strings.Split(c.Value, ".")
		require.Len(parts, 3)
		// swap in a payload claiming another subject
		other := httptest.NewRecorder()
		_, err = m.Issue(other, "mallory@example.com", "Mallory", "")
		require.NoError(err)
		parts[1] = strings.Split(other.Result().Cookies()[0].Value, ".")[1]

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: strings.Join(parts, ".")})
		_, err = m.Read(req)
		require.ErrorIs(err, ErrInvalidSession)
	})
	t.Run("wrong-key", func(t *testing.T) {
		require := require.New(t)
		m, err := NewManager(testKey)
		require.NoError(err)
		other, err := NewManager([]byte("fedcba9876543210fedcba9876543210"))
		require.NoError(err)
		rec := httptest.NewRecorder()
		_, err = other.Issue(rec, "alice@example.com", "Alice", "")
		require.NoError(err)
		_, err = m.Read(testRequestWithCookies(rec))
		require.ErrorIs(err, ErrInvalidSession)
	})
	t.Run("no-cookie", func(t *testing.T) {
		m, err := NewManager(testKey)
		require.NoError(t, err)
		_, err = m.Read(httptest.NewRequest(http.MethodGet, "/", nil))
		require.ErrorIs(t, err, ErrNoSession)
	})
	t.Run("invalid-params", func(t *testing.T) {
		m, err := NewManager(testKey)
		require.NoError(t, err)
		_, err = m.Issue(httptest.NewRecorder(), "", "Alice", "")
		require.ErrorIs(t, err, ErrInvalidParameter)
		_, err = m.Issue(nil, "alice@example.com", "Alice", "")
		require.ErrorIs(t, err, ErrInvalidParameter)
		_, err = m.Read(nil)
		require.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestManager_Clear(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	m, err := NewManager(testKey, WithCookiePolicy(CookiePolicy{Secure: true, SameSite: http.SameSiteStrictMode}))
	require.NoError(err)

	rec := httptest.NewRecorder()
	m.Clear(rec)
	m.ClearCorrelation(rec)
	cookies := rec.Result().Cookies()
	require.Len(cookies, 2)
	for _, c := range cookies {
		assert.Empty(c.Value)
		assert.Equal(-1, c.MaxAge)
		assert.True(c.Secure)
	}
	assert.Equal(http.SameSiteStrictMode, cookies[0].SameSite)
	assert.Equal(http.SameSiteNoneMode, cookies[1].SameSite)
}

func TestManager_Correlation(t *testing.T) {
	t.Parallel()

	t.Run("insecure", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m, err := NewManager(testKey)
		require.NoError(err)

		empty := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Empty(m.Correlation(empty))
		assert.ErrorIs(m.VerifyCorrelation(empty, "st_1"), ErrCorrelationFailed)
		assert.ErrorIs(m.VerifyCorrelation(nil, "st_1"), ErrInvalidParameter)

		rec := httptest.NewRecorder()
		m.SetCorrelation(rec, "st_1", time.Now().Add(time.Minute))
		c := rec.Result().Cookies()[0]
		assert.Equal(http.SameSiteLaxMode, c.SameSite)

		req := testRequestWithCookies(rec)
		assert.Equal("st_1", m.Correlation(req))
		assert.NoError(m.VerifyCorrelation(req, "st_1"))
		assert.ErrorIs(m.VerifyCorrelation(req, "st_2"), ErrCorrelationFailed)
	})
	t.Run("secure", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		m, err := NewManager(testKey, WithCookiePolicy(CookiePolicy{Secure: true, SameSite: http.SameSiteLaxMode}))
		require.NoError(err)

		assert.ErrorIs(m.VerifyCorrelation(httptest.NewRequest(http.MethodGet, "/", nil), "st_1"), ErrCorrelationFailed)

		rec := httptest.NewRecorder()
		m.SetCorrelation(rec, "st_1", time.Now().Add(time.Minute))
		c := rec.Result().Cookies()[0]
		assert.Equal(http.SameSiteNoneMode, c.SameSite)
		assert.True(c.Secure)
		assert.NoError(m.VerifyCorrelation(testRequestWithCookies(rec), "st_1"))
	})
}

func TestManager_Authenticate(t *testing.T) {
	t.Parallel()
	m, err := NewManager(testKey)
	require.NoError(t, err)

	var got *Session
	h := m.Authenticate(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	t.Run("with-session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		_, err := m.Issue(rec, "alice@example.com", "Alice", "")
		require.NoError(t, err)
		h.ServeHTTP(httptest.NewRecorder(), testRequestWithCookies(rec))
		require.NotNil(t, got)
		assert.Equal(t, "alice@example.com", got.Subject)
	})
	t.Run("garbage-cookie", func(t *testing.T) {
		got = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "garbage"})
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Nil(t, got)
	})
}
