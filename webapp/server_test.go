// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package webapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hashicorp/cap-adfs/oidc"
	"github.com/hashicorp/cap-adfs/oidc/callback"
	"github.com/hashicorp/cap-adfs/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSessionKey = []byte("0123456789abcdef0123456789abcdef")

const testCode = "abc123"

type testApp struct {
	tp     *oidc.TestProvider
	server *Server
	store  *callback.MemoryStateStore
}

func testNewApp(t *testing.T, opt ...Option) *testApp {
	t.Helper()
	require := require.New(t)
	tp := oidc.StartTestProvider(t)
	tp.SetExpectedAuthCode(testCode)
	tp.SetCustomClaims(map[string]interface{}{oidc.DefaultNameClaimType: "Alice Example"})

	p, err := oidc.NewProvider(context.Background(), oidc.TestConfig(t, tp))
	require.NoError(err)
	t.Cleanup(p.Done)

	store := callback.NewMemoryStateStore()
	store.Start()
	t.Cleanup(store.Stop)

	sessions, err := session.NewManager(testSessionKey)
	require.NoError(err)

	s, err := NewServer(p, store, sessions, append([]Option{WithRegistry(prometheus.NewRegistry())}, opt...)...)
	require.NoError(err)
	return &testApp{tp: tp, server: s, store: store}
}

func (a *testApp) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	return rec
}

// startSignIn follows /signin and returns the state, nonce and correlation
// cookie the provider would be answering.
func (a *testApp) startSignIn(t *testing.T, returnURL string) (string, string, []*http.Cookie) {
	t.Helper()
	require := require.New(t)
	rec := a.do(httptest.NewRequest(http.MethodGet, SignInPath+"?"+url.Values{returnURLParam: {returnURL}}.Encode(), nil))
	require.Equal(http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(err)
	require.True(strings.HasPrefix(loc.String(), a.tp.Addr()+"/authorize"))
	q := loc.Query()
	require.Equal(oidc.ResponseTypeCodeIdToken, q.Get("response_type"))
	require.Equal("form_post", q.Get("response_mode"))
	require.Contains(strings.Fields(q.Get("scope")), "openid")
	require.NotEmpty(q.Get("nonce"))
	a.tp.SetExpectedAuthNonce(q.Get("nonce"))
	return q.Get("state"), q.Get("nonce"), rec.Result().Cookies()
}

func (a *testApp) postCallback(form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, CallbackPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req, cookies...)
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestServer_SignInFlow(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	a := testNewApp(t)

	// unauthenticated users are sent to sign in
	rec := a.do(httptest.NewRequest(http.MethodGet, HomePath, nil))
	require.Equal(http.StatusFound, rec.Code)
	assert.Equal(SignInPath+"?ReturnUrl=%2F", rec.Header().Get("Location"))

	stateID, _, cookies := a.startSignIn(t, HomePath)
	require.NotNil(cookieNamed(cookies, session.CorrelationCookieName))
	assert.Equal(1, a.store.Len())

	rec = a.postCallback(url.Values{
		"code":     {testCode},
		"state":    {stateID},
		"id_token": {a.tp.IdToken()},
	}, cookies)
	require.Equal(http.StatusSeeOther, rec.Code)
	assert.Equal(HomePath, rec.Header().Get("Location"))
	sessionCookie := cookieNamed(rec.Result().Cookies(), session.DefaultCookieName)
	require.NotNil(sessionCookie)
	assert.True(sessionCookie.HttpOnly)
	assert.Zero(a.store.Len())

	// the code was redeemed once, requesting openid
	reqs := a.tp.TokenRequests()
	require.Len(reqs, 1)
	assert.Equal("openid", reqs[0].Get("scope"))
	assert.Equal(testCode, reqs[0].Get("code"))

	rec = a.do(httptest.NewRequest(http.MethodGet, HomePath, nil), sessionCookie)
	require.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), "Hello, Alice Example!")

	assert.Equal(1.0, testutil.ToFloat64(a.server.metrics.SignIns.WithLabelValues(resultSuccess)))
	assert.Equal(1, testutil.CollectAndCount(a.server.metrics.RedemptionDuration))

	rec = a.do(httptest.NewRequest(http.MethodGet, MetricsPath, nil))
	require.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), `webapp_signins_total{result="success"} 1`)

	// signing out clears the session
	rec = a.do(httptest.NewRequest(http.MethodGet, SignOutPath, nil), sessionCookie)
	require.Equal(http.StatusOK, rec.Code)
	cleared := cookieNamed(rec.Result().Cookies(), session.DefaultCookieName)
	require.NotNil(cleared)
	assert.Empty(cleared.Value)
}

func TestServer_SignInFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		setup       func(a *testApp)
		form        func(a *testApp, stateID string) url.Values
		wantResult  string
		wantRedeems int
	}{
		{
			name:  "untrusted-issuer",
			setup: func(a *testApp) { a.tp.SetIssuer("https://evil.example.com/adfs") },
			form: func(a *testApp, stateID string) url.Values {
				return url.Values{"code": {testCode}, "state": {stateID}, "id_token": {a.tp.IdToken()}}
			},
			wantResult:  resultFailure,
			wantRedeems: 1,
		},
		{
			name:  "redemption-failure",
			setup: func(a *testApp) { a.tp.SetTokenError(http.StatusBadRequest, "invalid_grant") },
			form: func(a *testApp, stateID string) url.Values {
				return url.Values{"code": {testCode}, "state": {stateID}, "id_token": {a.tp.IdToken()}}
			},
			wantResult:  resultFailure,
			wantRedeems: 1,
		},
		{
			name: "provider-error",
			form: func(_ *testApp, stateID string) url.Values {
				return url.Values{"state": {stateID}, "error": {"access_denied"}}
			},
			wantResult: resultProviderError,
		},
		{
			name: "unknown-state",
			form: func(a *testApp, _ string) url.Values {
				return url.Values{"code": {testCode}, "state": {"st_unknown"}, "id_token": {a.tp.IdToken()}}
			},
			wantResult: resultFailure,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			a := testNewApp(t)
			stateID, _, cookies := a.startSignIn(t, HomePath)
			if tt.setup != nil {
				tt.setup(a)
			}
			rec := a.postCallback(tt.form(a, stateID), cookies)
			require.Equal(http.StatusSeeOther, rec.Code)
			assert.Equal(ErrorPath, rec.Header().Get("Location"))
			assert.Nil(cookieNamed(rec.Result().Cookies(), session.DefaultCookieName))
			assert.Len(a.tp.TokenRequests(), tt.wantRedeems)
			assert.Equal(1.0, testutil.ToFloat64(a.server.metrics.SignIns.WithLabelValues(tt.wantResult)))
		})
	}
}

func TestServer_CorrelationMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cookies func(other []*http.Cookie) []*http.Cookie
	}{
		{
			name:    "other-browser",
			cookies: func(other []*http.Cookie) []*http.Cookie { return other },
		},
		{
			name:    "missing-cookie",
			cookies: func([]*http.Cookie) []*http.Cookie { return nil },
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			a := testNewApp(t)
			stateID, nonce, _ := a.startSignIn(t, HomePath)
			_, _, otherCookies := a.startSignIn(t, HomePath)
			a.tp.SetExpectedAuthNonce(nonce)

			rec := a.postCallback(url.Values{
				"code":     {testCode},
				"state":    {stateID},
				"id_token": {a.tp.IdToken()},
			}, tt.cookies(otherCookies))
			require.Equal(http.StatusSeeOther, rec.Code)
			assert.Equal(ErrorPath, rec.Header().Get("Location"))
			assert.Nil(cookieNamed(rec.Result().Cookies(), session.DefaultCookieName))
			assert.Empty(a.tp.TokenRequests(), "code must not be redeemed")
			assert.Equal(1.0, testutil.ToFloat64(a.server.metrics.SignIns.WithLabelValues(resultFailure)))
		})
	}
	t.Run("no-code", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a := testNewApp(t)
		stateID, nonce, _ := a.startSignIn(t, HomePath)
		_, _, otherCookies := a.startSignIn(t, HomePath)
		a.tp.SetExpectedAuthNonce(nonce)

		rec := a.postCallback(url.Values{"state": {stateID}, "id_token": {a.tp.IdToken()}}, otherCookies)
		require.Equal(http.StatusSeeOther, rec.Code)
		assert.Equal(ErrorPath, rec.Header().Get("Location"))
		assert.Nil(cookieNamed(rec.Result().Cookies(), session.DefaultCookieName))
	})
}

func TestServer_ReturnURL(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	a := testNewApp(t)
	stateID, _, cookies := a.startSignIn(t, "/?tab=profile")
	rec := a.postCallback(url.Values{
		"code":     {testCode},
		"state":    {stateID},
		"id_token": {a.tp.IdToken()},
	}, cookies)
	require.Equal(http.StatusSeeOther, rec.Code)
	assert.Equal("/?tab=profile", rec.Header().Get("Location"))
}

func TestServer_HSTS(t *testing.T) {
	t.Parallel()
	rec := testNewApp(t).do(httptest.NewRequest(http.MethodGet, ErrorPath, nil))
	assert.Equal(t, hstsMaxAge, rec.Header().Get("Strict-Transport-Security"))
	assert.Contains(t, rec.Body.String(), "An error occurred while signing you in.")

	rec = testNewApp(t, WithDevelopment(true)).do(httptest.NewRequest(http.MethodGet, ErrorPath, nil))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func Test_requireAuthenticated(t *testing.T) {
	t.Parallel()
	called := false
	h := requireAuthenticated(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?id=1", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, SignInPath+"?ReturnUrl=%2Forders%3Fid%3D1", rec.Header().Get("Location"))
	assert.False(t, called)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req = req.WithContext(session.NewContext(req.Context(), &session.Session{Subject: "alice@example.com"}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, called)
}

func TestNewServer(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	tp := oidc.StartTestProvider(t)
	p, err := oidc.NewProvider(context.Background(), oidc.TestConfig(t, tp))
	require.NoError(err)
	t.Cleanup(p.Done)
	sessions, err := session.NewManager(testSessionKey)
	require.NoError(err)
	store := callback.NewMemoryStateStore()

	_, err = NewServer(nil, store, sessions)
	require.ErrorIs(err, oidc.ErrNilParameter)
	_, err = NewServer(p, nil, sessions)
	require.ErrorIs(err, oidc.ErrNilParameter)
	_, err = NewServer(p, store, nil)
	require.ErrorIs(err, oidc.ErrNilParameter)
}

func Test_localPath(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"":                     HomePath,
		"/":                    "/",
		"/orders?id=1":         "/orders?id=1",
		"https://evil.example": HomePath,
		"//evil.example":       HomePath,
		"/\\evil.example":      HomePath,
	}
	for in, want := range tests {
		assert.Equal(t, want, localPath(in), in)
	}
}

func Test_displayName(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	claims := map[string]interface{}{oidc.DefaultNameClaimType: "Alice", "name": "A"}
	assert.Equal("Alice", displayName(claims, oidc.DefaultNameClaimType, "sub"))
	assert.Equal("A", displayName(claims, "upn", "sub"))
	assert.Equal("sub", displayName(map[string]interface{}{}, "upn", "sub"))
}
