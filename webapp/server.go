// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package webapp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/cap-adfs/oidc"
	"github.com/hashicorp/cap-adfs/oidc/callback"
	"github.com/hashicorp/cap-adfs/session"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes served by the web app.
const (
	SignInPath   = "/signin"
	CallbackPath = "/signin-oidc"
	SignOutPath  = "/signout"
	ErrorPath    = "/error"
	MetricsPath  = "/metrics"
	HomePath     = "/"
)

// Provider is the identity provider the web app signs users in with.
// *oidc.Provider satisfies it.
type Provider interface {
	callback.Redeemer
	callback.Verifier
	AuthURL(ctx context.Context, s oidc.State) (string, error)
	Config() *oidc.Config
}

var _ Provider = (*oidc.Provider)(nil)

// Server is the web app's http.Handler.
type Server struct {
	provider   Provider
	states     callback.StateStore
	sessions   *session.Manager
	metrics    *Metrics
	logger     hclog.Logger
	dev        bool
	attemptTTL time.Duration
	nameClaim  string

	router chi.Router
}

var _ http.Handler = (*Server)(nil)

// NewServer creates the web app.
//
// Supported options:
//   - WithLogger
//   - WithDevelopment
//   - WithRegistry
//   - WithAttemptTTL
func NewServer(p Provider, states callback.StateStore, sessions *session.Manager, opt ...Option) (*Server, error) {
	const op = "webapp.NewServer"
	switch {
	case p == nil:
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrNilParameter)
	case p.Config() == nil:
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, oidc.ErrNilParameter)
	case states == nil:
		return nil, fmt.Errorf("%s: state store is nil: %w", op, oidc.ErrNilParameter)
	case sessions == nil:
		return nil, fmt.Errorf("%s: session manager is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getOpts(opt...)

	s := &Server{
		provider:   p,
		states:     states,
		sessions:   sessions,
		metrics:    NewMetrics(opts.withRegistry),
		logger:     opts.withLogger,
		dev:        opts.withDevelopment,
		attemptTTL: opts.withAttemptTTL,
		nameClaim:  p.Config().ValidationParameters.NameClaimType,
	}

	codeReceived := callback.Chain(
		callback.Continue,
		s.verifyCorrelation,
		callback.RedeemCode(s.metrics.InstrumentRedeemer(p), callback.WithLogger(s.logger)),
	)
	signInCallback, err := callback.SignIn(codeReceived, p, states, s.signedIn, s.signInFailed, callback.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if !s.dev {
		r.Use(hsts)
	}
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger.Named("http")))
	r.Use(sessions.Policy().Middleware)
	r.Use(sessions.Authenticate)

	r.Get(SignInPath, s.signIn)
	r.Get(CallbackPath, signInCallback)
	r.Post(CallbackPath, signInCallback)
	r.Get(SignOutPath, s.signOut)
	r.Get(ErrorPath, s.errorPage)
	r.Method(http.MethodGet, MetricsPath, promhttp.HandlerFor(opts.withRegistry, promhttp.HandlerOpts{}))
	r.Group(func(r chi.Router) {
		r.Use(requireAuthenticated)
		r.Get(HomePath, s.home)
	})
	s.router = r

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
