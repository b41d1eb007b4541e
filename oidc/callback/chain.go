// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"net/http"

	"github.com/hashicorp/cap-adfs/oidc"
)

// CodeReceived carries an authorization code through the code-received
// chain.  It's owned by a single request.
type CodeReceived struct {
	// Message is the parsed authentication response.
	Message *ProtocolMessage

	// State is the flow's state, already read and checked.
	State oidc.State

	// Request is the callback request the code arrived with.
	Request *http.Request

	// Token is set once the code has been redeemed.
	Token oidc.Token
}

// Handler handles a received authorization code.
type Handler func(ctx context.Context, cr *CodeReceived) error

// Middleware is one link of the code-received chain.  It must call next to
// continue the chain and should return next's result.  Returning without
// calling next stops the chain.
type Middleware func(ctx context.Context, cr *CodeReceived, next Handler) error

// Continue is the default terminal Handler.  It accepts the code.
func Continue(context.Context, *CodeReceived) error { return nil }

// Chain composes mw around terminal.  mw[0] runs first; a nil terminal is
// replaced with Continue and nil middleware are skipped.
func Chain(terminal Handler, mw ...Middleware) Handler {
	h := terminal
	if h == nil {
		h = Continue
	}
	for i := len(mw) - 1; i >= 0; i-- {
		m, next := mw[i], h
		if m == nil {
			continue
		}
		h = func(ctx context.Context, cr *CodeReceived) error {
			return m(ctx, cr, next)
		}
	}
	return h
}
