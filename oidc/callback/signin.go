// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"fmt"
	"net/http"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/cap-adfs/oidc"
)

// Verifier verifies an id_token, including its issuer.  *oidc.Provider
// satisfies it.
type Verifier interface {
	VerifyIdToken(ctx context.Context, t oidc.IdToken, nonce string) (*gooidc.IDToken, error)
}

var _ Verifier = (*oidc.Provider)(nil)

// SignIn creates the relying party's sign-in callback handler, which
// processes the provider's authentication response.  The StateReader is used
// to read the flow's oidc.State using the response's "state" parameter as
// the key.
//
// codeReceived runs whenever the response carries a code and before the
// id_token is verified; build it with Chain and RedeemCode.  The front-channel
// id_token is verified when present, otherwise the id_token returned by the
// code redemption is.
//
// The SuccessResponseFunc is used to create a response when the callback is
// successful. The ErrorResponseFunc is used to create a response when the
// callback fails.
//
// Supported options:
//   - WithLogger
func SignIn(codeReceived Handler, v Verifier, sr StateReader, sFn SuccessResponseFunc, eFn ErrorResponseFunc, opt ...oidc.Option) (http.HandlerFunc, error) {
	const op = "callback.SignIn"
	switch {
	case codeReceived == nil:
		return nil, fmt.Errorf("%s: code received handler is nil: %w", op, oidc.ErrInvalidParameter)
	case v == nil:
		return nil, fmt.Errorf("%s: verifier is nil: %w", op, oidc.ErrInvalidParameter)
	case sr == nil:
		return nil, fmt.Errorf("%s: state reader is nil: %w", op, oidc.ErrInvalidParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrInvalidParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	logger := opts.withLogger.Named("signin")

	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		msg, err := ParseProtocolMessage(req)
		if err != nil {
			eFn("", nil, fmt.Errorf("%s: %w", op, err), w, req)
			return
		}
		if respErr := msg.AuthenError(); respErr != nil {
			logger.Warn("authentication error response from provider", "state", msg.State, "error", respErr.String())
			eFn(msg.State, respErr, nil, w, req)
			return
		}
		if msg.State == "" {
			eFn("", nil, fmt.Errorf("%s: response state is empty: %w", op, oidc.ErrInvalidParameter), w, req)
			return
		}

		state, err := sr.Read(ctx, msg.State)
		if err != nil {
			// could have expired, been used already or it could be invalid...
			// no way to known for sure
			eFn(msg.State, nil, fmt.Errorf("%s: unable to read auth code state: %w", op, err), w, req)
			return
		}
		if state == nil {
			eFn(msg.State, nil, fmt.Errorf("%s: auth code state not found: %w", op, oidc.ErrNotFound), w, req)
			return
		}
		if state.IsExpired() {
			eFn(msg.State, nil, fmt.Errorf("%s: authentication state is expired: %w", op, oidc.ErrExpiredState), w, req)
			return
		}
		if state.ID() != msg.State {
			eFn(msg.State, nil, fmt.Errorf("%s: authen state and response state are not equal: %w", op, oidc.ErrResponseStateInvalid), w, req)
			return
		}

		cr := &CodeReceived{Message: msg, State: state, Request: req}
		switch {
		case msg.Code != "":
			if err := codeReceived(ctx, cr); err != nil {
				eFn(msg.State, nil, fmt.Errorf("%s: %w", op, err), w, req)
				return
			}
		case msg.IdToken == "":
			eFn(msg.State, nil, fmt.Errorf("%s: response has neither a code nor an id_token: %w", op, oidc.ErrInvalidParameter), w, req)
			return
		}

		raw := msg.IdToken
		if raw == "" && cr.Token != nil {
			raw = cr.Token.IdToken()
		}
		if raw == "" {
			eFn(msg.State, nil, fmt.Errorf("%s: %w", op, oidc.ErrMissingIdToken), w, req)
			return
		}

		idToken, err := v.VerifyIdToken(ctx, raw, state.Nonce())
		if err != nil {
			logger.Error("id_token verification failed", "state", msg.State, "error", err)
			eFn(msg.State, nil, fmt.Errorf("%s: %w: %w", op, oidc.ErrLoginFailed, err), w, req)
			return
		}
		if msg.IdToken != "" && msg.Code != "" {
			if err := verifyCodeHash(msg.IdToken, msg.Code); err != nil {
				eFn(msg.State, nil, fmt.Errorf("%s: %w: %w", op, oidc.ErrLoginFailed, err), w, req)
				return
			}
		}

		logger.Debug("sign-in callback succeeded", "state", msg.State, "subject", idToken.Subject)
		sFn(msg.State, &SignInResult{
			State:      state,
			IdToken:    idToken,
			RawIdToken: raw,
			Token:      cr.Token,
		}, w, req)
	}, nil
}
