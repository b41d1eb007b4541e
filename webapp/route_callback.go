// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package webapp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/cap-adfs/oidc/callback"
)

// verifyCorrelation stops the code-received chain, before the code is
// redeemed, when the callback didn't come from the browser which started the
// sign-in.
func (s *Server) verifyCorrelation(ctx context.Context, cr *callback.CodeReceived, next callback.Handler) error {
	const op = "Server.verifyCorrelation"
	if err := s.sessions.VerifyCorrelation(cr.Request, cr.State.ID()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return next(ctx, cr)
}

// signedIn completes a successful callback by issuing the session and
// returning to the page the sign-in started from.
func (s *Server) signedIn(stateID string, res *callback.SignInResult, w http.ResponseWriter, req *http.Request) {
	const op = "Server.signedIn"
	if err := s.sessions.VerifyCorrelation(req, stateID); err != nil {
		s.signInFailed(stateID, nil, fmt.Errorf("%s: %w", op, err), w, req)
		return
	}
	s.sessions.ClearCorrelation(w)

	var claims map[string]interface{}
	if err := res.IdToken.Claims(&claims); err != nil {
		s.signInFailed(stateID, nil, fmt.Errorf("%s: unable to read id_token claims: %w", op, err), w, req)
		return
	}
	name := displayName(claims, s.nameClaim, res.IdToken.Subject)

	if _, err := s.sessions.Issue(w, res.IdToken.Subject, name, res.IdToken.Issuer); err != nil {
		s.signInFailed(stateID, nil, fmt.Errorf("%s: %w", op, err), w, req)
		return
	}
	s.metrics.IncrementSignIn(resultSuccess)
	s.logger.Info("user signed in", "state", stateID, "subject", res.IdToken.Subject)

	returnTo := HomePath
	if res.State != nil {
		returnTo = localPath(res.State.ReturnTo())
	}
	http.Redirect(w, req, returnTo, http.StatusSeeOther)
}

// signInFailed logs why a callback failed and sends the user agent to the
// error page.
func (s *Server) signInFailed(stateID string, respErr *callback.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
	result := resultFailure
	switch {
	case respErr != nil:
		result = resultProviderError
		s.logger.Warn("provider returned an error", "state", stateID, "error", respErr.String())
	case e != nil:
		s.logger.Error("sign-in failed", "state", stateID, "error", e)
	}
	s.metrics.IncrementSignIn(result)
	s.sessions.ClearCorrelation(w)
	http.Redirect(w, req, ErrorPath, http.StatusSeeOther)
}

// displayName returns the first non-empty string claim of nameClaim, "name"
// and "unique_name", falling back to the subject.
func displayName(claims map[string]interface{}, nameClaim, subject string) string {
	for _, c := range []string{nameClaim, "name", "unique_name"} {
		if v, ok := claims[c].(string); ok && v != "" {
			return v
		}
	}
	return subject
}
