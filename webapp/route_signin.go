// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package webapp

import (
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/cap-adfs/oidc"
)

// returnURLParam names the page to return to after signing in.
const returnURLParam = "ReturnUrl"

// signIn challenges the user agent: it starts a sign-in attempt and
// redirects to the provider.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := oidc.NewState(s.attemptTTL, oidc.WithReturnTo(localPath(r.URL.Query().Get(returnURLParam))))
	if err != nil {
		s.logger.Error("unable to create sign-in state", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := s.states.Write(ctx, st); err != nil {
		s.logger.Error("unable to store sign-in state", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	authURL, err := s.provider.AuthURL(ctx, st)
	if err != nil {
		s.logger.Error("unable to create auth url", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	s.sessions.SetCorrelation(w, st.ID(), time.Now().Add(s.attemptTTL))
	s.logger.Debug("redirecting to provider", "state", st.ID())
	http.Redirect(w, r, authURL, http.StatusFound)
}

// localPath returns p when it's a path on this site, otherwise HomePath.
func localPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return HomePath
	}
	return p
}
