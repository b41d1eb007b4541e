// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package webapp

import (
	"html/template"
	"net/http"

	"github.com/hashicorp/cap-adfs/session"
)

var pages = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html><head><title>Home</title></head>
<body><h1>Hello, {{.Name}}!</h1><p><a href="/signout">Sign out</a></p></body></html>
`))

func init() {
	template.Must(pages.New("signedout").Parse(`<!DOCTYPE html>
<html><head><title>Signed out</title></head>
<body><h1>You have signed out.</h1><p><a href="/">Sign in again</a></p></body></html>
`))
	template.Must(pages.New("error").Parse(`<!DOCTYPE html>
<html><head><title>Error</title></head>
<body><h1>Error.</h1><h2>An error occurred while signing you in.</h2></body></html>
`))
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("unable to render page", "page", name, "error", err)
	}
}

// home greets the signed in user.
func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	s.render(w, http.StatusOK, "home", sess)
}

// signOut clears the session.
func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	if sess, ok := session.FromContext(r.Context()); ok {
		s.logger.Info("user signed out", "subject", sess.Subject)
	}
	s.sessions.Clear(w)
	s.render(w, http.StatusOK, "signedout", nil)
}

func (s *Server) errorPage(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, "error", nil)
}
