// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package session implements the cookie sign-in scheme used once a user has
authenticated with the provider.  A Manager issues a signed session cookie,
reads it back (Authenticate puts it into the request context) and clears it
on sign out.  CookiePolicy is applied to every cookie the application writes.
*/
package session
