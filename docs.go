// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// capadfs provides a relying party which signs users in with ADFS using
// OpenID Connect.
//
//   - oidc: configuration, discovery, code redemption and id_token
//     verification, including the issuer validator.
//   - oidc/callback: the sign-in callback handler and the code-received
//     middleware chain with the token exchange interceptor.
//   - session: the signed session cookie and cookie policy.
//   - config: configuration loading.
//   - webapp: the web app serving sign in, sign out and a protected page.
//
// cmd/webapp runs the web app.
package capadfs
