// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides the relying party's sign-in callback (in
the form of an http.HandlerFunc) for OIDC provider responses to a hybrid
"code id_token" or authorization code flow authentication request.

Processing an authentication response happens in a fixed order:

  - the protocol message is parsed from the form post (or query)
  - the flow's oidc.State is read, once, from a StateReader
  - when a code is present, the code-received Handler runs.  It's usually
    built with Chain(Continue, RedeemCode(provider), ...) so that the code is
    redeemed at the token endpoint before anything else continues
  - the id_token is verified, which includes the issuer validator
  - the SuccessResponseFunc completes sign-in

Any failure calls the ErrorResponseFunc; nothing is retried.
*/
package callback
