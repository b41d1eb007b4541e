// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
oidc is a package for writing relying party integrations with an ADFS (or any
other OIDC) provider using the authorization code and hybrid flows

# Primary types provided by the package

  - State: represents one OIDC authentication flow for a user.  It contains the
    data needed to uniquely represent that one-time flow across the multiple
    interactions needed to complete the OIDC flow the user is attempting.  All
    States contain an expiration for the user's OIDC flow.

  - Token: represents an OIDC id_token, as well as an Oauth2 access_token and
    refresh_token (including the the access_token expiry)

  - Config: provides the immutable configuration of the relying party (for
    example: client Id/Secret, redirect URL, authority, metadata address, the
    valid issuer, response type, supported signing algorithms and the exchange
    timeout)

  - Provider: provides integration with a provider using discovery from the
    config's metadata address. The provider provides capabilities like:
    generating an auth URL, redeeming codes for tokens and verifying id_tokens.

  - ValidationParameters: the checks applied to every verified id_token, which
    includes the issuer validator.  ValidateIssuer is the default: it only
    trusts the single configured valid issuer.

  - Alg: represents asymmetric signing algorithms

# The oidc.callback package

The callback package includes the ability to create a http.HandlerFunc which
can be used for the 3rd leg of the OIDC flow, where the authorization code is
redeemed for tokens by the RedeemCode middleware before the rest of the
callback's processing continues.

# Testing

TestProvider is a local provider which supports discovery, the hybrid flow,
the authorization code grant and JWKS.  TestConfig creates a Config for it.
*/
package oidc
