// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// DefaultNameClaimType is the claim ADFS uses for a user's display name.
const DefaultNameClaimType = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"

// IssuerValidatorFunc decides whether a token's issuer is acceptable.  It
// returns the validated issuer or an error.  Implementations must not have
// side effects.
type IssuerValidatorFunc func(actualIssuer string, token *oidc.IDToken, vp *ValidationParameters) (string, error)

// ValidationParameters are the token validation settings applied to every
// id_token after its signature has been verified.
type ValidationParameters struct {
	// ValidIssuer is the single issuer trusted by the relying party.
	ValidIssuer string

	// NameClaimType is the claim used as the user's display name.
	NameClaimType string

	// IssuerValidator is an optional override for ValidateIssuer.
	IssuerValidator IssuerValidatorFunc
}

// ValidateIssuer is the default IssuerValidatorFunc.  It requires an exact,
// case-sensitive match between actualIssuer and vp.ValidIssuer and returns
// actualIssuer on success.  A mismatch returns an *IssuerNotTrustedError.
//
// Only one trusted issuer is supported.
func ValidateIssuer(actualIssuer string, token *oidc.IDToken, vp *ValidationParameters) (string, error) {
	const op = "ValidateIssuer"
	switch {
	case actualIssuer == "":
		return "", fmt.Errorf("%s: actual issuer is empty: %w", op, ErrInvalidParameter)
	case token == nil:
		return "", fmt.Errorf("%s: security token is nil: %w", op, ErrInvalidParameter)
	case vp == nil:
		return "", fmt.Errorf("%s: validation parameters are nil: %w", op, ErrInvalidParameter)
	}
	if vp.ValidIssuer == actualIssuer {
		return actualIssuer, nil
	}
	// TODO: accept a list of valid issuers once multi-tenant ADFS farms need it.
	return "", fmt.Errorf("%s: %w", op, &IssuerNotTrustedError{Actual: actualIssuer, Expected: vp.ValidIssuer})
}

// issuerValidator returns the configured validator, or ValidateIssuer.
func (vp *ValidationParameters) issuerValidator() IssuerValidatorFunc {
	if vp == nil || vp.IssuerValidator == nil {
		return ValidateIssuer
	}
	return vp.IssuerValidator
}
