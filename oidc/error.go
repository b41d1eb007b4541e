// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter          = errors.New("invalid parameter")
	ErrNilParameter              = errors.New("nil parameter")
	ErrInvalidCACert             = errors.New("invalid CA certificate")
	ErrIssuerNotTrusted          = errors.New("issuer not trusted")
	ErrRedemptionFailed          = errors.New("authorization code redemption failed")
	ErrIdGeneratorFailed         = errors.New("id generation failed")
	ErrExpiredState              = errors.New("state is expired")
	ErrResponseStateInvalid      = errors.New("oidc response state")
	ErrMissingIdToken            = errors.New("id_token is missing")
	ErrIdTokenVerificationFailed = errors.New("id_token verification failed")
	ErrInvalidNonce              = errors.New("invalid nonce")
	ErrInvalidAudience           = errors.New("invalid audience")
	ErrNotFound                  = errors.New("not found")
	ErrLoginFailed               = errors.New("login failed")
)

// IssuerNotTrustedError is returned when a token's issuer claim doesn't
// match the issuer trusted by the relying party. It carries both values so
// callers can log them.
type IssuerNotTrustedError struct {
	// Actual is the issuer claim found in the token.
	Actual string

	// Expected is the configured trusted issuer.
	Expected string
}

func (e *IssuerNotTrustedError) Error() string {
	return fmt.Sprintf("issuer: '%s', does not match the valid issuer '%s' provided for this application: %s", e.Actual, e.Expected, ErrIssuerNotTrusted)
}

// Is supports errors.Is(err, ErrIssuerNotTrusted)
func (e *IssuerNotTrustedError) Is(target error) bool {
	return target == ErrIssuerNotTrusted
}
