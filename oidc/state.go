// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"time"
)

// State represents one OIDC authentication flow for a user.  ID() is sent as
// the "state" parameter and returned on the callback; Nonce() is bound into
// the id_token.  ID() and Nonce() must not be equal.
type State interface {
	// ID is a unique identifier and an opaque value used to maintain state
	// between the oidc request and the callback.
	ID() string

	// Nonce is a unique string value used to associate a client session
	// with an ID Token, and to mitigate replay attacks.
	Nonce() string

	// IsExpired returns true if the state has expired.
	IsExpired() bool

	// ReturnTo is the local path the user is sent to after sign-in.
	ReturnTo() string
}

// St represents the oidc state used for oidc flows.
type St struct {
	id         string
	nonce      string
	returnTo   string
	expiration time.Time
	expirySkew time.Duration

	// nowFunc is an optional function that returns the current time
	nowFunc func() time.Time
}

// ensure that St implements the State interface
var _ State = (*St)(nil)

// NewState creates a new State (*St) which expires in expireIn.
//
// Supported options:
//   - WithNow
//   - WithExpirySkew
//   - WithReturnTo
func NewState(expireIn time.Duration, opt ...Option) (*St, error) {
	const op = "NewState"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	opts := getStOpts(opt...)
	nonce, err := NewID(WithPrefix("n"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's nonce: %w", op, err)
	}
	id, err := NewID(WithPrefix("st"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's id: %w", op, err)
	}
	s := &St{
		id:         id,
		nonce:      nonce,
		returnTo:   opts.withReturnTo,
		expirySkew: opts.withExpirySkew,
		nowFunc:    opts.withNowFunc,
	}
	s.expiration = s.now().Add(expireIn)
	return s, nil
}

func (s *St) ID() string       { return s.id }       // ID implements the State.ID() interface function
func (s *St) Nonce() string    { return s.nonce }    // Nonce implements the State.Nonce() interface function
func (s *St) ReturnTo() string { return s.returnTo } // ReturnTo implements the State.ReturnTo() interface function

// DefaultStateExpirySkew defines a default time skew when checking a State's
// expiration.
const DefaultStateExpirySkew = 1 * time.Second

// IsExpired returns true if the state has expired, allowing for the skew
// given by WithExpirySkew (DefaultStateExpirySkew if none was).
func (s *St) IsExpired() bool {
	return s.expiration.Before(s.now().Add(s.expirySkew))
}

// now returns the current time using the optional nowFunc.
func (s *St) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now() // fallback to this default
}

// stOptions is the set of available options for St functions
type stOptions struct {
	withExpirySkew time.Duration
	withNowFunc    func() time.Time
	withReturnTo   string
}

// stDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func stDefaults() stOptions {
	return stOptions{
		withExpirySkew: DefaultStateExpirySkew,
	}
}

// getStOpts gets the state defaults and applies the opt overrides passed in
func getStOpts(opt ...Option) stOptions {
	opts := stDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithReturnTo provides the local path to return to after sign-in.
func WithReturnTo(path string) Option {
	return func(o interface{}) {
		if o, ok := o.(*stOptions); ok {
			o.withReturnTo = path
		}
	}
}
