// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/cap-adfs/oidc"
)

// Redeemer redeems an authorization code for tokens.  *oidc.Provider
// satisfies it.
type Redeemer interface {
	Exchange(ctx context.Context, authorizationCode string) (*oidc.Tk, error)
}

var _ Redeemer = (*oidc.Provider)(nil)

// RedeemCode returns the token exchange Middleware.  It redeems the received
// code with r, waiting for the token endpoint to respond, stores the token on
// the CodeReceived and then continues with next, returning its result.
//
// A failed redemption is returned wrapping oidc.ErrRedemptionFailed and next
// is not called.  It isn't retried.
//
// Supported options:
//   - WithLogger
func RedeemCode(r Redeemer, opt ...oidc.Option) Middleware {
	opts := getOpts(opt...)
	logger := opts.withLogger.Named("redeem-code")
	return func(ctx context.Context, cr *CodeReceived, next Handler) error {
		const op = "callback.RedeemCode"
		switch {
		case r == nil:
			return fmt.Errorf("%s: redeemer is nil: %w", op, oidc.ErrNilParameter)
		case cr == nil || cr.Message == nil:
			return fmt.Errorf("%s: code received is nil: %w", op, oidc.ErrNilParameter)
		case cr.Message.Code == "":
			return fmt.Errorf("%s: authorization code is empty: %w", op, oidc.ErrInvalidParameter)
		}
		if next == nil {
			next = Continue
		}

		tk, err := r.Exchange(ctx, cr.Message.Code)
		if err != nil {
			logger.Error("unable to redeem authorization code", "state", cr.Message.State, "error", err)
			if !errors.Is(err, oidc.ErrRedemptionFailed) {
				return fmt.Errorf("%s: %w: %w", op, oidc.ErrRedemptionFailed, err)
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		logger.Debug("authorization code redeemed", "state", cr.Message.State, "expiry", tk.Expiry())
		cr.Token = tk
		return next(ctx, cr)
	}
}
