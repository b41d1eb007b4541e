// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"time"

	"github.com/hashicorp/cap-adfs/oidc"
	"github.com/hashicorp/go-hclog"
)

// DefaultStateTTL is how long a MemoryStateStore keeps a state.
const DefaultStateTTL = 10 * time.Minute

type options struct {
	withLogger   hclog.Logger
	withStateTTL time.Duration
	withCapacity uint64
}

func defaults() options {
	return options{
		withLogger:   hclog.NewNullLogger(),
		withStateTTL: DefaultStateTTL,
	}
}

func getOpts(opt ...oidc.Option) options {
	opts := defaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger.
//
// Valid for: RedeemCode, SignIn
func WithLogger(l hclog.Logger) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithStateTTL provides how long states are kept.
//
// Valid for: NewMemoryStateStore
func WithStateTTL(d time.Duration) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && d > 0 {
			o.withStateTTL = d
		}
	}
}

// WithCapacity limits how many states are kept.  Zero means no limit.
//
// Valid for: NewMemoryStateStore
func WithCapacity(c uint64) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withCapacity = c
		}
	}
}
