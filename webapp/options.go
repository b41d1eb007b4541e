// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package webapp

import (
	"time"

	"github.com/hashicorp/cap-adfs/oidc/callback"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

type options struct {
	withLogger      hclog.Logger
	withDevelopment bool
	withRegistry    *prometheus.Registry
	withAttemptTTL  time.Duration
}

func getOpts(opt ...Option) options {
	opts := options{
		withLogger:     hclog.NewNullLogger(),
		withAttemptTTL: callback.DefaultStateTTL,
	}
	ApplyOpts(&opts, opt...)
	if opts.withRegistry == nil {
		opts.withRegistry = prometheus.NewRegistry()
	}
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithDevelopment disables HSTS.
func WithDevelopment(dev bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withDevelopment = dev
		}
	}
}

// WithRegistry provides the registry metrics are registered with and served
// from.  A new registry is used by default.
func WithRegistry(r *prometheus.Registry) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withRegistry = r
		}
	}
}

// WithAttemptTTL sets how long a sign-in attempt has to complete.
func WithAttemptTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && d > 0 {
			o.withAttemptTTL = d
		}
	}
}
