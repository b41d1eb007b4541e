// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
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
	withLifetime   time.Duration
	withPolicy     *CookiePolicy
	withCookieName string
	withNow        func() time.Time
	withLogger     hclog.Logger
}

func managerDefaults() options {
	return options{
		withLifetime:   DefaultLifetime,
		withCookieName: DefaultCookieName,
		withPolicy:     &CookiePolicy{SameSite: http.SameSiteLaxMode},
		withLogger:     hclog.NewNullLogger(),
	}
}

func getManagerOpts(opt ...Option) options {
	opts := managerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLifetime sets how long an issued session is valid.
func WithLifetime(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && d > 0 {
			o.withLifetime = d
		}
	}
}

// WithCookiePolicy sets the policy applied to the cookies the Manager writes.
func WithCookiePolicy(p CookiePolicy) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withPolicy = &p
		}
	}
}

// WithCookieName overrides DefaultCookieName.
func WithCookieName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && name != "" {
			o.withCookieName = name
		}
	}
}

// WithNow provides an optional func for determining what the current time
// is.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && now != nil {
			o.withNow = now
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}
