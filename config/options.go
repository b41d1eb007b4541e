// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

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
	withEnvPrefix string
}

func getOpts(opt ...Option) options {
	opts := options{
		withEnvPrefix: DefaultEnvPrefix,
	}
	ApplyOpts(&opts, opt...)
	return opts
}

// WithEnvPrefix overrides DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && prefix != "" {
			o.withEnvPrefix = prefix
		}
	}
}
