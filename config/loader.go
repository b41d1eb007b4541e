// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the prefix of environment variables overriding
// config file values.  A "_" in the rest of the name separates keys and
// "__" stands for a literal "_", so WEBAPP_AZUREAD_CLIENTID sets
// AzureAd.ClientId.
const DefaultEnvPrefix = "WEBAPP_"

var ErrInvalidConfig = errors.New("invalid configuration")

// Load the configuration from the optional yaml file at path, overlaid with
// the environment and validated.
//
// Supported options:
//   - WithEnvPrefix
func Load(path string, opt ...Option) (*Configuration, error) {
	const op = "config.Load"
	opts := getOpts(opt...)

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("%s: unable to load defaults: %w", op, err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to read config file: %w", op, err)
		}
		fileConf := koanf.New(".")
		if err := fileConf.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%s: unable to parse %s: %w: %w", op, path, ErrInvalidConfig, err)
		}
		if err := k.Load(confmap.Provider(lowerKeys(fileConf.Raw()), ""), nil); err != nil {
			return nil, fmt.Errorf("%s: unable to merge %s: %w", op, path, err)
		}
	}

	prefix := opts.withEnvPrefix
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: prefix,
		TransformFunc: func(key, val string) (string, any) {
			tmp := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, prefix)), "__", `\:\`)
			tmp = strings.ReplaceAll(tmp, "_", ".")
			return strings.ReplaceAll(tmp, `\:\`, "_"), val
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("%s: unable to load environment: %w", op, err)
	}

	var c Configuration
	if err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &c,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("%s: unable to decode configuration: %w: %w", op, ErrInvalidConfig, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &c, nil
}

// Validate the configuration, reporting every problem found.
func (c *Configuration) Validate() error {
	const op = "Configuration.Validate"
	var result *multierror.Error
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%s: %w: %w", op, ErrInvalidConfig, err)
		}
		for _, fe := range fieldErrs {
			result = multierror.Append(result, fmt.Errorf("%s: failed %q validation", fe.Namespace(), fe.Tag()))
		}
	}
	if _, err := c.CookiePolicy(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidConfig, err)
	}
	return nil
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			v = lowerKeys(sub)
		}
		out[strings.ToLower(k)] = v
	}
	return out
}
