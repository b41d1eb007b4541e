// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import "errors"

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNoSession         = errors.New("no session")
	ErrInvalidSession    = errors.New("invalid session")
	ErrExpiredSession    = errors.New("session is expired")
	ErrInsecureSameSite  = errors.New("SameSite=None requires Secure cookies")
	ErrCorrelationFailed = errors.New("correlation failed")
)
