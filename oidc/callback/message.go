// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"fmt"
	"net/http"

	"github.com/hashicorp/cap-adfs/oidc"
)

// ProtocolMessage is an inbound oidc authentication response.
type ProtocolMessage struct {
	Code             string
	State            string
	IdToken          oidc.IdToken
	Error            string
	ErrorDescription string
	ErrorUri         string
}

// ParseProtocolMessage reads the authentication response parameters from
// either the body (response_mode=form_post) or the query.  Body values take
// precedence.
func ParseProtocolMessage(req *http.Request) (*ProtocolMessage, error) {
	const op = "callback.ParseProtocolMessage"
	if req == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, oidc.ErrNilParameter)
	}
	if err := req.ParseForm(); err != nil {
		return nil, fmt.Errorf("%s: unable to parse form: %w: %w", op, oidc.ErrInvalidParameter, err)
	}
	return &ProtocolMessage{
		Code:             req.Form.Get("code"),
		State:            req.Form.Get("state"),
		IdToken:          oidc.IdToken(req.Form.Get("id_token")),
		Error:            req.Form.Get("error"),
		ErrorDescription: req.Form.Get("error_description"),
		ErrorUri:         req.Form.Get("error_uri"),
	}, nil
}

// AuthenError returns the provider's error response, or nil if the message
// isn't one.
func (m *ProtocolMessage) AuthenError() *AuthenErrorResponse {
	if m == nil || m.Error == "" {
		return nil
	}
	return &AuthenErrorResponse{
		Error:       m.Error,
		Description: m.ErrorDescription,
		Uri:         m.ErrorUri,
	}
}
