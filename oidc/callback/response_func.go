// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"fmt"
	"net/http"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/cap-adfs/oidc"
)

// SignInResult is what a successful callback hands to its
// SuccessResponseFunc.
type SignInResult struct {
	// State is the flow's state, already consumed from the StateReader.
	State oidc.State

	// IdToken is the verified id_token.
	IdToken *gooidc.IDToken

	// RawIdToken is the id_token that was verified.
	RawIdToken oidc.IdToken

	// Token is the result of redeeming the code.  It's nil when the
	// code-received Handler didn't redeem one.
	Token oidc.Token
}

// SuccessResponseFunc is used by SignIn to create a http response when the
// callback is successful.
//
// The function should use the http.ResponseWriter to send back whatever
// content (headers, cookies, redirects, etc) it wishes to the user agent that
// originated the oidc flow.
type SuccessResponseFunc func(stateID string, r *SignInResult, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by SignIn to create a http response when the
// callback fails.
//
// The function receives the state returned as part of the oidc authentication
// response.  It also gets parameters for the oidc authentication error response
// and/or the callback error raised while processing the request.
type ErrorResponseFunc func(stateID string, respErr *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request)

// AuthenErrorResponse represents Oauth2 error responses.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthenErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Uri         string `json:"error_uri,omitempty"`
}

func (r *AuthenErrorResponse) String() string {
	if r.Description == "" {
		return r.Error
	}
	return fmt.Sprintf("%s: %s", r.Error, r.Description)
}
