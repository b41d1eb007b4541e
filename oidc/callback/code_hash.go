// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"hash"

	"github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/cap-adfs/oidc"
)

var codeHashAlgs = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.PS384, jose.PS512,
}

// verifyCodeHash checks a front-channel id_token's c_hash claim against the
// code it was issued with.  c_hash is required when the code and id_token
// both arrive on the front channel.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#HybridIDToken
func verifyCodeHash(raw oidc.IdToken, code string) error {
	const op = "callback.verifyCodeHash"
	var claims struct {
		CodeHash string `json:"c_hash"`
	}
	if err := raw.Claims(&claims); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if claims.CodeHash == "" {
		return fmt.Errorf("%s: id_token is missing c_hash: %w", op, oidc.ErrIdTokenVerificationFailed)
	}
	jws, err := jose.ParseSigned(string(raw), codeHashAlgs)
	if err != nil {
		return fmt.Errorf("%s: unable to parse id_token: %w: %w", op, oidc.ErrIdTokenVerificationFailed, err)
	}
	if len(jws.Signatures) != 1 {
		return fmt.Errorf("%s: id_token must have exactly one signature: %w", op, oidc.ErrIdTokenVerificationFailed)
	}
	var h hash.Hash
	switch jose.SignatureAlgorithm(jws.Signatures[0].Header.Algorithm) {
	case jose.RS256, jose.ES256, jose.PS256:
		h = sha256.New()
	case jose.RS384, jose.ES384, jose.PS384:
		h = sha512.New384()
	case jose.RS512, jose.ES512, jose.PS512:
		h = sha512.New()
	default:
		return fmt.Errorf("%s: unsupported id_token alg %s: %w", op, jws.Signatures[0].Header.Algorithm, oidc.ErrIdTokenVerificationFailed)
	}
	_, _ = h.Write([]byte(code))
	sum := h.Sum(nil)
	want := base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
	if subtle.ConstantTimeCompare([]byte(want), []byte(claims.CodeHash)) != 1 {
		return fmt.Errorf("%s: c_hash does not match the authorization code: %w", op, oidc.ErrIdTokenVerificationFailed)
	}
	return nil
}
