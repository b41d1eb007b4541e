// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/hashicorp/cap-adfs/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRedeemer struct {
	calls int
	tk    *oidc.Tk
	err   error
}

func (r *testRedeemer) Exchange(_ context.Context, _ string) (*oidc.Tk, error) {
	r.calls++
	return r.tk, r.err
}

func TestRedeemCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("redeems-then-continues", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := oidc.StartTestProvider(t)
		tp.SetExpectedAuthCode("abc123")
		p := testNewProvider(t, tp)

		nextCalls := 0
		next := func(_ context.Context, cr *CodeReceived) error {
			nextCalls++
			// redemption has completed before next runs
			assert.NotNil(cr.Token)
			assert.Len(tp.TokenRequests(), 1)
			return nil
		}
		cr := &CodeReceived{Message: &ProtocolMessage{Code: "abc123", State: "st_1"}}
		err := RedeemCode(p, WithLogger(hclog.NewNullLogger()))(ctx, cr, next)
		require.NoError(err)
		assert.Equal(1, nextCalls)
		assert.Equal(oidc.AccessToken("access-abc123"), cr.Token.AccessToken())
		assert.Equal("openid", tp.TokenRequests()[0].Get("scope"))
	})
	t.Run("passes-through-next-result", func(t *testing.T) {
		want := errors.New("downstream")
		tk, err := oidc.NewToken("id-token", nil)
		require.NoError(t, err)
		r := &testRedeemer{tk: tk}
		cr := &CodeReceived{Message: &ProtocolMessage{Code: "abc123"}}
		got := RedeemCode(r)(ctx, cr, func(context.Context, *CodeReceived) error { return want })
		require.ErrorIs(t, got, want)
		assert.Equal(t, 1, r.calls)
	})
	t.Run("provider-error-stops-chain", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := oidc.StartTestProvider(t)
		tp.SetExpectedAuthCode("abc123")
		tp.SetTokenError(http.StatusBadRequest, "invalid_grant")
		p := testNewProvider(t, tp)

		nextCalled := false
		cr := &CodeReceived{Message: &ProtocolMessage{Code: "abc123"}}
		err := RedeemCode(p)(ctx, cr, func(context.Context, *CodeReceived) error {
			nextCalled = true
			return nil
		})
		require.ErrorIs(err, oidc.ErrRedemptionFailed)
		assert.False(nextCalled)
		assert.Nil(cr.Token)
		assert.Len(tp.TokenRequests(), 1)
	})
	t.Run("unclassified-error-is-redemption-failure", func(t *testing.T) {
		boom := errors.New("boom")
		r := &testRedeemer{err: boom}
		err := RedeemCode(r)(ctx, &CodeReceived{Message: &ProtocolMessage{Code: "abc123"}}, Continue)
		require.ErrorIs(t, err, oidc.ErrRedemptionFailed)
		require.ErrorIs(t, err, boom)
	})
	t.Run("invalid-params", func(t *testing.T) {
		r := &testRedeemer{}
		err := RedeemCode(nil)(ctx, &CodeReceived{Message: &ProtocolMessage{Code: "abc123"}}, Continue)
		require.ErrorIs(t, err, oidc.ErrNilParameter)
		err = RedeemCode(r)(ctx, nil, Continue)
		require.ErrorIs(t, err, oidc.ErrNilParameter)
		err = RedeemCode(r)(ctx, &CodeReceived{}, Continue)
		require.ErrorIs(t, err, oidc.ErrNilParameter)
		err = RedeemCode(r)(ctx, &CodeReceived{Message: &ProtocolMessage{}}, Continue)
		require.ErrorIs(t, err, oidc.ErrInvalidParameter)
		assert.Zero(t, r.calls)
	})
	t.Run("nil-next", func(t *testing.T) {
		tk, err := oidc.NewToken("id-token", nil)
		require.NoError(t, err)
		r := &testRedeemer{tk: tk}
		err = RedeemCode(r)(ctx, &CodeReceived{Message: &ProtocolMessage{Code: "abc123"}}, nil)
		require.NoError(t, err)
	})
}

// testNewProvider creates a new Provider for the TestProvider which is
// released by t.Cleanup.
func testNewProvider(t *testing.T, tp *oidc.TestProvider, opt ...oidc.Option) *oidc.Provider {
	t.Helper()
	p, err := oidc.NewProvider(context.Background(), oidc.TestConfig(t, tp, opt...))
	require.NoError(t, err)
	t.Cleanup(p.Done)
	return p
}
