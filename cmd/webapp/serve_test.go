// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/cap-adfs/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand_Flags(t *testing.T) {
	cmd := newRootCommand()
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	f := serve.Flags().Lookup("config")
	require.NotNil(t, f)
	assert.Equal(t, "c", f.Shorthand)
}

func TestServeCommand_MissingConfig(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"serve", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.ErrorIs(t, cmd.Execute(), os.ErrNotExist)
}

func TestServe(t *testing.T) {
	require := require.New(t)
	tp := oidc.StartTestProvider(t)
	tp.SetClientCreds(oidc.TestClientID, oidc.TestClientSecret)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	addr := l.Addr().String()
	require.NoError(l.Close())

	dir := t.TempDir()
	caPath := filepath.Join(dir, "ca.pem")
	require.NoError(os.WriteFile(caPath, []byte(tp.CACert()), 0o600))
	configPath := filepath.Join(dir, "webapp.yaml")
	require.NoError(os.WriteFile(configPath, []byte(fmt.Sprintf(`
Serve:
  Address: %s
  Development: true
Session:
  Key: 0123456789abcdef0123456789abcdef
  Secure: false
Log:
  Level: off
AzureAd:
  ClientId: %s
  ClientSecret: %s
  RedirectUri: https://example.com/signin-oidc
  Authority: %s
  ProviderCA: %s
`, addr, oidc.TestClientID, oidc.TestClientSecret, tp.Addr(), caPath)), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, configPath) }()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	require.Eventually(func() bool {
		resp, err := client.Get("http://" + addr + "/")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusFound && resp.Header.Get("Location") == "/signin?ReturnUrl=%2F"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(err)
	case <-time.After(shutdownTimeout):
		t.Fatal("serve did not shut down")
	}
}
