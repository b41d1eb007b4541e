// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/cap-adfs/config"
	"github.com/hashicorp/cap-adfs/oidc"
	"github.com/hashicorp/cap-adfs/oidc/callback"
	"github.com/hashicorp/cap-adfs/session"
	"github.com/hashicorp/cap-adfs/webapp"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the web app",
		Long: fmt.Sprintf(`Starts the web app.

Values in the config file can be overridden with %s prefixed environment
variables, e.g. %sAZUREAD_CLIENTSECRET sets AzureAd.ClientSecret.`,
			config.DefaultEnvPrefix, config.DefaultEnvPrefix),
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configPath)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to the yaml config file")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	const op = "serve"
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "webapp",
		Level:      cfg.LogLevel(),
		JSONFormat: !cfg.Serve.Development,
	})

	oc, err := cfg.OIDCConfig()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p, err := oidc.NewProvider(ctx, oc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer p.Done()

	states := callback.NewMemoryStateStore()
	states.Start()
	defer states.Stop()

	policy, err := cfg.CookiePolicy()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	sessions, err := session.NewManager([]byte(cfg.Session.Key),
		session.WithLifetime(cfg.Session.Lifetime),
		session.WithCookiePolicy(policy),
		session.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app, err := webapp.NewServer(p, states, sessions,
		webapp.WithLogger(logger),
		webapp.WithDevelopment(cfg.Serve.Development),
		webapp.WithRegistry(reg),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	srv := &http.Server{
		Addr:              cfg.Serve.Address,
		Handler:           app,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Serve.Address, "authority", oc.Authority)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: unable to shut down: %w", op, err)
	}
	return nil
}
