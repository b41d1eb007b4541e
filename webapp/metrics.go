// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package webapp

import (
	"context"
	"time"

	"github.com/hashicorp/cap-adfs/oidc"
	"github.com/hashicorp/cap-adfs/oidc/callback"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sign-in results.
const (
	resultSuccess       = "success"
	resultFailure       = "failure"
	resultProviderError = "provider_error"
)

// Metrics of the sign-in flow.
type Metrics struct {
	SignIns            *prometheus.CounterVec
	RedemptionDuration *prometheus.HistogramVec
}

// NewMetrics creates the sign-in metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SignIns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webapp_signins_total",
			Help: "Total number of completed sign-in callbacks by result",
		}, []string{"result"}),
		RedemptionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webapp_code_redemption_duration_seconds",
			Help:    "Duration of authorization code redemptions with the token endpoint",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"result"}),
	}
}

// IncrementSignIn records a completed sign-in callback.
func (m *Metrics) IncrementSignIn(result string) {
	m.SignIns.WithLabelValues(result).Inc()
}

// InstrumentRedeemer returns a Redeemer which records the duration of every
// redemption made with r.
func (m *Metrics) InstrumentRedeemer(r callback.Redeemer) callback.Redeemer {
	return redeemerFunc(func(ctx context.Context, code string) (*oidc.Tk, error) {
		start := time.Now()
		tk, err := r.Exchange(ctx, code)
		result := resultSuccess
		if err != nil {
			result = resultFailure
		}
		m.RedemptionDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
		return tk, err
	})
}

type redeemerFunc func(ctx context.Context, code string) (*oidc.Tk, error)

func (f redeemerFunc) Exchange(ctx context.Context, code string) (*oidc.Tk, error) {
	return f(ctx, code)
}
