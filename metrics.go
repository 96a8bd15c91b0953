// Copyright 2025 The Pathway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pathway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder collects engine metrics through OpenTelemetry and exposes them
// in Prometheus format. It owns a private Prometheus registry so embedding
// applications never collide with it.
//
// The recorder does not set the global OpenTelemetry meter provider.
type Recorder struct {
	provider *sdkmetric.MeterProvider
	registry *promclient.Registry
	handler  http.Handler

	executions      metric.Int64Counter
	duration        metric.Float64Histogram
	validationFails metric.Int64Counter
	decodeFails     metric.Int64Counter
	authFails       metric.Int64Counter
}

// NewRecorder builds a recorder with its own registry and meter provider.
func NewRecorder() (*Recorder, error) {
	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("pathway: creating prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("github.com/pathwaykit/pathway")

	r := &Recorder{
		provider: provider,
		registry: registry,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	if r.executions, err = meter.Int64Counter(
		"pathway_executions_total",
		metric.WithDescription("Requests processed, labeled by method and outcome"),
	); err != nil {
		return nil, fmt.Errorf("pathway: creating execution counter: %w", err)
	}
	if r.duration, err = meter.Float64Histogram(
		"pathway_execution_duration_seconds",
		metric.WithDescription("End-to-end match/decode/validate duration"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	); err != nil {
		return nil, fmt.Errorf("pathway: creating duration histogram: %w", err)
	}
	if r.validationFails, err = meter.Int64Counter(
		"pathway_validation_failures_total",
		metric.WithDescription("Requests rejected with parameter validation errors"),
	); err != nil {
		return nil, fmt.Errorf("pathway: creating validation counter: %w", err)
	}
	if r.decodeFails, err = meter.Int64Counter(
		"pathway_decode_failures_total",
		metric.WithDescription("Requests rejected during body decoding"),
	); err != nil {
		return nil, fmt.Errorf("pathway: creating decode counter: %w", err)
	}
	if r.authFails, err = meter.Int64Counter(
		"pathway_auth_failures_total",
		metric.WithDescription("Requests rejected during credential verification"),
	); err != nil {
		return nil, fmt.Errorf("pathway: creating auth counter: %w", err)
	}

	return r, nil
}

// Handler serves the Prometheus scrape endpoint for this recorder.
func (r *Recorder) Handler() http.Handler { return r.handler }

// Shutdown flushes and stops the meter provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

func (r *Recorder) recordExecution(ctx context.Context, method, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	)
	r.executions.Add(ctx, 1, attrs)
	r.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func (r *Recorder) recordValidationFailure(ctx context.Context, count int) {
	if r == nil {
		return
	}
	r.validationFails.Add(ctx, int64(count))
}

func (r *Recorder) recordDecodeFailure(ctx context.Context) {
	if r == nil {
		return
	}
	r.decodeFails.Add(ctx, 1)
}

func (r *Recorder) recordAuthFailure(ctx context.Context) {
	if r == nil {
		return
	}
	r.authFails.Add(ctx, 1)
}
