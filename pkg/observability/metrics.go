// Copyright 2025 Kadir Pekel
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

package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder records dispatch, model, operation and HTTP measurements.
type Recorder interface {
	RecordDispatch(ctx context.Context, outcome string, duration time.Duration)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration)
	Handler() http.Handler
}

// Metrics is the Prometheus-backed Recorder. Instruments are created on
// an OpenTelemetry meter whose reader is a Prometheus exporter bound to a
// private registry.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	dispatchDuration metric.Float64Histogram
	dispatchTotal    metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter

	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter

	httpDuration      metric.Float64Histogram
	httpRequestsTotal metric.Int64Counter
}

// NewMetrics creates the metrics instruments. It returns nil when metrics
// are disabled.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(DefaultServiceName)
	m := &Metrics{registry: registry, provider: provider}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.dispatchDuration, "dispatch_duration_seconds", "Query dispatch duration in seconds"},
		{&m.llmDuration, "llm_request_duration_seconds", "Model request duration in seconds"},
		{&m.toolDuration, "tool_execution_duration_seconds", "Operation execution duration in seconds"},
		{&m.httpDuration, "http_request_duration_seconds", "HTTP request duration in seconds"},
	}
	for _, h := range histograms {
		if *h.dst, err = meter.Float64Histogram(h.name, metric.WithDescription(h.desc)); err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", h.name, err)
		}
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.dispatchTotal, "dispatch_calls_total", "Total query dispatches by outcome"},
		{&m.llmInputTokens, "llm_tokens_input_total", "Total input tokens sent to the model"},
		{&m.llmOutputTokens, "llm_tokens_output_total", "Total output tokens from the model"},
		{&m.llmErrorsTotal, "llm_errors_total", "Total model errors"},
		{&m.toolCallsTotal, "tool_calls_total", "Total operation calls"},
		{&m.toolErrorsTotal, "tool_errors_total", "Total failed operation calls"},
		{&m.httpRequestsTotal, "http_requests_total", "Total HTTP requests"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	return m, nil
}

// RecordDispatch records one ProcessQuery call.
func (m *Metrics) RecordDispatch(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.dispatchDuration.Record(ctx, duration.Seconds(), attrs)
	m.dispatchTotal.Add(ctx, 1, attrs)
}

// RecordLLMCall records one model request.
func (m *Metrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	if err != nil {
		m.llmErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordToolExecution records one operation call.
func (m *Metrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCallsTotal.Add(ctx, 1, attrs)
	if err != nil {
		m.toolErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(statusCode)),
	)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return NoopMetrics{}.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = NoopMetrics{}
)
