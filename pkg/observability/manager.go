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
	"errors"
	"sync"
)

// Manager owns the tracer and metrics built from one Config.
type Manager struct {
	tracer  *Tracer
	metrics *Metrics
	once    sync.Once
}

// NewManager initializes tracing and metrics.
func NewManager(ctx context.Context, cfg Config, opts ...TracerOption) (*Manager, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tracer, err := NewTracer(ctx, &cfg.Tracing, opts...)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(&cfg.Metrics)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, err
	}

	return &Manager{tracer: tracer, metrics: metrics}, nil
}

// NoopManager returns a manager with tracing and metrics disabled.
func NoopManager() *Manager {
	return &Manager{}
}

// Tracer returns the tracer, nil when tracing is disabled.
func (m *Manager) Tracer() *Tracer {
	if m == nil {
		return nil
	}
	return m.tracer
}

// Metrics returns the recorder, a no-op when metrics are disabled.
func (m *Manager) Metrics() Recorder {
	if m == nil || m.metrics == nil {
		return NoopMetrics{}
	}
	return m.metrics
}

// MetricsEnabled reports whether a Prometheus registry is being served.
func (m *Manager) MetricsEnabled() bool {
	return m != nil && m.metrics != nil
}

// Shutdown flushes and stops both providers. Later calls are no-ops.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var err error
	m.once.Do(func() {
		err = errors.Join(m.tracer.Shutdown(ctx), m.metrics.Shutdown(ctx))
	})
	return err
}
