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

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/contractagent/pkg/contracts"
	"github.com/kadirpekel/contractagent/pkg/model"
	"github.com/kadirpekel/contractagent/pkg/observability"
	"github.com/kadirpekel/contractagent/pkg/tool"
	"github.com/kadirpekel/contractagent/pkg/tool/sqltool"
	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

// DefaultCallTimeout bounds each external call of a dispatch.
const DefaultCallTimeout = 60 * time.Second

// Stage names used in timeout failures.
const (
	StageSchemaFetch   = "schema fetch"
	StageModelCall     = "model call"
	StageToolExecution = "tool execution"
)

// ErrClosed is reported after Close.
var ErrClosed = errors.New("agent is closed")

// ToolsetFactory builds the warehouse toolset with the given options.
type ToolsetFactory func(opts ...tool.Option) (*tool.Toolset, error)

// Config configures a ContractAgent.
type Config struct {
	// LLM answers the prompt. The agent takes ownership and closes it.
	LLM model.LLM

	// Toolsets builds the warehouse operations.
	Toolsets ToolsetFactory

	// Extra toolsets are advertised after the warehouse operations.
	Extra []*tool.Toolset

	// TargetTable is the table whose schema goes into the prompt.
	// Default: "contracts"
	TargetTable string

	// Dialect renders the date expressions of the prompt.
	// Default: postgres
	Dialect warehouse.Dialect

	// CallTimeout bounds the schema fetch, the model call and the
	// operation execution separately.
	// Default: 60s
	CallTimeout time.Duration

	Tracer  *observability.Tracer
	Metrics observability.Recorder
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.TargetTable == "" {
		c.TargetTable = contracts.DefaultTable
	}
	if c.Dialect == "" {
		c.Dialect = warehouse.DialectPostgres
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.Metrics == nil {
		c.Metrics = observability.NoopMetrics{}
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.LLM == nil {
		return fmt.Errorf("llm is required")
	}
	if c.Toolsets == nil {
		return fmt.Errorf("toolsets factory is required")
	}
	return nil
}

// ContractAgent answers questions about the contracts table.
type ContractAgent struct {
	cfg    Config
	all    *tool.Toolset
	schema *tool.Toolset

	mu     sync.RWMutex
	closed bool
}

// New builds the agent and its toolsets.
func New(cfg Config) (*ContractAgent, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	all, err := cfg.Toolsets()
	if err != nil {
		return nil, fmt.Errorf("failed to build toolset: %w", err)
	}
	schema, err := cfg.Toolsets(tool.WithToolName(sqltool.GetTableSchema))
	if err != nil {
		_ = all.Close()
		return nil, fmt.Errorf("failed to build schema toolset: %w", err)
	}

	return &ContractAgent{cfg: cfg, all: all, schema: schema}, nil
}

// Definitions returns every advertised operation in registration order.
func (a *ContractAgent) Definitions(ctx tool.ReadonlyContext) ([]tool.Definition, error) {
	defs, err := a.all.Definitions(ctx)
	if err != nil {
		return nil, err
	}
	for _, ts := range a.cfg.Extra {
		extra, err := ts.Definitions(ctx)
		if err != nil {
			return nil, err
		}
		defs = append(defs, extra...)
	}
	return defs, nil
}

// Lookup finds an advertised operation by exact name.
func (a *ContractAgent) Lookup(ctx tool.ReadonlyContext, name string) (tool.Tool, bool) {
	if t, ok := a.all.Lookup(ctx, name); ok {
		return t, true
	}
	for _, ts := range a.cfg.Extra {
		if t, ok := ts.Lookup(ctx, name); ok {
			return t, true
		}
	}
	return nil, false
}

// ProcessQuery answers query with exactly one Result. It never panics and
// never returns a Go error.
func (a *ContractAgent) ProcessQuery(ctx context.Context, query string) tool.Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return tool.Failure(ErrClosed.Error())
	}

	start := time.Now()
	invocationID := uuid.NewString()
	ctx, span := a.cfg.Tracer.StartDispatch(ctx, invocationID, query)
	defer span.End()

	log := slog.With("invocation_id", invocationID)
	log.Debug("Dispatching query", "query", query)

	d := &dispatch{agent: a, invocationID: invocationID, query: query, log: log}
	res, outcome := d.run(ctx)

	if !res.IsSuccessful() {
		outcome = observability.OutcomeError
		log.Warn("Query failed", "error", res.ErrorMessage())
	}
	a.cfg.Tracer.SetOutcome(span, outcome)
	a.cfg.Metrics.RecordDispatch(ctx, outcome, time.Since(start))
	log.Info("Query dispatched", "outcome", outcome, "duration", time.Since(start))
	return res
}

// Close releases the toolsets and the model. It is idempotent.
func (a *ContractAgent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	errs := []error{a.all.Close(), a.schema.Close()}
	for _, ts := range a.cfg.Extra {
		errs = append(errs, ts.Close())
	}
	errs = append(errs, a.cfg.LLM.Close())
	return errors.Join(errs...)
}
