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

// Package testutils provides test doubles for the contract agent: a scripted
// LLM and an in-memory warehouse.
package testutils

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/kadirpekel/contractagent/pkg/model"
	"github.com/kadirpekel/contractagent/pkg/tool"
	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

// TestContext returns a context with timeout for testing
func TestContext() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	// The context is cancelled when the timeout expires.
	_ = cancel // Explicitly ignore to satisfy linter
	return ctx
}

// TestReadonlyContext returns a tool.ReadonlyContext for testing.
func TestReadonlyContext(query string) tool.ReadonlyContext {
	return tool.NewReadonlyContext(TestContext(), "test-invocation", query)
}

// MockLLM implements model.LLM with scripted responses.
type MockLLM struct {
	mu sync.Mutex

	// Responses are returned in order; the last one repeats.
	Responses []*model.Response

	// GenerateFunc, when set, overrides Responses.
	GenerateFunc func(ctx context.Context, req *model.Request) (*model.Response, error)

	// GenerateError is returned instead of a response.
	GenerateError error

	// GenerateDelay blocks each call, honoring ctx cancellation.
	GenerateDelay time.Duration

	requests []*model.Request
	closed   int
}

// NewMockLLM creates a MockLLM replying with the given responses.
func NewMockLLM(responses ...*model.Response) *MockLLM {
	return &MockLLM{Responses: responses}
}

// TextResponse builds a response with a single text part.
func TextResponse(text string) *model.Response {
	return &model.Response{Parts: []model.Part{model.TextPart(text)}, FinishReason: model.FinishReasonStop}
}

// CallResponse builds a response with a single function call part.
func CallResponse(name string, args map[string]any) *model.Response {
	return &model.Response{
		Parts:        []model.Part{{FunctionCall: &tool.ToolCall{Name: name, Args: args}}},
		FinishReason: model.FinishReasonStop,
	}
}

func (m *MockLLM) Name() string             { return "mock-llm" }
func (m *MockLLM) Provider() model.Provider { return model.ProviderUnknown }

// GenerateContent records the request and returns the next scripted reply.
func (m *MockLLM) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	idx := len(m.requests) - 1
	m.mu.Unlock()

	if m.GenerateDelay > 0 {
		select {
		case <-time.After(m.GenerateDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.GenerateError != nil {
		return nil, m.GenerateError
	}
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	if len(m.Responses) == 0 {
		return &model.Response{}, nil
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// Close counts calls.
func (m *MockLLM) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// Requests returns the recorded requests.
func (m *MockLLM) Requests() []*model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Request(nil), m.requests...)
}

// LastRequest returns the most recent request, or nil.
func (m *MockLLM) LastRequest() *model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// CloseCount returns how many times Close was called.
func (m *MockLLM) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// FakeTable is an in-memory table.
type FakeTable struct {
	Schema []warehouse.Field
	Rows   []warehouse.Row
}

// FakeWarehouse implements warehouse.Client in memory. Queries are not
// parsed: QueryFunc decides the rows, defaulting to QueryRows.
type FakeWarehouse struct {
	mu sync.Mutex

	ProjectID   string
	LocationID  string
	SQLDialect  warehouse.Dialect
	Datasets    map[string]map[string]FakeTable
	QueryRows   []warehouse.Row
	QueryFunc   func(query string) ([]warehouse.Row, error)
	SchemaError error
	QueryDelay  time.Duration

	queries []string
	yielded int
	closed  int
}

// NewFakeWarehouse returns a warehouse holding dataset.table.
func NewFakeWarehouse(dataset, table string, t FakeTable) *FakeWarehouse {
	return &FakeWarehouse{
		ProjectID:  "test-project",
		LocationID: "US",
		SQLDialect: warehouse.DialectPostgres,
		Datasets:   map[string]map[string]FakeTable{dataset: {table: t}},
	}
}

func (w *FakeWarehouse) Project() string            { return w.ProjectID }
func (w *FakeWarehouse) Location() string           { return w.LocationID }
func (w *FakeWarehouse) Dialect() warehouse.Dialect { return w.SQLDialect }

// Query records query and yields the configured rows.
func (w *FakeWarehouse) Query(ctx context.Context, query string) iter.Seq2[warehouse.Row, error] {
	return func(yield func(warehouse.Row, error) bool) {
		w.mu.Lock()
		w.queries = append(w.queries, query)
		w.mu.Unlock()

		if w.QueryDelay > 0 {
			select {
			case <-time.After(w.QueryDelay):
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}

		rows := w.QueryRows
		if w.QueryFunc != nil {
			var err error
			rows, err = w.QueryFunc(query)
			if err != nil {
				yield(nil, err)
				return
			}
		}

		for _, row := range rows {
			w.mu.Lock()
			w.yielded++
			w.mu.Unlock()
			if !yield(row, nil) {
				return
			}
		}
	}
}

func (w *FakeWarehouse) table(datasetID, tableID string) (FakeTable, error) {
	tables, ok := w.Datasets[datasetID]
	if !ok {
		return FakeTable{}, fmt.Errorf("dataset %s: %w", datasetID, warehouse.ErrNotFound)
	}
	t, ok := tables[tableID]
	if !ok {
		return FakeTable{}, fmt.Errorf("table %s.%s: %w", datasetID, tableID, warehouse.ErrNotFound)
	}
	return t, nil
}

func (w *FakeWarehouse) TableSchema(ctx context.Context, datasetID, tableID string) ([]warehouse.Field, error) {
	if w.SchemaError != nil {
		return nil, w.SchemaError
	}
	t, err := w.table(datasetID, tableID)
	if err != nil {
		return nil, err
	}
	return t.Schema, nil
}

func (w *FakeWarehouse) TableInfo(ctx context.Context, datasetID, tableID string) (*warehouse.TableInfo, error) {
	t, err := w.table(datasetID, tableID)
	if err != nil {
		return nil, err
	}
	return &warehouse.TableInfo{
		ProjectID: w.ProjectID,
		DatasetID: datasetID,
		TableID:   tableID,
		Location:  w.LocationID,
		NumRows:   int64(len(t.Rows)),
		Schema:    t.Schema,
	}, nil
}

func (w *FakeWarehouse) DatasetInfo(ctx context.Context, datasetID string) (*warehouse.DatasetInfo, error) {
	tables, ok := w.Datasets[datasetID]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", datasetID, warehouse.ErrNotFound)
	}
	return &warehouse.DatasetInfo{
		ProjectID:  w.ProjectID,
		DatasetID:  datasetID,
		Location:   w.LocationID,
		TableCount: len(tables),
	}, nil
}

func (w *FakeWarehouse) ListDatasets(ctx context.Context, projectID string) ([]string, error) {
	if projectID != "" && projectID != w.ProjectID {
		return nil, fmt.Errorf("project %s: %w", projectID, warehouse.ErrNotFound)
	}
	ids := make([]string, 0, len(w.Datasets))
	for id := range w.Datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (w *FakeWarehouse) ListTables(ctx context.Context, datasetID string) ([]string, error) {
	tables, ok := w.Datasets[datasetID]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", datasetID, warehouse.ErrNotFound)
	}
	ids := make([]string, 0, len(tables))
	for id := range tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close counts calls.
func (w *FakeWarehouse) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

// Queries returns the recorded queries.
func (w *FakeWarehouse) Queries() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.queries...)
}

// RowsYielded returns how many rows were handed to consumers.
func (w *FakeWarehouse) RowsYielded() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.yielded
}

var (
	_ model.LLM        = (*MockLLM)(nil)
	_ warehouse.Client = (*FakeWarehouse)(nil)
)
