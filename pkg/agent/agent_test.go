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

package agent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/contractagent/pkg/agent"
	"github.com/kadirpekel/contractagent/pkg/model"
	"github.com/kadirpekel/contractagent/pkg/testutils"
	"github.com/kadirpekel/contractagent/pkg/tool"
	"github.com/kadirpekel/contractagent/pkg/tool/functiontool"
	"github.com/kadirpekel/contractagent/pkg/tool/sqltool"
	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

func contractsWarehouse() *testutils.FakeWarehouse {
	wh := testutils.NewFakeWarehouse("contract_data", "contracts", testutils.FakeTable{
		Schema: []warehouse.Field{
			{Name: "contract_id", Type: "STRING", Mode: warehouse.ModeRequired},
			{Name: "end_date", Type: "DATE", Mode: warehouse.ModeNullable},
			{Name: "price", Type: "NUMERIC", Mode: warehouse.ModeNullable},
		},
	})
	wh.QueryRows = []warehouse.Row{
		{"status": "Active", "contract_count": int64(3)},
		{"status": "Expired", "contract_count": int64(1)},
	}
	return wh
}

func newAgent(t *testing.T, llm model.LLM, wh warehouse.Client, mutate ...func(*agent.Config)) *agent.ContractAgent {
	t.Helper()
	cfg := agent.Config{
		LLM:      llm,
		Toolsets: sqltool.Factory(wh, sqltool.Config{DefaultDatasetID: "contract_data", DefaultTableID: "contracts"}),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	a, err := agent.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestProcessQuery_FunctionCall(t *testing.T) {
	wh := contractsWarehouse()
	llm := testutils.NewMockLLM(testutils.CallResponse(sqltool.ExecuteSQL, map[string]any{
		"query": "SELECT status, COUNT(*) AS contract_count FROM contracts GROUP BY status",
	}))
	a := newAgent(t, llm, wh)

	res := a.ProcessQuery(context.Background(), "How many contracts per status?")
	require.True(t, res.IsSuccessful(), res.ErrorMessage())
	assert.Len(t, res.Payload()["results"], 2)
	assert.Equal(t, []string{`SELECT status, COUNT(*) AS contract_count FROM "contract_data"."contracts" GROUP BY status`}, wh.Queries())
}

func TestProcessQuery_Prompt(t *testing.T) {
	llm := testutils.NewMockLLM(testutils.TextResponse("There are no contracts to report."))
	a := newAgent(t, llm, contractsWarehouse())

	a.ProcessQuery(context.Background(), "List contracts expiring soon")

	req := llm.LastRequest()
	require.NotNil(t, req)
	require.Len(t, req.Parts, 1)
	prompt := req.Parts[0].Text
	assert.Contains(t, prompt, "User Request: List contracts expiring soon")
	assert.Contains(t, prompt, `"name": "contract_id"`)
	assert.Contains(t, prompt, "CURRENT_DATE + INTERVAL '90 days'")
	assert.Contains(t, prompt, "penalty_amount")
	assert.Contains(t, prompt, "AVG(price)")
	assert.Contains(t, prompt, "WHEN CURRENT_DATE BETWEEN start_date AND end_date THEN 'Active'")

	names := make([]string, 0, len(req.Tools))
	for _, d := range req.Tools {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		sqltool.GetDatasetInfo, sqltool.GetTableInfo, sqltool.ListDatasetIDs,
		sqltool.ListTableIDs, sqltool.ExecuteSQL, sqltool.GetTableSchema,
	}, names)
}

func TestProcessQuery_TextAnswers(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantQuery string
		wantText  string
	}{
		{
			name:      "select prefix",
			reply:     "  select AVG(price) AS average_value FROM contracts ",
			wantQuery: `select AVG(price) AS average_value FROM "contract_data"."contracts"`,
		},
		{
			name:      "fenced",
			reply:     "Here you go:\n```sql\nSELECT * FROM contracts\n```\nThanks",
			wantQuery: `SELECT * FROM "contract_data"."contracts"`,
		},
		{
			name:     "natural language",
			reply:    "I can only answer questions about contracts.",
			wantText: "I can only answer questions about contracts.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wh := contractsWarehouse()
			a := newAgent(t, testutils.NewMockLLM(testutils.TextResponse(tt.reply)), wh)

			res := a.ProcessQuery(context.Background(), "question")
			require.True(t, res.IsSuccessful(), res.ErrorMessage())

			if tt.wantQuery != "" {
				assert.Equal(t, []string{tt.wantQuery}, wh.Queries())
				assert.Contains(t, res.Payload(), "results")
				return
			}
			assert.Empty(t, wh.Queries())
			assert.Equal(t, map[string]any{"response": tt.wantText}, res.Payload())
		})
	}
}

func TestProcessQuery_Failures(t *testing.T) {
	tests := []struct {
		name    string
		llm     func() *testutils.MockLLM
		wh      func() *testutils.FakeWarehouse
		wantErr string
	}{
		{
			name:    "empty reply",
			llm:     func() *testutils.MockLLM { return testutils.NewMockLLM(&model.Response{}) },
			wantErr: "No valid response from agent.",
		},
		{
			name:    "blank text",
			llm:     func() *testutils.MockLLM { return testutils.NewMockLLM(testutils.TextResponse("   ")) },
			wantErr: "No valid response from agent.",
		},
		{
			name: "empty first part",
			llm: func() *testutils.MockLLM {
				call := testutils.CallResponse(sqltool.ExecuteSQL, map[string]any{"query": "SELECT 1"})
				return testutils.NewMockLLM(&model.Response{Parts: append([]model.Part{{Text: ""}}, call.Parts...)})
			},
			wantErr: "No valid response from agent.",
		},
		{
			name:    "empty sql fence",
			llm:     func() *testutils.MockLLM { return testutils.NewMockLLM(testutils.TextResponse("```sql\n```")) },
			wantErr: "Tool execution failed: query is required.",
		},
		{
			name: "unknown tool",
			llm: func() *testutils.MockLLM {
				return testutils.NewMockLLM(testutils.CallResponse("drop_table", nil))
			},
			wantErr: "Tool 'drop_table' not found.",
		},
		{
			name: "tool failure",
			llm: func() *testutils.MockLLM {
				return testutils.NewMockLLM(testutils.CallResponse(sqltool.ExecuteSQL, map[string]any{"query": "SELECT 1"}))
			},
			wh: func() *testutils.FakeWarehouse {
				wh := contractsWarehouse()
				wh.QueryFunc = func(string) ([]warehouse.Row, error) { return nil, errors.New("syntax error") }
				return wh
			},
			wantErr: "Tool execution failed: Error executing SQL query: syntax error",
		},
		{
			name: "tool missing argument",
			llm: func() *testutils.MockLLM {
				return testutils.NewMockLLM(testutils.CallResponse(sqltool.ExecuteSQL, map[string]any{}))
			},
			wantErr: "Tool execution failed: query is required.",
		},
		{
			name: "schema failure",
			llm:  func() *testutils.MockLLM { return testutils.NewMockLLM(testutils.TextResponse("SELECT 1")) },
			wh: func() *testutils.FakeWarehouse {
				wh := contractsWarehouse()
				wh.SchemaError = errors.New("permission denied")
				return wh
			},
			wantErr: "Error getting table schema: permission denied",
		},
		{
			name: "model error",
			llm: func() *testutils.MockLLM {
				m := testutils.NewMockLLM()
				m.GenerateError = errors.New("quota exceeded")
				return m
			},
			wantErr: "Error calling model: quota exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wh := contractsWarehouse()
			if tt.wh != nil {
				wh = tt.wh()
			}
			a := newAgent(t, tt.llm(), wh)

			res := a.ProcessQuery(context.Background(), "question")
			assert.False(t, res.IsSuccessful())
			assert.Equal(t, tt.wantErr, res.ErrorMessage())
		})
	}
}

func TestProcessQuery_SchemaFailureSkipsModel(t *testing.T) {
	wh := contractsWarehouse()
	wh.SchemaError = errors.New("permission denied")
	llm := testutils.NewMockLLM(testutils.TextResponse("SELECT 1"))
	a := newAgent(t, llm, wh)

	a.ProcessQuery(context.Background(), "question")
	assert.Empty(t, llm.Requests())
}

func TestProcessQuery_Timeouts(t *testing.T) {
	t.Run("model", func(t *testing.T) {
		llm := testutils.NewMockLLM(testutils.TextResponse("SELECT 1"))
		llm.GenerateDelay = time.Second
		a := newAgent(t, llm, contractsWarehouse(), func(c *agent.Config) { c.CallTimeout = 20 * time.Millisecond })

		res := a.ProcessQuery(context.Background(), "question")
		assert.Equal(t, "model call timed out after 20ms", res.ErrorMessage())
	})

	t.Run("tool", func(t *testing.T) {
		wh := contractsWarehouse()
		wh.QueryDelay = time.Second
		llm := testutils.NewMockLLM(testutils.TextResponse("SELECT 1"))
		a := newAgent(t, llm, wh, func(c *agent.Config) { c.CallTimeout = 20 * time.Millisecond })

		res := a.ProcessQuery(context.Background(), "question")
		assert.Equal(t, "tool execution timed out after 20ms", res.ErrorMessage())
	})

	t.Run("cancelled", func(t *testing.T) {
		llm := testutils.NewMockLLM(testutils.TextResponse("SELECT 1"))
		llm.GenerateDelay = time.Second
		a := newAgent(t, llm, contractsWarehouse())

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		res := a.ProcessQuery(ctx, "question")
		assert.Equal(t, "model call cancelled: context canceled", res.ErrorMessage())
	})
}

type boomArgs struct{}

func TestProcessQuery_ExtraToolsets(t *testing.T) {
	boom, err := functiontool.New(functiontool.Config{Name: "boom", Description: "always panics"},
		func(tool.ReadonlyContext, boomArgs) tool.Result { panic("kaboom") })
	require.NoError(t, err)
	extra, err := tool.NewToolset("extra", []tool.Tool{boom})
	require.NoError(t, err)

	llm := testutils.NewMockLLM(testutils.CallResponse("boom", nil))
	a := newAgent(t, llm, contractsWarehouse(), func(c *agent.Config) { c.Extra = []*tool.Toolset{extra} })

	res := a.ProcessQuery(context.Background(), "question")
	assert.Equal(t, "Error executing tool 'boom': kaboom", res.ErrorMessage())

	req := llm.LastRequest()
	require.NotNil(t, req)
	assert.Len(t, req.Tools, 7)
	assert.Equal(t, "boom", req.Tools[6].Name)
}

func TestClose(t *testing.T) {
	llm := testutils.NewMockLLM(testutils.TextResponse("hello"))
	a, err := agent.New(agent.Config{
		LLM:      llm,
		Toolsets: sqltool.Factory(contractsWarehouse(), sqltool.Config{DefaultDatasetID: "contract_data"}),
	})
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 1, llm.CloseCount())

	res := a.ProcessQuery(context.Background(), "question")
	assert.Equal(t, "agent is closed", res.ErrorMessage())
}

func TestNew_Validation(t *testing.T) {
	_, err := agent.New(agent.Config{})
	assert.Error(t, err)

	_, err = agent.New(agent.Config{LLM: testutils.NewMockLLM()})
	assert.Error(t, err)

	_, err = agent.New(agent.Config{
		LLM:      testutils.NewMockLLM(),
		Toolsets: func(...tool.Option) (*tool.Toolset, error) { return nil, errors.New("no warehouse") },
	})
	assert.ErrorContains(t, err, "no warehouse")
}

func TestProcessQuery_SelectedOperations(t *testing.T) {
	wh := contractsWarehouse()
	llm := testutils.NewMockLLM(testutils.CallResponse(sqltool.ExecuteSQL, map[string]any{"query": "SELECT 1"}))
	base := sqltool.Factory(wh, sqltool.Config{DefaultDatasetID: "contract_data", DefaultTableID: "contracts"})
	a := newAgent(t, llm, wh, func(cfg *agent.Config) {
		cfg.Toolsets = func(opts ...tool.Option) (*tool.Toolset, error) {
			deny := tool.WithFilter(tool.Selection(nil, []string{sqltool.ExecuteSQL, sqltool.GetTableSchema}))
			return base(append([]tool.Option{deny}, opts...)...)
		}
	})

	res := a.ProcessQuery(context.Background(), "How many contracts?")
	assert.False(t, res.IsSuccessful())
	assert.Equal(t, "Tool 'execute_sql' not found.", res.ErrorMessage())
	assert.Empty(t, wh.Queries())

	req := llm.LastRequest()
	require.NotNil(t, req)
	assert.Contains(t, req.Parts[0].Text, `"name": "contract_id"`)
	names := make([]string, 0, len(req.Tools))
	for _, d := range req.Tools {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{sqltool.GetDatasetInfo, sqltool.GetTableInfo, sqltool.ListDatasetIDs, sqltool.ListTableIDs}, names)
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"SELECT 1", "SELECT 1", true},
		{"  Select * from contracts  ", "Select * from contracts", true},
		{"```sql\nSELECT 1\n```", "SELECT 1", true},
		{"Try this: ```sql SELECT 2 ``` ok", "SELECT 2", true},
		{"```sql\nSELECT 3", "SELECT 3", true},
		{"```sql\n```", "", true},
		{"The answer is 42.", "", false},
		{"WITH x AS (SELECT 1) SELECT * FROM x", "", false},
	}
	for _, tt := range tests {
		got, ok := agent.ExtractSQL(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
