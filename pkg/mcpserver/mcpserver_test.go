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

package mcpserver_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/contractagent/pkg/agent"
	"github.com/kadirpekel/contractagent/pkg/mcpserver"
	"github.com/kadirpekel/contractagent/pkg/testutils"
	"github.com/kadirpekel/contractagent/pkg/tool/sqltool"
	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

func newAgent(t *testing.T, replies ...string) (*agent.ContractAgent, *testutils.FakeWarehouse) {
	t.Helper()
	wh := testutils.NewFakeWarehouse("contract_data", "contracts", testutils.FakeTable{
		Schema: []warehouse.Field{{Name: "contract_id", Type: "STRING", Mode: warehouse.ModeRequired}},
	})
	wh.QueryRows = []warehouse.Row{{"n": int64(2)}}

	llm := testutils.NewMockLLM()
	for _, r := range replies {
		llm.Responses = append(llm.Responses, testutils.TextResponse(r))
	}
	a, err := agent.New(agent.Config{
		LLM:      llm,
		Toolsets: sqltool.Factory(wh, sqltool.Config{DefaultDatasetID: "contract_data", DefaultTableID: "contracts"}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, wh
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func envelope(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestToolHandler(t *testing.T) {
	a, wh := newAgent(t)
	handler := mcpserver.ToolHandler(a, sqltool.ExecuteSQL)

	res, err := handler(context.Background(), callRequest(sqltool.ExecuteSQL, map[string]any{"query": "SELECT COUNT(*) AS n FROM contracts"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, map[string]any{"result": map[string]any{"results": []any{map[string]any{"n": float64(2)}}}}, envelope(t, res))
	assert.Len(t, wh.Queries(), 1)

	res, err = handler(context.Background(), callRequest(sqltool.ExecuteSQL, nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, map[string]any{"error": "query is required."}, envelope(t, res))
}

func TestToolHandler_Unknown(t *testing.T) {
	a, _ := newAgent(t)
	res, err := mcpserver.ToolHandler(a, "drop_table")(context.Background(), callRequest("drop_table", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, map[string]any{"error": "Tool 'drop_table' not found."}, envelope(t, res))
}

func TestAskHandler(t *testing.T) {
	a, _ := newAgent(t, "All contracts are active.")
	handler := mcpserver.AskHandler(a)

	res, err := handler(context.Background(), callRequest(mcpserver.AskTool, map[string]any{"query": "status?"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, map[string]any{"result": map[string]any{"response": "All contracts are active."}}, envelope(t, res))

	res, err = handler(context.Background(), callRequest(mcpserver.AskTool, map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNew_ListsTools(t *testing.T) {
	a, _ := newAgent(t)
	s, err := mcpserver.New(context.Background(), a, "contractagent", "test")
	require.NoError(t, err)

	msg := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var resp struct {
		Result struct {
			Tools []struct {
				Name        string         `json:"name"`
				InputSchema map[string]any `json:"inputSchema"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &resp))

	names := map[string]map[string]any{}
	for _, tl := range resp.Result.Tools {
		names[tl.Name] = tl.InputSchema
	}
	assert.Len(t, names, 7)
	require.Contains(t, names, sqltool.ExecuteSQL)
	assert.Equal(t, []any{"query"}, names[sqltool.ExecuteSQL]["required"])
	assert.Contains(t, names, mcpserver.AskTool)
}
