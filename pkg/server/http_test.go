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

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/contractagent/pkg/a2aserver"
	"github.com/kadirpekel/contractagent/pkg/agent"
	"github.com/kadirpekel/contractagent/pkg/auth"
	"github.com/kadirpekel/contractagent/pkg/config"
	"github.com/kadirpekel/contractagent/pkg/extraction"
	"github.com/kadirpekel/contractagent/pkg/model"
	"github.com/kadirpekel/contractagent/pkg/observability"
	"github.com/kadirpekel/contractagent/pkg/server"
	"github.com/kadirpekel/contractagent/pkg/testutils"
	"github.com/kadirpekel/contractagent/pkg/tool/doctool"
	"github.com/kadirpekel/contractagent/pkg/tool/sqltool"
	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

func newWarehouse() *testutils.FakeWarehouse {
	wh := testutils.NewFakeWarehouse("contract_data", "contracts", testutils.FakeTable{
		Schema: []warehouse.Field{{Name: "contract_id", Type: "STRING", Mode: warehouse.ModeRequired}},
	})
	wh.QueryRows = []warehouse.Row{{"contract_id": "C-1"}}
	return wh
}

func newAgent(t *testing.T, llm model.LLM, wh warehouse.Client) *agent.ContractAgent {
	t.Helper()
	a, err := agent.New(agent.Config{
		LLM:      llm,
		Toolsets: sqltool.Factory(wh, sqltool.Config{DefaultDatasetID: "contract_data", DefaultTableID: "contracts"}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

type stubExtractor struct {
	gotPath string
	gotData string
	err     error
}

func (s *stubExtractor) Extract(ctx context.Context, path string) (*extraction.Document, error) {
	s.gotPath = path
	data, _ := os.ReadFile(path)
	s.gotData = string(data)
	if s.err != nil {
		return nil, s.err
	}
	return &extraction.Document{Fields: map[string]any{"contract_id": "C-9"}}, nil
}

func newServer(t *testing.T, a server.Agent, opts ...server.HTTPServerOption) *httptest.Server {
	t.Helper()
	cfg := &config.ServerConfig{}
	cfg.SetDefaults()
	ts := httptest.NewServer(server.NewHTTPServer(cfg, a, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	ts := newServer(t, newAgent(t, testutils.NewMockLLM(), newWarehouse()))

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode(t, resp)["status"])
}

func TestListTools(t *testing.T) {
	ts := newServer(t, newAgent(t, testutils.NewMockLLM(), newWarehouse()))

	resp, err := http.Get(ts.URL + "/v1/tools")
	require.NoError(t, err)
	body := decode(t, resp)

	assert.EqualValues(t, 6, body["total"])
	tools := body["tools"].([]any)
	first := tools[0].(map[string]any)
	assert.Equal(t, sqltool.GetDatasetInfo, first["name"])
	assert.Equal(t, "object", first["parameters"].(map[string]any)["type"])
}

func TestQuery(t *testing.T) {
	wh := newWarehouse()
	llm := testutils.NewMockLLM(testutils.CallResponse(sqltool.ExecuteSQL, map[string]any{
		"query": "SELECT contract_id FROM contracts",
	}))
	ts := newServer(t, newAgent(t, llm, wh))

	resp := postJSON(t, ts.URL+"/v1/query", `{"query": "Which contracts exist?"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)

	result := body["result"].(map[string]any)
	assert.Equal(t, []any{map[string]any{"contract_id": "C-1"}}, result["results"])
	assert.NotContains(t, body, "error")
}

func TestQuery_FailureEnvelope(t *testing.T) {
	llm := testutils.NewMockLLM(testutils.TextResponse("  "))
	ts := newServer(t, newAgent(t, llm, newWarehouse()))

	resp := postJSON(t, ts.URL+"/v1/query", `{"query": "anything"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "No valid response from agent."}, decode(t, resp))
}

func TestQuery_BadRequests(t *testing.T) {
	ts := newServer(t, newAgent(t, testutils.NewMockLLM(), newWarehouse()))

	for _, body := range []string{`{"query": ""}`, `{}`, `not json`} {
		resp := postJSON(t, ts.URL+"/v1/query", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Contains(t, decode(t, resp), "error", body)
	}
}

func TestRunTool(t *testing.T) {
	wh := newWarehouse()
	ts := newServer(t, newAgent(t, testutils.NewMockLLM(), wh))

	resp := postJSON(t, ts.URL+"/v1/tools/"+sqltool.ExecuteSQL, `{"query": "SELECT * FROM contracts"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decode(t, resp), "result")
	require.Len(t, wh.Queries(), 1)

	resp = postJSON(t, ts.URL+"/v1/tools/"+sqltool.ExecuteSQL, `{}`)
	assert.Equal(t, map[string]any{"error": "query is required."}, decode(t, resp))

	resp = postJSON(t, ts.URL+"/v1/tools/drop_table", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "Tool 'drop_table' not found."}, decode(t, resp))

	resp = postJSON(t, ts.URL+"/v1/tools/"+sqltool.ExecuteSQL, `[1, 2]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func uploadRequest(t *testing.T, url, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDocuments(t *testing.T) {
	ex := &stubExtractor{}
	docTool, err := doctool.NewTool(ex)
	require.NoError(t, err)
	ts := newServer(t, newAgent(t, testutils.NewMockLLM(), newWarehouse()), server.WithDocumentTool(docTool))

	resp, err := http.DefaultClient.Do(uploadRequest(t, ts.URL+"/v1/documents", "lease.txt", "Lease between A and B"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"result": map[string]any{"contract_id": "C-9"}}, decode(t, resp))

	assert.Equal(t, ".txt", filepath.Ext(ex.gotPath))
	assert.Equal(t, "Lease between A and B", ex.gotData)
	_, statErr := os.Stat(ex.gotPath)
	assert.True(t, os.IsNotExist(statErr), "upload must be removed")

	ex.err = errors.New("Unsupported file type: .bin")
	resp, err = http.DefaultClient.Do(uploadRequest(t, ts.URL+"/v1/documents", "blob.bin", "x"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"error": "Unsupported file type: .bin"}, decode(t, resp))
}

func TestDocuments_Disabled(t *testing.T) {
	ts := newServer(t, newAgent(t, testutils.NewMockLLM(), newWarehouse()))

	resp, err := http.DefaultClient.Do(uploadRequest(t, ts.URL+"/v1/documents", "a.pdf", "%PDF"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestKPIs(t *testing.T) {
	wh := newWarehouse()
	ts := newServer(t, newAgent(t, testutils.NewMockLLM(), wh), server.WithDialect(warehouse.DialectSQLite))

	resp, err := http.Get(ts.URL + "/v1/kpis")
	require.NoError(t, err)
	assert.Len(t, decode(t, resp)["kpis"], 6)

	resp, err = http.Get(ts.URL + "/v1/kpis/average_value")
	require.NoError(t, err)
	assert.Contains(t, decode(t, resp), "result")
	require.Len(t, wh.Queries(), 1)
	assert.Contains(t, wh.Queries()[0], "AVG(price)")

	resp, err = http.Get(ts.URL + "/v1/kpis/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/v1/contracts/O'Brien-1")
	require.NoError(t, err)
	assert.Contains(t, decode(t, resp), "result")
	assert.Contains(t, wh.Queries()[1], "'O''Brien-1'")
}

func TestUpdateAgent(t *testing.T) {
	first := newAgent(t, testutils.NewMockLLM(testutils.TextResponse("first")), newWarehouse())
	second := newAgent(t, testutils.NewMockLLM(testutils.TextResponse("second")), newWarehouse())

	cfg := &config.ServerConfig{}
	srv := server.NewHTTPServer(cfg, first)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	prev := srv.UpdateAgent(second)
	assert.Same(t, first, prev)

	resp := postJSON(t, ts.URL+"/v1/query", `{"query": "q"}`)
	assert.Equal(t, map[string]any{"result": map[string]any{"response": "second"}}, decode(t, resp))
}

func TestMetricsEndpoint(t *testing.T) {
	obs, err := observability.NewManager(context.Background(), observability.Config{
		Metrics: observability.MetricsConfig{Enabled: true},
	})
	require.NoError(t, err)
	defer obs.Shutdown(context.Background())

	llm := testutils.NewMockLLM(testutils.TextResponse("ok"))
	ts := newServer(t, newAgent(t, llm, newWarehouse()), server.WithObservability(obs))

	postJSON(t, ts.URL+"/v1/query", `{"query": "q"}`).Body.Close()

	resp, err := http.Get(ts.URL + observability.DefaultMetricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(data), "contractagent_http_requests_total")
	assert.Contains(t, string(data), `route="/v1/query"`)
}

type staticValidator map[string]*auth.Claims

func (v staticValidator) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, auth.ErrInvalidToken
}

func TestAuth(t *testing.T) {
	v := staticValidator{
		"analyst": {Subject: "u1", Role: "analyst"},
		"viewer":  {Subject: "u2", Role: "viewer"},
	}
	llm := testutils.NewMockLLM(testutils.TextResponse("ok"), testutils.TextResponse("ok"))
	ts := newServer(t, newAgent(t, llm, newWarehouse()), server.WithAuth(v, "analyst"))

	do := func(path, token string) int {
		req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, do("/health", ""))
	assert.Equal(t, http.StatusUnauthorized, do("/v1/tools", ""))
	assert.Equal(t, http.StatusUnauthorized, do("/v1/tools", "bogus"))
	assert.Equal(t, http.StatusForbidden, do("/v1/tools", "viewer"))
	assert.Equal(t, http.StatusOK, do("/v1/tools", "analyst"))
}

func TestA2AMount(t *testing.T) {
	v := staticValidator{"analyst": {Subject: "u1"}}
	ts := newServer(t, newAgent(t, testutils.NewMockLLM(), newWarehouse()),
		server.WithA2A(a2aserver.CardConfig{Name: "Contract Agent"}),
		server.WithAuth(v))

	resp, err := http.Get(ts.URL + "/.well-known/agent-card.json")
	require.NoError(t, err)
	var card map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	resp.Body.Close()
	assert.Equal(t, "Contract Agent", card["name"])
	assert.Equal(t, "http://0.0.0.0:8080/a2a", card["url"])
	assert.Len(t, card["skills"], 7)

	resp = postJSON(t, ts.URL+"/a2a", `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{}}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

var _ server.Agent = (*agent.ContractAgent)(nil)
