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

// Package mcpserver exposes the contract agent's operations as Model
// Context Protocol tools.
//
// Every advertised operation becomes an MCP tool with the same name and
// JSON Schema. One extra tool, ask_contracts, answers a natural-language
// question through the agent. Tool results carry the result envelope as
// JSON text; failures are flagged with IsError.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kadirpekel/contractagent/pkg/tool"
)

// AskTool is the name of the natural-language query tool.
const AskTool = "ask_contracts"

// Agent is what the MCP server needs from the contract agent.
type Agent interface {
	ProcessQuery(ctx context.Context, query string) tool.Result
	Definitions(ctx tool.ReadonlyContext) ([]tool.Definition, error)
	Lookup(ctx tool.ReadonlyContext, name string) (tool.Tool, bool)
}

// New builds an MCP server advertising the agent's operations.
func New(ctx context.Context, agent Agent, name, version string) (*server.MCPServer, error) {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	defs, err := agent.Definitions(tool.NewReadonlyContext(ctx, "", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	for _, def := range defs {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema for %s: %w", def.Name, err)
		}
		s.AddTool(mcp.NewToolWithRawSchema(def.Name, def.Description, schema), ToolHandler(agent, def.Name))
	}

	s.AddTool(mcp.NewTool(AskTool,
		mcp.WithDescription("Answer a natural-language question about contracts by generating and running SQL."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question to answer.")),
	), AskHandler(agent))

	slog.Debug("MCP tools registered", "count", len(defs)+1)
	return s, nil
}

// ToolHandler runs the named operation with the request arguments.
func ToolHandler(agent Agent, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rc := tool.NewReadonlyContext(ctx, uuid.NewString(), "")
		t, ok := agent.Lookup(rc, name)
		if !ok {
			return toResult(tool.Failuref("Tool '%s' not found.", name))
		}
		return toResult(tool.Execute(rc, t, req.GetArguments()))
	}
}

// AskHandler answers the query argument through the agent.
func AskHandler(agent Agent) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, ok := req.GetArguments()["query"].(string)
		if !ok || query == "" {
			return toResult(tool.Failure("query is required."))
		}
		return toResult(agent.ProcessQuery(ctx, query))
	}
}

func toResult(res tool.Result) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	out := mcp.NewToolResultText(string(data))
	out.IsError = !res.IsSuccessful()
	return out, nil
}

// Serve speaks MCP over in and out until ctx is done or in closes.
// The mcp command passes os.Stdin and os.Stdout.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}
