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

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/kadirpekel/contractagent"
	"github.com/kadirpekel/contractagent/pkg/mcpserver"
)

// MCPCmd serves the operations over the Model Context Protocol on
// stdin/stdout. Logs must not go to stdout; use stderr or --log-file.
type MCPCmd struct{}

func (c *MCPCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app) error {
		s, err := mcpserver.New(ctx, a.agent, "contractagent", contractagent.Version)
		if err != nil {
			return err
		}

		slog.Info("MCP server listening on stdio")
		if err := mcpserver.Serve(ctx, s, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}
