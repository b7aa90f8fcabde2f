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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/kadirpekel/contractagent/pkg/contracts"
	"github.com/kadirpekel/contractagent/pkg/export"
	"github.com/kadirpekel/contractagent/pkg/tool"
	"github.com/kadirpekel/contractagent/pkg/tool/sqltool"
)

// errFailed is returned after a failure envelope has been printed.
var errFailed = errors.New("operation failed")

// withApp loads the configuration, builds the app and runs fn with a
// context cancelled on SIGINT or SIGTERM.
func withApp(cli *CLI, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			slog.Warn("Failed to release resources", "error", err)
		}
	}()

	return fn(ctx, a)
}

// printResult writes the envelope as indented JSON and reports failures
// through the exit status.
func printResult(res tool.Result) error {
	if err := printJSON(res); err != nil {
		return err
	}
	if !res.IsSuccessful() {
		return errFailed
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exportRows saves the rows of a successful execute_sql result.
func exportRows(path string, res tool.Result) error {
	if path == "" || !res.IsSuccessful() {
		return nil
	}
	rows := export.Rows(res.Payload())
	if rows == nil {
		slog.Warn("Nothing to export: the answer is not a result set")
		return nil
	}
	if err := export.SaveXLSX(path, rows); err != nil {
		return err
	}
	slog.Info("Exported results", "path", path, "rows", len(rows))
	return nil
}

// AskCmd answers a natural-language question.
type AskCmd struct {
	Query  []string `arg:"" help:"The question to answer."`
	Export string   `short:"o" help:"Write result rows to an XLSX file." type:"path" placeholder:"FILE"`
}

func (c *AskCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app) error {
		res := a.agent.ProcessQuery(ctx, strings.Join(c.Query, " "))
		if err := exportRows(c.Export, res); err != nil {
			return err
		}
		return printResult(res)
	})
}

// ExtractCmd extracts the contract fields of a document.
type ExtractCmd struct {
	Path string `arg:"" help:"PDF, DOCX or text document." type:"existingfile"`
}

func (c *ExtractCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app) error {
		rc := tool.NewReadonlyContext(ctx, uuid.NewString(), "")
		return printResult(tool.Execute(rc, a.docTool, map[string]any{"file_path": c.Path}))
	})
}

// KPICmd runs a predefined dashboard query through execute_sql.
type KPICmd struct {
	Name     string `arg:"" optional:"" help:"Query name; omit to list the names."`
	Contract string `help:"Show the details of one contract instead." placeholder:"ID"`
	Export   string `short:"o" help:"Write result rows to an XLSX file." type:"path" placeholder:"FILE"`
}

func (c *KPICmd) Run(cli *CLI) error {
	if c.Name == "" && c.Contract == "" {
		for _, name := range contracts.KPINames() {
			fmt.Fprintln(stdout, name)
		}
		return nil
	}

	return withApp(cli, func(ctx context.Context, a *app) error {
		query := contracts.ContractDetailsQuery(c.Contract)
		if c.Contract == "" {
			q, ok := contracts.Queries(a.cfg.Warehouse.Database.Dialect())[c.Name]
			if !ok {
				return fmt.Errorf("unknown KPI %q (available: %s)", c.Name, strings.Join(contracts.KPINames(), ", "))
			}
			query = q
		}

		rc := tool.NewReadonlyContext(ctx, uuid.NewString(), "")
		t, ok := a.agent.Lookup(rc, sqltool.ExecuteSQL)
		if !ok {
			return fmt.Errorf("tool %s is not available", sqltool.ExecuteSQL)
		}
		res := tool.Execute(rc, t, map[string]any{"query": query})
		if err := exportRows(c.Export, res); err != nil {
			return err
		}
		return printResult(res)
	})
}

// ToolsCmd lists the advertised operations.
type ToolsCmd struct {
	JSON bool `help:"Print the full function declarations as JSON."`
}

func (c *ToolsCmd) Run(cli *CLI) error {
	return withApp(cli, func(ctx context.Context, a *app) error {
		defs, err := a.agent.Definitions(tool.NewReadonlyContext(ctx, "", ""))
		if err != nil {
			return err
		}
		if c.JSON {
			return printJSON(defs)
		}
		for _, d := range defs {
			fmt.Fprintf(stdout, "%-20s %s\n", d.Name, firstLine(d.Description))
		}
		return nil
	})
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

// ValidateCmd validates the configuration without connecting anywhere.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, loader, err := cli.loadConfig(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration is invalid: %v\n", err)
		return errFailed
	}
	if loader != nil {
		loader.Close()
	}
	fmt.Fprintf(stdout, "Configuration is valid (driver %s, dataset %s, model %s)\n",
		cfg.Warehouse.Database.Driver, cfg.Warehouse.DefaultDataset, cfg.LLM.Model)
	return nil
}
