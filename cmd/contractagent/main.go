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

// Command contractagent answers questions about contracts stored in a SQL
// warehouse.
//
// Usage:
//
//	contractagent ask "How many contracts are active?"
//	contractagent ask --export results.xlsx "List contracts expiring this quarter"
//	contractagent extract ./lease.pdf
//	contractagent kpi upcoming_expirations
//	contractagent serve --config contractagent.yaml --watch
//	contractagent mcp
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/contractagent"
	"github.com/kadirpekel/contractagent/pkg/config"
)

// stdout receives command output. Logs go to stderr or the log file.
var stdout io.Writer = os.Stdout

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP server."`
	Ask      AskCmd      `cmd:"" help:"Answer a question about the contracts."`
	Extract  ExtractCmd  `cmd:"" help:"Extract contract fields from a document."`
	KPI      KPICmd      `cmd:"" name:"kpi" help:"Run a dashboard query."`
	Tools    ToolsCmd    `cmd:"" help:"List the operations advertised to the model."`
	MCP      MCPCmd      `cmd:"" name:"mcp" help:"Serve the operations over MCP on stdio."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the config file."`

	Config          string   `short:"c" help:"Config file path, or the key or node for remote providers (empty = environment)." env:"CONTRACT_CONFIG"`
	ConfigProvider  string   `help:"Config source (file, consul, etcd, zookeeper)." enum:"file,consul,etcd,zookeeper" default:"file" env:"CONTRACT_CONFIG_PROVIDER"`
	ConfigEndpoints []string `help:"Remote config store endpoints." env:"CONTRACT_CONFIG_ENDPOINTS"`
	LogLevel        string   `help:"Log level (debug, info, warn, error)." env:"LOG_LEVEL"`
	LogFile         string   `help:"Log file path (empty = stderr)." env:"LOG_FILE"`
	LogFormat       string   `help:"Log format (simple, verbose, json)." env:"LOG_FORMAT"`

	logCleanup []func()
}

func (cli *CLI) closeLogs() {
	for i := len(cli.logCleanup) - 1; i >= 0; i-- {
		cli.logCleanup[i]()
	}
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintln(stdout, contractagent.GetVersion())
	return nil
}

func newParser(cli *CLI, opts ...kong.Option) (*kong.Kong, error) {
	opts = append([]kong.Option{
		kong.Name("contractagent"),
		kong.Description("Natural-language queries over a contracts warehouse"),
		kong.UsageOnError(),
	}, opts...)
	return kong.New(cli, opts...)
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	parser, err := newParser(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	// Config file logger settings are applied later unless overridden here.
	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	cli.logCleanup = append(cli.logCleanup, cleanup)

	err = ctx.Run(&cli)
	cli.closeLogs()
	ctx.FatalIfErrorf(err)
}
