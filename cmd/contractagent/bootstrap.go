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
	"fmt"
	"log/slog"

	"github.com/kadirpekel/contractagent/pkg/agent"
	"github.com/kadirpekel/contractagent/pkg/config"
	"github.com/kadirpekel/contractagent/pkg/config/provider"
	"github.com/kadirpekel/contractagent/pkg/extraction"
	"github.com/kadirpekel/contractagent/pkg/model"
	"github.com/kadirpekel/contractagent/pkg/model/gemini"
	"github.com/kadirpekel/contractagent/pkg/observability"
	"github.com/kadirpekel/contractagent/pkg/tool"
	"github.com/kadirpekel/contractagent/pkg/tool/doctool"
	"github.com/kadirpekel/contractagent/pkg/tool/sqltool"
	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

// app holds everything a command needs, built from one Config.
type app struct {
	cfg   *config.Config
	pool  *config.DBPool
	obs   *observability.Manager
	agent *agent.ContractAgent

	// extractor outlives agent reloads; it owns its own model client.
	extractorLLM model.LLM
	extractor    *extraction.Extractor
	docTool      tool.Tool
}

// loadConfig reads --config from the selected provider, or the environment
// when it is empty, and applies the config logger settings.
func (cli *CLI) loadConfig(ctx context.Context) (*config.Config, *config.Loader, error) {
	if cli.Config == "" {
		cfg, err := config.FromEnv()
		if err != nil {
			return nil, nil, err
		}
		slog.Debug("Using environment configuration")
		return cfg, nil, nil
	}

	typ, err := provider.ParseType(cli.ConfigProvider)
	if err != nil {
		return nil, nil, err
	}
	cfg, loader, err := config.LoadConfig(ctx, provider.ProviderConfig{
		Type:      typ,
		Path:      cli.Config,
		Endpoints: cli.ConfigEndpoints,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cli.applyConfigLogger(&cfg.Logger); err != nil {
		loader.Close()
		return nil, nil, err
	}
	slog.Info("Loaded configuration", "source", typ, "path", cli.Config)
	return cfg, loader, nil
}

// newApp wires the configuration into a ready agent.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, pool: config.NewDBPool()}

	obs, err := observability.NewManager(ctx, cfg.Observability)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	a.obs = obs

	a.extractorLLM, err = newLLM(&cfg.LLM)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.extractor = extraction.New(a.extractorLLM, extraction.Config{
		Language:         cfg.Extraction.Language,
		MaxFileBytes:     cfg.Extraction.MaxFileBytes,
		StructuredOutput: cfg.Extraction.StructuredOutput,
	})
	a.docTool, err = doctool.NewTool(a.extractor)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.agent, err = a.buildAgent(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// buildAgent creates an agent for cfg sharing the app's pool and
// observability.
func (a *app) buildAgent(ctx context.Context, cfg *config.Config) (*agent.ContractAgent, error) {
	dbCfg := &cfg.Warehouse.Database
	db, err := a.pool.Get(ctx, dbCfg)
	if err != nil {
		return nil, err
	}

	client := warehouse.NewSQLClient(db, dbCfg.Dialect(), warehouse.SQLOptions{
		Project:  cfg.Warehouse.ProjectID,
		Location: cfg.Warehouse.Location,
	})

	llm, err := newLLM(&cfg.LLM)
	if err != nil {
		return nil, err
	}

	selection := tool.WithFilter(tool.Selection(cfg.Agent.Operations, cfg.Agent.ExcludedOperations))
	warehouseTools := sqltool.Factory(client, sqltool.Config{
		DefaultDatasetID: cfg.Warehouse.DefaultDataset,
		DefaultTableID:   cfg.Warehouse.DefaultTable,
		MaxRows:          cfg.Warehouse.MaxRows,
	})

	agentCfg := agent.Config{
		LLM: llm,
		// The schema fetch selects get_table_schema by name, which bypasses
		// the selection.
		Toolsets: func(opts ...tool.Option) (*tool.Toolset, error) {
			return warehouseTools(append([]tool.Option{selection}, opts...)...)
		},
		TargetTable: cfg.Agent.TargetTable,
		Dialect:     dbCfg.Dialect(),
		CallTimeout: cfg.Agent.CallTimeout,
		Tracer:      a.obs.Tracer(),
		Metrics:     a.obs.Metrics(),
	}

	if cfg.Agent.DocumentTools {
		docs, err := doctool.New(a.extractor, selection)
		if err != nil {
			_ = llm.Close()
			return nil, err
		}
		agentCfg.Extra = append(agentCfg.Extra, docs)
	}

	ag, err := agent.New(agentCfg)
	if err != nil {
		_ = llm.Close()
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	slog.Debug("Agent ready",
		"driver", dbCfg.Driver,
		"dataset", cfg.Warehouse.DefaultDataset,
		"table", cfg.Agent.TargetTable,
		"model", cfg.LLM.Model,
		"document_tools", cfg.Agent.DocumentTools,
	)
	return ag, nil
}

func newLLM(cfg *config.LLMConfig) (model.LLM, error) {
	gcfg := gemini.Config{
		APIKey:    cfg.APIKey,
		Backend:   cfg.Backend,
		Project:   cfg.Project,
		Location:  cfg.Location,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	}
	if cfg.Temperature != nil {
		gcfg.Temperature = *cfg.Temperature
	}

	llm, err := gemini.New(gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	return llm, nil
}

// Close releases the agent, the model, the pools and observability.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.agent != nil {
		errs = append(errs, a.agent.Close())
	}
	if a.extractorLLM != nil {
		errs = append(errs, a.extractorLLM.Close())
	}
	if a.pool != nil {
		errs = append(errs, a.pool.Close())
	}
	if a.obs != nil {
		errs = append(errs, a.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
