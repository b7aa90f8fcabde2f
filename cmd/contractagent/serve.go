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
	"os/signal"
	"reflect"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/contractagent"
	"github.com/kadirpekel/contractagent/pkg/a2aserver"
	"github.com/kadirpekel/contractagent/pkg/auth"
	"github.com/kadirpekel/contractagent/pkg/config"
	"github.com/kadirpekel/contractagent/pkg/observability"
	"github.com/kadirpekel/contractagent/pkg/server"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Host  string `help:"Host to listen on."`
	Port  int    `help:"Port to listen on."`
	Watch bool   `help:"Reload the agent when the config file changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if c.Watch && loader == nil {
		return fmt.Errorf("--watch requires --config")
	}

	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if err := cfg.Server.Validate(); err != nil {
		return err
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

	opts := []server.HTTPServerOption{
		server.WithObservability(a.obs),
		server.WithDocumentTool(a.docTool),
		server.WithDialect(cfg.Warehouse.Database.Dialect()),
	}
	if authCfg := cfg.Server.Auth; authCfg.Enabled {
		v, err := auth.NewJWTValidator(ctx, auth.JWTValidatorConfig{
			JWKSURL:         authCfg.JWKSURL,
			Issuer:          authCfg.Issuer,
			Audience:        authCfg.Audience,
			RefreshInterval: authCfg.RefreshInterval,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize auth: %w", err)
		}
		defer v.Close()
		opts = append(opts, server.WithAuth(v, authCfg.Roles...))
		slog.Info("Authentication enabled", "issuer", authCfg.Issuer)
	}

	if a2aCfg := cfg.Server.A2A; a2aCfg.Enabled {
		opts = append(opts, server.WithA2A(a2aserver.CardConfig{
			Name:        a2aCfg.Name,
			Description: a2aCfg.Description,
			Version:     contractagent.Version,
			URL:         a2aCfg.URL,
		}))
	}

	srv := server.NewHTTPServer(&cfg.Server, a.agent, opts...)

	printServeInfo(srv, cfg)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})

	if c.Watch {
		loader.OnChange(func(next *config.Config) {
			a.reload(ctx, srv, next)
		})
		g.Go(func() error {
			if err := loader.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("config watch: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// reload builds an agent for next and swaps it into srv. The previous
// agent is closed once its in-flight queries finish. Server, logger and
// observability settings only take effect on restart.
func (a *app) reload(ctx context.Context, srv *server.HTTPServer, next *config.Config) {
	if !reflect.DeepEqual(next.Server, a.cfg.Server) {
		slog.Warn("Server settings changed; restart to apply them")
	}

	ag, err := a.buildAgent(ctx, next)
	if err != nil {
		slog.Error("Failed to rebuild agent; keeping the current one", "error", err)
		return
	}

	prev := srv.UpdateAgent(ag)
	a.agent = ag
	slog.Info("Agent reloaded", "dataset", next.Warehouse.DefaultDataset, "model", next.LLM.Model)

	go func() {
		if closer, ok := prev.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				slog.Warn("Failed to close previous agent", "error", err)
			}
		}
	}()
}

func printServeInfo(srv *server.HTTPServer, cfg *config.Config) {
	addr := srv.Address()
	fmt.Fprintf(stdout, "\nContract agent ready\n")
	fmt.Fprintf(stdout, "   Query:       POST http://%s/v1/query\n", addr)
	fmt.Fprintf(stdout, "   Documents:   POST http://%s/v1/documents\n", addr)
	fmt.Fprintf(stdout, "   Tools:       GET  http://%s/v1/tools\n", addr)
	fmt.Fprintf(stdout, "   Health:      GET  http://%s/health\n", addr)
	fmt.Fprintf(stdout, "   Warehouse:   %s (dataset %s)\n", cfg.Warehouse.Database.Driver, cfg.Warehouse.DefaultDataset)
	if cfg.Observability.Tracing.Enabled {
		fmt.Fprintf(stdout, "   Tracing:     %s (%s)\n", cfg.Observability.Tracing.Exporter, cfg.Observability.Tracing.Endpoint)
	}
	if cfg.Observability.Metrics.Enabled {
		fmt.Fprintf(stdout, "   Metrics:     http://%s%s\n", addr, observability.DefaultMetricsPath)
	}
	if cfg.Server.A2A.Enabled {
		fmt.Fprintf(stdout, "   A2A:         POST http://%s%s\n", addr, a2aserver.DefaultPath)
	}
	if cfg.Server.Auth.Enabled {
		fmt.Fprintf(stdout, "   Auth:        bearer JWT (issuer %s)\n", cfg.Server.Auth.Issuer)
	}
	fmt.Fprintln(stdout, "\nPress Ctrl+C to stop")
}
