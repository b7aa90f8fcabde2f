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

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// LoadEnvFiles loads .env.local and .env when present. Variables already
// set in the environment win.
func LoadEnvFiles() error {
	envFiles := []string{".env.local", ".env"}

	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return nil
}

// Env is the zero-config environment. The BIGQUERY_*, GOOGLE_CLOUD_* and
// GEMINI_API_KEY names are kept for compatibility with existing
// deployments.
type Env struct {
	ProjectID      string `envconfig:"BIGQUERY_PROJECT_ID"`
	Location       string `envconfig:"BIGQUERY_LOCATION" default:"us-central1"`
	MaxRows        int    `envconfig:"BIGQUERY_MAX_ROWS" default:"100"`
	GoogleProject  string `envconfig:"GOOGLE_CLOUD_PROJECT"`
	GoogleLocation string `envconfig:"GOOGLE_CLOUD_LOCATION"`
	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`

	Backend     string        `envconfig:"CONTRACT_LLM_BACKEND"`
	Model       string        `envconfig:"CONTRACT_MODEL"`
	DBDriver    string        `envconfig:"CONTRACT_DB_DRIVER" default:"sqlite"`
	DBHost      string        `envconfig:"CONTRACT_DB_HOST"`
	DBPort      int           `envconfig:"CONTRACT_DB_PORT"`
	DBName      string        `envconfig:"CONTRACT_DB_NAME"`
	DBUser      string        `envconfig:"CONTRACT_DB_USER"`
	DBPassword  string        `envconfig:"CONTRACT_DB_PASSWORD"`
	DBPath      string        `envconfig:"CONTRACT_DB_PATH" default:"contract_data.db"`
	Dataset     string        `envconfig:"CONTRACT_DATASET" default:"contract_data"`
	Table       string        `envconfig:"CONTRACT_TABLE" default:"contracts"`
	Language    string        `envconfig:"CONTRACT_LANGUAGE"`
	CallTimeout time.Duration `envconfig:"CONTRACT_CALL_TIMEOUT"`
	Port        int           `envconfig:"CONTRACT_PORT"`
	Metrics     bool          `envconfig:"CONTRACT_METRICS"`
}

// FromEnv builds a validated configuration from environment variables.
//
// With the sqlite driver the dataset lives in its own database file
// (CONTRACT_DB_PATH) attached under the dataset name to an in-memory main
// database. Other drivers connect to CONTRACT_DB_NAME and resolve the
// dataset as a schema (postgres) or database (mysql).
func FromEnv() (*Config, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	cfg := env.Config()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Config maps the environment onto a Config without applying defaults.
func (e Env) Config() *Config {
	maxRows := e.MaxRows

	cfg := &Config{
		LLM: LLMConfig{
			Backend:  e.Backend,
			Model:    e.Model,
			APIKey:   e.GeminiAPIKey,
			Project:  e.GoogleProject,
			Location: e.GoogleLocation,
		},
		Warehouse: WarehouseConfig{
			Database: DatabaseConfig{
				Driver:   e.DBDriver,
				Host:     e.DBHost,
				Port:     e.DBPort,
				Database: e.DBName,
				Username: e.DBUser,
				Password: e.DBPassword,
			},
			ProjectID:      e.ProjectID,
			Location:       e.Location,
			DefaultDataset: e.Dataset,
			DefaultTable:   e.Table,
			MaxRows:        &maxRows,
		},
		Extraction: ExtractionConfig{Language: e.Language},
		Agent:      AgentConfig{TargetTable: e.Table, CallTimeout: e.CallTimeout},
		Server:     ServerConfig{Port: e.Port},
	}
	cfg.Observability.Metrics.Enabled = e.Metrics

	if cfg.LLM.Backend == "" && cfg.LLM.APIKey == "" && cfg.LLM.Project != "" {
		cfg.LLM.Backend = BackendVertex
	}

	db := &cfg.Warehouse.Database
	if db.Driver == "sqlite" || db.Driver == "sqlite3" {
		if db.Database == "" {
			db.Database = ":memory:"
		}
		db.Attach = map[string]string{e.Dataset: e.DBPath}
	}
	return cfg
}
