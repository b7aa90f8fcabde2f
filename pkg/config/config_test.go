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
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

const minimalYAML = `
llm:
  api_key: ${TEST_GEMINI_KEY}
warehouse:
  database:
    database: ":memory:"
`

func TestParse_Defaults(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "secret")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, BackendGemini, cfg.LLM.Backend)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
	assert.Equal(t, "sqlite", cfg.Warehouse.Database.Driver)
	assert.Equal(t, "contract_data", cfg.Warehouse.DefaultDataset)
	assert.Equal(t, "contracts", cfg.Warehouse.DefaultTable)
	assert.Nil(t, cfg.Warehouse.MaxRows)
	assert.Equal(t, "English", cfg.Extraction.Language)
	assert.Equal(t, int64(20<<20), cfg.Extraction.MaxFileBytes)
	assert.Equal(t, "contracts", cfg.Agent.TargetTable)
	assert.Equal(t, 60*time.Second, cfg.Agent.CallTimeout)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.False(t, cfg.Observability.Metrics.Enabled)
}

func TestParse_Values(t *testing.T) {
	data := []byte(`
version: "1"
llm:
  backend: vertex
  project: acme
  location: ${TEST_LOCATION:-europe-west1}
  temperature: 0.2
warehouse:
  database:
    driver: postgres
    host: db.internal
    database: contracts
  project_id: acme
  max_rows: "50"
agent:
  call_timeout: 15s
  document_tools: true
  operations: [execute_sql, get_table_schema, process_document]
  excluded_operations: process_document
server:
  port: 9090
logger:
  level: debug
  format: json
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "europe-west1", cfg.LLM.Location)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.InDelta(t, 0.2, *cfg.LLM.Temperature, 1e-9)
	require.NotNil(t, cfg.Warehouse.MaxRows)
	assert.Equal(t, 50, *cfg.Warehouse.MaxRows)
	assert.Equal(t, 5432, cfg.Warehouse.Database.Port)
	assert.Equal(t, "disable", cfg.Warehouse.Database.SSLMode)
	assert.Equal(t, 15*time.Second, cfg.Agent.CallTimeout)
	assert.True(t, cfg.Agent.DocumentTools)
	assert.Equal(t, []string{"execute_sql", "get_table_schema", "process_document"}, cfg.Agent.Operations)
	assert.Equal(t, []string{"process_document"}, cfg.Agent.ExcludedOperations)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestParse_JSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"llm": {"api_key": "k"}, "warehouse": {"database": {"database": "x.db"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "x.db", cfg.Warehouse.Database.Database)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing api key", `warehouse: {database: {database: x}}`, "llm: api_key is required"},
		{"vertex without project", `llm: {backend: vertex}
warehouse: {database: {database: x}}`, "project and location are required"},
		{"unknown backend", `llm: {backend: openai, api_key: k}
warehouse: {database: {database: x}}`, "invalid backend"},
		{"missing database", `llm: {api_key: k}`, "warehouse: database: database is required"},
		{"postgres without host", `llm: {api_key: k}
warehouse: {database: {driver: postgres, database: x}}`, "host is required for postgres"},
		{"bad driver", `llm: {api_key: k}
warehouse: {database: {driver: oracle, database: x}}`, "invalid driver"},
		{"bad attach name", `llm: {api_key: k}
warehouse: {database: {database: x, attach: {"bad name": y.db}}}`, "invalid attached dataset name"},
		{"negative max rows", `llm: {api_key: k}
warehouse: {database: {database: x}, max_rows: -1}`, "max_rows must be non-negative"},
		{"bad port", `llm: {api_key: k}
warehouse: {database: {database: x}}
server: {port: 70000}`, "server: port must be between"},
		{"bad log level", `llm: {api_key: k}
warehouse: {database: {database: x}}
logger: {level: loud}`, "invalid log level"},
		{"auth without jwks", `llm: {api_key: k}
warehouse: {database: {database: x}}
server: {auth: {enabled: true, issuer: i}}`, "server: auth: jwks_url is required"},
		{"auth bad jwks", `llm: {api_key: k}
warehouse: {database: {database: x}}
server: {auth: {enabled: true, jwks_url: "ftp://x", issuer: i}}`, "invalid jwks_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_Auth(t *testing.T) {
	cfg, err := Parse([]byte(`
llm: {api_key: k}
warehouse: {database: {database: x}}
server:
  auth:
    enabled: true
    jwks_url: https://idp.example.com/.well-known/jwks.json
    issuer: https://idp.example.com
    roles: analyst,admin
`))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Server.Auth.RefreshInterval)
	assert.Equal(t, []string{"analyst", "admin"}, cfg.Server.Auth.Roles)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("llm: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestExpandEnvString(t *testing.T) {
	t.Setenv("TEST_SET", "value")
	t.Setenv("TEST_EMPTY", "")

	tests := map[string]string{
		"${TEST_SET}":             "value",
		"$TEST_SET/suffix":        "value/suffix",
		"${TEST_UNSET}":           "",
		"${TEST_UNSET:-fallback}": "fallback",
		"${TEST_EMPTY:-fallback}": "fallback",
		"${TEST_SET:-fallback}":   "value",
		"plain":                   "plain",
	}
	for in, want := range tests {
		assert.Equal(t, want, expandEnvString(in), in)
	}
}

func TestFromEnv_SQLite(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("CONTRACT_DB_DRIVER", "")
	t.Setenv("CONTRACT_DB_PATH", "/data/contracts.db")
	t.Setenv("CONTRACT_DATASET", "")
	t.Setenv("CONTRACT_CALL_TIMEOUT", "5s")
	t.Setenv("BIGQUERY_MAX_ROWS", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, BackendGemini, cfg.LLM.Backend)
	db := cfg.Warehouse.Database
	assert.Equal(t, "sqlite", db.Driver)
	assert.Equal(t, ":memory:", db.Database)
	assert.Equal(t, map[string]string{"contract_data": "/data/contracts.db"}, db.Attach)
	require.NotNil(t, cfg.Warehouse.MaxRows)
	assert.Equal(t, 100, *cfg.Warehouse.MaxRows)
	assert.Equal(t, 5*time.Second, cfg.Agent.CallTimeout)
}

func TestFromEnv_VertexInferred(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("CONTRACT_LLM_BACKEND", "")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "acme")
	t.Setenv("GOOGLE_CLOUD_LOCATION", "us-central1")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendVertex, cfg.LLM.Backend)
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("CONTRACT_LLM_BACKEND", "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "h", Database: "d", Username: "u", Password: "p"}
	pg.SetDefaults()
	assert.Equal(t, "host=h port=5432 dbname=d user=u password=p sslmode=disable", pg.DSN())
	assert.Equal(t, "postgres", pg.DriverName())
	assert.Equal(t, warehouse.DialectPostgres, pg.Dialect())

	my := DatabaseConfig{Driver: "mysql", Host: "h", Database: "d", Username: "u", Password: "p"}
	my.SetDefaults()
	assert.Equal(t, "u:p@tcp(h:3306)/d?parseTime=true", my.DSN())
	assert.Equal(t, warehouse.DialectMySQL, my.Dialect())

	lite := DatabaseConfig{Database: "a.db", Attach: map[string]string{"zeta": "z.db", "alpha": "it's.db"}}
	lite.SetDefaults()
	assert.Equal(t, "a.db", lite.DSN())
	assert.Equal(t, "sqlite3", lite.DriverName())
	assert.Equal(t, warehouse.DialectSQLite, lite.Dialect())
	assert.Equal(t, []string{
		`ATTACH DATABASE 'it''s.db' AS "alpha"`,
		`ATTACH DATABASE 'z.db' AS "zeta"`,
	}, lite.attachStatements())
}

func TestDBPool_SQLiteAttach(t *testing.T) {
	dir := t.TempDir()
	datasetFile := filepath.Join(dir, "contract_data.db")

	seed, err := sql.Open("sqlite3", datasetFile)
	require.NoError(t, err)
	_, err = seed.Exec(`CREATE TABLE contracts (contract_id TEXT, price REAL)`)
	require.NoError(t, err)
	_, err = seed.Exec(`INSERT INTO contracts VALUES ('C-1', 10.5), ('C-2', 4.5)`)
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	cfg := &DatabaseConfig{Database: ":memory:", Attach: map[string]string{"contract_data": datasetFile}}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	pool := NewDBPool()
	defer pool.Close()

	ctx := context.Background()
	db, err := pool.Get(ctx, cfg)
	require.NoError(t, err)

	again, err := pool.Get(ctx, cfg)
	require.NoError(t, err)
	assert.Same(t, db, again)

	var total float64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT SUM(price) FROM "contract_data"."contracts"`).Scan(&total))
	assert.InDelta(t, 15.0, total, 1e-9)

	require.NoError(t, pool.Close())
	assert.Error(t, db.PingContext(ctx))
}

func TestDBPool_AttachMissingDirectory(t *testing.T) {
	cfg := &DatabaseConfig{
		Database: ":memory:",
		Attach:   map[string]string{"contract_data": filepath.Join(t.TempDir(), "missing", "x.db")},
	}
	cfg.SetDefaults()

	pool := NewDBPool()
	defer pool.Close()
	_, err := pool.Get(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to attach database")
}

func TestLoadConfigFile_Watch(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "secret")
	path := filepath.Join(t.TempDir(), "contractagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, loader, err := LoadConfigFile(ctx, path)
	require.NoError(t, err)
	defer loader.Close()
	assert.Equal(t, 8080, cfg.Server.Port)

	var mu sync.Mutex
	var reloaded *Config
	loader.OnChange(func(c *Config) {
		mu.Lock()
		defer mu.Unlock()
		reloaded = c
	})

	done := make(chan error, 1)
	go func() { done <- loader.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML+"server:\n  port: 9191\n"), 0o600))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloaded != nil && reloaded.Server.Port == 9191
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	_, _, err := LoadConfigFile(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSchema(t *testing.T) {
	schema := Schema()
	require.NotNil(t, schema.Properties)

	for _, key := range []string{"llm", "warehouse", "extraction", "agent", "server", "logger", "observability"} {
		_, ok := schema.Properties.Get(key)
		assert.True(t, ok, key)
	}
}
