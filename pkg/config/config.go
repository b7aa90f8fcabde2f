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

// Package config loads the contract agent configuration.
//
// Configuration comes from a YAML (or JSON) file whose string values may
// reference environment variables as ${VAR} or ${VAR:-default}. Without a
// file, FromEnv builds an equivalent configuration from environment
// variables alone.
package config

import (
	"fmt"
	"time"

	"github.com/kadirpekel/contractagent/pkg/contracts"
	"github.com/kadirpekel/contractagent/pkg/observability"
)

// Config is the root configuration.
type Config struct {
	// Version of the configuration format.
	Version string `yaml:"version,omitempty" json:"version,omitempty" jsonschema:"title=Version,default=1"`

	LLM           LLMConfig            `yaml:"llm" json:"llm" jsonschema:"title=LLM"`
	Warehouse     WarehouseConfig      `yaml:"warehouse" json:"warehouse" jsonschema:"title=Warehouse"`
	Extraction    ExtractionConfig     `yaml:"extraction,omitempty" json:"extraction,omitempty" jsonschema:"title=Document Extraction"`
	Agent         AgentConfig          `yaml:"agent,omitempty" json:"agent,omitempty" jsonschema:"title=Agent"`
	Server        ServerConfig         `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"title=Server"`
	Logger        LoggerConfig         `yaml:"logger,omitempty" json:"logger,omitempty" jsonschema:"title=Logger"`
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	c.LLM.SetDefaults()
	c.Warehouse.SetDefaults()
	c.Extraction.SetDefaults()
	c.Agent.SetDefaults()
	c.Server.SetDefaults()
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	sections := []struct {
		name     string
		validate func() error
	}{
		{"llm", c.LLM.Validate},
		{"warehouse", c.Warehouse.Validate},
		{"extraction", c.Extraction.Validate},
		{"agent", c.Agent.Validate},
		{"server", c.Server.Validate},
		{"logger", c.Logger.Validate},
		{"observability", c.Observability.Validate},
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// LLM backends.
const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// LLMConfig configures the model client.
type LLMConfig struct {
	// Backend selects the Gemini API or Vertex AI.
	// Default: gemini
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"title=Backend,enum=gemini,enum=vertex,default=gemini"`

	// Model name.
	// Default: gemini-2.5-flash
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,default=gemini-2.5-flash"`

	// APIKey for the Gemini API backend.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`

	// Project and Location for the Vertex backend.
	Project  string `yaml:"project,omitempty" json:"project,omitempty" jsonschema:"title=Project"`
	Location string `yaml:"location,omitempty" json:"location,omitempty" jsonschema:"title=Location"`

	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,minimum=0,maximum=2"`
	MaxTokens   int      `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,minimum=0"`
}

// SetDefaults applies model defaults.
func (c *LLMConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendGemini
	}
	if c.Model == "" {
		c.Model = "gemini-2.5-flash"
	}
}

// Validate checks backend requirements.
func (c *LLMConfig) Validate() error {
	switch c.Backend {
	case BackendGemini:
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for the gemini backend")
		}
	case BackendVertex:
		if c.Project == "" || c.Location == "" {
			return fmt.Errorf("project and location are required for the vertex backend")
		}
	default:
		return fmt.Errorf("invalid backend %q (valid: gemini, vertex)", c.Backend)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", *c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	return nil
}

// WarehouseConfig configures the SQL warehouse and the operation defaults.
type WarehouseConfig struct {
	Database DatabaseConfig `yaml:"database" json:"database" jsonschema:"title=Database"`

	// ProjectID and Location are reported by the metadata operations.
	ProjectID string `yaml:"project_id,omitempty" json:"project_id,omitempty" jsonschema:"title=Project ID"`
	Location  string `yaml:"location,omitempty" json:"location,omitempty" jsonschema:"title=Location"`

	// DefaultDataset qualifies bare table names in execute_sql.
	// Default: contract_data
	DefaultDataset string `yaml:"default_dataset,omitempty" json:"default_dataset,omitempty" jsonschema:"title=Default Dataset,default=contract_data"`

	// DefaultTable is used when an operation omits table_id.
	// Default: contracts
	DefaultTable string `yaml:"default_table,omitempty" json:"default_table,omitempty" jsonschema:"title=Default Table,default=contracts"`

	// MaxRows caps execute_sql results. Unset means no cap.
	MaxRows *int `yaml:"max_rows,omitempty" json:"max_rows,omitempty" jsonschema:"title=Max Rows,minimum=0"`
}

// SetDefaults applies warehouse defaults.
func (c *WarehouseConfig) SetDefaults() {
	c.Database.SetDefaults()
	if c.DefaultDataset == "" {
		c.DefaultDataset = contracts.DefaultDataset
	}
	if c.DefaultTable == "" {
		c.DefaultTable = contracts.DefaultTable
	}
}

// Validate checks the database and the row cap.
func (c *WarehouseConfig) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.MaxRows != nil && *c.MaxRows < 0 {
		return fmt.Errorf("max_rows must be non-negative")
	}
	return nil
}

// ExtractionConfig configures process_document.
type ExtractionConfig struct {
	// Language extracted values are normalized to.
	// Default: English
	Language string `yaml:"language,omitempty" json:"language,omitempty" jsonschema:"title=Language,default=English"`

	// MaxFileBytes rejects larger documents.
	// Default: 20 MiB
	MaxFileBytes int64 `yaml:"max_file_bytes,omitempty" json:"max_file_bytes,omitempty" jsonschema:"title=Max File Bytes,minimum=0"`

	// StructuredOutput asks the model for JSON matching the contract schema.
	StructuredOutput bool `yaml:"structured_output,omitempty" json:"structured_output,omitempty" jsonschema:"title=Structured Output"`
}

// SetDefaults applies extraction defaults.
func (c *ExtractionConfig) SetDefaults() {
	if c.Language == "" {
		c.Language = "English"
	}
	if c.MaxFileBytes == 0 {
		c.MaxFileBytes = 20 << 20
	}
}

// Validate checks extraction limits.
func (c *ExtractionConfig) Validate() error {
	if c.MaxFileBytes < 0 {
		return fmt.Errorf("max_file_bytes must be non-negative")
	}
	return nil
}

// AgentConfig configures the dispatch loop.
type AgentConfig struct {
	// TargetTable is the table whose schema goes into the prompt.
	// Default: contracts
	TargetTable string `yaml:"target_table,omitempty" json:"target_table,omitempty" jsonschema:"title=Target Table,default=contracts"`

	// CallTimeout bounds each external call of a dispatch.
	// Default: 60s
	CallTimeout time.Duration `yaml:"call_timeout,omitempty" json:"call_timeout,omitempty" jsonschema:"title=Call Timeout"`

	// DocumentTools advertises process_document next to the warehouse
	// operations.
	DocumentTools bool `yaml:"document_tools,omitempty" json:"document_tools,omitempty" jsonschema:"title=Document Tools"`

	// Operations limits the operations advertised to the model. Empty
	// advertises all of them.
	Operations []string `yaml:"operations,omitempty" json:"operations,omitempty" jsonschema:"title=Operations"`

	// ExcludedOperations are never advertised, even when listed in
	// Operations.
	ExcludedOperations []string `yaml:"excluded_operations,omitempty" json:"excluded_operations,omitempty" jsonschema:"title=Excluded Operations"`
}

// SetDefaults applies agent defaults.
func (c *AgentConfig) SetDefaults() {
	if c.TargetTable == "" {
		c.TargetTable = contracts.DefaultTable
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = 60 * time.Second
	}
}

// Validate checks the timeout.
func (c *AgentConfig) Validate() error {
	if c.CallTimeout < 0 {
		return fmt.Errorf("call_timeout must be positive")
	}
	return nil
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,default=0.0.0.0"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,minimum=1,maximum=65535,default=8080"`

	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty" jsonschema:"title=Read Timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty" jsonschema:"title=Write Timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty" jsonschema:"title=Shutdown Timeout"`

	// MaxUploadBytes limits POST /v1/documents bodies.
	// Default: 32 MiB
	MaxUploadBytes int64 `yaml:"max_upload_bytes,omitempty" json:"max_upload_bytes,omitempty" jsonschema:"title=Max Upload Bytes"`

	// Auth requires bearer JWTs on the /v1 routes.
	Auth AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty" jsonschema:"title=Authentication"`

	// A2A publishes the agent over the A2A protocol.
	A2A A2AConfig `yaml:"a2a,omitempty" json:"a2a,omitempty" jsonschema:"title=A2A"`
}

// A2AConfig configures the A2A endpoint and its agent card.
type A2AConfig struct {
	Enabled     bool   `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled"`
	Name        string `yaml:"name,omitempty" json:"name,omitempty" jsonschema:"title=Agent Name,default=Contract Agent"`
	Description string `yaml:"description,omitempty" json:"description,omitempty" jsonschema:"title=Description"`

	// URL is the public JSON-RPC endpoint. Empty derives it from host and port.
	URL string `yaml:"url,omitempty" json:"url,omitempty" jsonschema:"title=Public URL"`
}

// SetDefaults applies server defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 32 << 20
	}
	c.Auth.SetDefaults()
	if c.A2A.Name == "" {
		c.A2A.Name = "Contract Agent"
	}
	if c.A2A.Description == "" {
		c.A2A.Description = "Answers questions about contracts stored in the SQL warehouse."
	}
}

// Validate checks the port.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// Address returns host:port.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
