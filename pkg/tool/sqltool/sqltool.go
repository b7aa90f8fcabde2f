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

// Package sqltool provides the data-access operations of the contract agent:
// dataset and table metadata, schema lookup and SQL execution against a
// warehouse.Client.
package sqltool

import (
	"github.com/kadirpekel/contractagent/pkg/tool"
	"github.com/kadirpekel/contractagent/pkg/tool/functiontool"
	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

// Toolset name.
const Name = "warehouse"

// Operation names.
const (
	GetDatasetInfo = "get_dataset_info"
	GetTableInfo   = "get_table_info"
	ListDatasetIDs = "list_dataset_ids"
	ListTableIDs   = "list_table_ids"
	ExecuteSQL     = "execute_sql"
	GetTableSchema = "get_table_schema"
)

// Config holds the defaults the operations fall back to.
type Config struct {
	DefaultDatasetID string
	DefaultTableID   string

	// MaxRows caps execute_sql results. Nil means no cap.
	MaxRows *int
}

// infra is declared on every operation and stripped from its descriptor.
var infra = []tool.Param{
	{Name: "client", Type: "warehouse.Client"},
	{Name: "readonly_context", Type: "tool.ReadonlyContext"},
	{Name: "tool_config", Type: "sqltool.Config", HasDefault: true},
}

func params(p ...tool.Param) []tool.Param {
	return append(append([]tool.Param{}, infra...), p...)
}

// New builds the warehouse toolset over client, in registration order
// get_dataset_info, get_table_info, list_dataset_ids, list_table_ids,
// execute_sql, get_table_schema.
func New(client warehouse.Client, cfg Config, opts ...tool.Option) (*tool.Toolset, error) {
	ops := &operations{client: client, cfg: cfg}

	builders := []func() (tool.Tool, error){
		ops.getDatasetInfoTool,
		ops.getTableInfoTool,
		ops.listDatasetIDsTool,
		ops.listTableIDsTool,
		ops.executeSQLTool,
		ops.getTableSchemaTool,
	}

	tools := make([]tool.Tool, 0, len(builders))
	for _, build := range builders {
		t, err := build()
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tool.NewToolset(Name, tools, opts...)
}

// Factory returns a constructor that builds a fresh toolset per call.
func Factory(client warehouse.Client, cfg Config) func(opts ...tool.Option) (*tool.Toolset, error) {
	return func(opts ...tool.Option) (*tool.Toolset, error) {
		return New(client, cfg, opts...)
	}
}

type operations struct {
	client warehouse.Client
	cfg    Config
}

func (o *operations) getDatasetInfoTool() (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        GetDatasetInfo,
		Description: "Gets information about a dataset: project, location and number of tables. Falls back to the default dataset when dataset_id is not set.",
		Params: params(
			tool.Param{Name: "dataset_id", Type: tool.TypeString, HasDefault: true, Description: "The ID of the dataset. Defaults to the configured dataset."},
		),
	}, o.getDatasetInfo)
}

func (o *operations) getTableInfoTool() (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        GetTableInfo,
		Description: "Gets information about a table: row count, location and schema. Falls back to the default dataset and table.",
		Params: params(
			tool.Param{Name: "dataset_id", Type: tool.TypeString, HasDefault: true, Description: "The ID of the dataset containing the table."},
			tool.Param{Name: "table_id", Type: tool.TypeString, HasDefault: true, Description: "The ID of the table."},
		),
	}, o.getTableInfo)
}

func (o *operations) listDatasetIDsTool() (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        ListDatasetIDs,
		Description: "Lists the IDs of all datasets in a project.",
		Params: params(
			tool.Param{Name: "project_id", Type: tool.TypeString, HasDefault: true, Description: "The ID of the project. Defaults to the connected project."},
		),
	}, o.listDatasetIDs)
}

func (o *operations) listTableIDsTool() (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        ListTableIDs,
		Description: "Lists the IDs of all tables in a dataset. Falls back to the default dataset.",
		Params: params(
			tool.Param{Name: "dataset_id", Type: tool.TypeString, HasDefault: true, Description: "The ID of the dataset."},
		),
	}, o.listTableIDs)
}

func (o *operations) executeSQLTool() (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        ExecuteSQL,
		Description: "Executes a SQL query and returns the resulting rows. Unqualified table names are resolved against the default dataset.",
		Params: params(
			tool.Param{Name: "query", Type: tool.TypeString, Description: "The SQL query to execute."},
		),
	}, o.executeSQL)
}

func (o *operations) getTableSchemaTool() (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        GetTableSchema,
		Description: "Gets the schema of a table as a list of name, field_type and mode entries. Falls back to the default dataset and table.",
		Params: params(
			tool.Param{Name: "dataset_id", Type: tool.TypeString, HasDefault: true, Description: "The ID of the dataset containing the table."},
			tool.Param{Name: "table_id", Type: tool.TypeString, HasDefault: true, Description: "The ID of the table."},
		),
	}, o.getTableSchema)
}
