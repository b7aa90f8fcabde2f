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

package sqltool

import (
	"log/slog"

	"github.com/kadirpekel/contractagent/pkg/tool"
	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

type datasetArgs struct {
	DatasetID string `json:"dataset_id"`
}

type tableArgs struct {
	DatasetID string `json:"dataset_id"`
	TableID   string `json:"table_id"`
}

type projectArgs struct {
	ProjectID string `json:"project_id"`
}

type queryArgs struct {
	Query string `json:"query"`
}

const (
	errDatasetRequired = "Dataset ID must be provided or set in config."
	errTableRequired   = "Dataset ID and Table ID must be provided or set in config."
)

func (o *operations) dataset(id string) string {
	if id == "" {
		return o.cfg.DefaultDatasetID
	}
	return id
}

func (o *operations) table(id string) string {
	if id == "" {
		return o.cfg.DefaultTableID
	}
	return id
}

func (o *operations) getDatasetInfo(ctx tool.ReadonlyContext, args datasetArgs) tool.Result {
	datasetID := o.dataset(args.DatasetID)
	if datasetID == "" {
		return tool.Failure(errDatasetRequired)
	}

	info, err := o.client.DatasetInfo(ctx, datasetID)
	if err != nil {
		return tool.Failuref("Error getting dataset info: %v", err)
	}
	return tool.Success(map[string]any{
		"dataset_id":  info.DatasetID,
		"project_id":  info.ProjectID,
		"location":    info.Location,
		"table_count": info.TableCount,
	})
}

func (o *operations) getTableInfo(ctx tool.ReadonlyContext, args tableArgs) tool.Result {
	datasetID, tableID := o.dataset(args.DatasetID), o.table(args.TableID)
	if datasetID == "" || tableID == "" {
		return tool.Failure(errTableRequired)
	}

	info, err := o.client.TableInfo(ctx, datasetID, tableID)
	if err != nil {
		return tool.Failuref("Error getting table info: %v", err)
	}
	return tool.Success(map[string]any{
		"table_id":   info.TableID,
		"dataset_id": info.DatasetID,
		"project_id": info.ProjectID,
		"location":   info.Location,
		"num_rows":   info.NumRows,
		"schema":     fieldMaps(info.Schema),
	})
}

func (o *operations) listDatasetIDs(ctx tool.ReadonlyContext, args projectArgs) tool.Result {
	ids, err := o.client.ListDatasets(ctx, args.ProjectID)
	if err != nil {
		return tool.Failuref("Error listing dataset IDs: %v", err)
	}
	return tool.Success(map[string]any{"dataset_ids": ids})
}

func (o *operations) listTableIDs(ctx tool.ReadonlyContext, args datasetArgs) tool.Result {
	datasetID := o.dataset(args.DatasetID)
	if datasetID == "" {
		return tool.Failure(errDatasetRequired)
	}

	ids, err := o.client.ListTables(ctx, datasetID)
	if err != nil {
		return tool.Failuref("Error listing table IDs: %v", err)
	}
	return tool.Success(map[string]any{"table_ids": ids})
}

func (o *operations) getTableSchema(ctx tool.ReadonlyContext, args tableArgs) tool.Result {
	datasetID, tableID := o.dataset(args.DatasetID), o.table(args.TableID)
	if datasetID == "" || tableID == "" {
		return tool.Failure(errTableRequired)
	}

	fields, err := o.client.TableSchema(ctx, datasetID, tableID)
	if err != nil {
		return tool.Failuref("Error getting table schema: %v", err)
	}
	return tool.Success(map[string]any{"schema": fieldMaps(fields)})
}

func (o *operations) executeSQL(ctx tool.ReadonlyContext, args queryArgs) tool.Result {
	query := warehouse.QualifyTables(args.Query, o.cfg.DefaultDatasetID, o.client.Dialect())
	if query != args.Query {
		slog.Debug("Qualified table references", "original", args.Query, "query", query)
	}

	limit := -1
	if o.cfg.MaxRows != nil {
		limit = max(*o.cfg.MaxRows, 0)
	}

	results := make([]map[string]any, 0)
	for row, err := range o.client.Query(ctx, query) {
		if err != nil {
			return tool.Failuref("Error executing SQL query: %v", err)
		}
		if limit == 0 {
			break
		}
		results = append(results, row)
		if limit > 0 && len(results) >= limit {
			break
		}
	}

	slog.Debug("SQL executed", "invocation", ctx.InvocationID(), "rows", len(results))
	return tool.Success(map[string]any{"results": results})
}

func fieldMaps(fields []warehouse.Field) []map[string]any {
	out := make([]map[string]any, len(fields))
	for i, f := range fields {
		out[i] = map[string]any{
			"name":       f.Name,
			"field_type": f.Type,
			"mode":       f.Mode,
		}
	}
	return out
}
