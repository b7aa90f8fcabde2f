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

// Package warehouse is the tabular data store boundary of the contract agent.
//
// A Client runs SQL text and answers schema introspection questions. Rows are
// returned lazily so callers can stop enumeration early:
//
//	for row, err := range client.Query(ctx, "SELECT * FROM contracts") {
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	}
//
// A "dataset" is the SQL namespace that holds tables: a schema on
// PostgreSQL, a database on MySQL and an attached database on SQLite.
package warehouse

import (
	"context"
	"errors"
	"iter"
)

// ErrNotFound is returned when a dataset or table does not exist.
var ErrNotFound = errors.New("not found")

// Row is one result row keyed by column name.
type Row = map[string]any

// Field describes one column of a table.
type Field struct {
	Name string `json:"name"`
	Type string `json:"field_type"`
	Mode string `json:"mode"`
}

// Field modes.
const (
	ModeNullable = "NULLABLE"
	ModeRequired = "REQUIRED"
)

// TableInfo is the metadata of a table.
type TableInfo struct {
	ProjectID string  `json:"project_id"`
	DatasetID string  `json:"dataset_id"`
	TableID   string  `json:"table_id"`
	Location  string  `json:"location,omitempty"`
	NumRows   int64   `json:"num_rows"`
	Schema    []Field `json:"schema"`
}

// DatasetInfo is the metadata of a dataset.
type DatasetInfo struct {
	ProjectID  string `json:"project_id"`
	DatasetID  string `json:"dataset_id"`
	Location   string `json:"location,omitempty"`
	TableCount int    `json:"table_count"`
}

// Client is a connection to the data store.
// Implementations must be safe for concurrent use.
type Client interface {
	// Project returns the project (database) the client is bound to.
	Project() string

	// Location returns the configured location, if any.
	Location() string

	// Dialect returns the SQL dialect spoken by the store.
	Dialect() Dialect

	// Query runs query and yields its rows. Breaking out of the loop stops
	// enumeration and releases the underlying cursor.
	Query(ctx context.Context, query string) iter.Seq2[Row, error]

	// TableSchema returns the ordered columns of datasetID.tableID.
	TableSchema(ctx context.Context, datasetID, tableID string) ([]Field, error)

	// TableInfo returns metadata about datasetID.tableID.
	TableInfo(ctx context.Context, datasetID, tableID string) (*TableInfo, error)

	// DatasetInfo returns metadata about datasetID.
	DatasetInfo(ctx context.Context, datasetID string) (*DatasetInfo, error)

	// ListDatasets returns the dataset ids in projectID. An empty projectID
	// means the client's own project.
	ListDatasets(ctx context.Context, projectID string) ([]string, error)

	// ListTables returns the table ids in datasetID.
	ListTables(ctx context.Context, datasetID string) ([]string, error)

	// Close releases the connection.
	Close() error
}
