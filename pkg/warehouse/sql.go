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

package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"
)

// SQLOptions configures a SQLClient.
type SQLOptions struct {
	// Project names the database the client is bound to. It is reported in
	// metadata and used to validate ListDatasets requests.
	Project string

	// Location is informational metadata.
	Location string
}

// SQLClient is a Client over database/sql.
type SQLClient struct {
	db      *sql.DB
	dialect Dialect
	opts    SQLOptions
}

// NewSQLClient wraps db. The client does not own db unless Close is
// called; callers sharing a pool should close the pool instead.
func NewSQLClient(db *sql.DB, dialect Dialect, opts SQLOptions) *SQLClient {
	return &SQLClient{db: db, dialect: dialect, opts: opts}
}

func (c *SQLClient) Project() string  { return c.opts.Project }
func (c *SQLClient) Location() string { return c.opts.Location }
func (c *SQLClient) Dialect() Dialect { return c.dialect }

// Query runs query and yields rows keyed by column name.
func (c *SQLClient) Query(ctx context.Context, query string) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		start := time.Now()
		rows, err := c.db.QueryContext(ctx, query)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			yield(nil, err)
			return
		}

		count := 0
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				yield(nil, err)
				return
			}

			row := make(Row, len(cols))
			for i, col := range cols {
				row[col] = normalizeValue(values[i])
			}
			count++
			if !yield(row, nil) {
				slog.Debug("Query enumeration stopped early", "rows", count, "duration", time.Since(start))
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
			return
		}
		slog.Debug("Query completed", "rows", count, "duration", time.Since(start))
	}
}

// normalizeValue converts driver values into JSON-friendly ones.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	default:
		return v
	}
}

// TableSchema returns the ordered columns of datasetID.tableID.
func (c *SQLClient) TableSchema(ctx context.Context, datasetID, tableID string) ([]Field, error) {
	if err := checkIdents(datasetID, tableID); err != nil {
		return nil, err
	}

	var (
		query string
		args  []any
	)
	switch c.dialect {
	case DialectSQLite:
		query = `SELECT name, type, "notnull", pk FROM pragma_table_info(?, ?) ORDER BY cid`
		args = []any{tableID, datasetID}
	default:
		query = fmt.Sprintf(`SELECT column_name, data_type, CASE WHEN is_nullable = 'NO' THEN 1 ELSE 0 END, 0
FROM information_schema.columns
WHERE table_schema = %s AND table_name = %s
ORDER BY ordinal_position`, c.dialect.placeholder(1), c.dialect.placeholder(2))
		args = []any{datasetID, tableID}
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		var (
			name, typ     string
			notNull, isPK int
		)
		if err := rows.Scan(&name, &typ, &notNull, &isPK); err != nil {
			return nil, err
		}
		mode := ModeNullable
		if notNull != 0 || isPK != 0 {
			mode = ModeRequired
		}
		fields = append(fields, Field{Name: name, Type: strings.ToUpper(typ), Mode: mode})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("table %s.%s: %w", datasetID, tableID, ErrNotFound)
	}
	return fields, nil
}

// TableInfo returns the table's schema and row count.
func (c *SQLClient) TableInfo(ctx context.Context, datasetID, tableID string) (*TableInfo, error) {
	fields, err := c.TableSchema(ctx, datasetID, tableID)
	if err != nil {
		return nil, err
	}

	var numRows int64
	countQuery := "SELECT COUNT(*) FROM " + c.dialect.Qualify(datasetID, tableID)
	if err := c.db.QueryRowContext(ctx, countQuery).Scan(&numRows); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	return &TableInfo{
		ProjectID: c.opts.Project,
		DatasetID: datasetID,
		TableID:   tableID,
		Location:  c.opts.Location,
		NumRows:   numRows,
		Schema:    fields,
	}, nil
}

// DatasetInfo returns the dataset's table count.
func (c *SQLClient) DatasetInfo(ctx context.Context, datasetID string) (*DatasetInfo, error) {
	datasets, err := c.ListDatasets(ctx, "")
	if err != nil {
		return nil, err
	}
	found := false
	for _, ds := range datasets {
		if ds == datasetID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("dataset %s: %w", datasetID, ErrNotFound)
	}

	tables, err := c.ListTables(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	return &DatasetInfo{
		ProjectID:  c.opts.Project,
		DatasetID:  datasetID,
		Location:   c.opts.Location,
		TableCount: len(tables),
	}, nil
}

// ListDatasets returns the datasets visible through the connection.
func (c *SQLClient) ListDatasets(ctx context.Context, projectID string) ([]string, error) {
	if projectID != "" && c.opts.Project != "" && projectID != c.opts.Project {
		return nil, fmt.Errorf("project %s is not reachable through this connection: %w", projectID, ErrNotFound)
	}

	var query string
	switch c.dialect {
	case DialectSQLite:
		query = `SELECT name FROM pragma_database_list ORDER BY seq`
	case DialectMySQL:
		query = `SELECT schema_name FROM information_schema.schemata
WHERE schema_name NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys')
ORDER BY schema_name`
	default:
		query = `SELECT schema_name FROM information_schema.schemata
WHERE schema_name NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
ORDER BY schema_name`
	}
	return c.listStrings(ctx, query)
}

// ListTables returns the tables and views of datasetID.
func (c *SQLClient) ListTables(ctx context.Context, datasetID string) ([]string, error) {
	if err := checkIdents(datasetID); err != nil {
		return nil, err
	}

	switch c.dialect {
	case DialectSQLite:
		query := fmt.Sprintf(`SELECT name FROM %s.sqlite_master
WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%%'
ORDER BY name`, c.dialect.QuoteIdent(datasetID))
		return c.listStrings(ctx, query)
	default:
		query := fmt.Sprintf(`SELECT table_name FROM information_schema.tables
WHERE table_schema = %s
ORDER BY table_name`, c.dialect.placeholder(1))
		return c.listStrings(ctx, query, datasetID)
	}
}

func (c *SQLClient) listStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (c *SQLClient) Close() error {
	return c.db.Close()
}

func checkIdents(ids ...string) error {
	for _, id := range ids {
		if !ValidIdent(id) {
			return fmt.Errorf("invalid identifier %q", id)
		}
	}
	return nil
}

var _ Client = (*SQLClient)(nil)
