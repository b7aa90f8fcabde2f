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

package warehouse_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

func newMock(t *testing.T, dialect warehouse.Dialect) (*warehouse.SQLClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return warehouse.NewSQLClient(db, dialect, warehouse.SQLOptions{Project: "analytics", Location: "EU"}), mock
}

func TestSQLClient_Query(t *testing.T) {
	client, mock := newMock(t, warehouse.DialectPostgres)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT contract_id, price FROM contracts")).
		WillReturnRows(sqlmock.NewRows([]string{"contract_id", "price"}).
			AddRow([]byte("C1"), 100.5).
			AddRow([]byte("C2"), nil))

	var rows []warehouse.Row
	for row, err := range client.Query(context.Background(), "SELECT contract_id, price FROM contracts") {
		require.NoError(t, err)
		rows = append(rows, row)
	}

	require.Len(t, rows, 2)
	assert.Equal(t, "C1", rows[0]["contract_id"])
	assert.Equal(t, 100.5, rows[0]["price"])
	assert.Nil(t, rows[1]["price"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLClient_QueryStopsEarly(t *testing.T) {
	client, mock := newMock(t, warehouse.DialectPostgres)

	rs := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 10; i++ {
		rs.AddRow(i)
	}
	mock.ExpectQuery("SELECT n").WillReturnRows(rs).RowsWillBeClosed()

	count := 0
	for _, err := range client.Query(context.Background(), "SELECT n FROM numbers") {
		require.NoError(t, err)
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLClient_QueryError(t *testing.T) {
	client, mock := newMock(t, warehouse.DialectPostgres)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("syntax error at or near \"SELEC\""))

	var gotErr error
	for _, err := range client.Query(context.Background(), "SELECT broken") {
		gotErr = err
	}
	assert.EqualError(t, gotErr, `syntax error at or near "SELEC"`)
}

func TestSQLClient_TableSchema(t *testing.T) {
	client, mock := newMock(t, warehouse.DialectPostgres)

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("contract_data", "contracts").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "not_null", "pk"}).
			AddRow("contract_id", "text", 1, 0).
			AddRow("price", "numeric", 0, 0))

	fields, err := client.TableSchema(context.Background(), "contract_data", "contracts")
	require.NoError(t, err)
	assert.Equal(t, []warehouse.Field{
		{Name: "contract_id", Type: "TEXT", Mode: warehouse.ModeRequired},
		{Name: "price", Type: "NUMERIC", Mode: warehouse.ModeNullable},
	}, fields)
}

func TestSQLClient_TableSchemaNotFound(t *testing.T) {
	client, mock := newMock(t, warehouse.DialectSQLite)

	mock.ExpectQuery("pragma_table_info").
		WithArgs("missing", "main").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "notnull", "pk"}))

	_, err := client.TableSchema(context.Background(), "main", "missing")
	assert.ErrorIs(t, err, warehouse.ErrNotFound)
}

func TestSQLClient_TableSchemaRejectsBadIdent(t *testing.T) {
	client, _ := newMock(t, warehouse.DialectPostgres)
	_, err := client.TableSchema(context.Background(), "ds; DROP TABLE x", "contracts")
	assert.Error(t, err)
}

func TestSQLClient_TableInfo(t *testing.T) {
	client, mock := newMock(t, warehouse.DialectMySQL)

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("contract_data", "contracts").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "not_null", "pk"}).
			AddRow("contract_id", "varchar", 1, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `contract_data`.`contracts`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	info, err := client.TableInfo(context.Background(), "contract_data", "contracts")
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.NumRows)
	assert.Equal(t, "analytics", info.ProjectID)
	assert.Equal(t, "EU", info.Location)
	assert.Len(t, info.Schema, 1)
}

func TestSQLClient_ListDatasetsAndTables(t *testing.T) {
	client, mock := newMock(t, warehouse.DialectPostgres)

	mock.ExpectQuery("FROM information_schema.schemata").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("contract_data").AddRow("public"))
	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("contract_data").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("alerts").AddRow("contracts"))

	datasets, err := client.ListDatasets(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"contract_data", "public"}, datasets)

	tables, err := client.ListTables(context.Background(), "contract_data")
	require.NoError(t, err)
	assert.Equal(t, []string{"alerts", "contracts"}, tables)

	_, err = client.ListDatasets(context.Background(), "other-project")
	assert.ErrorIs(t, err, warehouse.ErrNotFound)
}

func TestSQLClient_DatasetInfo(t *testing.T) {
	client, mock := newMock(t, warehouse.DialectSQLite)

	mock.ExpectQuery("pragma_database_list").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("main"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "main".sqlite_master`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("contracts").AddRow("slas"))

	info, err := client.DatasetInfo(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, 2, info.TableCount)

	mock.ExpectQuery("pragma_database_list").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("main"))
	_, err = client.DatasetInfo(context.Background(), "nope")
	assert.ErrorIs(t, err, warehouse.ErrNotFound)
}
