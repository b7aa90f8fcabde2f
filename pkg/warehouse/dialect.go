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
	"fmt"
	"regexp"
	"strings"
)

// Dialect identifies a SQL dialect.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect normalizes driver and dialect names.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q (valid: postgres, mysql, sqlite)", name)
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether s is a plain SQL identifier.
func ValidIdent(s string) bool {
	return identPattern.MatchString(s)
}

// QuoteIdent quotes a single identifier.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Qualify returns the quoted dataset.table reference.
func (d Dialect) Qualify(datasetID, tableID string) string {
	if datasetID == "" {
		return d.QuoteIdent(tableID)
	}
	return d.QuoteIdent(datasetID) + "." + d.QuoteIdent(tableID)
}

// Today is the SQL expression for the current date.
func (d Dialect) Today() string {
	switch d {
	case DialectMySQL:
		return "CURDATE()"
	case DialectSQLite:
		return "DATE('now')"
	default:
		return "CURRENT_DATE"
	}
}

// DaysFromToday is the SQL expression for the date n days from today.
func (d Dialect) DaysFromToday(n int) string {
	switch d {
	case DialectMySQL:
		return fmt.Sprintf("DATE_ADD(CURDATE(), INTERVAL %d DAY)", n)
	case DialectSQLite:
		return fmt.Sprintf("DATE('now', '%+d days')", n)
	default:
		return fmt.Sprintf("CURRENT_DATE + INTERVAL '%d days'", n)
	}
}

// placeholder returns the n-th (1-based) bind placeholder.
func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// QuoteString renders s as a single-quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
