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
	"regexp"
	"strings"
)

var (
	// FROM/JOIN, whitespace, then an optionally backticked identifier.
	tableRefPattern = regexp.MustCompile("(?i)\\b(FROM|JOIN)(\\s+)(`?)([A-Za-z_][A-Za-z0-9_]*)(`?)")

	// FROM inside EXTRACT(YEAR FROM d), TRIM(' ' FROM s) and friends is not
	// a table reference.
	functionFromPrefix = regexp.MustCompile(`(?i)\b(EXTRACT|SUBSTRING|SUBSTR|TRIM|OVERLAY|POSITION)\s*\([^()]*$`)

	// Names introduced by WITH <name> AS ( ... ), <name> AS ( ... ).
	cteNamePattern = regexp.MustCompile(`(?i)(?:\bWITH(?:\s+RECURSIVE)?|,)\s*([A-Za-z_][A-Za-z0-9_]*)\s+AS\s*\(`)
)

// QualifyTables prefixes unqualified table references that follow FROM or
// JOIN with datasetID, producing the dialect's quoted dataset.table form.
//
// A reference is left alone when it is followed by "." (already qualified)
// or "(" (table function), when the FROM belongs to a function call such as
// EXTRACT(YEAR FROM col), or when it names a CTE declared in the same query. The rewritten form starts with a quote
// character followed by "." after the dataset, so applying QualifyTables to
// its own output changes nothing.
//
// The rewrite is textual. String literals and comments are not skipped.
// An empty datasetID returns query unchanged.
func QualifyTables(query, datasetID string, dialect Dialect) string {
	if datasetID == "" {
		return query
	}

	ctes := make(map[string]bool)
	for _, m := range cteNamePattern.FindAllStringSubmatch(query, -1) {
		ctes[strings.ToLower(m[1])] = true
	}

	matches := tableRefPattern.FindAllStringSubmatchIndex(query, -1)
	if len(matches) == 0 {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + len(matches)*(len(datasetID)+6))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		ident := query[m[8]:m[9]]

		if skipTableRef(query, start, end, ident, ctes) {
			continue
		}

		b.WriteString(query[last:start])
		b.WriteString(query[m[2]:m[3]]) // keyword as written
		b.WriteString(query[m[4]:m[5]]) // whitespace as written
		b.WriteString(dialect.Qualify(datasetID, ident))
		last = end
	}
	b.WriteString(query[last:])
	return b.String()
}

func skipTableRef(query string, start, end int, ident string, ctes map[string]bool) bool {
	if ctes[strings.ToLower(ident)] {
		return true
	}
	rest := strings.TrimLeft(query[end:], " \t\r\n")
	if rest != "" {
		switch rest[0] {
		case '.', '(':
			return true
		}
	}
	return functionFromPrefix.MatchString(query[:start])
}
