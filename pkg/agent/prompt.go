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

package agent

import (
	"fmt"
	"strings"

	"github.com/kadirpekel/contractagent/pkg/contracts"
	"github.com/kadirpekel/contractagent/pkg/tool/sqltool"
	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

const sqlFence = "```sql"

// BuildPrompt renders the single-turn instruction sent to the model.
func BuildPrompt(table, schema, query string, d warehouse.Dialect) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a SQL expert working against a %s database. You have access to a table named `%s`.\n", d, table)
	b.WriteString("Based on the following schema, please generate a SQL query to answer the user's request.\n\n")
	fmt.Fprintf(&b, "Schema for `%s` table:\n%s\n\n", table, schema)

	b.WriteString("When a query requires the status of a contract, you should derive it based on the `start_date` and `end_date` columns using a `CASE` statement. ")
	fmt.Fprintf(&b, "The status can be one of '%s', '%s', or '%s'.\n", contracts.StatusActive, contracts.StatusExpired, contracts.StatusPending)
	fmt.Fprintf(&b, "- A contract is '%s' if the current date is between the `start_date` and `end_date`.\n", contracts.StatusActive)
	fmt.Fprintf(&b, "- A contract is '%s' if the current date is after the `end_date`.\n", contracts.StatusExpired)
	fmt.Fprintf(&b, "- A contract is '%s' if the current date is before the `start_date`.\n\n", contracts.StatusPending)
	b.WriteString("Use the following SQL syntax to determine the status:\n")
	fmt.Fprintf(&b, "%s\n%s\n```\n\n", sqlFence, contracts.StatusCase(d))

	fmt.Fprintf(&b, "User Request: %s\n\n", query)

	fmt.Fprintf(&b, "When asked for upcoming expirations, you should consider contracts expiring in the next %d days: `end_date BETWEEN %s AND %s`.\n",
		contracts.UpcomingExpirationDays, d.Today(), d.DaysFromToday(contracts.UpcomingExpirationDays))
	b.WriteString("When asked for the total penalty amount, you should sum the `penalty_amount` column.\n")
	b.WriteString("When asked for the average contract value, you should use `AVG(price)`.\n")
	fmt.Fprintf(&b, "Answer by calling %s with the query, or reply with the SQL statement alone.\n", sqltool.ExecuteSQL)

	return b.String()
}

// ExtractSQL reports whether text is a SQL answer and returns the
// statement. Any ```sql fence makes text SQL: the statement is the text
// between the first fence and the next ```, and may be empty. Otherwise
// text is SQL when it starts with SELECT, case-insensitively.
func ExtractSQL(text string) (string, bool) {
	text = strings.TrimSpace(text)

	if i := strings.Index(text, sqlFence); i >= 0 {
		rest := text[i+len(sqlFence):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest), true
	}

	if len(text) >= len("SELECT") && strings.EqualFold(text[:len("SELECT")], "SELECT") {
		return text, true
	}
	return "", false
}
