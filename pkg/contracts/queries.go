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

package contracts

import (
	"fmt"
	"sort"

	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

// UpcomingExpirationDays is the lookahead window for upcoming expirations.
const UpcomingExpirationDays = 90

// KPI names.
const (
	KPIContractCount       = "contract_count"
	KPIAverageValue        = "average_value"
	KPIUpcomingExpirations = "upcoming_expirations"
	KPITotalPenaltyAmounts = "total_penalties"
	KPIAlerts              = "alerts"
	KPIContracts           = "contracts"
)

// Queries builds the dashboard queries for a dialect. Table names are left
// unqualified; execute_sql resolves them against the default dataset.
func Queries(d warehouse.Dialect) map[string]string {
	return map[string]string{
		KPIContractCount: fmt.Sprintf(`SELECT
  %s,
  COUNT(contract_id) AS contract_count
FROM %s
GROUP BY status`, StatusCase(d), DefaultTable),
		KPIAverageValue: fmt.Sprintf("SELECT AVG(price) AS average_value FROM %s", DefaultTable),
		KPIUpcomingExpirations: fmt.Sprintf("SELECT contract_id, end_date FROM %s WHERE end_date BETWEEN %s AND %s",
			DefaultTable, d.Today(), d.DaysFromToday(UpcomingExpirationDays)),
		KPITotalPenaltyAmounts: fmt.Sprintf("SELECT SUM(penalty_amount) AS total_penalties FROM %s", TablePenalties),
		KPIAlerts:              fmt.Sprintf("SELECT * FROM %s", TableAlerts),
		KPIContracts:           fmt.Sprintf("SELECT * FROM %s", DefaultTable),
	}
}

// KPINames returns the query names in a stable order.
func KPINames() []string {
	names := []string{
		KPIContractCount, KPIAverageValue, KPIUpcomingExpirations,
		KPITotalPenaltyAmounts, KPIAlerts, KPIContracts,
	}
	sort.Strings(names)
	return names
}

// ContractDetailsQuery selects one contract by id. Quotes in id are escaped.
func ContractDetailsQuery(contractID string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE contract_id = %s", DefaultTable, warehouse.QuoteString(contractID))
}
