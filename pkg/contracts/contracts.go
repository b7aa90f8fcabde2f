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

// Package contracts describes the contracts dataset: the destination table
// schema, the derived contract status and the dashboard KPI queries.
package contracts

import (
	"fmt"
	"time"

	"github.com/kadirpekel/contractagent/pkg/warehouse"
)

// Default dataset and table names.
const (
	DefaultDataset = "contract_data"
	DefaultTable   = "contracts"

	TableSLAs      = "slas"
	TablePenalties = "penalties"
	TableAlerts    = "alerts"
)

// Destination column types.
const (
	TypeString  = "STRING"
	TypeNumeric = "NUMERIC"
	TypeDate    = "DATE"
	TypeJSON    = "JSON"
)

// Column is a destination table column.
type Column struct {
	Name     string
	Type     string
	Required bool
}

// Schema is the contracts table, in column order.
var Schema = []Column{
	{Name: "contract_id", Type: TypeString, Required: true},
	{Name: "contract_name", Type: TypeString},
	{Name: "contract_type", Type: TypeString},
	{Name: "service_detail", Type: TypeString},
	{Name: "start_date", Type: TypeDate},
	{Name: "end_date", Type: TypeDate},
	{Name: "contract_date", Type: TypeDate},
	{Name: "rut_brand", Type: TypeString},
	{Name: "provider", Type: TypeString},
	{Name: "legal_representatives", Type: TypeString},
	{Name: "contract_manager", Type: TypeString},
	{Name: "financials", Type: TypeJSON},
	{Name: "exit_clause", Type: TypeString},
	{Name: "penalty_clause", Type: TypeString},
	{Name: "general_conditions", Type: TypeString},
	{Name: "company", Type: TypeString},
	{Name: "business_unit", Type: TypeString},
	{Name: "price", Type: TypeNumeric},
	{Name: "ocr_text_ref", Type: TypeString},
}

// nonExtracted columns are filled by the pipeline, not by the model.
var nonExtracted = map[string]bool{"ocr_text_ref": true}

// ExtractedFields returns the columns the model is asked to extract.
func ExtractedFields() []Column {
	out := make([]Column, 0, len(Schema))
	for _, c := range Schema {
		if !nonExtracted[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

// TypeTable maps each destination column to its type.
func TypeTable() map[string]string {
	types := make(map[string]string, len(Schema))
	for _, c := range Schema {
		types[c.Name] = c.Type
	}
	return types
}

// Contract is the extracted document shape. It drives the structured
// response schema sent to the model.
type Contract struct {
	ContractID           string   `json:"contract_id" jsonschema:"description=Unique contract identifier"`
	ContractName         string   `json:"contract_name,omitempty"`
	ContractType         string   `json:"contract_type,omitempty"`
	ServiceDetail        string   `json:"service_detail,omitempty"`
	StartDate            string   `json:"start_date,omitempty" jsonschema:"description=YYYY-MM-DD"`
	EndDate              string   `json:"end_date,omitempty" jsonschema:"description=YYYY-MM-DD"`
	ContractDate         string   `json:"contract_date,omitempty" jsonschema:"description=YYYY-MM-DD"`
	RutBrand             string   `json:"rut_brand,omitempty"`
	Provider             string   `json:"provider,omitempty"`
	LegalRepresentatives string   `json:"legal_representatives,omitempty"`
	ContractManager      string   `json:"contract_manager,omitempty"`
	Financials           string   `json:"financials,omitempty" jsonschema:"description=Financial terms as a JSON string"`
	ExitClause           string   `json:"exit_clause,omitempty"`
	PenaltyClause        string   `json:"penalty_clause,omitempty"`
	GeneralConditions    string   `json:"general_conditions,omitempty"`
	Company              string   `json:"company,omitempty"`
	BusinessUnit         string   `json:"business_unit,omitempty"`
	Price                *float64 `json:"price,omitempty" jsonschema:"description=Total contract price as a number"`
}

// Status is the derived lifecycle state of a contract.
type Status string

const (
	StatusActive  Status = "Active"
	StatusExpired Status = "Expired"
	StatusPending Status = "Pending"
)

// DeriveStatus mirrors StatusCase: Active when start <= today <= end,
// Expired when today > end, Pending otherwise. Only the calendar date of
// each argument is compared.
func DeriveStatus(start, end, today time.Time) Status {
	s, e, t := dateOnly(start), dateOnly(end), dateOnly(today)
	switch {
	case !t.Before(s) && !t.After(e):
		return StatusActive
	case t.After(e):
		return StatusExpired
	default:
		return StatusPending
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StatusCase is the SQL CASE expression deriving the status column.
func StatusCase(d warehouse.Dialect) string {
	today := d.Today()
	return fmt.Sprintf(`CASE
  WHEN %[1]s BETWEEN start_date AND end_date THEN '%[2]s'
  WHEN %[1]s > end_date THEN '%[3]s'
  ELSE '%[4]s'
END AS status`, today, StatusActive, StatusExpired, StatusPending)
}
