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

// Package export writes query results to spreadsheets.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet the rows are written to.
const SheetName = "Results"

// Rows returns the rows of an execute_sql payload ({"results": [...]}).
// Anything else yields nil.
func Rows(payload map[string]any) []map[string]any {
	switch results := payload["results"].(type) {
	case []map[string]any:
		return results
	case []any:
		rows := make([]map[string]any, 0, len(results))
		for _, r := range results {
			if m, err := cast.ToStringMapE(r); err == nil {
				rows = append(rows, m)
			}
		}
		return rows
	default:
		return nil
	}
}

// Columns returns the sorted union of the row keys.
func Columns(rows []map[string]any) []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// Workbook builds a workbook with a header row followed by one row per
// result. Missing values are left blank. The caller closes the file.
func Workbook(rows []map[string]any) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	cols := Columns(rows)
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		values := make([]any, len(cols))
		for j, c := range cols {
			values[j] = cellValue(row[c])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if len(cols) > 0 {
		if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to freeze header: %w", err)
		}
	}
	return f, nil
}

// cellValue maps a row value to something excelize can store.
func cellValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string, bool, int, int32, int64, float32, float64, time.Time:
		return val
	case []byte:
		return string(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// WriteXLSX writes rows as an XLSX workbook to w.
func WriteXLSX(w io.Writer, rows []map[string]any) error {
	f, err := Workbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes rows as an XLSX workbook at path.
func SaveXLSX(path string, rows []map[string]any) error {
	f, err := Workbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
