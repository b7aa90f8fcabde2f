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

package extraction

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/kadirpekel/contractagent/pkg/contracts"
)

// dateLayouts are tried in order when normalizing DATE fields.
var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006/01/02",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
}

// Coerce converts each field to its destination type. Fields missing from
// types pass through unchanged. Coerce never fails: values that cannot be
// converted to NUMERIC become nil.
func Coerce(fields map[string]any, types map[string]string) map[string]any {
	out := make(map[string]any, len(fields))
	for name, value := range fields {
		typ, known := types[name]
		if !known {
			out[name] = value
			continue
		}
		out[name] = coerceValue(value, typ)
	}
	return out
}

func coerceValue(v any, typ string) any {
	switch typ {
	case contracts.TypeString:
		return toString(v)
	case contracts.TypeNumeric:
		return toNumeric(v)
	case contracts.TypeJSON:
		return toJSONString(v)
	case contracts.TypeDate:
		return toDate(v)
	default:
		return v
	}
}

func toString(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := toString(item).(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		return toJSONString(val)
	default:
		if s, err := cast.ToStringE(val); err == nil {
			return s
		}
		return fmt.Sprint(val)
	}
}

func toNumeric(v any) any {
	var f float64
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		f = val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		n, err := cast.ToFloat64E(s)
		if err != nil {
			return nil
		}
		f = n
	default:
		n, err := cast.ToFloat64E(val)
		if err != nil {
			return nil
		}
		f = n
	}
	// JSON has no NaN or infinities.
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func toJSONString(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func toDate(v any) any {
	s, ok := v.(string)
	if !ok {
		return toString(v)
	}
	trimmed := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return s
}
