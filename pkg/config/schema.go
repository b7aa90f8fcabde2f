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

package config

import (
	"github.com/invopop/jsonschema"
)

// Schema returns the JSON Schema of the configuration file.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		FieldNameTag:              "yaml",
		AllowAdditionalProperties: false,
		// Inline all definitions (no $ref).
		DoNotReference: true,
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "Contract Agent Configuration"
	schema.Description = "Configuration for the contract query agent"
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.Examples = []any{
		map[string]any{
			"llm": map[string]any{
				"backend": "gemini",
				"model":   "gemini-2.5-flash",
				"api_key": "${GEMINI_API_KEY}",
			},
			"warehouse": map[string]any{
				"database": map[string]any{
					"driver":   "sqlite",
					"database": ":memory:",
					"attach":   map[string]any{"contract_data": "contract_data.db"},
				},
				"max_rows": 100,
			},
		},
	}
	return schema
}
