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

package tool

import "strings"

// ParamType is the declared type tag of an operation parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeFloat   ParamType = "float"
	TypeBoolean ParamType = "boolean"
	TypeList    ParamType = "list"
	TypeDict    ParamType = "dict"
)

// InfraParams are supplied by the toolset and the operation wrapper, never by
// the model. They are stripped from every descriptor.
var InfraParams = []string{"client", "readonly_context", "tool_config"}

func isInfraParam(name string) bool {
	for _, p := range InfraParams {
		if p == name {
			return true
		}
	}
	return false
}

// SchemaType maps a declared type tag to its JSON Schema type.
// Unknown tags map to "string".
func SchemaType(t ParamType) string {
	switch ParamType(strings.ToLower(string(t))) {
	case TypeString, "str":
		return "string"
	case TypeInteger, "int":
		return "integer"
	case TypeFloat, "number":
		return "number"
	case TypeBoolean, "bool":
		return "boolean"
	case TypeList, "array":
		return "array"
	case TypeDict, "mapping", "object", "map":
		return "object"
	default:
		return "string"
	}
}

// Param is one declared parameter of an operation.
type Param struct {
	Name        string
	Type        ParamType
	HasDefault  bool
	Description string
}

// Descriptor is the capability an operation advertises to the model.
// It is built once at registration and never modified.
type Descriptor struct {
	name        string
	description string
	params      []Param
}

// NewDescriptor builds a descriptor from a declared parameter list,
// dropping infrastructure parameters.
func NewDescriptor(name, description string, params ...Param) Descriptor {
	exposed := make([]Param, 0, len(params))
	for _, p := range params {
		if isInfraParam(p.Name) {
			continue
		}
		exposed = append(exposed, p)
	}
	return Descriptor{name: name, description: description, params: exposed}
}

func (d Descriptor) Name() string        { return d.name }
func (d Descriptor) Description() string { return d.description }

// Params returns the exposed parameters in declaration order.
func (d Descriptor) Params() []Param {
	out := make([]Param, len(d.params))
	copy(out, d.params)
	return out
}

// Required returns the exposed parameters without a default.
func (d Descriptor) Required() []string {
	required := []string{}
	for _, p := range d.params {
		if !p.HasDefault {
			required = append(required, p.Name)
		}
	}
	return required
}

// Schema returns the JSON Schema object describing the parameters.
func (d Descriptor) Schema() map[string]any {
	props := make(map[string]any, len(d.params))
	for _, p := range d.params {
		prop := map[string]any{"type": SchemaType(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   d.Required(),
	}
}

// Definition converts the descriptor into a model function declaration.
func (d Descriptor) Definition() Definition {
	return Definition{
		Name:        d.name,
		Description: d.description,
		Parameters:  d.Schema(),
	}
}
