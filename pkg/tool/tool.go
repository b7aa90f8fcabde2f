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

// Package tool defines the operations the contract agent advertises to the
// model and the envelope every operation returns.
//
// # Building Blocks
//
//	Result      - success/error envelope returned by every operation
//	Descriptor  - statically declared name, description and parameters
//	Tool        - a callable operation bound to its infrastructure
//	Toolset     - an ordered, filterable registry of tools
//
// Tools never return Go errors to their callers. Whatever happens inside an
// operation, including a panic, ends up in a Result:
//
//	res := tool.Execute(rc, t, map[string]any{"query": "SELECT 1"})
//	if !res.IsSuccessful() {
//	    slog.Warn("tool failed", "error", res.ErrorMessage())
//	}
package tool

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Tool is an operation the model can call by name.
type Tool interface {
	// Name returns the identifier the model is told to call.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Descriptor returns the capability descriptor advertised to the model.
	Descriptor() Descriptor

	// Call executes the tool. Infrastructure (clients, configuration) is
	// bound at construction time; args only carries model-supplied values.
	Call(ctx ReadonlyContext, args map[string]any) Result
}

// Definition is the function declaration handed to a model provider.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToDefinition converts a tool to a Definition.
func ToDefinition(t Tool) Definition {
	return t.Descriptor().Definition()
}

// ToolCall represents the model's request to invoke a tool.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// PanicError is returned by Invoke when a tool panics.
type PanicError struct {
	Tool  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v", e.Value)
}

// Invoke runs t with args. A panic inside the tool is recovered and
// returned as a *PanicError; everything else is reported in the Result.
func Invoke(ctx ReadonlyContext, t Tool, args map[string]any) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool panicked", "tool", t.Name(), "panic", r, "stack", string(debug.Stack()))
			err = &PanicError{Tool: t.Name(), Value: r}
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	return t.Call(ctx, args), nil
}

// Execute runs t with args and converts a panic into a failure Result.
// This is the operation-execution boundary: nothing raised by a tool
// propagates past it.
func Execute(ctx ReadonlyContext, t Tool, args map[string]any) Result {
	res, err := Invoke(ctx, t, args)
	if err != nil {
		return Failuref("Error executing tool '%s': %v", t.Name(), err)
	}
	return res
}
