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

package functiontool_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kadirpekel/contractagent/pkg/tool"
	"github.com/kadirpekel/contractagent/pkg/tool/functiontool"
)

type greetArgs struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func greet(ctx tool.ReadonlyContext, args greetArgs) tool.Result {
	return tool.Success(map[string]any{
		"greeting": fmt.Sprintf("Hello, %s! Age: %d", args.Name, args.Age),
	})
}

var greetConfig = functiontool.Config{
	Name:        "greet",
	Description: "Greet a user",
	Params: []tool.Param{
		{Name: "client", Type: "Client"},
		{Name: "name", Type: tool.TypeString, Description: "User name"},
		{Name: "age", Type: tool.TypeInteger, HasDefault: true},
		{Name: "tool_config", Type: "Config"},
	},
}

func TestNew_Descriptor(t *testing.T) {
	greetTool, err := functiontool.New(greetConfig, greet)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if greetTool.Name() != "greet" {
		t.Errorf("Name() = %q, want %q", greetTool.Name(), "greet")
	}

	params := greetTool.Descriptor().Params()
	if len(params) != 2 {
		t.Fatalf("expected 2 exposed params, got %d", len(params))
	}
	if params[0].Name != "name" || params[1].Name != "age" {
		t.Errorf("unexpected param order: %v", params)
	}

	required := greetTool.Descriptor().Required()
	if len(required) != 1 || required[0] != "name" {
		t.Errorf("Required() = %v, want [name]", required)
	}
}

func TestCall_ValidArgs(t *testing.T) {
	greetTool, err := functiontool.New(greetConfig, greet)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := greetTool.Call(tool.Background(), map[string]any{"name": "Alice", "age": 30})
	if !res.IsSuccessful() {
		t.Fatalf("Call() failed: %s", res.ErrorMessage())
	}

	want := "Hello, Alice! Age: 30"
	if got := res.Payload()["greeting"]; got != want {
		t.Errorf("greeting = %v, want %q", got, want)
	}
}

func TestCall_TypeConversion(t *testing.T) {
	greetTool, err := functiontool.New(greetConfig, greet)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// JSON numbers arrive as float64 and strings are weakly decoded.
	for _, age := range []any{float64(42), "42"} {
		res := greetTool.Call(tool.Background(), map[string]any{"name": "Bob", "age": age})
		if !res.IsSuccessful() {
			t.Fatalf("Call(age=%v) failed: %s", age, res.ErrorMessage())
		}
		if got := res.Payload()["greeting"]; got != "Hello, Bob! Age: 42" {
			t.Errorf("Call(age=%v) greeting = %v", age, got)
		}
	}
}

func TestCall_MissingRequired(t *testing.T) {
	greetTool, err := functiontool.New(greetConfig, greet)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, args := range []map[string]any{{}, {"name": ""}, {"name": nil}} {
		res := greetTool.Call(tool.Background(), args)
		if res.IsSuccessful() {
			t.Fatalf("expected failure for %v", args)
		}
		if res.ErrorMessage() != "name is required." {
			t.Errorf("ErrorMessage() = %q", res.ErrorMessage())
		}
	}
}

func TestCall_InvalidArgs(t *testing.T) {
	greetTool, err := functiontool.New(greetConfig, greet)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := greetTool.Call(tool.Background(), map[string]any{"name": "Eve", "age": []int{1}})
	if res.IsSuccessful() {
		t.Fatal("expected failure for non-integer age")
	}
	if !strings.Contains(res.ErrorMessage(), "invalid arguments for greet") {
		t.Errorf("unexpected error: %s", res.ErrorMessage())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  functiontool.Config
	}{
		{"missing name", functiontool.Config{Description: "d"}},
		{"missing description", functiontool.Config{Name: "n"}},
		{"duplicate param", functiontool.Config{Name: "n", Description: "d", Params: []tool.Param{{Name: "a"}, {Name: "a"}}}},
		{"empty param name", functiontool.Config{Name: "n", Description: "d", Params: []tool.Param{{}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := functiontool.New(tt.cfg, greet); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCall_PanicIsRecoveredByExecute(t *testing.T) {
	boom, err := functiontool.New(functiontool.Config{Name: "boom", Description: "panics"},
		func(ctx tool.ReadonlyContext, args struct{}) tool.Result {
			panic("kaboom")
		})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := tool.Execute(tool.Background(), boom, nil)
	if res.IsSuccessful() {
		t.Fatal("expected failure")
	}
	if res.ErrorMessage() != "Error executing tool 'boom': kaboom" {
		t.Errorf("ErrorMessage() = %q", res.ErrorMessage())
	}
}
