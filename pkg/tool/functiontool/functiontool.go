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

// Package functiontool builds tools from typed Go functions.
//
// Parameters are declared explicitly in Config.Params; the model's argument
// map is decoded into the Args struct with mapstructure using the struct's
// json tags.
//
//	type ListTablesArgs struct {
//	    DatasetID string `json:"dataset_id"`
//	}
//
//	listTables, err := functiontool.New(
//	    functiontool.Config{
//	        Name:        "list_table_ids",
//	        Description: "List table ids in a dataset",
//	        Params: []tool.Param{
//	            {Name: "dataset_id", Type: tool.TypeString, HasDefault: true},
//	        },
//	    },
//	    func(ctx tool.ReadonlyContext, args ListTablesArgs) tool.Result {
//	        ...
//	    },
//	)
package functiontool

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/kadirpekel/contractagent/pkg/tool"
)

// Config defines the configuration for a function tool.
type Config struct {
	// Name is the unique identifier for this tool (required).
	Name string

	// Description explains what the tool does (required).
	// This is shown to the LLM to help it decide when to use the tool.
	Description string

	// Params is the declared parameter list. Infrastructure parameters may
	// be listed; they are stripped from the advertised descriptor.
	Params []tool.Param
}

// Func is the body of a function tool.
type Func[Args any] func(tool.ReadonlyContext, Args) tool.Result

// New creates a Tool from a typed function.
func New[Args any](cfg Config, fn Func[Args]) (tool.Tool, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %s: function is required", cfg.Name)
	}

	return &functionTool[Args]{
		config:     cfg,
		fn:         fn,
		descriptor: tool.NewDescriptor(cfg.Name, cfg.Description, cfg.Params...),
	}, nil
}

type functionTool[Args any] struct {
	config     Config
	fn         Func[Args]
	descriptor tool.Descriptor
}

func (t *functionTool[Args]) Name() string {
	return t.config.Name
}

func (t *functionTool[Args]) Description() string {
	return t.config.Description
}

func (t *functionTool[Args]) Descriptor() tool.Descriptor {
	return t.descriptor
}

// Call checks required arguments, decodes them and runs the function.
func (t *functionTool[Args]) Call(ctx tool.ReadonlyContext, args map[string]any) tool.Result {
	typedArgs, res, ok := t.decode(args)
	if !ok {
		return res
	}
	return t.fn(ctx, typedArgs)
}

func (t *functionTool[Args]) decode(args map[string]any) (Args, tool.Result, bool) {
	var typedArgs Args

	for _, name := range t.descriptor.Required() {
		if isBlank(args[name]) {
			return typedArgs, tool.Failuref("%s is required.", name), false
		}
	}

	if err := decodeArgs(args, &typedArgs); err != nil {
		return typedArgs, tool.Failuref("invalid arguments for %s: %v", t.config.Name, err), false
	}
	return typedArgs, tool.Result{}, true
}

func decodeArgs(args map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target,
		Squash:           true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(args)
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func validateConfig(cfg Config) error {
	if cfg.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("tool description is required")
	}
	seen := make(map[string]bool, len(cfg.Params))
	for _, p := range cfg.Params {
		if p.Name == "" {
			return fmt.Errorf("tool %s: parameter name is required", cfg.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("tool %s: duplicate parameter %q", cfg.Name, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

var _ tool.Tool = (*functionTool[struct{}])(nil)
