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

package tool_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/contractagent/pkg/tool"
)

func TestResult_Success(t *testing.T) {
	res := tool.Success(map[string]any{"n": 1})
	assert.True(t, res.IsSuccessful())
	assert.Equal(t, 1, res.Payload()["n"])
	assert.Empty(t, res.ErrorMessage())

	empty := tool.Success(nil)
	assert.True(t, empty.IsSuccessful())
	assert.NotNil(t, empty.Payload())
}

func TestResult_Failure(t *testing.T) {
	res := tool.Failure("boom")
	assert.False(t, res.IsSuccessful())
	assert.Nil(t, res.Payload())
	assert.Equal(t, "boom", res.ErrorMessage())

	assert.Equal(t, "unknown error", tool.Failure("").ErrorMessage())
	assert.Equal(t, "Tool 'x' not found.", tool.Failuref("Tool '%s' not found.", "x").ErrorMessage())
}

func TestResult_JSON(t *testing.T) {
	data, err := json.Marshal(tool.Success(map[string]any{"results": []any{}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":{"results":[]}}`, string(data))

	data, err = json.Marshal(tool.Success(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":{}}`, string(data))

	data, err = json.Marshal(tool.Failure("nope"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"nope"}`, string(data))

	var back tool.Result
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "nope", back.ErrorMessage())
}

func TestResult_Exclusivity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	exclusive := func(r tool.Result) bool {
		hasPayload := r.Payload() != nil
		hasError := r.ErrorMessage() != ""
		return hasPayload != hasError && r.IsSuccessful() == hasPayload
	}

	properties.Property("failure never carries a payload", prop.ForAll(
		func(msg string) bool {
			return exclusive(tool.Failure(msg))
		},
		gen.AnyString(),
	))

	properties.Property("success never carries an error", prop.ForAll(
		func(key string, n int) bool {
			if n%3 == 0 {
				return exclusive(tool.Success(nil))
			}
			return exclusive(tool.Success(map[string]any{key: n}))
		},
		gen.AlphaString(),
		gen.Int(),
	))

	properties.TestingRun(t)
}

func TestDescriptor_ExcludesInfraParams(t *testing.T) {
	d := tool.NewDescriptor("get_table_schema", "Get schema",
		tool.Param{Name: "client", Type: "Client"},
		tool.Param{Name: "dataset_id", Type: tool.TypeString, HasDefault: true},
		tool.Param{Name: "readonly_context", Type: "ReadonlyContext"},
		tool.Param{Name: "table_id", Type: tool.TypeString, HasDefault: true},
		tool.Param{Name: "tool_config", Type: "Config"},
	)

	def := d.Definition()
	assert.Equal(t, "get_table_schema", def.Name)
	props := def.Parameters["properties"].(map[string]any)
	assert.Len(t, props, 2)
	for _, infra := range tool.InfraParams {
		assert.NotContains(t, props, infra)
	}
	assert.Empty(t, d.Required())
}

func TestDescriptor_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	names := []string{"client", "readonly_context", "tool_config", "query", "dataset_id", "table_id", "limit", "flag"}

	properties.Property("infra params never exposed and required iff no default", prop.ForAll(
		func(picked []int, defaults []bool) bool {
			var params []tool.Param
			seen := map[string]bool{}
			for i, idx := range picked {
				name := names[idx]
				if seen[name] {
					continue
				}
				seen[name] = true
				params = append(params, tool.Param{Name: name, HasDefault: i < len(defaults) && defaults[i]})
			}
			d := tool.NewDescriptor("op", "", params...)

			required := map[string]bool{}
			for _, r := range d.Required() {
				required[r] = true
			}
			for _, p := range d.Params() {
				for _, infra := range tool.InfraParams {
					if p.Name == infra {
						return false
					}
				}
				if required[p.Name] == p.HasDefault {
					return false
				}
			}
			return len(required) <= len(d.Params())
		},
		gen.SliceOf(gen.IntRange(0, len(names)-1)),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestSchemaType(t *testing.T) {
	tests := map[tool.ParamType]string{
		tool.TypeString:  "string",
		tool.TypeInteger: "integer",
		tool.TypeFloat:   "number",
		tool.TypeBoolean: "boolean",
		tool.TypeList:    "array",
		tool.TypeDict:    "object",
		"mapping":        "object",
		"datetime":       "string",
		"":               "string",
	}
	for in, want := range tests {
		assert.Equal(t, want, tool.SchemaType(in), "type %q", in)
	}
}

type stubTool struct {
	name   string
	closed int
	err    error
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return s.name + " tool" }
func (s *stubTool) Descriptor() tool.Descriptor {
	return tool.NewDescriptor(s.name, s.Description(), tool.Param{Name: "query", Type: tool.TypeString})
}
func (s *stubTool) Call(ctx tool.ReadonlyContext, args map[string]any) tool.Result {
	return tool.Success(map[string]any{"tool": s.name, "args": args})
}
func (s *stubTool) Close() error {
	s.closed++
	return s.err
}

func stubs(names ...string) []tool.Tool {
	out := make([]tool.Tool, len(names))
	for i, n := range names {
		out[i] = &stubTool{name: n}
	}
	return out
}

func toolNames(tools []tool.Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}

func TestToolset_Selection(t *testing.T) {
	all := []string{"get_dataset_info", "get_table_info", "list_dataset_ids", "list_table_ids", "execute_sql", "get_table_schema"}
	ctx := tool.Background()

	t.Run("no filter keeps registration order", func(t *testing.T) {
		ts, err := tool.NewToolset("bq", stubs(all...))
		require.NoError(t, err)
		tools, err := ts.Tools(ctx)
		require.NoError(t, err)
		assert.Equal(t, all, toolNames(tools))
	})

	t.Run("allow list", func(t *testing.T) {
		ts, err := tool.NewToolset("bq", stubs(all...), tool.WithFilter(tool.StringPredicate([]string{"execute_sql", "get_dataset_info"})))
		require.NoError(t, err)
		tools, err := ts.Tools(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"get_dataset_info", "execute_sql"}, toolNames(tools))
	})

	t.Run("predicate", func(t *testing.T) {
		ts, err := tool.NewToolset("bq", stubs(all...), tool.WithFilter(tool.Not(tool.StringPredicate([]string{"execute_sql"}))))
		require.NoError(t, err)
		tools, err := ts.Tools(ctx)
		require.NoError(t, err)
		assert.NotContains(t, toolNames(tools), "execute_sql")
		assert.Len(t, tools, len(all)-1)
	})

	t.Run("single tool name", func(t *testing.T) {
		ts, err := tool.NewToolset("bq", stubs(all...), tool.WithToolName("get_table_schema"))
		require.NoError(t, err)
		tools, err := ts.Tools(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"get_table_schema"}, toolNames(tools))

		_, ok := ts.Lookup(ctx, "execute_sql")
		assert.False(t, ok)
	})

	t.Run("single tool name missing", func(t *testing.T) {
		ts, err := tool.NewToolset("bq", stubs(all...), tool.WithToolName("nope"))
		require.NoError(t, err)
		_, err = ts.Tools(ctx)
		assert.ErrorIs(t, err, tool.ErrToolNotFound)
	})
}

func TestSelection(t *testing.T) {
	all := []string{"get_dataset_info", "get_table_info", "list_dataset_ids", "list_table_ids", "execute_sql", "get_table_schema"}
	ctx := tool.Background()

	tests := []struct {
		name  string
		allow []string
		deny  []string
		want  []string
	}{
		{"everything", nil, nil, all},
		{"allow only", []string{"execute_sql", "get_table_schema"}, nil, []string{"execute_sql", "get_table_schema"}},
		{"deny only", nil, []string{"execute_sql"}, []string{"get_dataset_info", "get_table_info", "list_dataset_ids", "list_table_ids", "get_table_schema"}},
		{"deny wins over allow", []string{"execute_sql", "list_table_ids"}, []string{"execute_sql"}, []string{"list_table_ids"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := tool.NewToolset("bq", stubs(all...), tool.WithFilter(tool.Selection(tt.allow, tt.deny)))
			require.NoError(t, err)
			tools, err := ts.Tools(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, toolNames(tools))
		})
	}

	t.Run("single tool name ignores the filter", func(t *testing.T) {
		ts, err := tool.NewToolset("bq", stubs(all...),
			tool.WithFilter(tool.Selection(nil, []string{"get_table_schema"})),
			tool.WithToolName("get_table_schema"))
		require.NoError(t, err)
		tools, err := ts.Tools(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"get_table_schema"}, toolNames(tools))
	})
}

func TestToolset_Lookup(t *testing.T) {
	ts, err := tool.NewToolset("bq", stubs("execute_sql"))
	require.NoError(t, err)

	found, ok := ts.Lookup(tool.Background(), "execute_sql")
	require.True(t, ok)
	assert.Equal(t, "execute_sql", found.Name())

	_, ok = ts.Lookup(tool.Background(), "EXECUTE_SQL")
	assert.False(t, ok)
}

func TestToolset_Duplicate(t *testing.T) {
	_, err := tool.NewToolset("bq", stubs("a", "a"))
	assert.ErrorIs(t, err, tool.ErrDuplicateTool)
}

func TestToolset_Definitions(t *testing.T) {
	ts, err := tool.NewToolset("bq", stubs("a", "b"))
	require.NoError(t, err)
	defs, err := ts.Definitions(tool.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, []string{"query"}, defs[0].Parameters["required"])
}

func TestToolset_CloseIdempotent(t *testing.T) {
	a := &stubTool{name: "a"}
	b := &stubTool{name: "b", err: errors.New("close failed")}
	ts, err := tool.NewToolset("bq", []tool.Tool{a, b})
	require.NoError(t, err)

	err = ts.Close()
	assert.Error(t, err)
	assert.Equal(t, err, ts.Close())
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)

	empty, err := tool.NewToolset("empty", nil)
	require.NoError(t, err)
	assert.NoError(t, empty.Close())
	assert.NoError(t, empty.Close())
}

type panicTool struct{ stubTool }

func (p *panicTool) Call(ctx tool.ReadonlyContext, args map[string]any) tool.Result {
	panic(errors.New("driver exploded"))
}

func TestExecute_RecoversPanic(t *testing.T) {
	res := tool.Execute(tool.Background(), &panicTool{stubTool{name: "execute_sql"}}, map[string]any{})
	assert.False(t, res.IsSuccessful())
	assert.Equal(t, "Error executing tool 'execute_sql': driver exploded", res.ErrorMessage())
}

func TestInvoke_ReportsPanic(t *testing.T) {
	_, err := tool.Invoke(tool.Background(), &panicTool{stubTool{name: "execute_sql"}}, nil)
	var pe *tool.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "execute_sql", pe.Tool)
	assert.Equal(t, "driver exploded", pe.Error())
}

func TestReadonlyContext(t *testing.T) {
	rc := tool.NewReadonlyContext(nil, "inv-1", "how many contracts?")
	assert.Equal(t, "inv-1", rc.InvocationID())
	assert.Equal(t, "how many contracts?", rc.UserQuery())
	assert.NoError(t, rc.Err())
}
