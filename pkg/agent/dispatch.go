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

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kadirpekel/contractagent/pkg/model"
	"github.com/kadirpekel/contractagent/pkg/observability"
	"github.com/kadirpekel/contractagent/pkg/tool"
	"github.com/kadirpekel/contractagent/pkg/tool/sqltool"
)

const noValidResponse = "No valid response from agent."

// dispatch holds the state of one ProcessQuery call.
type dispatch struct {
	agent        *ContractAgent
	invocationID string
	query        string
	log          *slog.Logger
}

type modelReply struct {
	resp *model.Response
	err  error
}

type invocation struct {
	res tool.Result
	err error
}

func (d *dispatch) readonly(ctx context.Context) tool.ReadonlyContext {
	return tool.NewReadonlyContext(ctx, d.invocationID, d.query)
}

func (d *dispatch) run(ctx context.Context) (tool.Result, string) {
	schema, failure, ok := d.fetchSchema(ctx)
	if !ok {
		return failure, observability.OutcomeError
	}

	defs, err := d.agent.Definitions(d.readonly(ctx))
	if err != nil {
		return tool.Failuref("Error listing tools: %v", err), observability.OutcomeError
	}

	cfg := d.agent.cfg
	req := &model.Request{
		Parts: []model.Part{model.TextPart(BuildPrompt(cfg.TargetTable, schema, d.query, cfg.Dialect))},
		Tools: defs,
	}

	resp, failure, ok := d.callModel(ctx, req)
	if !ok {
		return failure, observability.OutcomeError
	}
	return d.interpret(ctx, resp)
}

// fetchSchema returns the target table schema rendered as JSON.
func (d *dispatch) fetchSchema(ctx context.Context) (string, tool.Result, bool) {
	cfg := d.agent.cfg
	tools, err := d.agent.schema.Tools(d.readonly(ctx))
	if err != nil {
		return "", tool.Failuref("Error getting table schema: %v", err), false
	}

	args := map[string]any{"table_id": cfg.TargetTable}
	out, err := runStage(ctx, StageSchemaFetch, cfg.CallTimeout, func(sctx context.Context) tool.Result {
		return tool.Execute(d.readonly(sctx), tools[0], args)
	})
	if err != nil {
		return "", tool.Failure(err.Error()), false
	}
	if !out.IsSuccessful() {
		return "", out, false
	}

	data, err := json.MarshalIndent(out.Payload()["schema"], "", "  ")
	if err != nil {
		return "", tool.Failuref("Error getting table schema: %v", err), false
	}
	return string(data), tool.Result{}, true
}

func (d *dispatch) callModel(ctx context.Context, req *model.Request) (*model.Response, tool.Result, bool) {
	cfg := d.agent.cfg
	llm := cfg.LLM

	ctx, span := cfg.Tracer.StartLLMCall(ctx, llm.Name())
	defer span.End()

	start := time.Now()
	reply, err := runStage(ctx, StageModelCall, cfg.CallTimeout, func(sctx context.Context) modelReply {
		resp, err := llm.GenerateContent(sctx, req)
		return modelReply{resp: resp, err: err}
	})
	if err == nil {
		err = reply.err
	}

	var in, out int
	if reply.resp != nil && reply.resp.Usage != nil {
		in, out = reply.resp.Usage.PromptTokens, reply.resp.Usage.CompletionTokens
		cfg.Tracer.AddLLMUsage(span, in, out, string(reply.resp.FinishReason))
	}
	cfg.Metrics.RecordLLMCall(ctx, llm.Name(), time.Since(start), in, out, err)

	if err != nil {
		cfg.Tracer.RecordError(span, err)
		var stage *StageError
		if errors.As(err, &stage) {
			return nil, tool.Failure(stage.Error()), false
		}
		return nil, tool.Failuref("Error calling model: %v", err), false
	}
	return reply.resp, tool.Result{}, true
}

// interpret turns the first part of the reply into the final Result.
func (d *dispatch) interpret(ctx context.Context, resp *model.Response) (tool.Result, string) {
	part, ok := resp.FirstPart()
	if !ok {
		return tool.Failure(noValidResponse), observability.OutcomeEmpty
	}

	if call := part.FunctionCall; call != nil {
		d.log.Debug("Model requested operation", "tool", call.Name)
		return d.execute(ctx, call.Name, call.Args), observability.OutcomeToolCall
	}

	text := strings.TrimSpace(part.Text)
	if text == "" {
		return tool.Failure(noValidResponse), observability.OutcomeEmpty
	}
	if stmt, ok := ExtractSQL(text); ok {
		d.log.Debug("Model answered with SQL", "query", stmt)
		return d.execute(ctx, sqltool.ExecuteSQL, map[string]any{"query": stmt}), observability.OutcomeSQL
	}
	return tool.Success(map[string]any{"response": text}), observability.OutcomeText
}

// execute runs an advertised operation by exact name.
func (d *dispatch) execute(ctx context.Context, name string, args map[string]any) tool.Result {
	cfg := d.agent.cfg

	t, ok := d.agent.Lookup(d.readonly(ctx), name)
	if !ok {
		return tool.Failuref("Tool '%s' not found.", name)
	}

	ctx, span := cfg.Tracer.StartToolExecution(ctx, name)
	defer span.End()

	start := time.Now()
	out, err := runStage(ctx, StageToolExecution, cfg.CallTimeout, func(sctx context.Context) invocation {
		res, err := tool.Invoke(d.readonly(sctx), t, args)
		return invocation{res: res, err: err}
	})

	var res tool.Result
	switch {
	case err != nil:
		res = tool.Failure(err.Error())
	case out.err != nil:
		res = tool.Failuref("Error executing tool '%s': %v", name, out.err)
	case !out.res.IsSuccessful():
		res = tool.Failuref("Tool execution failed: %s", out.res.ErrorMessage())
	default:
		res = out.res
	}

	var failed error
	if !res.IsSuccessful() {
		failed = errors.New(res.ErrorMessage())
		cfg.Tracer.RecordError(span, failed)
	}
	cfg.Metrics.RecordToolExecution(ctx, name, time.Since(start), failed)
	return res
}
