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

// Package observability provides OpenTelemetry tracing and Prometheus
// metrics for the contract agent. Every type is nil-safe so callers can
// record unconditionally when observability is disabled.
package observability

// Span names.
const (
	SpanDispatch      = "contractagent.dispatch"
	SpanSchemaFetch   = "contractagent.schema_fetch"
	SpanLLMCall       = "contractagent.llm_call"
	SpanToolExecution = "contractagent.tool_execution"
	SpanExtraction    = "contractagent.extraction"
	SpanHTTPRequest   = "http.request"
)

// Attribute keys.
const (
	AttrInvocationID      = "contractagent.invocation_id"
	AttrQuery             = "contractagent.query"
	AttrOutcome           = "contractagent.outcome"
	AttrToolName          = "tool.name"
	AttrLLMModel          = "llm.model"
	AttrLLMTokensInput    = "llm.tokens.input"
	AttrLLMTokensOutput   = "llm.tokens.output"
	AttrLLMFinishReason   = "llm.finish_reason"
	AttrErrorType         = "error.type"
	AttrErrorMessage      = "error.message"
	AttrHTTPMethod        = "http.method"
	AttrHTTPRoute         = "http.route"
	AttrHTTPStatusCode    = "http.status_code"
	AttrHTTPResponseBytes = "http.response_size"
)

// Dispatch outcomes recorded on spans and metrics.
const (
	OutcomeToolCall = "tool_call"
	OutcomeSQL      = "sql"
	OutcomeText     = "text"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
)

// Defaults.
const (
	DefaultServiceName  = "contractagent"
	DefaultNamespace    = "contractagent"
	DefaultMetricsPath  = "/metrics"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultSamplingRate = 1.0
)
