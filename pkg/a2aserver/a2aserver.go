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


// Package a2aserver exposes the contract agent over the A2A protocol.
//
// Every message/send is one question: the text parts of the message are
// joined into the query and the Result envelope comes back as a task
// artifact. A failed Result fails the task with the error message.
package a2aserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/kadirpekel/contractagent/pkg/tool"
)

// DefaultPath is where the JSON-RPC endpoint is mounted.
const DefaultPath = "/a2a"

// Agent is what the executor needs from the contract agent.
type Agent interface {
	ProcessQuery(ctx context.Context, query string) tool.Result
	Definitions(ctx tool.ReadonlyContext) ([]tool.Definition, error)
}

// Executor implements a2asrv.AgentExecutor over the agent returned by
// current. current is consulted per request so hot-swapped agents are
// picked up.
type Executor struct {
	current func() Agent
}

// NewExecutor creates an executor.
func NewExecutor(current func() Agent) *Executor {
	return &Executor{current: current}
}

// Execute answers the message with one artifact and a terminal status.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	if reqCtx.StoredTask == nil {
		if err := queue.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateSubmitted, nil)); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	query := messageText(reqCtx.Message)
	if query == "" {
		return queue.Write(ctx, failedEvent(reqCtx, "query is required."))
	}

	if err := queue.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)); err != nil {
		return err
	}

	slog.Debug("A2A query", "task_id", reqCtx.TaskID, "context_id", reqCtx.ContextID)
	res := e.current().ProcessQuery(ctx, query)
	if !res.IsSuccessful() {
		return queue.Write(ctx, failedEvent(reqCtx, res.ErrorMessage()))
	}

	artifact := a2a.NewArtifactEvent(reqCtx, resultParts(res.Payload())...)
	artifact.LastChunk = true
	if err := queue.Write(ctx, artifact); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	done := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil)
	done.Final = true
	return queue.Write(ctx, done)
}

// Cancel marks the task canceled. Queries are not interruptible once
// dispatched.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	ev := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
	ev.Final = true
	return queue.Write(ctx, ev)
}

func messageText(msg *a2a.Message) string {
	if msg == nil {
		return ""
	}
	var texts []string
	for _, part := range msg.Parts {
		if tp, ok := part.(a2a.TextPart); ok && strings.TrimSpace(tp.Text) != "" {
			texts = append(texts, tp.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// resultParts renders a success payload. A free-text answer also gets a
// text part so plain chat clients can show it.
func resultParts(payload map[string]any) []a2a.Part {
	var parts []a2a.Part
	if text, ok := payload["response"].(string); ok {
		parts = append(parts, a2a.TextPart{Text: text})
	}
	return append(parts, a2a.DataPart{Data: payload})
}

func failedEvent(reqCtx *a2asrv.RequestContext, message string) *a2a.TaskStatusUpdateEvent {
	msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.TextPart{Text: message})
	ev := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateFailed, msg)
	ev.Final = true
	return ev
}

// CardConfig describes the published agent card.
type CardConfig struct {
	Name        string
	Description string
	Version     string

	// URL is the public JSON-RPC endpoint.
	URL string

	// BearerAuth advertises the JWT security scheme.
	BearerAuth bool
}

// NewCard builds the agent card. Every advertised operation becomes a
// skill next to the question answering skill.
func NewCard(ctx context.Context, agent Agent, cfg CardConfig) (*a2a.AgentCard, error) {
	defs, err := agent.Definitions(tool.NewReadonlyContext(ctx, "", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	skills := []a2a.AgentSkill{{
		ID:          "ask_contracts",
		Name:        "Ask about contracts",
		Description: "Answers a natural language question about the contracts table.",
		Tags:        []string{"contracts", "sql"},
		Examples:    []string{"How many active contracts expire this quarter?"},
	}}
	for _, def := range defs {
		skills = append(skills, a2a.AgentSkill{
			ID:          def.Name,
			Name:        def.Name,
			Description: def.Description,
			Tags:        []string{"operation"},
		})
	}

	card := &a2a.AgentCard{
		Name:               cfg.Name,
		Description:        cfg.Description,
		URL:                cfg.URL,
		Version:            cfg.Version,
		ProtocolVersion:    "1.0",
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain", "application/json"},
		Skills:             skills,
		Capabilities:       a2a.AgentCapabilities{},
		PreferredTransport: a2a.TransportProtocolJSONRPC,
	}
	if cfg.BearerAuth {
		card.SecuritySchemes = a2a.NamedSecuritySchemes{
			"BearerAuth": a2a.HTTPAuthSecurityScheme{
				Scheme:       "bearer",
				BearerFormat: "JWT",
				Description:  "JWT Bearer token authentication",
			},
		}
		card.Security = []a2a.SecurityRequirements{
			{"BearerAuth": a2a.SecuritySchemeScopes{}},
		}
	}
	return card, nil
}

// Handlers returns the JSON-RPC handler and the agent card handler.
func Handlers(exec *Executor, card *a2a.AgentCard) (rpc http.Handler, cardHandler http.Handler) {
	return a2asrv.NewJSONRPCHandler(a2asrv.NewHandler(exec)), a2asrv.NewStaticAgentCardHandler(card)
}

var _ a2asrv.AgentExecutor = (*Executor)(nil)
