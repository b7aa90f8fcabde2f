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

// Package gemini implements model.LLM on the google.golang.org/genai SDK,
// against either the Gemini API or Vertex AI.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kadirpekel/contractagent/pkg/model"
	"github.com/kadirpekel/contractagent/pkg/tool"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// Backends.
const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// Config contains configuration for the Gemini model.
type Config struct {
	// APIKey is the Google AI API key. Required for the gemini backend.
	APIKey string

	// Backend is "gemini" (default) or "vertex".
	Backend string

	// Project and Location select the Vertex AI endpoint.
	Project  string
	Location string

	// Model is the model name (e.g., "gemini-2.5-flash").
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0-2).
	Temperature float64
}

type geminiModel struct {
	client   *genai.Client
	name     string
	provider model.Provider
	config   Config
}

// New creates a new Gemini model instance.
func New(cfg Config) (model.LLM, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientCfg := &genai.ClientConfig{}
	provider := model.ProviderGemini
	switch strings.ToLower(cfg.Backend) {
	case "", BackendGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("API key is required")
		}
		clientCfg.APIKey = cfg.APIKey
		clientCfg.Backend = genai.BackendGeminiAPI
	case BackendVertex:
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("project and location are required for the vertex backend")
		}
		clientCfg.Project = cfg.Project
		clientCfg.Location = cfg.Location
		clientCfg.Backend = genai.BackendVertexAI
		provider = model.ProviderVertex
	default:
		return nil, fmt.Errorf("unknown backend %q (valid: gemini, vertex)", cfg.Backend)
	}

	// Use context.Background() for initialization - constructors shouldn't require context
	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &geminiModel{
		client:   client,
		name:     cfg.Model,
		provider: provider,
		config:   cfg,
	}, nil
}

// Name returns the model identifier.
func (m *geminiModel) Name() string {
	return m.name
}

// Provider returns the provider type.
func (m *geminiModel) Provider() model.Provider {
	return m.provider
}

// GenerateContent performs a single non-streaming generation.
func (m *geminiModel) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	contents := []*genai.Content{buildContent(req.Parts)}
	config := m.buildConfig(req)

	genResp, err := m.client.Models.GenerateContent(ctx, m.name, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Gemini generation failed: %w", err)
	}

	return parseResponse(genResp), nil
}

// Close releases resources.
func (m *geminiModel) Close() error {
	return nil
}

func buildContent(parts []model.Part) *genai.Content {
	genParts := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.InlineData != nil:
			genParts = append(genParts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data},
			})
		case p.FunctionCall != nil:
			genParts = append(genParts, &genai.Part{
				FunctionCall: &genai.FunctionCall{ID: p.FunctionCall.ID, Name: p.FunctionCall.Name, Args: p.FunctionCall.Args},
			})
		case p.Text != "":
			genParts = append(genParts, &genai.Part{Text: p.Text})
		}
	}
	return &genai.Content{Parts: genParts, Role: "user"}
}

// buildConfig creates Gemini generation config.
func (m *geminiModel) buildConfig(req *model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if req.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
			Role:  "user",
		}
	}

	if cfg := req.Config; cfg != nil {
		if cfg.Temperature != nil {
			config.Temperature = genai.Ptr(float32(*cfg.Temperature))
		}
		if cfg.MaxTokens != nil {
			config.MaxOutputTokens = int32(*cfg.MaxTokens)
		}
		if cfg.ResponseMIMEType != "" {
			config.ResponseMIMEType = cfg.ResponseMIMEType
		}
		if cfg.ResponseSchema != nil {
			config.ResponseSchema = toGenaiSchema(cfg.ResponseSchema)
			if config.ResponseMIMEType == "" {
				config.ResponseMIMEType = "application/json"
			}
		}
	}

	// Apply defaults from model config
	if config.Temperature == nil && m.config.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(m.config.Temperature))
	}
	if config.MaxOutputTokens == 0 && m.config.MaxTokens > 0 {
		config.MaxOutputTokens = int32(m.config.MaxTokens)
	}

	if len(req.Tools) > 0 {
		config.Tools = buildTools(req.Tools)
	}

	return config
}

// buildTools groups all declarations under a single genai.Tool.
func buildTools(tools []tool.Definition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGenaiSchema(t.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGenaiSchema converts a JSON schema to Gemini schema.
func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}

	switch t := schema["type"].(type) {
	case string:
		s.Type = genai.Type(strings.ToUpper(t))
	case []any:
		// ["string", "null"]
		for _, v := range t {
			name, _ := v.(string)
			if name == "null" {
				s.Nullable = genai.Ptr(true)
			} else if name != "" && s.Type == "" {
				s.Type = genai.Type(strings.ToUpper(name))
			}
		}
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if format, ok := schema["format"].(string); ok {
		s.Format = format
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	s.Required = stringList(schema["required"])
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	s.Enum = stringList(schema["enum"])

	return s
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		if len(list) == 0 {
			return nil
		}
		return append([]string(nil), list...)
	case []any:
		var out []string
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// parseResponse keeps the first candidate's non-thought parts.
func parseResponse(genResp *genai.GenerateContentResponse) *model.Response {
	resp := &model.Response{}
	if genResp == nil {
		return resp
	}

	if genResp.UsageMetadata != nil {
		resp.Usage = &model.Usage{
			PromptTokens:     int(genResp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(genResp.UsageMetadata.TotalTokenCount),
		}
	}

	if len(genResp.Candidates) == 0 {
		return resp
	}

	candidate := genResp.Candidates[0]
	resp.FinishReason = mapFinishReason(candidate.FinishReason)
	if candidate.Content == nil {
		return resp
	}

	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		switch {
		case part.FunctionCall != nil:
			resp.Parts = append(resp.Parts, model.Part{FunctionCall: &tool.ToolCall{
				ID:   part.FunctionCall.ID,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			}})
		case part.InlineData != nil && part.Text == "":
			resp.Parts = append(resp.Parts, model.BlobPart(part.InlineData.MIMEType, part.InlineData.Data))
		default:
			// Empty text parts are kept so parts[0] stays the model's first part.
			resp.Parts = append(resp.Parts, model.Part{Text: part.Text})
		}
	}

	return resp
}

// mapFinishReason converts Gemini finish reason to model finish reason.
func mapFinishReason(reason genai.FinishReason) model.FinishReason {
	switch reason {
	case genai.FinishReasonStop, "":
		return model.FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return model.FinishReasonLength
	case genai.FinishReasonSafety:
		return model.FinishReasonContent
	default:
		return model.FinishReasonOther
	}
}

// Ensure geminiModel implements model.LLM
var _ model.LLM = (*geminiModel)(nil)
