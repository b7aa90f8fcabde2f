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

// Package model defines the LLM boundary of the contract agent.
//
// A request is a single user turn made of parts (text or inline document
// bytes) plus the function declarations the model may call. A response is
// the content of the first candidate only.
package model

import (
	"context"
	"strings"

	"github.com/kadirpekel/contractagent/pkg/tool"
)

// LLM is the interface for language models.
type LLM interface {
	// Name returns the model identifier.
	Name() string

	// Provider returns the provider type.
	Provider() Provider

	// GenerateContent sends a single-turn request and returns the model's
	// reply. A reply without candidates is not an error; it yields a
	// Response with no parts.
	GenerateContent(ctx context.Context, req *Request) (*Response, error)

	// Close releases any resources held by the LLM.
	Close() error
}

// Provider identifies the LLM provider.
type Provider string

const (
	ProviderGemini  Provider = "gemini"
	ProviderVertex  Provider = "vertex"
	ProviderUnknown Provider = "unknown"
)

// Part is one piece of content: text, a function call or inline bytes.
type Part struct {
	Text         string
	FunctionCall *tool.ToolCall
	InlineData   *Blob
}

// Blob is inline binary content.
type Blob struct {
	MIMEType string
	Data     []byte
}

// TextPart returns a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// BlobPart returns an inline data part.
func BlobPart(mimeType string, data []byte) Part {
	return Part{InlineData: &Blob{MIMEType: mimeType, Data: data}}
}

// Request contains the input for an LLM call.
type Request struct {
	// Parts is the single user turn.
	Parts []Part

	// Tools available for the model to call.
	Tools []tool.Definition

	// Config contains generation configuration.
	Config *GenerateConfig

	// SystemInstruction is sent ahead of the user turn.
	SystemInstruction string
}

// GenerateConfig contains configuration for generation.
type GenerateConfig struct {
	// Temperature controls randomness (0-2).
	Temperature *float64

	// MaxTokens limits the response length.
	MaxTokens *int

	// ResponseMIMEType for structured output (e.g., "application/json").
	ResponseMIMEType string

	// ResponseSchema for structured output.
	ResponseSchema map[string]any
}

// Response contains the first candidate of an LLM call.
type Response struct {
	// Parts of the first candidate, thought parts excluded.
	Parts []Part

	// Usage statistics.
	Usage *Usage

	// FinishReason indicates why generation stopped.
	FinishReason FinishReason
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// FinishReason indicates why generation stopped.
type FinishReason string

const (
	FinishReasonStop    FinishReason = "stop"
	FinishReasonLength  FinishReason = "length"
	FinishReasonContent FinishReason = "content_filter"
	FinishReasonOther   FinishReason = "other"
)

// FirstPart returns the first content part, if any.
func (r *Response) FirstPart() (Part, bool) {
	if r == nil || len(r.Parts) == 0 {
		return Part{}, false
	}
	return r.Parts[0], true
}

// TextContent concatenates the text of all parts.
func (r *Response) TextContent() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}
