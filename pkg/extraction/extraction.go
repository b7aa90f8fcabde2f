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

// Package extraction turns a contract document into structured fields by
// asking the model to read it, then coercing the reply to the destination
// schema of the contracts table.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"github.com/kadirpekel/contractagent/pkg/contracts"
	"github.com/kadirpekel/contractagent/pkg/model"
)

// Defaults.
const (
	DefaultLanguage     = "English"
	DefaultMaxFileBytes = 20 << 20
)

// ErrFileTooLarge is returned when a document exceeds MaxFileBytes.
var ErrFileTooLarge = errors.New("file too large")

// Config configures an Extractor.
type Config struct {
	// Language all extracted text values are normalized to.
	Language string

	// MaxFileBytes rejects larger documents before calling the model.
	MaxFileBytes int64

	// StructuredOutput asks the model for JSON matching the contract
	// schema instead of relying on the prompt alone.
	StructuredOutput bool
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = DefaultMaxFileBytes
	}
}

// Document is the result of one extraction.
type Document struct {
	// Fields holds the coerced values keyed by column name.
	Fields map[string]any

	// MIMEType of the submitted content.
	MIMEType string

	// Pages is the PDF page count, or 0 for other formats.
	Pages int
}

// Extractor submits documents to the model.
type Extractor struct {
	llm    model.LLM
	cfg    Config
	types  map[string]string
	prompt string
	schema map[string]any
}

// New creates an Extractor.
func New(llm model.LLM, cfg Config) *Extractor {
	cfg.SetDefaults()
	e := &Extractor{
		llm:    llm,
		cfg:    cfg,
		types:  contracts.TypeTable(),
		prompt: Prompt(cfg.Language),
	}
	if cfg.StructuredOutput {
		e.schema = ResponseSchema()
	}
	return e
}

// Prompt builds the extraction instruction for the given language.
func Prompt(language string) string {
	var b strings.Builder
	b.WriteString("You are an expert in legal contract analysis. Analyze the provided document and extract the following information, returning it as a single, minified JSON object:\n")
	for _, col := range contracts.ExtractedFields() {
		b.WriteString("- ")
		b.WriteString(col.Name)
		switch col.Type {
		case contracts.TypeDate:
			b.WriteString(" (in YYYY-MM-DD format)")
		case contracts.TypeJSON:
			b.WriteString(" (as a JSON string)")
		case contracts.TypeNumeric:
			b.WriteString(" (as a number)")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Write every text value in %s, translating from the document's language when needed. Use null for information that is not present.\n", language)
	return b.String()
}

// ResponseSchema is the JSON Schema of contracts.Contract.
func ResponseSchema() map[string]any {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	schema := r.Reflect(&contracts.Contract{})

	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	delete(out, "$schema")
	delete(out, "$id")
	delete(out, "additionalProperties")
	return out
}

// Extract reads the file at path and returns its coerced fields.
func (e *Extractor) Extract(ctx context.Context, path string) (*Document, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > e.cfg.MaxFileBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, info.Size(), e.cfg.MaxFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc := &Document{}
	content, err := documentPart(path, data, doc)
	if err != nil {
		return nil, err
	}

	req := &model.Request{Parts: []model.Part{content, model.TextPart(e.prompt)}}
	if e.schema != nil {
		req.Config = &model.GenerateConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   e.schema,
		}
	}

	resp, err := e.llm.GenerateContent(ctx, req)
	if err != nil {
		return nil, err
	}

	raw, err := ParseJSON(resp.TextContent())
	if err != nil {
		return nil, err
	}

	doc.Fields = Coerce(raw, e.types)
	slog.Info("Document extracted",
		"file", filepath.Base(path),
		"mime_type", doc.MIMEType,
		"pages", doc.Pages,
		"fields", len(doc.Fields),
		"duration", time.Since(start))
	return doc, nil
}

// documentPart prepares the file content for the model.
func documentPart(path string, data []byte, doc *Document) (model.Part, error) {
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := http.DetectContentType(data)

	switch {
	case ext == ".pdf" || mimeType == "application/pdf":
		reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return model.Part{}, fmt.Errorf("invalid PDF: %w", err)
		}
		doc.Pages = reader.NumPage()
		doc.MIMEType = "application/pdf"
		return model.BlobPart(doc.MIMEType, data), nil

	case ext == ".docx":
		text, err := docxText(path)
		if err != nil {
			return model.Part{}, err
		}
		doc.MIMEType = "text/plain"
		return model.TextPart("Document text:\n" + text), nil

	case ext == ".txt" || ext == ".md":
		doc.MIMEType = "text/plain"
		return model.TextPart("Document text:\n" + string(data)), nil

	default:
		doc.MIMEType = mimeType
		return model.BlobPart(mimeType, data), nil
	}
}

var (
	paragraphEnd = regexp.MustCompile(`</w:p>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
)

func docxText(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("invalid DOCX: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	content = paragraphEnd.ReplaceAllString(content, "\n")
	content = xmlTag.ReplaceAllString(content, "")
	return strings.TrimSpace(html.UnescapeString(content)), nil
}

// ParseJSON parses a model reply that is raw JSON or JSON fenced in a
// ```json block. The reply must be a JSON object.
func ParseJSON(text string) (map[string]any, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	return obj, nil
}
