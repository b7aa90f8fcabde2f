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

// Package doctool exposes contract document extraction as the
// process_document operation.
package doctool

import (
	"context"

	"github.com/kadirpekel/contractagent/pkg/extraction"
	"github.com/kadirpekel/contractagent/pkg/tool"
	"github.com/kadirpekel/contractagent/pkg/tool/functiontool"
)

// Toolset and operation names.
const (
	Name            = "documents"
	ProcessDocument = "process_document"
)

// Extractor is the part of extraction.Extractor the tool needs.
type Extractor interface {
	Extract(ctx context.Context, path string) (*extraction.Document, error)
}

type processArgs struct {
	FilePath string `json:"file_path"`
}

// NewTool creates the process_document tool.
func NewTool(ex Extractor) (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        ProcessDocument,
		Description: "Extracts structured contract fields (parties, dates, price, clauses, financials) from a contract document on disk.",
		Params: []tool.Param{
			{Name: "readonly_context", Type: "tool.ReadonlyContext"},
			{Name: "file_path", Type: tool.TypeString, Description: "Path of the contract document (PDF, DOCX, text or image)."},
		},
	}, func(ctx tool.ReadonlyContext, args processArgs) tool.Result {
		doc, err := ex.Extract(ctx, args.FilePath)
		if err != nil {
			return tool.Failure(err.Error())
		}
		return tool.Success(doc.Fields)
	})
}

// New creates the documents toolset.
func New(ex Extractor, opts ...tool.Option) (*tool.Toolset, error) {
	t, err := NewTool(ex)
	if err != nil {
		return nil, err
	}
	return tool.NewToolset(Name, []tool.Tool{t}, opts...)
}
