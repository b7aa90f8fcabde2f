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

package tool

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

var (
	// ErrToolNotFound is returned when a named tool is not registered or
	// is excluded by the toolset's selection.
	ErrToolNotFound = errors.New("tool not found")

	// ErrDuplicateTool is returned when two tools share a name.
	ErrDuplicateTool = errors.New("duplicate tool name")
)

// Option configures a Toolset.
type Option func(*Toolset)

// WithFilter exposes only tools accepted by the predicate.
func WithFilter(p Predicate) Option {
	return func(ts *Toolset) {
		ts.filter = p
	}
}

// WithToolName restricts the toolset to exactly one tool.
func WithToolName(name string) Option {
	return func(ts *Toolset) {
		ts.toolName = name
	}
}

// Toolset is an ordered registry of tools with a fixed selection.
// Listing is deterministic and follows registration order.
type Toolset struct {
	name     string
	tools    []Tool
	index    map[string]Tool
	filter   Predicate
	toolName string

	closeOnce sync.Once
	closeErr  error
}

// NewToolset registers tools in order. Names must be unique.
func NewToolset(name string, tools []Tool, opts ...Option) (*Toolset, error) {
	ts := &Toolset{
		name:  name,
		tools: make([]Tool, 0, len(tools)),
		index: make(map[string]Tool, len(tools)),
	}
	for _, t := range tools {
		if _, exists := ts.index[t.Name()]; exists {
			return nil, fmt.Errorf("%w: %q in toolset %q", ErrDuplicateTool, t.Name(), name)
		}
		ts.tools = append(ts.tools, t)
		ts.index[t.Name()] = t
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts, nil
}

// Name returns the toolset name.
func (ts *Toolset) Name() string {
	return ts.name
}

// Tools returns the selected tools.
func (ts *Toolset) Tools(ctx ReadonlyContext) ([]Tool, error) {
	if ts.toolName != "" {
		t, ok := ts.index[ts.toolName]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, ts.toolName)
		}
		return []Tool{t}, nil
	}

	selected := make([]Tool, 0, len(ts.tools))
	for _, t := range ts.tools {
		if ts.filter != nil && !ts.filter(ctx, t) {
			continue
		}
		selected = append(selected, t)
	}
	return selected, nil
}

// Lookup finds a selected tool by exact name.
func (ts *Toolset) Lookup(ctx ReadonlyContext, name string) (Tool, bool) {
	t, ok := ts.index[name]
	if !ok {
		return nil, false
	}
	if ts.toolName != "" && ts.toolName != name {
		return nil, false
	}
	if ts.toolName == "" && ts.filter != nil && !ts.filter(ctx, t) {
		return nil, false
	}
	return t, true
}

// Definitions returns the model declarations of the selected tools.
func (ts *Toolset) Definitions(ctx ReadonlyContext) ([]Definition, error) {
	tools, err := ts.Tools(ctx)
	if err != nil {
		return nil, err
	}
	defs := make([]Definition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, ToDefinition(t))
	}
	return defs, nil
}

// Close releases resources held by tools implementing io.Closer.
// Safe to call more than once.
func (ts *Toolset) Close() error {
	ts.closeOnce.Do(func() {
		var errs []error
		for _, t := range ts.tools {
			c, ok := t.(io.Closer)
			if !ok {
				continue
			}
			if err := c.Close(); err != nil {
				slog.Warn("Failed to close tool", "toolset", ts.name, "tool", t.Name(), "error", err)
				errs = append(errs, err)
			}
		}
		ts.closeErr = errors.Join(errs...)
	})
	return ts.closeErr
}
