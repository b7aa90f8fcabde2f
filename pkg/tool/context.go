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

import "context"

// ReadonlyContext is the per-invocation context passed to tools and
// toolset predicates. It carries cancellation plus read-only facts about
// the request being served.
type ReadonlyContext interface {
	context.Context

	// InvocationID identifies the dispatch that triggered the call.
	InvocationID() string

	// UserQuery is the natural-language query being answered, if any.
	UserQuery() string
}

type readonlyContext struct {
	context.Context
	invocationID string
	userQuery    string
}

func (c *readonlyContext) InvocationID() string { return c.invocationID }
func (c *readonlyContext) UserQuery() string    { return c.userQuery }

// NewReadonlyContext wraps ctx with invocation metadata.
func NewReadonlyContext(ctx context.Context, invocationID, userQuery string) ReadonlyContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &readonlyContext{Context: ctx, invocationID: invocationID, userQuery: userQuery}
}

// WithContext returns a copy of rc whose cancellation is governed by ctx.
func WithContext(rc ReadonlyContext, ctx context.Context) ReadonlyContext {
	return &readonlyContext{Context: ctx, invocationID: rc.InvocationID(), userQuery: rc.UserQuery()}
}

// Background returns an empty ReadonlyContext.
func Background() ReadonlyContext {
	return NewReadonlyContext(context.Background(), "", "")
}
