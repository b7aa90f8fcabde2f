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

// Predicate determines whether a tool is exposed by a Toolset.
type Predicate func(ctx ReadonlyContext, tool Tool) bool

// StringPredicate creates a Predicate that allows only named tools.
func StringPredicate(allowedTools []string) Predicate {
	allowed := make(map[string]bool, len(allowedTools))
	for _, name := range allowedTools {
		allowed[name] = true
	}

	return func(ctx ReadonlyContext, tool Tool) bool {
		return allowed[tool.Name()]
	}
}

// AllowAll returns a Predicate that allows all tools.
func AllowAll() Predicate {
	return func(ctx ReadonlyContext, tool Tool) bool {
		return true
	}
}

// Combine combines multiple predicates with AND logic.
func Combine(predicates ...Predicate) Predicate {
	return func(ctx ReadonlyContext, tool Tool) bool {
		for _, p := range predicates {
			if !p(ctx, tool) {
				return false
			}
		}
		return true
	}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return func(ctx ReadonlyContext, tool Tool) bool {
		return !p(ctx, tool)
	}
}

// Selection allows the tools named in allow, or every tool when allow is
// empty, minus the tools named in deny.
func Selection(allow, deny []string) Predicate {
	include := AllowAll()
	if len(allow) > 0 {
		include = StringPredicate(allow)
	}
	if len(deny) == 0 {
		return include
	}
	return Combine(include, Not(StringPredicate(deny)))
}
