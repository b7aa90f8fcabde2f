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

// Package agent implements the contract agent's dispatch loop.
//
// # Dispatch
//
// ProcessQuery turns one natural-language question into exactly one
// tool.Result:
//
//  1. fetch the target table's schema through get_table_schema
//  2. send the instruction, the schema and the question to the model
//     together with the definitions of every registered operation
//  3. interpret the first part of the reply: a function call is executed
//     by name, SQL text is executed through execute_sql, any other text is
//     returned as {"response": text}
//
// Each external call runs under its own timeout. Nothing is retried.
//
//	a, err := agent.New(agent.Config{
//	    LLM:      llm,
//	    Toolsets: sqltool.Factory(client, sqltool.Config{DefaultDatasetID: "contract_data"}),
//	})
//	res := a.ProcessQuery(ctx, "How many contracts are active?")
package agent
