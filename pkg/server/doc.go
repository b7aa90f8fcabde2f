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

// Package server exposes the contract agent over HTTP.
//
// Routes:
//
//	GET  /health              liveness
//	GET  /metrics             Prometheus metrics (when enabled)
//	GET  /v1/tools            advertised operations
//	POST /v1/tools/{name}     run one operation with JSON arguments
//	POST /v1/query            {"query": "..."} answered by the agent
//	POST /v1/documents        multipart upload handed to process_document
//	GET  /v1/kpis             dashboard query names
//	GET  /v1/kpis/{name}      run one dashboard query
//	GET  /v1/contracts/{id}   details of one contract
//	POST /a2a                 A2A JSON-RPC (when enabled)
//	GET  /.well-known/agent-card.json
//
// Operation endpoints answer with the result envelope, {"result": {...}}
// or {"error": "..."}. With auth enabled the /v1 routes and /a2a require a
// bearer JWT.
package server
