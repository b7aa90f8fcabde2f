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
	"encoding/json"
	"fmt"
)

// Result is the uniform outcome of an operation.
//
// Exactly one of payload and error is set. The zero value is not a valid
// Result; use Success or Failure.
type Result struct {
	payload map[string]any
	err     string
}

// Success wraps a payload. A nil payload becomes an empty map so the
// result still reports a payload.
func Success(payload map[string]any) Result {
	if payload == nil {
		payload = map[string]any{}
	}
	return Result{payload: payload}
}

// Failure wraps an error message. An empty message is replaced so the
// result is never mistaken for a success.
func Failure(message string) Result {
	if message == "" {
		message = "unknown error"
	}
	return Result{err: message}
}

// Failuref formats an error message and wraps it.
func Failuref(format string, args ...any) Result {
	return Failure(fmt.Sprintf(format, args...))
}

// IsSuccessful reports whether the result carries a payload.
func (r Result) IsSuccessful() bool {
	return r.err == ""
}

// Payload returns the success payload, or nil for a failure.
func (r Result) Payload() map[string]any {
	return r.payload
}

// ErrorMessage returns the failure message, or "" for a success.
func (r Result) ErrorMessage() string {
	return r.err
}

// String implements fmt.Stringer.
func (r Result) String() string {
	if !r.IsSuccessful() {
		return "error: " + r.err
	}
	return fmt.Sprintf("result: %v", r.payload)
}

type resultJSON struct {
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// MarshalJSON renders {"result": {...}} or {"error": "..."}.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.IsSuccessful() {
		return json.Marshal(resultJSON{Error: r.err})
	}
	// Keep an empty payload visible as {"result": {}}.
	return json.Marshal(map[string]any{"result": r.payload})
}

// UnmarshalJSON parses the form produced by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Error != "" {
		*r = Failure(raw.Error)
		return nil
	}
	*r = Success(raw.Result)
	return nil
}
