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

package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StageError reports a dispatch stage that did not finish in time.
type StageError struct {
	Stage   string
	Timeout time.Duration
	Cause   error
}

func (e *StageError) Error() string {
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return fmt.Sprintf("%s timed out after %s", e.Stage, e.Timeout)
	}
	return fmt.Sprintf("%s cancelled: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// runStage runs fn under its own timeout. fn keeps running in the
// background if it ignores its context; its result is then discarded.
func runStage[T any](ctx context.Context, stage string, timeout time.Duration, fn func(context.Context) T) (T, error) {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan T, 1)
	go func() {
		done <- fn(stageCtx)
	}()

	var zero T
	select {
	case v := <-done:
		if err := stageCtx.Err(); err != nil {
			return zero, stageErr(ctx, stage, timeout)
		}
		return v, nil
	case <-stageCtx.Done():
		return zero, stageErr(ctx, stage, timeout)
	}
}

func stageErr(parent context.Context, stage string, timeout time.Duration) *StageError {
	if err := parent.Err(); err != nil {
		return &StageError{Stage: stage, Timeout: timeout, Cause: err}
	}
	return &StageError{Stage: stage, Timeout: timeout, Cause: context.DeadlineExceeded}
}
