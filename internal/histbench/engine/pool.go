// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"histbench/internal/histbench/affinity"
)

// ErrWorkerFailed marks an aggregation worker that panicked.
var ErrWorkerFailed = errors.New("aggregation worker failed")

// WorkerPanic carries the recovered value of a panicking worker.
type WorkerPanic struct {
	Worker int
	Value  any
	Stack  []byte
}

func (p *WorkerPanic) Error() string {
	return fmt.Sprintf("worker %d panicked: %v", p.Worker, p.Value)
}

func (p *WorkerPanic) Unwrap() error { return ErrWorkerFailed }

// runWorkers starts workers goroutines, each running fn with its id, and
// waits for all of them. A panic in fn becomes a *WorkerPanic; the first
// failure is returned after every worker has exited.
func runWorkers(ctx context.Context, workers int, aff *affinity.Controller, fn func(worker int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w // per-iteration copy; go.mod targets go 1.21 loop semantics
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &WorkerPanic{Worker: w, Value: r, Stack: debug.Stack()}
				}
			}()
			if aff != nil {
				if _, err := aff.Bind(); err != nil {
					return err
				}
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(w)
		})
	}
	return g.Wait()
}
