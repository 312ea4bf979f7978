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

// Package affinity pins benchmark workers to distinct logical CPUs.
//
// Core identities are handed out in worker-start order from a Sequence that
// belongs to one run, so consecutive sweep configurations never share state.
package affinity

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
)

// ErrUnsupported is returned when pinning is unavailable on this platform or
// the requested worker count exceeds the available cores.
var ErrUnsupported = errors.New("affinity unsupported")

// Sequence hands out worker ordinals 0, 1, 2, ... in the order workers start.
type Sequence struct {
	n atomic.Int64
}

// NewSequence returns a sequence starting at 0.
func NewSequence() *Sequence { return &Sequence{} }

// Next returns the next ordinal.
func (s *Sequence) Next() int { return int(s.n.Add(1) - 1) }

// Controller binds calling goroutines to cores drawn from a fixed list.
type Controller struct {
	cores []int
	seq   *Sequence
	pin   func(core int) error
}

// New returns a controller over the given core list. A nil seq gets a fresh one.
func New(cores []int, seq *Sequence) *Controller {
	if seq == nil {
		seq = NewSequence()
	}
	return &Controller{cores: append([]int(nil), cores...), seq: seq, pin: pinThread}
}

// Check reports ErrUnsupported when workers cannot each get a distinct core.
func (c *Controller) Check(workers int) error {
	if len(c.cores) == 0 {
		return fmt.Errorf("%w: no cores available for pinning", ErrUnsupported)
	}
	if workers > len(c.cores) {
		return fmt.Errorf("%w: %d workers exceed %d available cores", ErrUnsupported, workers, len(c.cores))
	}
	return nil
}

// Bind locks the calling goroutine to its OS thread and pins that thread to
// the next core in sequence. It returns the chosen core.
//
// The thread stays locked: when the worker goroutine exits the runtime
// terminates the thread, so its CPU mask never leaks to other goroutines.
func (c *Controller) Bind() (int, error) {
	idx := c.seq.Next()
	if idx >= len(c.cores) {
		return -1, fmt.Errorf("%w: worker %d has no core (have %d)", ErrUnsupported, idx, len(c.cores))
	}
	core := c.cores[idx]
	runtime.LockOSThread()
	if err := c.pin(core); err != nil {
		return -1, fmt.Errorf("%w: pin worker %d to core %d: %w", ErrUnsupported, idx, core, err)
	}
	return core, nil
}
