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

// Package partition splits an index range [0, N) into contiguous spans and
// hands them out to a fixed number of workers.
package partition

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// Span is a half-open index range [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the number of indices covered by s.
func (s Span) Len() int { return s.End - s.Start }

// Empty reports whether s covers no indices.
func (s Span) Empty() bool { return s.End <= s.Start }

// ScheduleKind selects how spans are distributed when there are more spans than workers.
type ScheduleKind string

const (
	// Static assigns span i to worker i % workers (round-robin).
	Static ScheduleKind = "static"
	// Dynamic lets idle workers claim the next unclaimed span from a shared cursor.
	Dynamic ScheduleKind = "dynamic"
)

// ParseSchedule maps a CLI token to a ScheduleKind. Empty means Static.
func ParseSchedule(s string) (ScheduleKind, error) {
	switch k := ScheduleKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return Static, nil
	case Static, Dynamic:
		return k, nil
	default:
		return "", fmt.Errorf("unknown schedule %q (use static|dynamic)", s)
	}
}

var (
	errWorkers = errors.New("partition: workers must be positive")
	errSize    = errors.New("partition: size must be non-negative")
	errGrain   = errors.New("partition: grain must be non-negative")
)

// Plan is the full set of spans for one run plus the scheduling policy used
// to hand them to workers. The union of Spans is exactly [0, N).
type Plan struct {
	N        int
	Workers  int
	Grain    int // 0 = automatic even division
	Schedule ScheduleKind
	Spans    []Span
}

// Split divides [0, n) for workers. With grain == 0 it yields exactly workers
// spans of ceil(n/workers), clamped at n; trailing spans may be empty when
// workers > n. With grain > 0 it yields ceil(n/grain) spans of grain indices,
// the last possibly shorter.
func Split(n, workers, grain int, schedule ScheduleKind) (Plan, error) {
	switch {
	case workers <= 0:
		return Plan{}, errWorkers
	case n < 0:
		return Plan{}, errSize
	case grain < 0:
		return Plan{}, errGrain
	}
	if schedule == "" {
		schedule = Static
	}
	p := Plan{N: n, Workers: workers, Grain: grain, Schedule: schedule}
	if grain == 0 {
		chunk := (n + workers - 1) / workers
		p.Spans = make([]Span, workers)
		for i := range p.Spans {
			p.Spans[i] = Span{Start: min(i*chunk, n), End: min((i+1)*chunk, n)}
		}
		return p, nil
	}
	count := (n + grain - 1) / grain
	p.Spans = make([]Span, count)
	for i := range p.Spans {
		p.Spans[i] = Span{Start: i * grain, End: min((i+1)*grain, n)}
	}
	return p, nil
}

// Total returns the sum of all span lengths.
func (p Plan) Total() int {
	total := 0
	for _, s := range p.Spans {
		total += s.Len()
	}
	return total
}

// Scheduler hands spans to workers. Each worker calls Run with its own id;
// across all workers every span is visited exactly once.
type Scheduler interface {
	Run(worker int, fn func(Span))
}

// NewScheduler returns a fresh scheduler for p. Dynamic schedulers carry a
// cursor and must not be reused across runs.
func (p Plan) NewScheduler() Scheduler {
	if p.Schedule == Dynamic {
		return &dynamicScheduler{spans: p.Spans}
	}
	return staticScheduler{spans: p.Spans, workers: p.Workers}
}

type staticScheduler struct {
	spans   []Span
	workers int
}

func (s staticScheduler) Run(worker int, fn func(Span)) {
	for i := worker; i < len(s.spans); i += s.workers {
		fn(s.spans[i])
	}
}

type dynamicScheduler struct {
	next  atomic.Int64
	spans []Span
}

func (s *dynamicScheduler) Run(_ int, fn func(Span)) {
	for {
		i := int(s.next.Add(1) - 1)
		if i >= len(s.spans) {
			return
		}
		fn(s.spans[i])
	}
}
