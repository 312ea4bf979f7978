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

// Package engine implements the two histogram aggregation strategies behind a
// single Aggregator contract:
//
//   - SharedAtomic: all workers increment one Shared histogram of atomic counters.
//   - PrivateReduce: each worker fills a private Histogram without synchronization,
//     and the private histograms are summed after the join.
//
// Both return identical histograms for identical input; only timing differs.
package engine

import (
	"context"
	"fmt"
	"strings"

	"histbench/internal/histbench/affinity"
	"histbench/internal/histbench/partition"
	"histbench/pkg/histogram"
)

// Strategy names an aggregation strategy as it appears on the command line.
type Strategy string

const (
	Atomic Strategy = "atomic"
	Local  Strategy = "local"
)

// ParseStrategy maps a CLI token to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch k := Strategy(strings.ToLower(strings.TrimSpace(s))); k {
	case Atomic, Local:
		return k, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (use atomic|local)", s)
	}
}

// Reduction selects how PrivateReduce combines per-worker histograms.
type Reduction string

const (
	// Fold sums private histograms one after another on the calling goroutine.
	Fold Reduction = "fold"
	// Tree sums them pairwise, each level in parallel.
	Tree Reduction = "tree"
)

// ParseReduction maps a CLI token to a Reduction. Empty means Fold.
func ParseReduction(s string) (Reduction, error) {
	switch k := Reduction(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return Fold, nil
	case Fold, Tree:
		return k, nil
	default:
		return "", fmt.Errorf("unknown reduction %q (use fold|tree)", s)
	}
}

// Options tunes one Aggregate call. The zero value runs unpinned, unpadded,
// with a fold reduction.
type Options struct {
	// Padded places each shared counter on its own cache line (SharedAtomic only).
	Padded bool
	// Reduction is the combine step for PrivateReduce.
	Reduction Reduction
	// Affinity pins each worker to a distinct core when non-nil.
	Affinity *affinity.Controller
}

// Aggregator builds a histogram of samples using plan.Workers concurrent
// workers. Aggregate blocks until every worker has finished.
type Aggregator interface {
	Strategy() Strategy
	Aggregate(ctx context.Context, samples []byte, plan partition.Plan, opts Options) (histogram.Histogram, error)
}

// New returns the aggregator for s.
func New(s Strategy) (Aggregator, error) {
	switch s {
	case Atomic:
		return SharedAtomic{}, nil
	case Local:
		return PrivateReduce{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", s)
	}
}

func checkPlan(samples []byte, plan partition.Plan) error {
	if plan.N != len(samples) {
		return fmt.Errorf("plan covers %d samples, sequence has %d", plan.N, len(samples))
	}
	if plan.Workers <= 0 {
		return fmt.Errorf("plan has %d workers", plan.Workers)
	}
	if covered := plan.Total(); covered != plan.N {
		return fmt.Errorf("plan spans cover %d of %d samples", covered, plan.N)
	}
	return nil
}

// SharedAtomic updates one shared counter array with an atomic add per sample.
type SharedAtomic struct{}

func (SharedAtomic) Strategy() Strategy { return Atomic }

func (SharedAtomic) Aggregate(ctx context.Context, samples []byte, plan partition.Plan, opts Options) (histogram.Histogram, error) {
	if err := checkPlan(samples, plan); err != nil {
		return histogram.Histogram{}, err
	}
	shared := histogram.NewShared(opts.Padded)
	sched := plan.NewScheduler()
	err := runWorkers(ctx, plan.Workers, opts.Affinity, func(worker int) error {
		sched.Run(worker, func(s partition.Span) {
			if !s.Empty() {
				shared.AddAll(samples[s.Start:s.End])
			}
		})
		return nil
	})
	if err != nil {
		return histogram.Histogram{}, err
	}
	return shared.Snapshot(), nil
}

// PrivateReduce gives every worker its own histogram and sums them after the join.
type PrivateReduce struct{}

func (PrivateReduce) Strategy() Strategy { return Local }

func (PrivateReduce) Aggregate(ctx context.Context, samples []byte, plan partition.Plan, opts Options) (histogram.Histogram, error) {
	if err := checkPlan(samples, plan); err != nil {
		return histogram.Histogram{}, err
	}
	privates := make([]histogram.Histogram, plan.Workers)
	sched := plan.NewScheduler()
	err := runWorkers(ctx, plan.Workers, opts.Affinity, func(worker int) error {
		var local histogram.Histogram
		sched.Run(worker, func(s partition.Span) {
			if !s.Empty() {
				local.Add(samples[s.Start:s.End])
			}
		})
		privates[worker] = local
		return nil
	})
	if err != nil {
		return histogram.Histogram{}, err
	}
	return Reduce(privates, opts.Reduction), nil
}
