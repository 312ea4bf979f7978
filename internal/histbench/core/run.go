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

package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"histbench/internal/histbench/affinity"
	"histbench/internal/histbench/datagen"
	"histbench/internal/histbench/engine"
	"histbench/internal/histbench/partition"
	"histbench/pkg/histogram"
)

// Result is the immutable record of one run.
type Result struct {
	Config  Config
	Elapsed time.Duration // aggregation only; generation and verification excluded
	Correct bool
	Total   uint64 // sum of all bins
	Hist    histogram.Histogram

	// Skipped is set when the platform could not run this configuration and
	// Invalid when the configuration itself was rejected. SkipReason says why.
	Skipped    bool
	Invalid    bool
	SkipReason string

	// Speedup and Efficiency are only meaningful when HasBaseline is set.
	HasBaseline bool
	Speedup     float64
	Efficiency  float64 // percent of ideal linear scaling
}

// Throughput returns samples per second.
func (r Result) Throughput() float64 {
	return float64(r.Config.N) / seconds(r.Elapsed)
}

// seconds clamps d to at least one nanosecond so ratios stay finite.
func seconds(d time.Duration) float64 {
	if d <= 0 {
		d = time.Nanosecond
	}
	return d.Seconds()
}

// Runner executes configurations. The zero value is ready to use.
type Runner struct {
	// Cores lists the cores available for pinning. Nil uses the platform list.
	Cores func() ([]int, error)
	// Log receives diagnostics. Nil uses the logrus standard logger.
	Log logrus.FieldLogger
	// Aggregator returns the aggregator for a strategy. Nil uses engine.New.
	Aggregator func(engine.Strategy) (engine.Aggregator, error)
}

func (r *Runner) log() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

func (r *Runner) cores() ([]int, error) {
	if r.Cores != nil {
		return r.Cores()
	}
	return affinity.AvailableCores()
}

func (r *Runner) aggregator(s engine.Strategy) (engine.Aggregator, error) {
	if r.Aggregator != nil {
		return r.Aggregator(s)
	}
	return engine.New(s)
}

func reject(res Result, err error) (Result, error) {
	res.Invalid = true
	res.SkipReason = err.Error()
	return res, err
}

// Run executes one configuration: validate, generate, partition, warm up,
// time the aggregation, verify.
//
// A configuration error returns an Invalid result before any work. An
// unsupported affinity request returns a Skipped result and an error wrapping
// ErrUnsupported. A verification failure returns the full result with
// Correct=false and an error wrapping ErrMismatch.
func (r *Runner) Run(ctx context.Context, cfg Config) (Result, error) {
	res := Result{Config: cfg}
	if err := cfg.Validate(); err != nil {
		return reject(res, err)
	}

	var cores []int
	if cfg.Affinity {
		var err error
		if cores, err = r.cores(); err == nil {
			err = affinity.New(cores, nil).Check(cfg.Workers)
		}
		if err != nil {
			res.Skipped = true
			res.SkipReason = err.Error()
			return res, errors.Wrap(err, "affinity")
		}
	}

	samples := datagen.Generate(cfg.Dist, cfg.N)
	plan, err := partition.Split(cfg.N, cfg.Workers, cfg.Grain, cfg.Schedule)
	if err != nil {
		return reject(res, errors.Wrap(ErrConfig, err.Error()))
	}
	agg, err := r.aggregator(cfg.Strategy)
	if err != nil {
		return reject(res, errors.Wrap(ErrConfig, err.Error()))
	}

	// Each aggregation call gets its own controller so core assignment
	// restarts at the first core.
	opts := func() engine.Options {
		o := engine.Options{Padded: cfg.Padded, Reduction: cfg.Reduction}
		if cfg.Affinity {
			o.Affinity = affinity.New(cores, affinity.NewSequence())
		}
		return o
	}

	for i := 0; i < cfg.Warmup; i++ {
		if _, err := agg.Aggregate(ctx, samples, plan, opts()); err != nil {
			return res, r.aggregateErr(&res, err)
		}
	}

	o := opts()
	start := time.Now()
	h, err := agg.Aggregate(ctx, samples, plan, o)
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, r.aggregateErr(&res, err)
	}

	res.Hist = h
	res.Total = h.Sum()
	res.Correct = histogram.Verify(&h, uint64(cfg.N))
	if !res.Correct {
		r.log().WithFields(cfg.Fields()).WithField("sum", res.Total).Error("histogram sum does not match input size")
		return res, errors.Wrapf(ErrMismatch, "sum=%d want=%d", res.Total, cfg.N)
	}
	r.log().WithFields(cfg.Fields()).WithField("elapsed", res.Elapsed).Debug("run complete")
	return res, nil
}

func (r *Runner) aggregateErr(res *Result, err error) error {
	if errors.Is(err, ErrUnsupported) {
		res.Skipped = true
		res.SkipReason = err.Error()
		return errors.Wrap(err, "affinity")
	}
	if errors.Is(err, ErrWorkerFailed) {
		return errors.Wrap(err, "aggregate")
	}
	return errors.Wrapf(ErrWorkerFailed, "aggregate: %v", err)
}
