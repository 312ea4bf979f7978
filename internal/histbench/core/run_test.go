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
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"histbench/internal/histbench/datagen"
	"histbench/internal/histbench/engine"
	"histbench/internal/histbench/partition"
	"histbench/pkg/histogram"
)

func quietRunner() *Runner {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Runner{Log: l}
}

// lossyAggregator drops one sample from the histogram its inner aggregator
// builds, the way a lost atomic update would.
type lossyAggregator struct {
	engine.Aggregator
}

func (l lossyAggregator) Aggregate(ctx context.Context, samples []byte, plan partition.Plan, opts engine.Options) (histogram.Histogram, error) {
	h, err := l.Aggregator.Aggregate(ctx, samples, plan, opts)
	if err == nil && len(samples) > 0 {
		h[samples[0]]--
	}
	return h, err
}

func lossyRunner() *Runner {
	r := quietRunner()
	r.Aggregator = func(s engine.Strategy) (engine.Aggregator, error) {
		agg, err := engine.New(s)
		if err != nil {
			return nil, err
		}
		return lossyAggregator{agg}, nil
	}
	return r
}

// panickyAggregator fails the way the worker pool reports a panicking worker.
type panickyAggregator struct{}

func (panickyAggregator) Strategy() engine.Strategy { return engine.Atomic }

func (panickyAggregator) Aggregate(context.Context, []byte, partition.Plan, engine.Options) (histogram.Histogram, error) {
	return histogram.Histogram{}, &engine.WorkerPanic{Worker: 1, Value: "index out of range"}
}

func panickyRunner() *Runner {
	r := quietRunner()
	r.Aggregator = func(engine.Strategy) (engine.Aggregator, error) { return panickyAggregator{}, nil }
	return r
}

func TestRun_UniformAtomic(t *testing.T) {
	r := quietRunner()
	res, err := r.Run(context.Background(), Config{Strategy: engine.Atomic, Dist: datagen.Uniform, N: 1000, Workers: 4})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.Correct || res.Total != 1000 {
		t.Fatalf("correct=%v total=%d", res.Correct, res.Total)
	}
	if res.Skipped {
		t.Fatal("run should not be skipped")
	}
	if res.Throughput() <= 0 {
		t.Fatalf("throughput should be positive, got %f", res.Throughput())
	}
}

func TestRun_SkewedLocalHotShare(t *testing.T) {
	r := quietRunner()
	res, err := r.Run(context.Background(), Config{Strategy: engine.Local, Dist: datagen.Skewed, N: 100_000, Workers: 8})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.Correct {
		t.Fatal("skewed run should verify")
	}
	share := res.Hist.Share(0, datagen.HotBins)
	if share < 0.78 || share > 0.82 {
		t.Fatalf("hot share %.4f outside [0.78, 0.82]", share)
	}
}

func TestRun_StrategiesAgree(t *testing.T) {
	r := quietRunner()
	base := Config{Dist: datagen.Skewed, N: 50_000, Workers: 6, Grain: 777, Warmup: 1}
	var hists []Result
	for _, s := range []engine.Strategy{engine.Atomic, engine.Local} {
		for _, pad := range []bool{false, true} {
			cfg := base
			cfg.Strategy = s
			cfg.Padded = pad
			res, err := r.Run(context.Background(), cfg)
			if err != nil {
				t.Fatalf("%s: %v", cfg, err)
			}
			hists = append(hists, res)
		}
	}
	for _, h := range hists[1:] {
		if !h.Hist.Equal(&hists[0].Hist) {
			t.Fatalf("%s histogram differs from %s", h.Config, hists[0].Config)
		}
	}
}

func TestRun_ConfigErrorsBeforeWork(t *testing.T) {
	r := quietRunner()
	for _, cfg := range []Config{
		{Strategy: engine.Atomic, Dist: datagen.Uniform, N: 0, Workers: 4},
		{Strategy: engine.Atomic, Dist: datagen.Uniform, N: 1000, Workers: 0},
	} {
		res, err := r.Run(context.Background(), cfg)
		if !errors.Is(err, ErrConfig) {
			t.Fatalf("%s: want ErrConfig, got %v", cfg, err)
		}
		if res.Elapsed != 0 || res.Total != 0 {
			t.Fatalf("%s: aggregation should not have run: %+v", cfg, res)
		}
		if !res.Invalid || res.Skipped || res.SkipReason == "" {
			t.Fatalf("%s: want an invalid, unskipped result with a reason: %+v", cfg, res)
		}
	}
}

func TestRun_MismatchReturnsFullResult(t *testing.T) {
	r := lossyRunner()
	for _, s := range []engine.Strategy{engine.Atomic, engine.Local} {
		res, err := r.Run(context.Background(), Config{Strategy: s, Dist: datagen.Uniform, N: 1000, Workers: 4})
		if !errors.Is(err, ErrMismatch) {
			t.Fatalf("%s: want ErrMismatch, got %v", s, err)
		}
		if res.Correct || res.Total != 999 || res.Elapsed <= 0 {
			t.Fatalf("%s: want timed incorrect result with total 999, got correct=%v total=%d elapsed=%v",
				s, res.Correct, res.Total, res.Elapsed)
		}
		if res.Skipped || res.Invalid {
			t.Fatalf("%s: a mismatch is not a skip: %+v", s, res)
		}
	}
}

func TestRun_WorkerPanicIsWorkerFailure(t *testing.T) {
	r := panickyRunner()
	for _, warmup := range []int{0, 1} {
		res, err := r.Run(context.Background(), Config{Strategy: engine.Atomic, Dist: datagen.Uniform, N: 100, Workers: 2, Warmup: warmup})
		if !errors.Is(err, ErrWorkerFailed) {
			t.Fatalf("warmup=%d: want ErrWorkerFailed, got %v", warmup, err)
		}
		var wp *engine.WorkerPanic
		if !errors.As(err, &wp) || wp.Worker != 1 {
			t.Fatalf("warmup=%d: panic detail lost: %v", warmup, err)
		}
		if res.Correct || res.Skipped || res.Total != 0 {
			t.Fatalf("warmup=%d: no partial result expected: %+v", warmup, res)
		}
	}
}

func TestRun_AggregatorErrorWrapsWorkerFailed(t *testing.T) {
	r := quietRunner()
	r.Aggregator = func(engine.Strategy) (engine.Aggregator, error) { return failingAggregator{}, nil }
	_, err := r.Run(context.Background(), Config{Strategy: engine.Local, Dist: datagen.Uniform, N: 10, Workers: 1})
	if !errors.Is(err, ErrWorkerFailed) {
		t.Fatalf("want ErrWorkerFailed, got %v", err)
	}
}

type failingAggregator struct{}

func (failingAggregator) Strategy() engine.Strategy { return engine.Local }

func (failingAggregator) Aggregate(context.Context, []byte, partition.Plan, engine.Options) (histogram.Histogram, error) {
	return histogram.Histogram{}, errors.New("disk on fire")
}

func TestRun_BindFailureSkips(t *testing.T) {
	r := quietRunner()
	// Passes the core-count check but no such CPU exists to pin to.
	r.Cores = func() ([]int, error) { return []int{1023}, nil }
	res, err := r.Run(context.Background(), Config{Strategy: engine.Local, Dist: datagen.Uniform, N: 100, Workers: 1, Affinity: true})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("want ErrUnsupported from bind, got %v", err)
	}
	if !res.Skipped || res.SkipReason == "" || res.Correct {
		t.Fatalf("bind failure should skip the run: %+v", res)
	}
}

func TestRun_UnknownAggregatorIsConfigError(t *testing.T) {
	r := quietRunner()
	r.Aggregator = func(s engine.Strategy) (engine.Aggregator, error) {
		return nil, errors.Errorf("no aggregator for %s", s)
	}
	res, err := r.Run(context.Background(), Config{Strategy: engine.Atomic, Dist: datagen.Uniform, N: 10, Workers: 1})
	if !errors.Is(err, ErrConfig) || !res.Invalid {
		t.Fatalf("want invalid config result, got invalid=%v err=%v", res.Invalid, err)
	}
}

func TestRun_AffinityTooManyWorkersSkips(t *testing.T) {
	r := quietRunner()
	r.Cores = func() ([]int, error) { return []int{0, 1, 2, 3}, nil }
	res, err := r.Run(context.Background(), Config{Strategy: engine.Atomic, Dist: datagen.Uniform, N: 1000, Workers: 16, Affinity: true})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("want ErrUnsupported, got %v", err)
	}
	if !res.Skipped || res.SkipReason == "" {
		t.Fatalf("result should be marked skipped: %+v", res)
	}
	if res.Total != 0 {
		t.Fatal("no aggregation should have happened")
	}
}

func TestRun_AffinityDiscoveryFailureSkips(t *testing.T) {
	r := quietRunner()
	r.Cores = func() ([]int, error) { return nil, errors.Wrap(ErrUnsupported, "no sched_getaffinity") }
	res, err := r.Run(context.Background(), Config{Strategy: engine.Local, Dist: datagen.Uniform, N: 10, Workers: 1, Affinity: true})
	if !errors.Is(err, ErrUnsupported) || !res.Skipped {
		t.Fatalf("want skipped unsupported result, got skipped=%v err=%v", res.Skipped, err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	r := quietRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, Config{Strategy: engine.Atomic, Dist: datagen.Uniform, N: 1000, Workers: 2})
	if !errors.Is(err, ErrWorkerFailed) {
		t.Fatalf("cancelled run should surface as worker failure, got %v", err)
	}
}

func TestResult_ThroughputZeroElapsed(t *testing.T) {
	res := Result{Config: Config{N: 10}}
	if got := res.Throughput(); got != 10/time.Nanosecond.Seconds() {
		t.Fatalf("zero elapsed should clamp to 1ns, got %f", got)
	}
}
