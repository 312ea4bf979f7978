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
	"math"
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"histbench/internal/histbench/datagen"
	"histbench/internal/histbench/engine"
)

func TestNormalizeThreads(t *testing.T) {
	cases := []struct {
		in, want []int
	}{
		{nil, []int{1}},
		{[]int{1, 2, 4, 8, 16}, []int{1, 2, 4, 8, 16}},
		{[]int{8, 2, 8, 0, -3, 4}, []int{1, -3, 0, 2, 4, 8}},
		{[]int{16, 1, 1}, []int{1, 16}},
	}
	for _, c := range cases {
		if got := NormalizeThreads(c.in); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("NormalizeThreads(%v)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestSweep_BaselineIdentity(t *testing.T) {
	r := quietRunner()
	base := Config{Strategy: engine.Local, Dist: datagen.Uniform, N: 20_000}
	var got []Result
	if err := r.Sweep(context.Background(), base, []int{2, 4}, func(res Result, _ error) { got = append(got, res) }); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 results (T=1,2,4), got %d", len(got))
	}
	first := got[0]
	if first.Config.Workers != 1 || !first.HasBaseline {
		t.Fatalf("first result should be the baseline: %+v", first.Config)
	}
	if math.Abs(first.Speedup-1) > 1e-9 || math.Abs(first.Efficiency-100) > 1e-6 {
		t.Fatalf("baseline speedup=%f efficiency=%f, want 1 and 100", first.Speedup, first.Efficiency)
	}
	for _, res := range got {
		if !res.Correct || !res.HasBaseline {
			t.Fatalf("T=%d: correct=%v baseline=%v", res.Config.Workers, res.Correct, res.HasBaseline)
		}
		want := res.Speedup / float64(res.Config.Workers) * 100
		if math.Abs(res.Efficiency-want) > 1e-9 {
			t.Fatalf("T=%d: efficiency %f != speedup/T*100 %f", res.Config.Workers, res.Efficiency, want)
		}
	}
}

func TestSweep_SkippedBaselineLeavesSpeedupUndefined(t *testing.T) {
	r := quietRunner()
	// Core discovery fails, so every configuration including T=1 is skipped.
	r.Cores = func() ([]int, error) { return nil, errors.Wrap(ErrUnsupported, "no cores") }
	base := Config{Strategy: engine.Atomic, Dist: datagen.Uniform, N: 1000, Affinity: true}
	var got []Result
	if err := r.Sweep(context.Background(), base, []int{2}, func(res Result, _ error) { got = append(got, res) }); err != nil {
		t.Fatalf("unsupported configurations must not fail the sweep: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 results, got %d", len(got))
	}
	for _, res := range got {
		if !res.Skipped || res.HasBaseline {
			t.Fatalf("T=%d: skipped=%v hasBaseline=%v", res.Config.Workers, res.Skipped, res.HasBaseline)
		}
	}
}

func TestSweep_UnsupportedWorkerCountContinues(t *testing.T) {
	r := quietRunner()
	r.Cores = func() ([]int, error) { return []int{0, 1}, nil }
	base := Config{Strategy: engine.Local, Dist: datagen.Uniform, N: 1000, Affinity: true}
	var got []Result
	if err := r.Sweep(context.Background(), base, []int{16}, func(res Result, _ error) { got = append(got, res) }); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 results, got %d", len(got))
	}
	if !got[1].Skipped || got[1].Config.Workers != 16 {
		t.Fatalf("T=16 should be skipped on 2 cores: %+v", got[1])
	}
}

func TestSweep_ConfigErrorSkipsEntry(t *testing.T) {
	r := quietRunner()
	base := Config{Strategy: engine.Atomic, Dist: datagen.Uniform, N: 0}
	var got []Result
	if err := r.Sweep(context.Background(), base, []int{2}, func(res Result, _ error) { got = append(got, res) }); err != nil {
		t.Fatalf("config errors skip, they do not abort: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 results, got %d", len(got))
	}
	for _, res := range got {
		if !res.Invalid || res.Skipped {
			t.Fatalf("T=%d should be reported invalid, not skipped: %+v", res.Config.Workers, res)
		}
	}
}

func TestSweep_NonPositiveThreadsReported(t *testing.T) {
	r := quietRunner()
	base := Config{Strategy: engine.Local, Dist: datagen.Uniform, N: 5000}
	var got []Result
	var errs []error
	emit := func(res Result, err error) {
		got = append(got, res)
		errs = append(errs, err)
	}
	if err := r.Sweep(context.Background(), base, []int{0, 2}, emit); err != nil {
		t.Fatalf("a bad thread count must not abort the sweep: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want results for T=1,0,2, got %d", len(got))
	}
	if got[1].Config.Workers != 0 || !got[1].Invalid || !errors.Is(errs[1], ErrConfig) {
		t.Fatalf("T=0 should be reported as a configuration error: %+v err=%v", got[1], errs[1])
	}
	if !got[2].Correct || !got[2].HasBaseline || errs[2] != nil {
		t.Fatalf("T=2 should still run against the baseline: %+v err=%v", got[2], errs[2])
	}
}

func TestSweep_MismatchStops(t *testing.T) {
	r := lossyRunner()
	var got []Result
	err := r.Sweep(context.Background(), Config{Strategy: engine.Atomic, Dist: datagen.Skewed, N: 2000}, []int{2, 4}, func(res Result, _ error) {
		got = append(got, res)
	})
	if !errors.Is(err, ErrMismatch) {
		t.Fatalf("want ErrMismatch, got %v", err)
	}
	if len(got) != 1 || got[0].Correct || got[0].Config.Workers != 1 {
		t.Fatalf("sweep should stop after the first incorrect result, got %d results", len(got))
	}
}

func TestSweep_WorkerFailureStops(t *testing.T) {
	r := panickyRunner()
	calls := 0
	var last error
	err := r.Sweep(context.Background(), Config{Strategy: engine.Atomic, Dist: datagen.Uniform, N: 100}, []int{2}, func(_ Result, err error) {
		calls++
		last = err
	})
	if !errors.Is(err, ErrWorkerFailed) || !errors.Is(last, ErrWorkerFailed) {
		t.Fatalf("want ErrWorkerFailed returned and emitted, got %v / %v", err, last)
	}
	if calls != 1 {
		t.Fatalf("sweep should stop at the failing baseline, emitted %d", calls)
	}
}

func TestSweep_CancelledContextAborts(t *testing.T) {
	r := quietRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := r.Sweep(ctx, Config{Strategy: engine.Atomic, Dist: datagen.Uniform, N: 1000}, []int{2, 4}, func(Result, error) { calls++ })
	if !errors.Is(err, ErrWorkerFailed) {
		t.Fatalf("want ErrWorkerFailed, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("sweep should stop at the first fatal result, emitted %d", calls)
	}
}
