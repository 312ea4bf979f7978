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
	"sort"

	"github.com/pkg/errors"
)

// DefaultThreads is the worker-count ladder swept when none is given.
var DefaultThreads = []int{1, 2, 4, 8, 16}

// NormalizeThreads sorts and dedupes counts and makes sure the single-worker
// baseline runs first. Non-positive counts are kept, after the baseline, so
// that the sweep reports them as configuration errors.
func NormalizeThreads(counts []int) []int {
	seen := map[int]bool{1: true}
	out := []int{1}
	for _, t := range counts {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Ints(out[1:])
	return out
}

// Sweep runs base once per worker count in threads (baseline first) and calls
// emit with every result, including skipped ones, along with the error that
// run returned.
//
// The single-worker elapsed time is the baseline for speedup and efficiency.
// If the baseline run is skipped, later results carry HasBaseline=false rather
// than a ratio against a stale value. Configuration errors and unsupported
// configurations are reported and skipped; a verification or worker failure
// stops the sweep and is returned.
func (r *Runner) Sweep(ctx context.Context, base Config, threads []int, emit func(Result, error)) error {
	var (
		baseline     float64
		haveBaseline bool
	)
	for _, t := range NormalizeThreads(threads) {
		cfg := base
		cfg.Workers = t
		res, err := r.Run(ctx, cfg)
		switch {
		case errors.Is(err, ErrConfig):
			r.log().WithFields(cfg.Fields()).WithError(err).Warn("configuration rejected; skipping")
			emit(res, err)
			continue
		case errors.Is(err, ErrUnsupported):
			r.log().WithFields(cfg.Fields()).WithField("reason", res.SkipReason).Warn("configuration unsupported; skipping")
			emit(res, err)
			continue
		case err != nil:
			emit(res, err)
			return err
		}
		if t == 1 {
			baseline, haveBaseline = seconds(res.Elapsed), true
		}
		if haveBaseline {
			res.HasBaseline = true
			res.Speedup = baseline / seconds(res.Elapsed)
			res.Efficiency = res.Speedup / float64(t) * 100
		}
		emit(res, nil)
	}
	return nil
}
