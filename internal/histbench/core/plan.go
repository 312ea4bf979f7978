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
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"histbench/internal/histbench/datagen"
	"histbench/internal/histbench/engine"
	"histbench/internal/histbench/partition"
)

// Plan describes a sweep matrix. Each (strategy, distribution, size, padding,
// affinity) combination becomes one Sweep over Threads.
//
// Example file:
//
//	strategies    = ["atomic", "local"]
//	distributions = ["uniform", "skewed"]
//	sizes         = [10000000, 100000000]
//	threads       = [1, 2, 4, 8, 16]
//	padding       = [false, true]
//	affinity      = [false]
//	grain         = 0
//	schedule      = "static"
//	reduction     = "fold"
//	warmup        = 1
type Plan struct {
	Strategies    []string `toml:"strategies"`
	Distributions []string `toml:"distributions"`
	Sizes         []int    `toml:"sizes"`
	Threads       []int    `toml:"threads"`
	Padding       []bool   `toml:"padding"`
	Affinity      []bool   `toml:"affinity"`
	Grain         int      `toml:"grain"`
	Schedule      string   `toml:"schedule"`
	Reduction     string   `toml:"reduction"`
	Warmup        int      `toml:"warmup"`
}

// DefaultPlan mirrors the classic controllability matrix: both strategies,
// both distributions, 10M and 100M samples, 1..16 workers.
func DefaultPlan() Plan {
	return Plan{
		Strategies:    []string{string(engine.Atomic), string(engine.Local)},
		Distributions: []string{string(datagen.Uniform), string(datagen.Skewed)},
		Sizes:         []int{10_000_000, 100_000_000},
		Threads:       append([]int(nil), DefaultThreads...),
		Padding:       []bool{false},
		Affinity:      []bool{false},
		Schedule:      string(partition.Static),
		Reduction:     string(engine.Fold),
		Warmup:        1,
	}
}

// LoadPlan reads a TOML plan. Keys absent from the file keep their
// DefaultPlan values; unknown keys are rejected.
func LoadPlan(path string) (Plan, error) {
	p := DefaultPlan()
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return Plan{}, errors.Wrapf(err, "decode plan %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Plan{}, errors.Wrapf(ErrConfig, "plan %s: unknown keys %v", path, undecoded)
	}
	return p, nil
}

// Rejected is a plan entry that does not form a valid configuration. Workers
// is unset, as in the configurations Configs returns.
type Rejected struct {
	Config Config
	Err    error
}

// Configs expands the plan into base configurations (Workers unset). Padding
// only varies for the atomic strategy; the local strategy runs unpadded once.
//
// Combinations with an unknown strategy or distribution, or a non-positive
// size, are returned in rejected and the rest still run. An unknown schedule
// or reduction applies to every combination and fails the whole plan, as
// does a plan with nothing left to run. Errors wrap ErrConfig.
func (p Plan) Configs() (cfgs []Config, rejected []Rejected, err error) {
	schedule, err := partition.ParseSchedule(p.Schedule)
	if err != nil {
		return nil, nil, errors.Wrap(ErrConfig, err.Error())
	}
	reduction, err := engine.ParseReduction(p.Reduction)
	if err != nil {
		return nil, nil, errors.Wrap(ErrConfig, err.Error())
	}
	padding := p.Padding
	if len(padding) == 0 {
		padding = []bool{false}
	}
	pinning := p.Affinity
	if len(pinning) == 0 {
		pinning = []bool{false}
	}

	for _, s := range p.Strategies {
		strategy, err := engine.ParseStrategy(s)
		if err != nil {
			strategy = engine.Strategy(s)
		}
		pads := padding
		if strategy != engine.Atomic {
			pads = []bool{false}
		}
		for _, d := range p.Distributions {
			dist, err := datagen.ParseDistribution(d)
			if err != nil {
				dist = datagen.Distribution(d)
			}
			for _, n := range p.Sizes {
				for _, pad := range pads {
					for _, pin := range pinning {
						c := Config{
							Strategy:  strategy,
							Dist:      dist,
							N:         n,
							Grain:     p.Grain,
							Padded:    pad,
							Affinity:  pin,
							Schedule:  schedule,
							Reduction: reduction,
							Warmup:    p.Warmup,
						}
						if err := c.validateBase(); err != nil {
							rejected = append(rejected, Rejected{Config: c, Err: err})
							continue
						}
						cfgs = append(cfgs, c)
					}
				}
			}
		}
	}
	if len(cfgs) == 0 {
		return nil, rejected, errors.Wrap(ErrConfig, "plan expands to no runnable configurations")
	}
	return cfgs, rejected, nil
}

// validateBase validates c as if it ran on one worker.
func (c Config) validateBase() error {
	c.Workers = 1
	return c.Validate()
}
