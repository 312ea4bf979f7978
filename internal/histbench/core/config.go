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

// Package core runs the histogram benchmark protocol: validate a run
// configuration, generate the input, partition it, time one aggregation, and
// verify the result. Sweeps repeat that protocol across worker counts and
// derive speedup and efficiency from the single-worker baseline.
package core

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"histbench/internal/histbench/affinity"
	"histbench/internal/histbench/datagen"
	"histbench/internal/histbench/engine"
	"histbench/internal/histbench/partition"
)

var (
	// ErrConfig marks an invalid run configuration, detected before any timed work.
	ErrConfig = errors.New("configuration error")
	// ErrUnsupported marks a configuration the platform cannot run (affinity).
	ErrUnsupported = affinity.ErrUnsupported
	// ErrMismatch marks a histogram whose bins do not sum to the input size.
	ErrMismatch = errors.New("histogram verification failed")
	// ErrWorkerFailed marks an aggregation worker that failed during the scan.
	ErrWorkerFailed = engine.ErrWorkerFailed
)

// Config is one run configuration. It is immutable once validated.
type Config struct {
	Strategy  engine.Strategy
	Dist      datagen.Distribution
	N         int
	Workers   int
	Grain     int // 0 = automatic
	Padded    bool
	Affinity  bool
	Schedule  partition.ScheduleKind
	Reduction engine.Reduction
	Warmup    int // untimed aggregation passes before the timed one
}

// Validate reports the first problem with c, wrapped in ErrConfig.
func (c Config) Validate() error {
	switch {
	case c.Strategy != engine.Atomic && c.Strategy != engine.Local:
		return errors.Wrapf(ErrConfig, "unknown strategy %q (use atomic|local)", c.Strategy)
	case !c.Dist.Valid():
		return errors.Wrapf(ErrConfig, "unknown distribution %q (use uniform|skewed)", c.Dist)
	case c.N <= 0:
		return errors.Wrapf(ErrConfig, "N must be positive, got %d", c.N)
	case c.Workers <= 0:
		return errors.Wrapf(ErrConfig, "T must be positive, got %d", c.Workers)
	case c.Grain < 0:
		return errors.Wrapf(ErrConfig, "grain must be non-negative, got %d", c.Grain)
	case c.Warmup < 0:
		return errors.Wrapf(ErrConfig, "warmup must be non-negative, got %d", c.Warmup)
	}
	if _, err := partition.ParseSchedule(string(c.Schedule)); err != nil {
		return errors.Wrap(ErrConfig, err.Error())
	}
	if _, err := engine.ParseReduction(string(c.Reduction)); err != nil {
		return errors.Wrap(ErrConfig, err.Error())
	}
	return nil
}

// String renders c in the key=value shape used by report lines.
func (c Config) String() string {
	return fmt.Sprintf("strategy=%s,dist=%s,N=%d,T=%d,grain=%d,pad=%d,affinity=%d",
		c.Strategy, c.Dist, c.N, c.Workers, c.Grain, boolInt(c.Padded), boolInt(c.Affinity))
}

// Fields returns c as structured log fields.
func (c Config) Fields() logrus.Fields {
	return logrus.Fields{
		"strategy": c.Strategy,
		"dist":     c.Dist,
		"n":        c.N,
		"workers":  c.Workers,
		"grain":    c.Grain,
		"pad":      c.Padded,
		"affinity": c.Affinity,
	}
}

// ParseInvocation parses the positional surface
//
//	<strategy> <dist> <N> <T> [grain] [pad] [affinity]
//
// and validates the result. Errors wrap ErrConfig.
func ParseInvocation(args []string) (Config, error) {
	if len(args) < 4 || len(args) > 7 {
		return Config{}, errors.Wrapf(ErrConfig, "expected 4 to 7 arguments, got %d", len(args))
	}
	strategy, err := engine.ParseStrategy(args[0])
	if err != nil {
		return Config{}, errors.Wrap(ErrConfig, err.Error())
	}
	dist, err := datagen.ParseDistribution(args[1])
	if err != nil {
		return Config{}, errors.Wrap(ErrConfig, err.Error())
	}
	cfg := Config{Strategy: strategy, Dist: dist, Schedule: partition.Static, Reduction: engine.Fold}
	if cfg.N, err = parseInt("N", args[2]); err != nil {
		return Config{}, err
	}
	if cfg.Workers, err = parseInt("T", args[3]); err != nil {
		return Config{}, err
	}
	if len(args) > 4 {
		if cfg.Grain, err = parseInt("grain", args[4]); err != nil {
			return Config{}, err
		}
	}
	if len(args) > 5 {
		if cfg.Padded, err = ParseFlag("pad", args[5]); err != nil {
			return Config{}, err
		}
	}
	if len(args) > 6 {
		if cfg.Affinity, err = ParseFlag("affinity", args[6]); err != nil {
			return Config{}, err
		}
	}
	return cfg, cfg.Validate()
}

func parseInt(name, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(ErrConfig, "%s: %q is not an integer", name, s)
	}
	return v, nil
}

// ParseFlag parses a 0/1 switch named name. Errors wrap ErrConfig.
func ParseFlag(name, s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, errors.Wrapf(ErrConfig, "%s: %q is not 0/1", name, s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
