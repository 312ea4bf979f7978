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

// Package datagen produces the reproducible sample sequences fed to the
// histogram engine. The same distribution and size always yield byte-identical
// output, so every strategy and worker count is measured on the same input.
package datagen

import (
	"fmt"
	"strings"

	"histbench/pkg/histogram"
)

// Distribution selects the statistical shape of a generated sequence.
type Distribution string

const (
	Uniform Distribution = "uniform"
	Skewed  Distribution = "skewed"
)

// LCG constants (Numerical Recipes).
const (
	lcgMul = 1664525
	lcgInc = 1013904223
)

// Fixed seeds; one per distribution.
const (
	uniformSeed uint32 = 123456789
	skewedSeed  uint32 = 987654321
)

// HotBins is the size of the hot region of a skewed sequence: the first 20% of
// bins, truncated (bins 0..50).
const HotBins = histogram.BinCount * 20 / 100

// hotThreshold is the cut in the 32-bit generator space below which a skewed
// sample lands in a hot bin: 80% of 2^32-1.
const hotThreshold uint32 = 4294967295 / 5 * 4

// ParseDistribution maps a CLI token to a Distribution.
func ParseDistribution(s string) (Distribution, error) {
	switch d := Distribution(strings.ToLower(strings.TrimSpace(s))); d {
	case Uniform, Skewed:
		return d, nil
	default:
		return "", fmt.Errorf("unknown distribution %q (use uniform|skewed)", s)
	}
}

// Valid reports whether d is a known distribution.
func (d Distribution) Valid() bool { return d == Uniform || d == Skewed }

func lcgNext(x uint32) uint32 { return x*lcgMul + lcgInc }

// Generate returns n samples of distribution d. It panics on an unknown
// distribution; callers validate with ParseDistribution first.
func Generate(d Distribution, n int) []byte {
	out := make([]byte, n)
	Fill(d, out)
	return out
}

// Fill overwrites dst with the first len(dst) samples of distribution d.
func Fill(d Distribution, dst []byte) {
	switch d {
	case Uniform:
		fillUniform(dst)
	case Skewed:
		fillSkewed(dst)
	default:
		panic("datagen: unknown distribution " + string(d))
	}
}

func fillUniform(dst []byte) {
	x := uniformSeed
	for i := range dst {
		x = lcgNext(x)
		dst[i] = byte(x)
	}
}

func fillSkewed(dst []byte) {
	x := skewedSeed
	for i := range dst {
		x = lcgNext(x)
		if x < hotThreshold {
			dst[i] = byte(x % uint32(HotBins))
			continue
		}
		v := byte(x)
		if int(v) < HotBins {
			v += byte(HotBins)
		}
		dst[i] = v
	}
}
