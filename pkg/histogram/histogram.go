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

// Package histogram provides the 256-bin byte histogram used by the benchmark
// engine, in two shapes: a plain value array that a single owner mutates
// freely, and a Shared array of atomic counters that many workers may update
// concurrently.
package histogram

// BinCount is the number of bins; one per possible byte value.
const BinCount = 256

// Histogram is a plain, non-atomic counter array. The zero value is an empty
// histogram. It is owned by exactly one goroutine at a time.
type Histogram [BinCount]uint64

// Add counts every sample in s.
func (h *Histogram) Add(s []byte) {
	for _, v := range s {
		h[v]++
	}
}

// Merge adds every bin of o into h.
func (h *Histogram) Merge(o *Histogram) {
	for i := range h {
		h[i] += o[i]
	}
}

// Sum returns the total count across all bins.
func (h *Histogram) Sum() uint64 {
	var total uint64
	for _, c := range h {
		total += c
	}
	return total
}

// RangeSum returns the total count of bins [lo, hi).
func (h *Histogram) RangeSum(lo, hi int) uint64 {
	if lo < 0 {
		lo = 0
	}
	if hi > BinCount {
		hi = BinCount
	}
	var total uint64
	for i := lo; i < hi; i++ {
		total += h[i]
	}
	return total
}

// Share returns the fraction of the total held by bins [lo, hi). An empty
// histogram has a share of 0.
func (h *Histogram) Share(lo, hi int) float64 {
	total := h.Sum()
	if total == 0 {
		return 0
	}
	return float64(h.RangeSum(lo, hi)) / float64(total)
}

// Equal reports whether both histograms hold identical counts in every bin.
func (h *Histogram) Equal(o *Histogram) bool {
	return *h == *o
}

// Verify reports whether the bins of h sum to exactly expected. A false result
// means samples were lost or double counted.
func Verify(h *Histogram, expected uint64) bool {
	return h.Sum() == expected
}
