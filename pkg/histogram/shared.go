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

package histogram

import "sync/atomic"

// cache line size varies; we over-pad to 128 bytes to cover adjacent-line prefetch
const padBytes = 128

// counterBytes is the size of one atomic.Uint64 cell.
const counterBytes = 8

// Shared is a histogram of atomic counters safe for concurrent Inc from any
// number of goroutines without locks.
//
// Padding only changes the distance between consecutive bins: unpadded bins
// are packed 8 bytes apart, padded bins sit padBytes apart so that no two bins
// share a cache line. The increment path is identical in both layouts.
type Shared struct {
	cells  []atomic.Uint64
	stride int // cells per bin: 1 unpadded, padBytes/counterBytes padded
}

// NewShared allocates a zeroed shared histogram.
func NewShared(padded bool) *Shared {
	stride := 1
	if padded {
		stride = padBytes / counterBytes
	}
	return &Shared{
		cells:  make([]atomic.Uint64, BinCount*stride),
		stride: stride,
	}
}

// Inc atomically increments the bin for v. Callers rely only on atomicity of
// the single add; no ordering with other bins is implied.
func (s *Shared) Inc(v byte) {
	s.cells[int(v)*s.stride].Add(1)
}

// AddAll increments the bin of every sample in samples, one atomic add each.
func (s *Shared) AddAll(samples []byte) {
	cells, stride := s.cells, s.stride
	for _, v := range samples {
		cells[int(v)*stride].Add(1)
	}
}

// Load returns the current count of bin v.
func (s *Shared) Load(v byte) uint64 {
	return s.cells[int(v)*s.stride].Load()
}

// Snapshot copies the counters into a plain Histogram. It is only a consistent
// view once every writer has finished; the caller's join provides that edge.
func (s *Shared) Snapshot() Histogram {
	var h Histogram
	for i := range h {
		h[i] = s.cells[i*s.stride].Load()
	}
	return h
}
