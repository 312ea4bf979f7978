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

package engine

import (
	"sync"

	"histbench/pkg/histogram"
)

// Reduce sums parts into one histogram. parts is consumed: its elements are
// used as scratch space by the tree reduction.
func Reduce(parts []histogram.Histogram, mode Reduction) histogram.Histogram {
	switch {
	case len(parts) == 0:
		return histogram.Histogram{}
	case mode == Tree:
		return reduceTree(parts)
	default:
		return reduceFold(parts)
	}
}

func reduceFold(parts []histogram.Histogram) histogram.Histogram {
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out.Merge(&parts[i])
	}
	return out
}

// reduceTree merges parts[i+step] into parts[i] for every pair at each level,
// doubling step until parts[0] holds the total.
func reduceTree(parts []histogram.Histogram) histogram.Histogram {
	for step := 1; step < len(parts); step *= 2 {
		var wg sync.WaitGroup
		for i := 0; i+step < len(parts); i += 2 * step {
			wg.Add(1)
			go func(dst, src *histogram.Histogram) {
				defer wg.Done()
				dst.Merge(src)
			}(&parts[i], &parts[i+step])
		}
		wg.Wait()
	}
	return parts[0]
}
