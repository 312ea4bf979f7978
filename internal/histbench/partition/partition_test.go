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

package partition

import (
	"sync"
	"testing"
)

// checkCoverage asserts spans are contiguous, ordered, and cover [0, n) exactly once.
func checkCoverage(t *testing.T, p Plan, n int) {
	t.Helper()
	next := 0
	for i, s := range p.Spans {
		if s.Len() < 0 {
			t.Fatalf("span %d has negative length: %+v", i, s)
		}
		if s.Empty() {
			continue
		}
		if s.Start != next {
			t.Fatalf("span %d starts at %d, want %d (gap or overlap)", i, s.Start, next)
		}
		next = s.End
	}
	if next != n {
		t.Fatalf("coverage ends at %d, want %d", next, n)
	}
	if p.Total() != n {
		t.Fatalf("total=%d want %d", p.Total(), n)
	}
}

func TestSplit_CoverageGrid(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 100, 1000, 1023} {
		for _, workers := range []int{1, 2, 3, 4, 8, 16, 33} {
			for _, grain := range []int{0, 1, 3, 64, 5000} {
				p, err := Split(n, workers, grain, Static)
				if err != nil {
					t.Fatalf("Split(%d,%d,%d): %v", n, workers, grain, err)
				}
				checkCoverage(t, p, n)
				if grain == 0 && len(p.Spans) != workers {
					t.Fatalf("auto split: %d spans, want %d", len(p.Spans), workers)
				}
			}
		}
	}
}

func TestSplit_AutoChunkSizes(t *testing.T) {
	p, err := Split(10, 4, 0, Static)
	if err != nil {
		t.Fatal(err)
	}
	want := []Span{{0, 3}, {3, 6}, {6, 9}, {9, 10}}
	for i, s := range want {
		if p.Spans[i] != s {
			t.Fatalf("span %d=%+v want %+v", i, p.Spans[i], s)
		}
	}
}

func TestSplit_MoreWorkersThanSamples(t *testing.T) {
	p, err := Split(3, 8, 0, Static)
	if err != nil {
		t.Fatal(err)
	}
	empty := 0
	for _, s := range p.Spans {
		if s.Empty() {
			empty++
		}
	}
	if empty != 5 {
		t.Fatalf("expected 5 empty spans, got %d", empty)
	}
	checkCoverage(t, p, 3)
}

func TestSplit_GrainShortTail(t *testing.T) {
	p, err := Split(10, 2, 4, Static)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Spans) != 3 || p.Spans[2] != (Span{8, 10}) {
		t.Fatalf("unexpected spans: %+v", p.Spans)
	}
}

func TestSplit_Errors(t *testing.T) {
	if _, err := Split(10, 0, 0, Static); err == nil {
		t.Fatal("workers=0 should fail")
	}
	if _, err := Split(-1, 2, 0, Static); err == nil {
		t.Fatal("negative size should fail")
	}
	if _, err := Split(10, 2, -1, Static); err == nil {
		t.Fatal("negative grain should fail")
	}
}

func TestScheduler_VisitsEverySpanOnce(t *testing.T) {
	for _, kind := range []ScheduleKind{Static, Dynamic} {
		for _, workers := range []int{1, 3, 8} {
			p, err := Split(10_000, workers, 37, kind)
			if err != nil {
				t.Fatal(err)
			}
			sched := p.NewScheduler()
			visits := make([]int32, p.N)
			var mu sync.Mutex
			var wg sync.WaitGroup
			wg.Add(workers)
			for w := 0; w < workers; w++ {
				go func(id int) {
					defer wg.Done()
					sched.Run(id, func(s Span) {
						mu.Lock()
						for i := s.Start; i < s.End; i++ {
							visits[i]++
						}
						mu.Unlock()
					})
				}(w)
			}
			wg.Wait()
			for i, v := range visits {
				if v != 1 {
					t.Fatalf("%s/%d workers: index %d visited %d times", kind, workers, i, v)
				}
			}
		}
	}
}

func TestScheduler_StaticRoundRobin(t *testing.T) {
	p, _ := Split(10, 2, 2, Static)
	var got []Span
	p.NewScheduler().Run(1, func(s Span) { got = append(got, s) })
	want := []Span{{2, 4}, {6, 8}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("worker 1 got %+v want %+v", got, want)
	}
}

func TestParseSchedule(t *testing.T) {
	if k, err := ParseSchedule(""); err != nil || k != Static {
		t.Fatalf("empty -> static, got %q %v", k, err)
	}
	if k, err := ParseSchedule("Dynamic"); err != nil || k != Dynamic {
		t.Fatalf("got %q %v", k, err)
	}
	if _, err := ParseSchedule("guided"); err == nil {
		t.Fatal("expected error")
	}
}
