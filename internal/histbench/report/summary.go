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

package report

import (
	"fmt"
	"io"
	"strings"

	"histbench/internal/histbench/core"
)

// Summary groups sweep results by configuration (everything but the worker
// count) and prints one table per group, in the order groups first appeared.
type Summary struct {
	order  []string
	groups map[string][]core.Result
}

func NewSummary() *Summary {
	return &Summary{groups: make(map[string][]core.Result)}
}

// Add records res under its group.
func (s *Summary) Add(res core.Result) {
	key := groupKey(res.Config)
	if _, ok := s.groups[key]; !ok {
		s.order = append(s.order, key)
	}
	s.groups[key] = append(s.groups[key], res)
}

// Len returns the number of recorded results.
func (s *Summary) Len() int {
	n := 0
	for _, g := range s.groups {
		n += len(g)
	}
	return n
}

func groupKey(c core.Config) string {
	c.Workers = 0
	return fmt.Sprintf("%s,%s,%d,%d,%t,%t,%s,%s", c.Strategy, c.Dist, c.N, c.Grain, c.Padded, c.Affinity, c.Schedule, c.Reduction)
}

// Print writes every group's table.
func (s *Summary) Print(w io.Writer) {
	sep := strings.Repeat("-", 72)
	for _, key := range s.order {
		rows := s.groups[key]
		c := rows[0].Config
		fmt.Fprintf(w, "Strategy %s, %s distribution, N=%s, grain=%d, pad=%t, affinity=%t\n",
			c.Strategy, c.Dist, HumanInt(int64(c.N)), c.Grain, c.Padded, c.Affinity)
		fmt.Fprintln(w, sep)
		fmt.Fprintf(w, "%7s | %10s | %21s | %9s | %10s\n", "Threads", "Time (ms)", "Throughput (M elem/s)", "Speedup", "Efficiency")
		fmt.Fprintln(w, sep)
		for _, r := range rows {
			if r.Invalid || r.Skipped {
				status := "skipped"
				if r.Invalid {
					status = "invalid"
				}
				fmt.Fprintf(w, "%7d | %10s | %21s | %9s | %10s\n", r.Config.Workers, status, "-", "-", "-")
				continue
			}
			speedup, eff := Undefined, Undefined
			if r.HasBaseline {
				speedup = fmt.Sprintf("%.2f", r.Speedup)
				eff = fmt.Sprintf("%.1f%%", r.Efficiency)
			}
			fmt.Fprintf(w, "%7d | %10.2f | %21.2f | %9s | %10s\n",
				r.Config.Workers, float64(r.Elapsed.Nanoseconds())/1e6, r.Throughput()/1e6, speedup, eff)
		}
		fmt.Fprintln(w, sep)
		fmt.Fprintln(w)
	}
}

// HumanInt formats n with thousands separators.
func HumanInt(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := ""
	if strings.HasPrefix(s, "-") {
		neg = "-"
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i != 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return neg + string(out)
}
