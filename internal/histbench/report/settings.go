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
	"sort"
	"strings"
	"sync"
	"time"
)

// Settings captures the effective knobs of a process for the final summary.
// It is safe for concurrent use.
type Settings struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewSettings() *Settings {
	return &Settings{m: make(map[string]string)}
}

func (s *Settings) Set(name, value string) {
	s.mu.Lock()
	s.m[name] = value
	s.mu.Unlock()
}

func (s *Settings) SetInt(name string, v int64)              { s.Set(name, fmt.Sprintf("%d", v)) }
func (s *Settings) SetDuration(name string, d time.Duration) { s.Set(name, d.String()) }
func (s *Settings) SetFloat(name string, f float64)          { s.Set(name, fmt.Sprintf("%g", f)) }
func (s *Settings) SetBool(name string, b bool)              { s.Set(name, fmt.Sprintf("%t", b)) }

// Snapshot returns a copy for stable iteration.
func (s *Settings) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// Print writes the settings as a two-column table sorted by name. Nothing is
// written when no setting was captured.
func (s *Settings) Print(w io.Writer) {
	snap := s.Snapshot()
	if len(snap) == 0 {
		return
	}
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sep := strings.Repeat("-", 60)
	fmt.Fprintln(w, "Configured settings")
	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "%-30s %24s\n", "Name", "Value")
	fmt.Fprintln(w, sep)
	for _, k := range keys {
		fmt.Fprintf(w, "%-30s %24s\n", k, snap[k])
	}
	fmt.Fprintln(w, sep)
}
