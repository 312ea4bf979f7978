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

// Package report renders run results: one machine-parseable line per metric
// for stdout, and a human summary table for the end of a sweep.
package report

import (
	"fmt"
	"io"
	"strconv"

	"histbench/internal/histbench/core"
)

// DefaultEngine tags lines produced by this implementation.
const DefaultEngine = "go"

// Undefined is printed in place of speedup and efficiency when the sweep has
// no single-worker baseline.
const Undefined = "undefined"

// Metric is one reported value. Value is already formatted.
type Metric struct {
	Name  string
	Value string
	Unit  string
}

// Metrics returns the metrics for res in output order. Sweep results also
// carry speedup and efficiency. A rejected or skipped result reports only
// that, so configuration errors and unsupported platforms stay distinguishable.
func Metrics(res core.Result, sweep bool) []Metric {
	if res.Invalid {
		return []Metric{{Name: "config_error", Value: "1", Unit: "boolean"}}
	}
	if res.Skipped {
		return []Metric{{Name: "skipped", Value: "1", Unit: "boolean"}}
	}
	correct := "0"
	if res.Correct {
		correct = "1"
	}
	out := []Metric{
		{Name: "time", Value: strconv.FormatFloat(res.Elapsed.Seconds(), 'f', 6, 64), Unit: "sec"},
		{Name: "correct", Value: correct, Unit: "boolean"},
		{Name: "throughput", Value: strconv.FormatFloat(res.Throughput()/1e6, 'f', 2, 64), Unit: "Melem/s"},
	}
	if !sweep {
		return out
	}
	speedup, efficiency := Undefined, Undefined
	if res.HasBaseline {
		speedup = strconv.FormatFloat(res.Speedup, 'f', 4, 64)
		efficiency = strconv.FormatFloat(res.Efficiency, 'f', 2, 64)
	}
	return append(out,
		Metric{Name: "speedup", Value: speedup, Unit: "ratio"},
		Metric{Name: "efficiency", Value: efficiency, Unit: "percent"},
	)
}

// Line formats one metric of cfg.
func Line(engine string, cfg core.Config, m Metric) string {
	return fmt.Sprintf("hist,%s,%s,%s,%s,%s", engine, cfg, m.Name, m.Value, m.Unit)
}

// Writer emits result lines to an output stream.
type Writer struct {
	Out    io.Writer
	Engine string
	// Sweep adds speedup and efficiency lines.
	Sweep bool
}

// NewWriter returns a Writer tagging lines with DefaultEngine when engine is empty.
func NewWriter(out io.Writer, engine string, sweep bool) *Writer {
	if engine == "" {
		engine = DefaultEngine
	}
	return &Writer{Out: out, Engine: engine, Sweep: sweep}
}

// Emit writes every metric line of res.
func (w *Writer) Emit(res core.Result) error {
	for _, m := range Metrics(res, w.Sweep) {
		if _, err := fmt.Fprintln(w.Out, Line(w.Engine, res.Config, m)); err != nil {
			return err
		}
	}
	return nil
}
