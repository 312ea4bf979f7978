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

// Package sink publishes result records to external collectors: a local JSONL
// file (optionally zstd-compressed), a Redis stream, or a Kafka topic.
//
// Sinks only write. Nothing here is read back by later runs; each invocation
// measures from scratch.
package sink

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"histbench/internal/histbench/core"
)

// Record is the published shape of one run result.
type Record struct {
	Engine     string   `json:"engine"`
	Strategy   string   `json:"strategy"`
	Dist       string   `json:"dist"`
	N          int      `json:"n"`
	Workers    int      `json:"workers"`
	Grain      int      `json:"grain"`
	Pad        bool     `json:"pad"`
	Affinity   bool     `json:"affinity"`
	Schedule   string   `json:"schedule,omitempty"`
	Reduction  string   `json:"reduction,omitempty"`
	ElapsedSec float64  `json:"elapsed_sec"`
	Correct    bool     `json:"correct"`
	Throughput float64  `json:"throughput"`
	Speedup    *float64 `json:"speedup,omitempty"`
	Efficiency *float64 `json:"efficiency,omitempty"`
	Skipped    bool     `json:"skipped,omitempty"`
	Invalid    bool     `json:"invalid,omitempty"`
	SkipReason string   `json:"skip_reason,omitempty"`
	TsUnixMs   int64    `json:"ts_unix_ms"`
}

// FromResult converts res. Speedup and efficiency stay nil without a baseline.
func FromResult(engine string, res core.Result) Record {
	c := res.Config
	r := Record{
		Engine:     engine,
		Strategy:   string(c.Strategy),
		Dist:       string(c.Dist),
		N:          c.N,
		Workers:    c.Workers,
		Grain:      c.Grain,
		Pad:        c.Padded,
		Affinity:   c.Affinity,
		Schedule:   string(c.Schedule),
		Reduction:  string(c.Reduction),
		Skipped:    res.Skipped,
		Invalid:    res.Invalid,
		SkipReason: res.SkipReason,
		TsUnixMs:   time.Now().UnixMilli(),
	}
	if !res.Skipped && !res.Invalid {
		r.ElapsedSec = res.Elapsed.Seconds()
		r.Correct = res.Correct
		r.Throughput = res.Throughput()
	}
	if res.HasBaseline {
		s, e := res.Speedup, res.Efficiency
		r.Speedup, r.Efficiency = &s, &e
	}
	return r
}

// Key identifies the configuration a record belongs to.
func (r Record) Key() string {
	return r.Engine + "/" + r.Strategy + "/" + r.Dist
}

func encode(r Record) ([]byte, error) {
	b, err := sonic.Marshal(&r)
	if err != nil {
		return nil, errors.Wrap(err, "encode record")
	}
	return b, nil
}

// Sink receives batches of records. Publish must be safe to call from one
// goroutine at a time; Close flushes and releases resources.
type Sink interface {
	Publish(ctx context.Context, records []Record) error
	Close() error
}

// Options holds the knobs every adapter might need.
type Options struct {
	Path         string
	RedisAddr    string
	RedisStream  string
	KafkaBrokers []string
	KafkaTopic   string
	Log          logrus.FieldLogger
}

const (
	DefaultRedisStream = "histbench:results"
	DefaultKafkaTopic  = "histbench-results"
)

// Build returns the sink selected by kind:
//   - "", "none": discards records
//   - "file": JSONL at opts.Path; a ".zst" suffix compresses with zstd
//   - "redis": XADD to opts.RedisStream; logs instead when RedisAddr is empty
//   - "kafka": produce to opts.KafkaTopic; logs instead when no brokers are given
func Build(kind string, opts Options) (Sink, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	switch strings.ToLower(kind) {
	case "", "none":
		return Discard{}, nil
	case "file":
		if opts.Path == "" {
			return nil, errors.New("file sink requires a path")
		}
		return NewFileSink(opts.Path)
	case "redis":
		stream := opts.RedisStream
		if stream == "" {
			stream = DefaultRedisStream
		}
		var s RedisStreamer
		if opts.RedisAddr != "" {
			s = NewGoRedisStreamer(opts.RedisAddr)
		} else {
			s = LoggingRedisStreamer{Log: log}
		}
		return NewRedisSink(s, stream), nil
	case "kafka":
		topic := opts.KafkaTopic
		if topic == "" {
			topic = DefaultKafkaTopic
		}
		var p KafkaProducer
		if len(opts.KafkaBrokers) > 0 {
			p = NewKafkaGoProducer(opts.KafkaBrokers)
		} else {
			p = LoggingKafkaProducer{Log: log}
		}
		return NewKafkaSink(p, topic), nil
	default:
		return nil, errors.Errorf("unknown sink %q (use none|file|redis|kafka)", kind)
	}
}

// Discard drops every record.
type Discard struct{}

func (Discard) Publish(context.Context, []Record) error { return nil }
func (Discard) Close() error                            { return nil }
