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

// Package main is the single-run entry point of the histogram benchmark.
//
// Usage:
//
//	hist [flags] <strategy> <dist> <N> <T> [grain] [pad] [affinity]
//
// One result line per metric is written to stdout; diagnostics go to stderr.
// Exit status: 0 on a verified (or skipped) run, 1 on a configuration error,
// 3 when the histogram fails verification, 4 when a worker fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"histbench/internal/histbench/core"
	"histbench/internal/histbench/engine"
	"histbench/internal/histbench/partition"
	"histbench/internal/histbench/report"
	"histbench/internal/histbench/sink"
	"histbench/internal/histbench/telemetry"
)

const (
	exitOK       = 0
	exitConfig   = 1
	exitMismatch = 3
	exitWorker   = 4
)

// aggregatorFor overrides the runner's aggregator lookup; nil uses engine.New.
var aggregatorFor func(engine.Strategy) (engine.Aggregator, error)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	engine       string
	schedule     string
	reduction    string
	warmup       int
	sinkKind     string
	sinkPath     string
	redisAddr    string
	kafkaBrokers string
	kafkaTopic   string
	metricsAddr  string
	pprof        bool
	gops         bool
	summary      bool
	logLevel     string
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fs := flag.NewFlagSet("hist", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.engine, "engine", report.DefaultEngine, "engine tag written into every result line")
	fs.StringVar(&o.schedule, "schedule", string(partition.Static), "span scheduling when grain > 0: static|dynamic")
	fs.StringVar(&o.reduction, "reduction", string(engine.Fold), "private histogram reduction: fold|tree")
	fs.IntVar(&o.warmup, "warmup", 0, "untimed aggregation passes before the timed one")
	fs.StringVar(&o.sinkKind, "sink", "none", "publish results to: none|file|redis|kafka")
	fs.StringVar(&o.sinkPath, "sink_path", "results.jsonl", "file sink path; a .zst suffix compresses")
	fs.StringVar(&o.redisAddr, "redis_addr", "", "redis address for -sink=redis (empty logs instead)")
	fs.StringVar(&o.kafkaBrokers, "kafka_brokers", "", "comma-separated brokers for -sink=kafka (empty logs instead)")
	fs.StringVar(&o.kafkaTopic, "kafka_topic", sink.DefaultKafkaTopic, "kafka topic for -sink=kafka")
	fs.StringVar(&o.metricsAddr, "metrics_addr", "", "if non-empty, expose Prometheus /metrics on this address (e.g., :9090)")
	fs.BoolVar(&o.pprof, "pprof", false, "enable pprof on localhost:6060")
	fs.BoolVar(&o.gops, "gops", false, "start a gops diagnostics agent")
	fs.BoolVar(&o.summary, "summary", false, "print the effective settings to stderr after the run")
	fs.StringVar(&o.logLevel, "log_level", "info", "log level: debug|info|warn|error")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: hist [flags] <atomic|local> <uniform|skewed> <N> <T> [grain] [pad 0|1] [affinity 0|1]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return o, fs.Args(), nil
}

func newLogger(level string, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)
	return log, nil
}

// buildConfig merges positional arguments with the engine flags.
func buildConfig(o *options, positional []string) (core.Config, error) {
	cfg, err := core.ParseInvocation(positional)
	if err != nil {
		return cfg, err
	}
	schedule, err := partition.ParseSchedule(o.schedule)
	if err != nil {
		return cfg, errors.Wrap(core.ErrConfig, err.Error())
	}
	reduction, err := engine.ParseReduction(o.reduction)
	if err != nil {
		return cfg, errors.Wrap(core.ErrConfig, err.Error())
	}
	cfg.Schedule, cfg.Reduction, cfg.Warmup = schedule, reduction, o.warmup
	return cfg, cfg.Validate()
}

func captureSettings(s *report.Settings, o *options, cfg core.Config) {
	s.Set("engine", o.engine)
	s.Set("strategy", string(cfg.Strategy))
	s.Set("dist", string(cfg.Dist))
	s.SetInt("n", int64(cfg.N))
	s.SetInt("workers", int64(cfg.Workers))
	s.SetInt("grain", int64(cfg.Grain))
	s.SetBool("pad", cfg.Padded)
	s.SetBool("affinity", cfg.Affinity)
	s.Set("schedule", string(cfg.Schedule))
	s.Set("reduction", string(cfg.Reduction))
	s.SetInt("warmup", int64(cfg.Warmup))
	s.Set("sink", o.sinkKind)
	s.Set("metrics_addr", o.metricsAddr)
}

// exitCode maps a run error onto the process exit status. Unsupported
// configurations are reported as skipped and do not fail the process.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, core.ErrUnsupported):
		return exitOK
	case errors.Is(err, core.ErrConfig):
		return exitConfig
	case errors.Is(err, core.ErrMismatch):
		return exitMismatch
	default:
		return exitWorker
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	o, positional, err := parseFlags(args, stderr)
	if err != nil {
		return exitConfig
	}
	log, err := newLogger(o.logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -log_level: %v\n", err)
		return exitConfig
	}
	cfg, err := buildConfig(o, positional)
	if err != nil {
		log.WithError(err).Error("invalid invocation")
		fmt.Fprintln(stderr, "usage: hist [flags] <atomic|local> <uniform|skewed> <N> <T> [grain] [pad 0|1] [affinity 0|1]")
		return exitConfig
	}

	settings := report.NewSettings()
	captureSettings(settings, o, cfg)

	if o.gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.WithError(err).Warn("gops agent not started")
		} else {
			defer agent.Close()
		}
	}
	if o.pprof {
		go func() { _ = http.ListenAndServe("localhost:6060", nil) }()
	}
	if o.metricsAddr != "" {
		srv, err := telemetry.Serve(o.metricsAddr, log)
		if err != nil {
			log.WithError(err).Error("metrics endpoint")
			return exitConfig
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	out, err := sink.Build(o.sinkKind, sinkOptions(o, log))
	if err != nil {
		log.WithError(err).Error("result sink")
		return exitConfig
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.WithError(err).Warn("closing result sink")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := &core.Runner{Log: log, Aggregator: aggregatorFor}
	res, runErr := runner.Run(ctx, cfg)
	telemetry.Observe(res, runErr)

	code := exitCode(runErr)
	switch {
	case code == exitOK, code == exitMismatch:
		if res.Skipped {
			log.WithFields(cfg.Fields()).WithField("reason", res.SkipReason).Warn("configuration skipped")
		}
		if err := report.NewWriter(stdout, o.engine, false).Emit(res); err != nil {
			log.WithError(err).Error("writing results")
		}
		if err := out.Publish(ctx, []sink.Record{sink.FromResult(o.engine, res)}); err != nil {
			log.WithError(err).Warn("publishing results")
		}
	case code == exitWorker:
		log.WithFields(cfg.Fields()).WithError(runErr).Error("aggregation failed")
	default:
		log.WithError(runErr).Error("run rejected")
	}
	if code == exitMismatch {
		log.WithError(runErr).Error("histogram verification failed")
	}

	if o.summary {
		settings.Print(stderr)
	}
	return code
}

func sinkOptions(o *options, log logrus.FieldLogger) sink.Options {
	var brokers []string
	for _, b := range strings.Split(o.kafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return sink.Options{
		Path:         o.sinkPath,
		RedisAddr:    o.redisAddr,
		KafkaBrokers: brokers,
		KafkaTopic:   o.kafkaTopic,
		Log:          log,
	}
}
