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

// Command harness sweeps the histogram benchmark across strategies,
// distributions, sizes and worker counts, reporting speedup and efficiency
// against each sweep's single-worker baseline.
//
// Result lines go to stdout; per-configuration tables and diagnostics go to
// stderr.
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
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"histbench/internal/histbench/core"
	"histbench/internal/histbench/engine"
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

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type harnessFlags struct {
	plan          string
	strategies    string
	dists         string
	sizes         string
	threads       string
	grain         int
	pad           string
	affinitySweep bool
	schedule      string
	reduction     string
	warmup        int

	engine      string
	sinkKind    string
	sinkPath    string
	redisAddr   string
	kafkaBroker string
	kafkaTopic  string
	metricsAddr string
	pprof       bool
	gops        bool
	quiet       bool
	logLevel    string

	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*harnessFlags, error) {
	fs := flag.NewFlagSet("harness", flag.ContinueOnError)
	fs.SetOutput(stderr)
	h := &harnessFlags{}
	fs.StringVar(&h.plan, "plan", "", "TOML sweep plan; flags set explicitly override its values")
	fs.StringVar(&h.strategies, "strategies", "atomic,local", "comma-separated strategies")
	fs.StringVar(&h.dists, "dists", "uniform,skewed", "comma-separated distributions")
	fs.StringVar(&h.sizes, "sizes", "10000000,100000000", "comma-separated sample counts")
	fs.StringVar(&h.threads, "threads", "1,2,4,8,16", "comma-separated worker counts (1 is always run first)")
	fs.IntVar(&h.grain, "grain", 0, "span size; 0 splits into one span per worker")
	fs.StringVar(&h.pad, "pad", "0", "comma-separated padding values for the atomic strategy (0,1)")
	fs.BoolVar(&h.affinitySweep, "affinity_sweep", false, "also sweep the atomic strategy with workers pinned to cores")
	fs.StringVar(&h.schedule, "schedule", "static", "span scheduling when grain > 0: static|dynamic")
	fs.StringVar(&h.reduction, "reduction", "fold", "private histogram reduction: fold|tree")
	fs.IntVar(&h.warmup, "warmup", 1, "untimed aggregation passes before each timed one")

	fs.StringVar(&h.engine, "engine", report.DefaultEngine, "engine tag written into every result line")
	fs.StringVar(&h.sinkKind, "sink", "none", "publish results to: none|file|redis|kafka")
	fs.StringVar(&h.sinkPath, "sink_path", "sweep.jsonl", "file sink path; a .zst suffix compresses")
	fs.StringVar(&h.redisAddr, "redis_addr", "", "redis address for -sink=redis (empty logs instead)")
	fs.StringVar(&h.kafkaBroker, "kafka_brokers", "", "comma-separated brokers for -sink=kafka (empty logs instead)")
	fs.StringVar(&h.kafkaTopic, "kafka_topic", sink.DefaultKafkaTopic, "kafka topic for -sink=kafka")
	fs.StringVar(&h.metricsAddr, "metrics_addr", "", "if non-empty, expose Prometheus /metrics on this address")
	fs.BoolVar(&h.pprof, "pprof", false, "enable pprof on localhost:6060")
	fs.BoolVar(&h.gops, "gops", false, "start a gops diagnostics agent")
	fs.BoolVar(&h.quiet, "quiet", false, "skip the human-readable tables")
	fs.StringVar(&h.logLevel, "log_level", "info", "log level: debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, errors.Errorf("unexpected arguments: %v", fs.Args())
	}
	h.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { h.set[f.Name] = true })
	return h, nil
}

// buildPlan starts from the plan file (or flag defaults when none is given)
// and applies every explicitly set sweep flag on top.
func buildPlan(h *harnessFlags) (core.Plan, error) {
	p := core.DefaultPlan()
	if h.plan != "" {
		var err error
		if p, err = core.LoadPlan(h.plan); err != nil {
			return p, err
		}
	}
	override := func(name string) bool { return h.plan == "" || h.set[name] }

	var err error
	if override("strategies") {
		p.Strategies = splitList(h.strategies)
	}
	if override("dists") {
		p.Distributions = splitList(h.dists)
	}
	if override("sizes") {
		if p.Sizes, err = parseIntList(h.sizes); err != nil {
			return p, errors.Wrap(core.ErrConfig, "sizes: "+err.Error())
		}
	}
	if override("threads") {
		if p.Threads, err = parseIntList(h.threads); err != nil {
			return p, errors.Wrap(core.ErrConfig, "threads: "+err.Error())
		}
	}
	if override("pad") {
		p.Padding = p.Padding[:0]
		for _, s := range splitList(h.pad) {
			v, err := core.ParseFlag("pad", s)
			if err != nil {
				return p, err
			}
			p.Padding = append(p.Padding, v)
		}
	}
	if override("grain") {
		p.Grain = h.grain
	}
	if override("schedule") {
		p.Schedule = h.schedule
	}
	if override("reduction") {
		p.Reduction = h.reduction
	}
	if override("warmup") {
		p.Warmup = h.warmup
	}
	return p, nil
}

// affinityConfigs returns the pinned atomic variants of base configs.
func affinityConfigs(cfgs []core.Config) []core.Config {
	var out []core.Config
	for _, c := range cfgs {
		if c.Strategy != engine.Atomic || c.Affinity {
			continue
		}
		c.Affinity = true
		out = append(out, c)
	}
	return out
}

func run(args []string, stdout, stderr io.Writer) int {
	h, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfig
	}
	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(h.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -log_level: %v\n", err)
		return exitConfig
	}
	log.SetLevel(lvl)

	plan, err := buildPlan(h)
	if err != nil {
		log.WithError(err).Error("invalid sweep plan")
		return exitConfig
	}
	cfgs, rejected, planErr := plan.Configs()
	if planErr != nil && len(rejected) == 0 {
		log.WithError(planErr).Error("invalid sweep plan")
		return exitConfig
	}
	if h.affinitySweep {
		cfgs = append(cfgs, affinityConfigs(cfgs)...)
	}

	settings := report.NewSettings()
	settings.Set("strategies", strings.Join(plan.Strategies, ","))
	settings.Set("distributions", strings.Join(plan.Distributions, ","))
	settings.Set("sizes", joinInts(plan.Sizes))
	settings.Set("threads", joinInts(core.NormalizeThreads(plan.Threads)))
	settings.SetInt("grain", int64(plan.Grain))
	settings.Set("schedule", plan.Schedule)
	settings.Set("reduction", plan.Reduction)
	settings.SetInt("warmup", int64(plan.Warmup))
	settings.SetBool("affinity_sweep", h.affinitySweep)
	settings.SetInt("gomaxprocs", int64(runtime.GOMAXPROCS(0)))
	settings.SetInt("num_cpu", int64(runtime.NumCPU()))
	settings.Set("sink", h.sinkKind)

	if h.gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.WithError(err).Warn("gops agent not started")
		} else {
			defer agent.Close()
		}
	}
	if h.pprof {
		go func() { _ = http.ListenAndServe("localhost:6060", nil) }()
	}
	if h.metricsAddr != "" {
		srv, err := telemetry.Serve(h.metricsAddr, log)
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
	out, err := sink.Build(h.sinkKind, sink.Options{
		Path:         h.sinkPath,
		RedisAddr:    h.redisAddr,
		KafkaBrokers: splitList(h.kafkaBroker),
		KafkaTopic:   h.kafkaTopic,
		Log:          log,
	})
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

	log.WithFields(logrus.Fields{"configs": len(cfgs), "threads": joinInts(core.NormalizeThreads(plan.Threads)), "num_cpu": runtime.NumCPU()}).
		Info("starting histogram sweep")

	lines := report.NewWriter(stdout, h.engine, true)
	summary := report.NewSummary()
	publish := func(batch []sink.Record) {
		if err := out.Publish(ctx, batch); err != nil {
			log.WithError(err).Warn("publishing results")
		}
	}

	// Rejected plan entries are reported once per worker count and skipped.
	for _, rj := range rejected {
		log.WithFields(rj.Config.Fields()).WithError(rj.Err).Warn("plan entry rejected; skipping")
		var batch []sink.Record
		for _, t := range core.NormalizeThreads(plan.Threads) {
			res := core.Result{Config: rj.Config, Invalid: true, SkipReason: rj.Err.Error()}
			res.Config.Workers = t
			telemetry.Observe(res, rj.Err)
			summary.Add(res)
			if err := lines.Emit(res); err != nil {
				log.WithError(err).Error("writing results")
			}
			batch = append(batch, sink.FromResult(h.engine, res))
		}
		publish(batch)
	}
	if planErr != nil {
		log.WithError(planErr).Error("invalid sweep plan")
		return exitConfig
	}

	runner := &core.Runner{Log: log}
	var sweepErr error
	for _, cfg := range cfgs {
		log.WithFields(cfg.Fields()).WithField("input", humanBytes(uint64(cfg.N))).Debug("sweep")
		var batch []sink.Record
		err := runner.Sweep(ctx, cfg, plan.Threads, func(res core.Result, rerr error) {
			telemetry.Observe(res, rerr)
			// A failed worker leaves no result worth reporting.
			if errors.Is(rerr, core.ErrWorkerFailed) {
				return
			}
			summary.Add(res)
			if err := lines.Emit(res); err != nil {
				log.WithError(err).Error("writing results")
			}
			batch = append(batch, sink.FromResult(h.engine, res))
		})
		publish(batch)
		if err != nil {
			log.WithFields(cfg.Fields()).WithError(err).Error("sweep aborted")
			sweepErr = err
			break
		}
	}

	if !h.quiet {
		fmt.Fprintf(stderr, "\nHistogram sweep: %d configurations, %d rejected, %s results\n\n",
			len(cfgs), len(rejected), report.HumanInt(int64(summary.Len())))
		summary.Print(stderr)
		settings.Print(stderr)
	}
	return exitCode(sweepErr)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, core.ErrConfig):
		return exitConfig
	case errors.Is(err, core.ErrMismatch):
		return exitMismatch
	default:
		return exitWorker
	}
}

// ---- Helpers ----

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, f := range splitList(s) {
		v, err := strconv.Atoi(strings.ReplaceAll(f, "_", ""))
		if err != nil {
			return nil, errors.Errorf("%q is not an integer", f)
		}
		out = append(out, v)
	}
	return out, nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

func humanBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	d := float64(b)
	units := []string{"KiB", "MiB", "GiB", "TiB"}
	i := 0
	for d >= unit && i < len(units)-1 {
		d /= unit
		i++
	}
	return fmt.Sprintf("%.1f %s", d, units[i])
}
