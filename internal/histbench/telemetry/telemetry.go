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

// Package telemetry exposes run outcomes as Prometheus metrics. Nothing is
// served unless Serve is called; recording is always cheap.
package telemetry

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"histbench/internal/histbench/core"
)

// Outcome labels for runsTotal.
const (
	OutcomeOK          = "ok"
	OutcomeSkipped     = "skipped"
	OutcomeMismatch    = "mismatch"
	OutcomeWorkerFail  = "worker_failed"
	OutcomeConfigError = "config_error"
)

var (
	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "histbench_runs_total",
		Help: "Aggregation runs by strategy and outcome",
	}, []string{"strategy", "outcome"})
	samplesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "histbench_samples_total",
		Help: "Samples aggregated by verified runs",
	}, []string{"strategy"})
	runSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "histbench_aggregate_seconds",
		Help:    "Timed aggregation wall time",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"strategy"})
	// Gauges keep the most recent value per strategy and worker count.
	lastSpeedup = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "histbench_speedup_ratio",
		Help: "Speedup over the single-worker baseline of the latest sweep run",
	}, []string{"strategy", "workers"})
	lastEfficiency = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "histbench_efficiency_percent",
		Help: "Parallel efficiency of the latest sweep run",
	}, []string{"strategy", "workers"})
	lastThroughput = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "histbench_throughput_samples_per_second",
		Help: "Throughput of the latest run",
	}, []string{"strategy", "workers"})
)

func init() {
	prometheus.MustRegister(runsTotal, samplesTotal, runSeconds, lastSpeedup, lastEfficiency, lastThroughput)
}

// Outcome classifies a run's error for the runs counter.
func Outcome(res core.Result, err error) string {
	switch {
	case res.Invalid || errors.Is(err, core.ErrConfig):
		return OutcomeConfigError
	case res.Skipped:
		return OutcomeSkipped
	case err == nil:
		return OutcomeOK
	case errors.Is(err, core.ErrMismatch):
		return OutcomeMismatch
	default:
		return OutcomeWorkerFail
	}
}

// Observe records one run. err is the error returned with res, if any.
func Observe(res core.Result, err error) {
	strategy := string(res.Config.Strategy)
	outcome := Outcome(res, err)
	runsTotal.WithLabelValues(strategy, outcome).Inc()
	if outcome != OutcomeOK {
		return
	}
	workers := strconv.Itoa(res.Config.Workers)
	samplesTotal.WithLabelValues(strategy).Add(float64(res.Total))
	runSeconds.WithLabelValues(strategy).Observe(res.Elapsed.Seconds())
	lastThroughput.WithLabelValues(strategy, workers).Set(res.Throughput())
	if res.HasBaseline {
		lastSpeedup.WithLabelValues(strategy, workers).Set(res.Speedup)
		lastEfficiency.WithLabelValues(strategy, workers).Set(res.Efficiency)
	}
}

// Server serves /metrics until Shutdown.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Serve starts a /metrics endpoint on addr in the background. Use ":0" for
// an ephemeral port and Addr to find it.
func Serve(addr string, log logrus.FieldLogger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("metrics endpoint stopped")
		}
	}()
	log.WithField("addr", ln.Addr().String()).Info("serving /metrics")
	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
