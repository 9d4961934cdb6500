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

// Command fairqueue-demo runs a standalone HTTP server in front of a
// FairQueue, for local experimentation and the end-to-end test suite.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vsa/fairqueue"
	"vsa/internal/queueservice/api"
	"vsa/internal/queueservice/audit"
	"vsa/internal/queueservice/core"
	"vsa/internal/queueservice/telemetry/metrics"
)

func main() {
	backlogCap := flag.Int("backlog_cap", 256, "maximum number of waiters parked in the backlog")
	depth := flag.Uint("depth", 16, "maximum number of concurrently serving guards")
	idleReapAge := flag.Duration("idle_reap_age", 5*time.Minute, "virtual-time age, expressed as a duration scaled by microsecond cost units, after which an idle flow with no backlog is reclaimed")
	idleReapInterval := flag.Duration("idle_reap_interval", 30*time.Second, "how often to scan for idle flows to reclaim")
	httpAddr := flag.String("http_addr", ":8080", "address to serve /acquire, /release, and /healthz on")
	metricsAddr := flag.String("metrics_addr", ":9090", "address to serve /metrics on; empty disables the metrics endpoint")
	acquireTimeout := flag.Duration("acquire_timeout", 10*time.Second, "default timeout for an /acquire call with no timeout_ms query param")

	auditAdapter := flag.String("audit_adapter", "mock", "audit backend: mock, redis, kafka, postgres, or file")
	auditRedisAddr := flag.String("audit_redis_addr", "", "redis address for the redis audit adapter; empty uses a logging stand-in")
	auditKafkaTopic := flag.String("audit_kafka_topic", "fairqueue.admission", "kafka topic for the kafka audit adapter")
	auditFilePath := flag.String("audit_file_path", "", "JSONL file path for the file audit adapter")
	auditHighWatermark := flag.Int("audit_high_watermark", 100, "flush the audit buffer immediately once it reaches this many events")
	auditFlushInterval := flag.Duration("audit_flush_interval", 5*time.Second, "how often the audit recorder flushes on a timer")

	flag.Parse()

	core.SetThresholdInt64("backlog_cap", int64(*backlogCap))
	core.SetThresholdInt64("depth", int64(*depth))
	core.SetThresholdDuration("idle_reap_age", *idleReapAge)
	core.SetThresholdDuration("idle_reap_interval", *idleReapInterval)
	core.SetThresholdString("http_addr", *httpAddr)
	core.SetThresholdString("metrics_addr", *metricsAddr)
	core.SetThresholdString("audit_adapter", *auditAdapter)

	sink, err := audit.BuildSink(*auditAdapter, audit.Options{
		RedisAddr:  *auditRedisAddr,
		KafkaTopic: *auditKafkaTopic,
		FilePath:   *auditFilePath,
	})
	if err != nil {
		log.Fatalf("building audit sink: %v", err)
	}
	recorder := audit.NewRecorder(sink, *auditHighWatermark, 0, *auditFlushInterval)
	recorder.Start()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	promMetrics := metrics.New(reg, "fairqueue-demo")

	queue := fairqueue.NewFairQueue[string](*backlogCap, uint32(*depth), fairqueue.WithMetrics[string](promMetrics))

	reapMaxAge := fairqueue.VirtualTime(idleReapAge.Microseconds())
	reaper := core.NewIdleReaper(queue, reapMaxAge, *idleReapInterval)
	reaper.Start()

	server := api.NewServer(queue, *acquireTimeout, recorder)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:         *httpAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		fmt.Printf("fairqueue-demo listening on %s\n", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	var metricsServer *http.Server
	if *metricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: *metricsAddr, Handler: metricsMux}
		go func() {
			fmt.Printf("fairqueue-demo metrics on %s\n", *metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("metrics server: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	reaper.Stop()
	recorder.Stop()
	core.PrintConfiguredThresholds()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Printf("metrics server shutdown: %v", err)
		}
	}
}
