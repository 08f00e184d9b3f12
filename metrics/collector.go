/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomoncle/sift/config"
)

// Collector records query executor metrics:
//
//   - <ns>_<sub>_operation_duration_seconds: latency by entity, operation and status
//   - <ns>_<sub>_result_rows: rows returned per operation
//   - <ns>_<sub>_join_nodes: relation nodes resolved per query build
//   - <ns>_<sub>_partial_hydrations_total: tracking reads that lost rows between phases
//
// A nil *Collector is valid and records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	resultRows        *prometheus.HistogramVec
	joinNodes         *prometheus.HistogramVec
	partialHydrations *prometheus.CounterVec
}

// NewCollector creates and registers the metrics. Defaults fill a copy of
// cfg, which may be nil. If registry is nil a private registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	conf := config.MetricsConfig{}
	if cfg != nil {
		conf = *cfg
		conf.DurationBuckets = append([]float64(nil), cfg.DurationBuckets...)
	}
	cfg = &conf
	if cfg.Namespace == "" {
		cfg.Namespace = "sift"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "query"
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Duration of search, track and exists operations",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"entity", "operation", "status"},
		),
		resultRows: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "result_rows",
				Help:      "Root rows returned per operation",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
			},
			[]string{"entity", "operation"},
		),
		joinNodes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "join_nodes",
				Help:      "Relation nodes resolved per query build",
				Buckets:   []float64{0, 1, 2, 4, 8, 16},
			},
			[]string{"entity"},
		),
		partialHydrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "partial_hydrations_total",
				Help:      "Tracking reads whose second phase missed rows seen by the first",
			},
			[]string{"entity"},
		),
	}

	registry.MustRegister(c.operationDuration, c.resultRows, c.joinNodes, c.partialHydrations)
	return c
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// ObserveOperation records the latency and outcome of one operation.
func (c *Collector) ObserveOperation(entity, operation string, duration time.Duration, err error) {
	if !c.enabled() {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.operationDuration.WithLabelValues(entity, operation, status).Observe(duration.Seconds())
}

// ObserveRows records how many root rows an operation returned.
func (c *Collector) ObserveRows(entity, operation string, rows int) {
	if !c.enabled() {
		return
	}
	c.resultRows.WithLabelValues(entity, operation).Observe(float64(rows))
}

// ObserveJoinNodes records the size of a build's join cache.
func (c *Collector) ObserveJoinNodes(entity string, nodes int) {
	if !c.enabled() {
		return
	}
	c.joinNodes.WithLabelValues(entity).Observe(float64(nodes))
}

// PartialHydration counts a tracking read that lost rows between phases.
func (c *Collector) PartialHydration(entity string) {
	if !c.enabled() {
		return
	}
	c.partialHydrations.WithLabelValues(entity).Inc()
}
