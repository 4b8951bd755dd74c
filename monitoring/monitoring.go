// Copyright 2025 Magnus Pierre
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

// Package monitoring exposes Prometheus metrics for data communicators.
package monitoring

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "datacomm"
	signal    = "signal"
)

// Metrics collects reconciliation statistics of all communicators of a
// process. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Resets        prometheus.Counter
	RowsPushed    prometheus.Counter
	RowsUpdated   prometheus.Counter
	RowsDestroyed prometheus.Counter
	ActiveRows    prometheus.Gauge
	CycleDuration prometheus.Histogram
	Failures      *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "The number of reset signals sent to clients.",
		}),
		RowsPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_pushed_total",
			Help:      "The number of rows sent in setData signals.",
		}),
		RowsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_updated_total",
			Help:      "The number of rows sent in updateData signals.",
		}),
		RowsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_destroyed_total",
			Help:      "The number of rows whose keys were retired after a client drop.",
		}),
		ActiveRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rows",
			Help:      "The number of rows currently known to clients.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a reconciliation cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_failures_total",
			Help:      "The number of reconciliation cycles aborted by an error, by failing signal.",
		}, []string{signal}),
	}

	var errs *multierror.Error
	for _, c := range []prometheus.Collector{
		m.Resets, m.RowsPushed, m.RowsUpdated, m.RowsDestroyed, m.ActiveRows, m.CycleDuration, m.Failures,
	} {
		if err := reg.Register(c); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reset records a reset signal.
func (m *Metrics) Reset() {
	if m != nil {
		m.Resets.Inc()
	}
}

// Pushed records n rows sent in a setData signal.
func (m *Metrics) Pushed(n int) {
	if m != nil {
		m.RowsPushed.Add(float64(n))
	}
}

// Updated records n rows sent in an updateData signal.
func (m *Metrics) Updated(n int) {
	if m != nil {
		m.RowsUpdated.Add(float64(n))
	}
}

// Destroyed records n retired rows.
func (m *Metrics) Destroyed(n int) {
	if m != nil {
		m.RowsDestroyed.Add(float64(n))
	}
}

// ActiveDelta adjusts the active row gauge.
func (m *Metrics) ActiveDelta(n int) {
	if m != nil {
		m.ActiveRows.Add(float64(n))
	}
}

// Failed records a cycle aborted while producing the named signal.
func (m *Metrics) Failed(signalName string) {
	if m != nil {
		m.Failures.WithLabelValues(signalName).Inc()
	}
}

// ObserveCycle records the duration of a cycle that started at start.
func (m *Metrics) ObserveCycle(start time.Time) {
	if m != nil {
		m.CycleDuration.Observe(time.Since(start).Seconds())
	}
}
