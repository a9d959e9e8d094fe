// Copyright 2026 OSIsoft, LLC
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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/logger"
)

const (
	// Component labels.
	ComponentArchiveClient = "archive_client"
	ComponentHarness       = "harness"
	ComponentEngineRunner  = "engine_runner"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "eventcalc"
	subsystem = "harness"

	// Error counters.
	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "instance"},
	)

	// Archive request timing.
	archiveRequestTime = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "archive_request_duration_milliseconds",
			Help:      "Time taken for a Data Archive request (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01, // 50th percentile with 1% error
				0.9:  0.01, // 90th percentile with 1% error
				0.95: 0.01, // 95th percentile with 1% error
				0.99: 0.01, // 99th percentile with 1% error
			},
		},
		[]string{"operation"},
	)

	archiveRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "archive_requests_total",
			Help:      "Total number of Data Archive requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	// Harness value counters.
	valuesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "values_written_total",
			Help:      "Total number of values written to input tags",
		},
		[]string{"tag"},
	)

	valuesVerifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "values_verified_total",
			Help:      "Total number of output values that passed verification",
		},
		[]string{"tag"},
	)
)

// SetupMetricsEndpoint starts an HTTP server to expose metrics
// This should be called once at application startup.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		ErrorLog:    zap.NewStdLog(logger.GetLogger().Named("metrics")),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.For("metrics").Errorw("Metrics endpoint failed", "error", err)
		}
	}()

	return server
}

// IncErrorCountAndLog increments the error counter for a component and logs a debug message if a logger is provided.
func IncErrorCountAndLog(component, instance string, err error, log *zap.SugaredLogger) {
	IncErrorCount(component, instance)

	if log != nil {
		log.Debugf("Component %s instance %s failed: %v", component, instance, err)
	}
}

// IncErrorCount increments the error counter for a component.
func IncErrorCount(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Inc()
}

// InitErrorCounter initializes the error counter for a component.
func InitErrorCounter(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Add(0)
}

// ObserveArchiveRequest records outcome and duration of a Data Archive request.
func ObserveArchiveRequest(operation, status string, duration time.Duration) {
	archiveRequestsTotal.WithLabelValues(operation, status).Inc()
	archiveRequestTime.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
}

// AddValuesWritten increases the written-values counter for a tag.
func AddValuesWritten(tag string, count int) {
	valuesWrittenTotal.WithLabelValues(tag).Add(float64(count))
}

// AddValuesVerified increases the verified-values counter for a tag.
func AddValuesVerified(tag string, count int) {
	valuesVerifiedTotal.WithLabelValues(tag).Add(float64(count))
}
