// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the web3 tool layer.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "web3agent",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed, by handler, method and status code.",
	}, []string{"handler", "method", "code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "web3agent",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"handler", "method"})

	toolExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "web3agent",
		Subsystem: "tool",
		Name:      "executions_total",
		Help:      "Total tool executions, by tool name and result status.",
	}, []string{"tool", "status"})

	toolExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "web3agent",
		Subsystem: "tool",
		Name:      "execution_duration_seconds",
		Help:      "Tool execution latency in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"tool"})

	taskOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "web3agent",
		Subsystem: "task",
		Name:      "outcomes_total",
		Help:      "Analysis task outcomes, by operation and final status.",
	}, []string{"operation", "status"})
)

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// ObserveToolExecution records a single tool invocation.
func ObserveToolExecution(tool, status string, duration time.Duration) {
	toolExecutionsTotal.WithLabelValues(tool, status).Inc()
	toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveTaskOutcome records the final status of an analysis task.
func ObserveTaskOutcome(operation, status string) {
	taskOutcomesTotal.WithLabelValues(operation, status).Inc()
}

// Handler 返回 Prometheus 抓取端点。
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer 在独立端口上暴露 /metrics, 直到上下文取消。
func StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
