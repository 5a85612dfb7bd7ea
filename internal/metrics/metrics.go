// Package metrics exposes prometheus collectors for batch extraction.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process on a private registry.
type Metrics struct {
	Registry *prometheus.Registry
	Apps     *prometheus.CounterVec   // by status
	Stage    *prometheus.HistogramVec // seconds, by stage
	Methods  *prometheus.CounterVec   // by class: key, norm, exile
	InFlight prometheus.Gauge
}

// New registers the collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Apps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smesys",
			Name:      "apps_total",
			Help:      "Applications processed, by result status.",
		}, []string{"status"}),
		Stage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smesys",
			Name:      "stage_seconds",
			Help:      "Time spent per pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
		Methods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smesys",
			Name:      "methods_total",
			Help:      "Parsed methods, by classification.",
		}, []string{"class"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smesys",
			Name:      "apps_in_flight",
			Help:      "Applications currently being processed.",
		}),
	}
	m.Registry.MustRegister(m.Apps, m.Stage, m.Methods, m.InFlight)
	return m
}

// ObserveStage records the time since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.Stage.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
