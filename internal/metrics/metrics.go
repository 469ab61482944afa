// Package metrics exports kiosk restart-cycle and window activity as
// Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1broseidon/kiosk/internal/controller"
)

var states = []controller.State{
	controller.StateStarting,
	controller.StateColdStart,
	controller.StateResumedAfterRestart,
	controller.StateWindowsOpen,
	controller.StateRestartInFlight,
	controller.StateTerminated,
}

// Metrics holds all kiosk metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	State            *prometheus.GaugeVec
	WindowsOpen      prometheus.Gauge
	Materializations *prometheus.CounterVec
	WindowCrashes    prometheus.Counter
	WindowReloads    prometheus.Counter
	RestartCycles    prometheus.Counter
	MarkerErrors     *prometheus.CounterVec
}

var _ controller.Observer = (*Metrics)(nil)

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		State: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kiosk_controller_state",
				Help: "1 for the restart controller's current state, 0 otherwise",
			},
			[]string{"state"},
		),
		WindowsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kiosk_windows_open",
				Help: "Number of windows opened by the last materialization pass",
			},
		),
		Materializations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiosk_materializations_total",
				Help: "Window materialization passes by trigger",
			},
			[]string{"reason"},
		),
		WindowCrashes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kiosk_window_crashes_total",
				Help: "Window content crashes",
			},
		),
		WindowReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kiosk_window_reloads_total",
				Help: "Periodic window reloads",
			},
		),
		RestartCycles: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kiosk_restart_cycles_total",
				Help: "One-time restart cycles started by this process",
			},
		),
		MarkerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiosk_marker_io_errors_total",
				Help: "Failed marker file operations",
			},
			[]string{"op", "file"},
		),
	}
	for _, s := range states {
		m.State.WithLabelValues(s.String()).Set(0)
	}
	return m
}

// StateChanged implements controller.Observer.
func (m *Metrics) StateChanged(s controller.State) {
	for _, st := range states {
		v := 0.0
		if st == s {
			v = 1
		}
		m.State.WithLabelValues(st.String()).Set(v)
	}
}

// Materialized implements controller.Observer.
func (m *Metrics) Materialized(reason string, windows int) {
	m.Materializations.WithLabelValues(reason).Inc()
	m.WindowsOpen.Set(float64(windows))
}

func (m *Metrics) WindowCrashed()       { m.WindowCrashes.Inc() }
func (m *Metrics) WindowReloaded()      { m.WindowReloads.Inc() }
func (m *Metrics) RestartCycleStarted() { m.RestartCycles.Inc() }

// MarkerFailed matches marker.ErrorObserver.
func (m *Metrics) MarkerFailed(op, file string, _ error) {
	m.MarkerErrors.WithLabelValues(op, file).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
