// Package health exposes liveness/readiness over HTTP. Readiness is
// gated on two things: the server has finished startup (SetReady), and
// an optional probe against the configured workload provider's backing
// client still succeeds (SetReadinessProbe) — so a sandbox pointed at a
// Kubernetes API server it has since lost connectivity to stops
// reporting ready instead of only reflecting process-startup state.
package health

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

// HealthChecker manages server health state.
type HealthChecker struct {
	// ready is an atomic flag that indicates readiness state.
	ready atomic.Bool

	// probe, when set, is consulted on every readiness check in
	// addition to ready. A non-nil error means not ready.
	probe atomic.Pointer[func() error]
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker() *HealthChecker {
	hc := &HealthChecker{}
	hc.ready.Store(false)
	return hc
}

// SetReady sets the readiness state.
func (hc *HealthChecker) SetReady(ready bool) {
	hc.ready.Store(ready)
}

// IsReady returns the current readiness state, ignoring the probe.
func (hc *HealthChecker) IsReady() bool {
	return hc.ready.Load()
}

// SetReadinessProbe installs a function consulted on every readiness
// check. Passing nil clears it, falling back to the ready flag alone.
func (hc *HealthChecker) SetReadinessProbe(probe func() error) {
	if probe == nil {
		hc.probe.Store(nil)
		return
	}
	hc.probe.Store(&probe)
}

// checkReady reports whether the server is ready, running the
// installed probe if any.
func (hc *HealthChecker) checkReady() error {
	if !hc.ready.Load() {
		return fmt.Errorf("server has not finished startup")
	}
	if p := hc.probe.Load(); p != nil {
		return (*p)()
	}
	return nil
}

// LivenessHandler returns an HTTP handler for liveness checks.
// Liveness checks only verify that the server is responding.
func (hc *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

// ReadinessHandler returns an HTTP handler for readiness checks.
// Readiness checks verify that the server is ready to receive requests,
// including reachability of the workload provider's backing client.
func (hc *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hc.checkReady(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: " + err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}
