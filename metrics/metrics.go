// Teal.Finance/Garcon is an opinionated boilerplate API and website server.
// Copyright (C) 2021 Teal.Finance contributors
//
// This file is part of Teal.Finance/Garcon, licensed under LGPL-3.0-or-later.
//
// Teal.Finance/Garcon is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public License
// either version 3 of the License, or (at your option) any later version.
//
// Teal.Finance/Garcon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty
// of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU General Public License for more details.

package metrics

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teal-finance/hakanai/chain"
)

// Metrics tracks connection-lifecycle counters alongside request-duration
// histograms. The HTTP traffic counting keeps the original connState-driven
// design; only the sink changed, from armon/go-metrics (never actually
// declared as a dependency of the package this one descends from) to
// client_golang, which is.
type Metrics struct {
	conn     int64 // gauge   - Current number of HTTP connections
	active   int64 // counter - Accumulate HTTP connections that have been in StateActive
	idle     int64 // counter - Accumulate HTTP connections that have been in StateIdle
	hijacked int64 // counter - Accumulate HTTP connections that have been in StateHijacked

	requestDuration *prometheus.HistogramVec
	connGauge       prometheus.Gauge
}

// New registers the HTTP-traffic metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hakanai",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		connGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "hakanai",
			Name:      "http_connections",
			Help:      "Current number of HTTP connections.",
		}),
	}
}

// Middleware returns the request-counting middleware on its own, for
// callers that compose their own chain.Chain (internal/httpapi does).
func (m *Metrics) Middleware() chain.Middleware {
	return m.count
}

// StartServer starts the Prometheus export server on its own port, kept
// separate from the public API port so /metrics is never reachable through
// the same listener an anonymous client hits. Port <= 0 disables the
// export server entirely; ConnState still needs wiring by the caller via
// ConnStateCounter.
func (m *Metrics) StartServer(port int) {
	if port <= 0 {
		log.Print("metrics: disabled, export port=", port)
		return
	}

	addr := ":" + strconv.Itoa(port)

	go func() {
		err := http.ListenAndServe(addr, handler())
		log.Fatal(err)
	}()

	log.Print("metrics: export http://localhost" + addr + "/metrics")
}

// ConnStateCounter returns the http.Server.ConnState hook that keeps the
// connection-lifecycle counters current; devMode selects the atomic
// variant to stay clean under "go build -race".
func (m *Metrics) ConnStateCounter(devMode bool) func(net.Conn, http.ConnState) {
	if devMode {
		return m.updateConnCountersAtomic()
	}
	return m.updateConnCounters()
}

// handler returns the /metrics endpoint serving the default registry.
func handler() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// count times every request and records its outcome, keeping the
// statusRecorder trick for reading the response status without buffering
// the body.
func (m *Metrics) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		record := &statusRecorder{ResponseWriter: w, Status: "success"}

		next.ServeHTTP(record, r)

		duration := time.Since(start)
		m.requestDuration.WithLabelValues(r.Method, r.URL.Path, record.Status).Observe(duration.Seconds())

		log.Print("out ", r.RemoteAddr, " ", r.Method, " ", r.URL, " ", duration,
			" c=", m.conn, " a=", m.active, " i=", m.idle, " h=", m.hijacked)
	})
}

func (m *Metrics) updateConnCounters() func(net.Conn, http.ConnState) {
	return func(_ net.Conn, cs http.ConnState) {
		switch cs {
		case http.StateNew:
			m.conn++
		case http.StateActive:
			m.active++
		case http.StateIdle:
			m.idle++
		case http.StateHijacked:
			m.hijacked++
			m.conn--
		case http.StateClosed:
			m.conn--
		}
		m.connGauge.Set(float64(m.conn))
	}
}

func (m *Metrics) updateConnCountersAtomic() func(net.Conn, http.ConnState) {
	return func(_ net.Conn, cs http.ConnState) {
		switch cs {
		case http.StateNew:
			atomic.AddInt64(&m.conn, 1)
		case http.StateActive:
			atomic.AddInt64(&m.active, 1)
		case http.StateIdle:
			atomic.AddInt64(&m.idle, 1)
		case http.StateHijacked:
			atomic.AddInt64(&m.hijacked, 1)
			atomic.AddInt64(&m.conn, -1)
		case http.StateClosed:
			atomic.AddInt64(&m.conn, -1)
		}
		m.connGauge.Set(float64(atomic.LoadInt64(&m.conn)))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	Status string
}

func (r *statusRecorder) WriteHeader(status int) {
	if status >= 400 {
		r.Status = "error"
	}
	r.ResponseWriter.WriteHeader(status)
}
