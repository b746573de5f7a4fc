// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation of the protocol engine. The collectors
// register on the default registry; expose them with promhttp.
var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "iec104",
		Name:      "active_sessions",
		Help:      "Number of sessions not yet stopped.",
	})
	framesTx = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "iec104",
		Name:      "frames_sent_total",
		Help:      "APDUs written to the transport.",
	})
	framesRx = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "iec104",
		Name:      "frames_received_total",
		Help:      "APDUs read from the transport.",
	})
)
