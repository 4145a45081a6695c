// Copyright 2025 The toolgate Authors
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

package mcp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_mcp_requests_total",
			Help: "Total requests sent to tool servers",
		},
		[]string{"server", "method"},
	)

	timeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_mcp_request_timeouts_total",
			Help: "Total requests that timed out waiting for a response",
		},
		[]string{"server", "method"},
	)

	malformedLinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_mcp_malformed_lines_total",
			Help: "Total undecodable lines discarded from tool server output",
		},
		[]string{"server"},
	)

	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolgate_mcp_tool_call_duration_seconds",
			Help:    "Duration of tool calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server", "status"},
	)

	sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_mcp_sessions_total",
			Help: "Tool server sessions by lifecycle event",
		},
		[]string{"server", "event"},
	)
)

func recordRequest(server, method string) {
	requestsTotal.WithLabelValues(server, method).Inc()
}

func recordTimeout(server, method string) {
	timeoutsTotal.WithLabelValues(server, method).Inc()
}

func recordMalformedLine(server string) {
	malformedLinesTotal.WithLabelValues(server).Inc()
}

func recordToolCall(server, status string, seconds float64) {
	toolCallDuration.WithLabelValues(server, status).Observe(seconds)
}

func recordSession(server, event string) {
	sessionsTotal.WithLabelValues(server, event).Inc()
}
