// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

/*
Package metrics buffers counters and gauges produced while capturing and
reconstructing traces, and exports them through the OpenTelemetry meter.

Metrics are identified by small integer ids declared in metrics.json:

	metrics
	├── genids/         // generates ids.go from metrics.json
	├── ids.go          // generated metric ids
	├── metrics.go      // Add(), AddSlice() and the OTel export
	├── metrics.json    // metric definitions, append only
	└── types.go        // Metric, MetricID, MetricValue, MetricDefinition

Producers call Add or AddSlice; values collected within the same second are
reported together once the second changes.
*/
package metrics // import "go.opentelemetry.io/exectrace/metrics"
