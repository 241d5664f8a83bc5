// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tracehandler // import "go.opentelemetry.io/exectrace/tracehandler"

import (
	"errors"

	"go.opentelemetry.io/exectrace/libtrace"
	"go.opentelemetry.io/exectrace/metrics"
)

func boolValue(b bool) metrics.MetricValue {
	if b {
		return 1
	}
	return 0
}

func (h *Handler) collectMetrics(res *Result, err error) {
	m := []metrics.Metric{
		{ID: metrics.IDCapturesInterrupted, Value: boolValue(res.Interrupted)},
		{ID: metrics.IDCapturesOverflowed, Value: boolValue(res.Overflowed)},
		{ID: metrics.IDDroppedEvents, Value: metrics.MetricValue(res.Dropped)},
		{ID: metrics.IDRecordedEvents, Value: metrics.MetricValue(len(res.Events))},
		{ID: metrics.IDDecodeCacheHit, Value: metrics.MetricValue(h.decodeCacheHit.Swap(0))},
		{ID: metrics.IDDecodeCacheMiss, Value: metrics.MetricValue(h.decodeCacheMiss.Swap(0))},
		{ID: metrics.IDContractViolations,
			Value: boolValue(errors.Is(err, libtrace.ErrContractViolation))},
	}
	if res.Trace != nil {
		m = append(m,
			metrics.Metric{ID: metrics.IDCaptures, Value: 1},
			metrics.Metric{ID: metrics.IDImplicitThrowBackfills,
				Value: metrics.MetricValue(res.Trace.InferredExits)},
			metrics.Metric{ID: metrics.IDTraceMaxDepth,
				Value: metrics.MetricValue(res.Trace.MaxDepth())},
			metrics.Metric{ID: metrics.IDTraceNodes, Value: metrics.MetricValue(res.Trace.Len())},
		)
	}
	if !res.DumpID.IsZero() {
		m = append(m, metrics.Metric{ID: metrics.IDDumpsStored, Value: 1})
	}
	metrics.AddSlice(m)
}
