// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libtrace // import "go.opentelemetry.io/exectrace/libtrace"

import "fmt"

// TraceHash identifies one drained event sequence in logs and dumps.
type TraceHash struct {
	hi, lo uint64
}

// NewTraceHash creates a TraceHash from its two halves.
func NewTraceHash(hi, lo uint64) TraceHash {
	return TraceHash{hi: hi, lo: lo}
}

// Hi returns the upper 64 bits.
func (h TraceHash) Hi() uint64 { return h.hi }

// Lo returns the lower 64 bits.
func (h TraceHash) Lo() uint64 { return h.lo }

// IsZero reports whether the hash is unset.
func (h TraceHash) IsZero() bool {
	return h.hi == 0 && h.lo == 0
}

func (h TraceHash) String() string {
	return fmt.Sprintf("%016x%016x", h.hi, h.lo)
}
