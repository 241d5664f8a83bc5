// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package recorder // import "go.opentelemetry.io/exectrace/recorder"

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"

	"go.opentelemetry.io/exectrace/libtrace"
)

// Hash computes the 128 bit xxh3 hash of an event sequence. Equal sequences
// hash equal; the hash only labels a capture in logs and dumps.
func Hash(events []RawEvent) libtrace.TraceHash {
	h := xxh3.New()
	var buf [12]byte
	for _, ev := range events {
		binary.BigEndian.PutUint32(buf[0:4], uint32(ev.Activation))
		binary.BigEndian.PutUint64(buf[4:12], uint64(ev.Instruction))
		_, _ = h.Write(buf[:])
	}
	sum := h.Sum128()
	return libtrace.NewTraceHash(sum.Hi, sum.Lo)
}
