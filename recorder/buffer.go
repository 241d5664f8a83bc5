// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package recorder implements the bounded trace buffer that instrumented code
// writes (activation, instruction) events into while one invocation is under
// measurement.
//
// The buffer has a single writer between Reset and Drain. Target code that
// records from more than one thread races on the shared cursor and the
// activation counter; this is a known limitation.
package recorder // import "go.opentelemetry.io/exectrace/recorder"

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/exectrace/libtrace"
)

// ErrActivationsExhausted is the panic value (wrapped) raised when the
// process-wide activation counter cannot hand out another id.
var ErrActivationsExhausted = errors.New("activation counter exhausted")

// RawEvent is one recorded (activation, instruction) pair.
type RawEvent struct {
	Activation  libtrace.ActivationID
	Instruction libtrace.InstructionID
}

// Hooks are the two call-site contracts injected into target code.
type Hooks interface {
	// BeginActivation is called once per method entry. The returned id is
	// kept in a method-local slot and passed to every Record of that
	// activation.
	BeginActivation() libtrace.ActivationID
	// Record is called right before every instruction of interest.
	Record(activation libtrace.ActivationID, instruction libtrace.InstructionID)
}

const (
	headerMagic = 0x65787472_61636501
	headerSize  = 64
	eventSize   = int(unsafe.Sizeof(RawEvent{}))
)

// header is the control block of a Buffer. For shared buffers it lives at
// offset 0 of the mapping, so its layout must stay fixed.
type header struct {
	magic       uint64
	capacity    uint64
	cursor      uint64
	activations int64
	dropped     uint64
	sealed      uint32
	warned      uint32
	_           [16]byte
}

// Buffer is a fixed-capacity event buffer plus the activation counter.
type Buffer struct {
	hdr    *header
	events []RawEvent

	// mapping is set for buffers backed by a shared memory segment.
	mapping []byte
	path    string
}

var _ Hooks = (*Buffer)(nil)

// New returns a heap backed buffer holding up to capacity events.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid buffer capacity %d", capacity)
	}
	b := &Buffer{
		hdr:    &header{magic: headerMagic, capacity: uint64(capacity)},
		events: make([]RawEvent, capacity),
	}
	return b, nil
}

// BeginActivation hands out the next activation id. Ids start at 1 and are
// never reset or reused; running out of ids panics.
func (b *Buffer) BeginActivation() libtrace.ActivationID {
	id := atomic.AddInt64(&b.hdr.activations, 1)
	if id > math.MaxInt32 {
		panic(fmt.Errorf("%w after %d activations", ErrActivationsExhausted, int64(math.MaxInt32)))
	}
	return libtrace.ActivationID(id)
}

// Record appends one event. Events beyond the capacity or after Seal are
// dropped; the first overflow after a Reset is logged once.
func (b *Buffer) Record(activation libtrace.ActivationID, instruction libtrace.InstructionID) {
	h := b.hdr
	if atomic.LoadUint32(&h.sealed) != 0 {
		atomic.AddUint64(&h.dropped, 1)
		return
	}
	cursor := atomic.LoadUint64(&h.cursor)
	if cursor >= h.capacity {
		atomic.AddUint64(&h.dropped, 1)
		if atomic.CompareAndSwapUint32(&h.warned, 0, 1) {
			log.Warnf("Trace buffer full (capacity %d), dropping further events", h.capacity)
		}
		return
	}
	b.events[cursor] = RawEvent{Activation: activation, Instruction: instruction}
	atomic.StoreUint64(&h.cursor, cursor+1)
}

// Drain returns a copy of the events recorded since the last Reset, in order.
func (b *Buffer) Drain() []RawEvent {
	n := atomic.LoadUint64(&b.hdr.cursor)
	out := make([]RawEvent, n)
	copy(out, b.events[:n])
	return out
}

// Reset prepares the buffer for the next invocation. Buffer contents are not
// erased, only the cursor and the per-capture state are cleared.
func (b *Buffer) Reset() {
	h := b.hdr
	atomic.StoreUint64(&h.cursor, 0)
	atomic.StoreUint64(&h.dropped, 0)
	atomic.StoreUint32(&h.warned, 0)
	atomic.StoreUint32(&h.sealed, 0)
}

// Seal stops recording until the next Reset. It is used when an invocation
// is forcibly stopped so that it cannot modify the events being drained.
func (b *Buffer) Seal() {
	atomic.StoreUint32(&b.hdr.sealed, 1)
}

// Sealed reports whether Seal was called since the last Reset.
func (b *Buffer) Sealed() bool {
	return atomic.LoadUint32(&b.hdr.sealed) != 0
}

// Len returns the number of recorded events.
func (b *Buffer) Len() int {
	return int(atomic.LoadUint64(&b.hdr.cursor))
}

// Cap returns the capacity in events.
func (b *Buffer) Cap() int {
	return int(b.hdr.capacity)
}

// Dropped returns the number of events dropped since the last Reset.
func (b *Buffer) Dropped() uint64 {
	return atomic.LoadUint64(&b.hdr.dropped)
}

// Overflowed reports whether an event was dropped for lack of capacity since
// the last Reset.
func (b *Buffer) Overflowed() bool {
	return atomic.LoadUint32(&b.hdr.warned) != 0
}

// Activations returns the number of activation ids handed out so far.
func (b *Buffer) Activations() int64 {
	return atomic.LoadInt64(&b.hdr.activations)
}
