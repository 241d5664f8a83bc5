// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/exectrace/libtrace"
)

func TestNewInvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		_, err := New(c)
		require.Error(t, err)
		_, err = NewShared(filepath.Join(t.TempDir(), "buf"), c)
		require.Error(t, err)
	}
}

func TestActivationIDs(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)

	assert.Equal(t, libtrace.ActivationID(1), b.BeginActivation())
	assert.Equal(t, libtrace.ActivationID(2), b.BeginActivation())

	// The counter survives a reset so ids are never reused.
	b.Reset()
	assert.Equal(t, libtrace.ActivationID(3), b.BeginActivation())
	assert.Equal(t, int64(3), b.Activations())
}

func TestActivationExhaustion(t *testing.T) {
	b, err := New(1)
	require.NoError(t, err)
	b.hdr.activations = math.MaxInt32 - 1

	assert.Equal(t, libtrace.ActivationID(math.MaxInt32), b.BeginActivation())
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrActivationsExhausted))
	}()
	b.BeginActivation()
}

func TestOverflow(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	b, err := New(2)
	require.NoError(t, err)

	events := []RawEvent{
		{1, libtrace.NewInstructionID(0, 0)},
		{1, libtrace.NewInstructionID(0, 1)},
		{1, libtrace.NewInstructionID(0, 2)},
		{1, libtrace.NewInstructionID(0, 3)},
		{1, libtrace.NewInstructionID(0, 4)},
	}
	for _, ev := range events {
		b.Record(ev.Activation, ev.Instruction)
	}

	assert.Equal(t, events[:2], b.Drain())
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, uint64(3), b.Dropped())
	assert.True(t, b.Overflowed())

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)

	// A reset re-arms the warning.
	b.Reset()
	assert.False(t, b.Overflowed())
	assert.Zero(t, b.Dropped())
	for _, ev := range events {
		b.Record(ev.Activation, ev.Instruction)
	}
	warnings = 0
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestDrainAndReset(t *testing.T) {
	b, err := New(8)
	require.NoError(t, err)
	assert.Empty(t, b.Drain())

	b.Record(1, 10)
	b.Record(2, 20)
	drained := b.Drain()
	assert.Equal(t, []RawEvent{{1, 10}, {2, 20}}, drained)

	b.Reset()
	assert.Zero(t, b.Len())
	assert.Empty(t, b.Drain())

	// Writes after a reset must not alter a previously drained copy.
	b.Record(3, 30)
	assert.Equal(t, []RawEvent{{1, 10}, {2, 20}}, drained)
	assert.Equal(t, []RawEvent{{3, 30}}, b.Drain())
	assert.Equal(t, 8, b.Cap())
}

func TestSeal(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	b, err := New(8)
	require.NoError(t, err)

	b.Record(1, 1)
	b.Seal()
	assert.True(t, b.Sealed())
	b.Record(1, 2)
	b.Record(1, 3)

	assert.Equal(t, []RawEvent{{1, 1}}, b.Drain())
	assert.Equal(t, uint64(2), b.Dropped())
	assert.False(t, b.Overflowed())
	assert.Empty(t, hook.AllEntries())

	b.Reset()
	assert.False(t, b.Sealed())
	b.Record(1, 4)
	assert.Equal(t, []RawEvent{{1, 4}}, b.Drain())
}

func TestShared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.buf")

	writer, err := NewShared(path, 3)
	require.NoError(t, err)
	defer writer.Close()
	assert.True(t, writer.Shared())

	reader, err := OpenShared(path)
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, 3, reader.Cap())

	a := writer.BeginActivation()
	writer.Record(a, libtrace.NewInstructionID(1, 0))
	writer.Record(a, libtrace.NewInstructionID(1, 1))

	// The reader side observes the writer's events and counter.
	assert.Equal(t, []RawEvent{
		{a, libtrace.NewInstructionID(1, 0)},
		{a, libtrace.NewInstructionID(1, 1)},
	}, reader.Drain())
	assert.Equal(t, libtrace.ActivationID(2), reader.BeginActivation())

	reader.Reset()
	assert.Zero(t, writer.Len())

	require.NoError(t, reader.Close())
	require.NoError(t, reader.Close())
}

func TestOpenSharedInvalid(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenShared(filepath.Join(dir, "missing"))
	require.Error(t, err)

	small := filepath.Join(dir, "small")
	require.NoError(t, os.WriteFile(small, []byte("x"), 0o600))
	_, err = OpenShared(small)
	require.Error(t, err)

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, make([]byte, headerSize+eventSize), 0o600))
	_, err = OpenShared(garbage)
	require.Error(t, err)

	heap, err := New(1)
	require.NoError(t, err)
	require.NoError(t, heap.Close())
	assert.False(t, heap.Shared())
}

func TestHash(t *testing.T) {
	a := []RawEvent{{1, 10}, {2, 20}}
	b := []RawEvent{{1, 10}, {2, 21}}

	assert.Equal(t, Hash(a), Hash([]RawEvent{{1, 10}, {2, 20}}))
	assert.NotEqual(t, Hash(a), Hash(b))
	assert.NotEqual(t, Hash(a), Hash(a[:1]))
	assert.False(t, Hash(a).IsZero())
}
