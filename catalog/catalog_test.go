// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/exectrace/libtrace"
)

func TestFirstWriteWins(t *testing.T) {
	c := New()
	id := libtrace.NewInstructionID(1, 0)
	first := libtrace.Record{Kind: libtrace.KindCommon, Line: 10, Method: "foo()V"}
	second := libtrace.Record{Kind: libtrace.KindReturn, Line: 99, Method: "bar()V"}

	assert.True(t, c.Register(id, 0, first))
	assert.False(t, c.Register(id, 3, second))

	rec, err := c.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, first, rec)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, uint64(1), c.InstructionCount(1))
	assert.Empty(t, c.MethodInstructions(3))
}

func TestLookupUnknown(t *testing.T) {
	c := New()
	_, err := c.Lookup(libtrace.NewInstructionID(0, 1))
	require.ErrorIs(t, err, libtrace.ErrContractViolation)
	assert.Panics(t, func() { c.MustLookup(42) })
}

func TestPerClassAndMethod(t *testing.T) {
	c := New()
	put := libtrace.Record{
		Kind:   libtrace.KindPutStatic,
		Line:   4,
		Method: "<clinit>()V",
		Field:  libtrace.FieldRef{Owner: "A", Name: "x", Descriptor: "I"},
	}

	c.Register(libtrace.NewInstructionID(0, 1), 1, libtrace.Record{Method: "m()V"})
	c.Register(libtrace.NewInstructionID(0, 0), 1, libtrace.Record{Method: "m()V"})
	c.Register(libtrace.NewInstructionID(0, 2), 2, put)
	c.Register(libtrace.NewInstructionID(1, 0), 5, libtrace.Record{Method: "n()V"})

	assert.Equal(t, uint64(3), c.InstructionCount(0))
	assert.Equal(t, uint64(1), c.InstructionCount(1))
	assert.Equal(t, uint64(0), c.InstructionCount(7))
	assert.Equal(t, []libtrace.InstructionID{
		libtrace.NewInstructionID(0, 1),
		libtrace.NewInstructionID(0, 0),
	}, c.MethodInstructions(1))

	entries := c.Entries()
	require.Len(t, entries, 4)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].ID, entries[i].ID)
	}
	assert.Equal(t, put, entries[2].Record)
	assert.Equal(t, libtrace.MethodID(2), entries[2].Method)
}
