// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libtrace

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionIDPacking(t *testing.T) {
	tests := map[string]struct {
		class ClassID
		local LocalID
		id    InstructionID
	}{
		"zero":          {class: 0, local: 0, id: 0},
		"first local":   {class: 0, local: 1, id: 1},
		"second class":  {class: 1, local: 0, id: 1 << 32},
		"mixed":         {class: 3, local: 17, id: 3<<32 + 17},
		"max local":     {class: 2, local: math.MaxUint32, id: 2<<32 + math.MaxUint32},
		"max class":     {class: math.MaxUint32, local: 5, id: math.MaxUint32<<32 + 5},
		"max both ends": {class: math.MaxUint32, local: math.MaxUint32, id: math.MaxUint64},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			id := NewInstructionID(tc.class, tc.local)
			assert.Equal(t, tc.id, id)
			assert.Equal(t, tc.class, id.ClassID())
			assert.Equal(t, tc.local, id.LocalID())
			assert.Equal(t, id, NewInstructionID(id.ClassID(), id.LocalID()))
		})
	}
}

func TestInstructionIDRoundTrip(t *testing.T) {
	for _, raw := range []uint64{0, 1, 42, 1 << 31, 1 << 32, 1<<32 + 1, 0xdeadbeefcafebabe,
		math.MaxUint64 - 1, math.MaxUint64} {
		id := InstructionID(raw)
		require.Equal(t, id, NewInstructionID(id.ClassID(), id.LocalID()), "id %#x", raw)
	}
}

func TestInstructionIDString(t *testing.T) {
	assert.Equal(t, "7:12", NewInstructionID(7, 12).String())
	assert.Equal(t, "0:0", InstructionID(0).String())
}

func TestInstructionIDHash(t *testing.T) {
	a := NewInstructionID(1, 2)
	b := NewInstructionID(2, 1)
	assert.Equal(t, a.Hash(), NewInstructionID(1, 2).Hash())
	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.Equal(t, uint32(a.Hash()), a.Hash32())
	assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 2}, a.Bytes())
}
