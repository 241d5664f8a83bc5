// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libtrace

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	tests := map[Kind]struct {
		name     string
		terminal bool
	}{
		KindCommon:        {name: "common"},
		KindInvoke:        {name: "invoke"},
		KindReturn:        {name: "return", terminal: true},
		KindPutStatic:     {name: "putstatic"},
		KindImplicitThrow: {name: "implicit-throw", terminal: true},
		KindExplicitThrow: {name: "explicit-throw", terminal: true},
	}

	for kind, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.name, kind.String())
			assert.Equal(t, tc.terminal, kind.IsTerminal())

			parsed, err := ParseKind(tc.name)
			require.NoError(t, err)
			assert.Equal(t, kind, parsed)
		})
	}

	assert.Equal(t, "kind(42)", Kind(42).String())
	_, err := ParseKind("goto")
	require.Error(t, err)
}

func TestFieldRef(t *testing.T) {
	f := FieldRef{Owner: "org/example/Counter", Name: "hits", Descriptor: "I"}
	assert.Equal(t, "org.example.Counter", f.ClassName())
	assert.Equal(t, "org.example.Counter.hits:I", f.String())
}

func TestSet(t *testing.T) {
	s := SliceToSet([]int{3, 1, 3, 2})
	assert.Len(t, s, 3)
	assert.True(t, s.Contains(1))
	assert.False(t, s.Contains(4))

	s.Add(4)
	items := s.ToSlice()
	sort.Ints(items)
	assert.Equal(t, []int{1, 2, 3, 4}, items)
}

func TestTraceHash(t *testing.T) {
	var zero TraceHash
	assert.True(t, zero.IsZero())

	h := NewTraceHash(0x1234, 0xabcd)
	assert.False(t, h.IsZero())
	assert.Equal(t, uint64(0x1234), h.Hi())
	assert.Equal(t, uint64(0xabcd), h.Lo())
	assert.Equal(t, "0000000000001234000000000000abcd", h.String())
}
