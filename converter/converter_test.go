// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package converter

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/exectrace/calltree"
	"go.opentelemetry.io/exectrace/libtrace"
)

var signatures = map[libtrace.ActivationID]string{
	1: "A()V",
	2: "B(I)I",
	3: "C()V",
	4: "B(I)I",
}

func ev(act libtrace.ActivationID, kind libtrace.Kind) calltree.Instruction {
	return calltree.Instruction{
		ClassName:  "org.example.Sample",
		Method:     signatures[act],
		Activation: act,
		Kind:       kind,
	}
}

func convert(t *testing.T, instrs ...calltree.Instruction) *FunctionCall {
	t.Helper()
	tr, err := calltree.Reconstruct(instrs)
	require.NoError(t, err)
	return Convert(tr)
}

func TestConvert(t *testing.T) {
	tests := map[string]struct {
		input []calltree.Instruction
		want  *FunctionCall
	}{
		"pass then return": {
			input: []calltree.Instruction{
				ev(1, libtrace.KindCommon),
				ev(1, libtrace.KindReturn),
			},
			want: Function("A()V", Pass, Return),
		},
		"nested call": {
			input: []calltree.Instruction{
				ev(1, libtrace.KindCommon),
				ev(2, libtrace.KindCommon),
				ev(2, libtrace.KindReturn),
				ev(1, libtrace.KindReturn),
			},
			want: Function("A()V",
				Pass,
				Function("B(I)I", Pass, Return),
				Return),
		},
		"lone common becomes implicit throw": {
			input: []calltree.Instruction{
				ev(1, libtrace.KindCommon),
			},
			want: Function("A()V", ImplicitThrow),
		},
		"run of common and putstatic is one pass": {
			input: []calltree.Instruction{
				ev(1, libtrace.KindCommon),
				ev(1, libtrace.KindPutStatic),
				ev(1, libtrace.KindCommon),
				ev(1, libtrace.KindExplicitThrow),
			},
			want: Function("A()V", Pass, ExplicitThrow),
		},
		"invoke is not emitted and does not split a pass": {
			input: []calltree.Instruction{
				ev(1, libtrace.KindCommon),
				ev(1, libtrace.KindInvoke),
				ev(1, libtrace.KindCommon),
				ev(1, libtrace.KindReturn),
			},
			want: Function("A()V", Pass, Return),
		},
		"pass after nested call is emitted again": {
			input: []calltree.Instruction{
				ev(1, libtrace.KindCommon),
				ev(1, libtrace.KindInvoke),
				ev(2, libtrace.KindReturn),
				ev(1, libtrace.KindCommon),
				ev(1, libtrace.KindCommon),
				ev(1, libtrace.KindReturn),
			},
			want: Function("A()V",
				Pass,
				Function("B(I)I", Return),
				Pass,
				Return),
		},
		"callee without own exit": {
			input: []calltree.Instruction{
				ev(1, libtrace.KindInvoke),
				ev(2, libtrace.KindCommon),
				ev(1, libtrace.KindCommon),
				ev(1, libtrace.KindReturn),
			},
			want: Function("A()V",
				Function("B(I)I", ImplicitThrow),
				Pass,
				Return),
		},
		"caller never resumes": {
			input: []calltree.Instruction{
				ev(1, libtrace.KindInvoke),
				ev(2, libtrace.KindCommon),
				ev(2, libtrace.KindExplicitThrow),
			},
			want: Function("A()V",
				Function("B(I)I", Pass, ExplicitThrow),
				ImplicitThrow),
		},
		"recursion": {
			input: []calltree.Instruction{
				ev(1, libtrace.KindInvoke),
				ev(2, libtrace.KindCommon),
				ev(2, libtrace.KindInvoke),
				ev(4, libtrace.KindCommon),
				ev(4, libtrace.KindReturn),
				ev(2, libtrace.KindReturn),
				ev(1, libtrace.KindReturn),
			},
			want: Function("A()V",
				Function("B(I)I",
					Pass,
					Function("B(I)I", Pass, Return),
					Return),
				Return),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := convert(t, tc.input...)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("conversion mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestString(t *testing.T) {
	fc := Function("A()V",
		Pass,
		Function("B(I)I",
			Pass,
			Function("C()V", ImplicitThrow),
			Return),
		Function("C()V", Pass, Return),
		Return)

	want := `A()V
├── Pass
├── B(I)I
│   ├── Pass
│   ├── C()V
│   │   └── ImplicitThrow
│   └── Return
├── C()V
│   ├── Pass
│   └── Return
└── Return
`
	assert.Equal(t, want, fc.String())

	var buf bytes.Buffer
	n, err := fc.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), n)
	assert.Equal(t, want, buf.String())
}

func TestStringLastNested(t *testing.T) {
	fc := Function("A()V",
		Pass,
		Function("B(I)I", Pass, Return))

	want := `A()V
├── Pass
└── B(I)I
    ├── Pass
    └── Return
`
	assert.Equal(t, want, fc.String())
	assert.Equal(t, "A()V\n", Function("A()V").String())
}

func TestMarkerString(t *testing.T) {
	assert.Equal(t, "Pass", Pass.String())
	assert.Equal(t, "Return", Return.String())
	assert.Equal(t, "ExplicitThrow", ExplicitThrow.String())
	assert.Equal(t, "ImplicitThrow", ImplicitThrow.String())
	assert.Equal(t, "Marker(?)", Marker(42).String())
}
