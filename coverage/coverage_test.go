// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/exectrace/calltree"
	"go.opentelemetry.io/exectrace/libtrace"
)

func ev(act libtrace.ActivationID, method string, local uint32, line libtrace.SourceLine,
	kind libtrace.Kind) calltree.Instruction {
	return calltree.Instruction{
		ClassName:  "org.example.Sample",
		Method:     method,
		Activation: act,
		ID:         libtrace.NewInstructionID(3, libtrace.LocalID(local)),
		Line:       line,
		Kind:       kind,
	}
}

func TestProject(t *testing.T) {
	instrs := []calltree.Instruction{
		ev(1, "a()V", 0, 10, libtrace.KindCommon),
		ev(1, "a()V", 1, 11, libtrace.KindInvoke),
		ev(2, "b()V", 5, 20, libtrace.KindReturn),
		ev(1, "a()V", 1, 11, libtrace.KindInvoke),
		ev(3, "b()V", 5, 20, libtrace.KindReturn),
		ev(1, "a()V", 2, 12, libtrace.KindReturn),
	}
	cov := Project(instrs, 42)

	require.Len(t, cov.Instructions, len(instrs))
	assert.Equal(t, uint64(42), cov.InstructionsCount)
	assert.Equal(t, Instruction{
		ClassName: "org.example.Sample",
		Method:    "b()V",
		Line:      20,
		ID:        libtrace.NewInstructionID(3, 5),
	}, cov.Instructions[2])
	assert.Equal(t, 4, cov.Distinct())
	assert.Equal(t, []libtrace.SourceLine{10, 11, 12}, cov.Lines("a()V"))
	assert.Equal(t, []libtrace.SourceLine{20}, cov.Lines("b()V"))
	assert.Empty(t, cov.Lines("c()V"))
}

func TestClassify(t *testing.T) {
	tests := map[string]struct {
		input []calltree.Instruction
		want  Outcome
	}{
		"returned": {
			input: []calltree.Instruction{
				ev(1, "a()V", 0, 1, libtrace.KindCommon),
				ev(1, "a()V", 1, 2, libtrace.KindReturn),
			},
			want: Outcome{Termination: Returned},
		},
		"explicit throw in root": {
			input: []calltree.Instruction{
				ev(1, "a()V", 0, 1, libtrace.KindExplicitThrow),
			},
			want: Outcome{Termination: ThrownExplicitly},
		},
		"explicit throw in callee": {
			input: []calltree.Instruction{
				ev(1, "a()V", 0, 1, libtrace.KindInvoke),
				ev(2, "b()V", 1, 5, libtrace.KindExplicitThrow),
			},
			want: Outcome{Termination: ThrownExplicitly, Nested: true},
		},
		"implicit throw in callee": {
			input: []calltree.Instruction{
				ev(1, "a()V", 0, 1, libtrace.KindInvoke),
				ev(2, "b()V", 1, 5, libtrace.KindCommon),
			},
			want: Outcome{Termination: ThrownImplicitly, Nested: true},
		},
		"callee returned but caller did not": {
			input: []calltree.Instruction{
				ev(1, "a()V", 0, 1, libtrace.KindInvoke),
				ev(2, "b()V", 1, 5, libtrace.KindReturn),
			},
			want: Outcome{Termination: ThrownImplicitly, Nested: true},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			tr, err := calltree.Reconstruct(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, Classify(tr, tc.input))
		})
	}
}

func TestClassifyEmpty(t *testing.T) {
	assert.Equal(t, Outcome{Termination: ThrownImplicitly}, Classify(nil, nil))
	assert.Equal(t, "thrown implicitly", ThrownImplicitly.String())
	assert.Equal(t, "returned", Returned.String())
}
