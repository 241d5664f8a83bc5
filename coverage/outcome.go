// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package coverage // import "go.opentelemetry.io/exectrace/coverage"

import (
	"go.opentelemetry.io/exectrace/calltree"
	"go.opentelemetry.io/exectrace/libtrace"
)

// Termination is how the invocation under measurement ended.
type Termination uint8

const (
	Returned Termination = iota
	ThrownExplicitly
	ThrownImplicitly
)

func (t Termination) String() string {
	switch t {
	case Returned:
		return "returned"
	case ThrownExplicitly:
		return "thrown explicitly"
	case ThrownImplicitly:
		return "thrown implicitly"
	default:
		return "unknown"
	}
}

// Outcome classifies one capture.
type Outcome struct {
	Termination Termination
	// Nested is set when the last recorded instruction belongs to another
	// activation than the first one, i.e. the invocation ended inside a
	// callee.
	Nested bool
}

// Classify derives the outcome from the reconstructed trace and the decoded
// instructions it was built from. A root that returned wins; otherwise an
// exception counts as explicit only if the very last recorded instruction
// threw it.
func Classify(t *calltree.Trace, instrs []calltree.Instruction) Outcome {
	if len(instrs) == 0 {
		return Outcome{Termination: ThrownImplicitly}
	}
	first, last := instrs[0], instrs[len(instrs)-1]
	out := Outcome{Nested: first.Activation != last.Activation}

	switch {
	case t != nil && t.Root().Termination() == libtrace.KindReturn:
		out.Termination = Returned
	case last.Kind == libtrace.KindExplicitThrow:
		out.Termination = ThrownExplicitly
	default:
		out.Termination = ThrownImplicitly
	}
	return out
}
