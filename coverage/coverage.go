// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package coverage derives instruction coverage and the way an invocation
// ended from one captured execution.
package coverage // import "go.opentelemetry.io/exectrace/coverage"

import (
	"slices"

	"go.opentelemetry.io/exectrace/calltree"
	"go.opentelemetry.io/exectrace/libtrace"
)

// Instruction is one covered instruction location.
type Instruction struct {
	ClassName string
	Method    string
	Line      libtrace.SourceLine
	ID        libtrace.InstructionID
}

// Coverage lists the executed instructions in execution order, together with
// the number of instructions known for the class under test.
type Coverage struct {
	Instructions      []Instruction
	InstructionsCount uint64
}

// Project extracts the coverage of instrs. Repeated executions of the same
// instruction are kept.
func Project(instrs []calltree.Instruction, instructionsCount uint64) Coverage {
	cov := Coverage{
		Instructions:      make([]Instruction, 0, len(instrs)),
		InstructionsCount: instructionsCount,
	}
	for i := range instrs {
		cov.Instructions = append(cov.Instructions, Instruction{
			ClassName: instrs[i].ClassName,
			Method:    instrs[i].Method,
			Line:      instrs[i].Line,
			ID:        instrs[i].ID,
		})
	}
	return cov
}

// Distinct returns the number of distinct instructions covered.
func (c Coverage) Distinct() int {
	seen := make(libtrace.Set[libtrace.InstructionID], len(c.Instructions))
	for _, in := range c.Instructions {
		seen.Add(in.ID)
	}
	return len(seen)
}

// Lines returns the sorted distinct source lines covered in method.
func (c Coverage) Lines(method string) []libtrace.SourceLine {
	lines := make(libtrace.Set[libtrace.SourceLine])
	for _, in := range c.Instructions {
		if in.Method == method {
			lines.Add(in.Line)
		}
	}
	out := lines.ToSlice()
	slices.Sort(out)
	return out
}
