// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package calltree // import "go.opentelemetry.io/exectrace/calltree"

import (
	"fmt"

	"go.opentelemetry.io/exectrace/libtrace"
)

// reconstructor is the stack machine behind Reconstruct. The stack holds the
// arena ids of the open frames, open maps an activation to its stack index.
type reconstructor struct {
	trace *Trace
	stack []NodeID
	open  map[libtrace.ActivationID]int
}

// Reconstruct builds the call tree of instrs, which must be in recording
// order.
//
// An activation not currently open starts a nested call of the frame on top
// of the stack. An activation that is open further down resumes that frame:
// every frame above it is closed first, because its callees finished without
// their exit being observed. Frames closed without a recorded Return or
// ExplicitThrow, including all frames still open at the end, end with an
// ImplicitThrow instead.
//
// A frame whose last recorded instruction is terminal gets nothing appended,
// even if a nested call follows it. Such a frame's last child is that node,
// so Children[len-1] is not always an instruction; use Node.LastInstruction
// or Node.Termination to find how an activation ended.
//
// An empty sequence or a non-positive activation id is a contract violation.
func Reconstruct(instrs []Instruction) (*Trace, error) {
	if len(instrs) == 0 {
		return nil, fmt.Errorf("%w: empty instruction sequence", libtrace.ErrContractViolation)
	}

	r := reconstructor{
		trace: &Trace{
			Nodes:       make([]Node, 0, 16),
			UsedStatics: make(libtrace.Set[libtrace.FieldRef]),
		},
		open: make(map[libtrace.ActivationID]int),
	}

	for i := range instrs {
		in := instrs[i]
		if in.Activation <= 0 {
			return nil, fmt.Errorf("%w: event %d has invalid activation id %d",
				libtrace.ErrContractViolation, i, in.Activation)
		}
		if in.Kind == libtrace.KindPutStatic {
			r.trace.UsedStatics.Add(in.Field)
		}

		if len(r.stack) == 0 {
			if err := r.push(in); err != nil {
				return nil, err
			}
			continue
		}

		idx, ok := r.open[in.Activation]
		if !ok {
			if err := r.push(in); err != nil {
				return nil, err
			}
			continue
		}
		r.closeAbove(idx)
		target := r.stack[idx]
		r.trace.Nodes[target].Children = append(r.trace.Nodes[target].Children,
			InstructionChild(in))
	}
	r.closeAbove(-1)
	return r.trace, nil
}

// push opens a frame for in's activation, nested under the current top.
func (r *reconstructor) push(in Instruction) error {
	if _, ok := r.open[in.Activation]; ok {
		return fmt.Errorf("%w: activation %d is already open",
			libtrace.ErrContractViolation, in.Activation)
	}

	id := NodeID(len(r.trace.Nodes))
	depth := 1
	if n := len(r.stack); n > 0 {
		parent := r.stack[n-1]
		depth = r.trace.Nodes[parent].Depth + 1
		r.trace.Nodes[parent].Children = append(r.trace.Nodes[parent].Children,
			NodeChild(id))
	}
	r.trace.Nodes = append(r.trace.Nodes, Node{
		ClassName:  in.ClassName,
		Method:     in.Method,
		Activation: in.Activation,
		Depth:      depth,
		Children:   []Child{InstructionChild(in)},
	})
	r.open[in.Activation] = len(r.stack)
	r.stack = append(r.stack, id)
	return nil
}

// closeAbove back-fills and pops every frame above stack index idx, top
// frame first. idx -1 closes the whole stack.
func (r *reconstructor) closeAbove(idx int) {
	for len(r.stack)-1 > idx {
		top := r.stack[len(r.stack)-1]
		if r.backfill(&r.trace.Nodes[top]) {
			r.trace.InferredExits++
		}
		delete(r.open, r.trace.Nodes[top].Activation)
		r.stack = r.stack[:len(r.stack)-1]
	}
}

// backfill makes sure n ends with a terminal instruction. A trailing
// non-terminal instruction is turned into an ImplicitThrow at the same
// location. When the frame ends with a nested call and its last recorded
// instruction is not terminal, an ImplicitThrow located at that instruction
// is appended.
func (r *reconstructor) backfill(n *Node) bool {
	last := &n.Children[len(n.Children)-1]
	if !last.IsNode() {
		if last.Instruction.Kind.IsTerminal() {
			return false
		}
		last.Instruction.Kind = libtrace.KindImplicitThrow
		last.Instruction.Field = libtrace.FieldRef{}
		return true
	}

	// Every frame is opened with its first instruction, so one exists.
	at, _ := n.LastInstruction()
	if at.Kind.IsTerminal() {
		return false
	}
	n.Children = append(n.Children, InstructionChild(Instruction{
		ClassName:  at.ClassName,
		Method:     at.Method,
		Activation: at.Activation,
		ID:         at.ID,
		Line:       at.Line,
		Kind:       libtrace.KindImplicitThrow,
	}))
	return true
}
