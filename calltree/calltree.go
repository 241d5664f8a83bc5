// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package calltree rebuilds the hierarchical call tree of one concrete
// execution from its flat sequence of decoded instructions.
package calltree // import "go.opentelemetry.io/exectrace/calltree"

import (
	"go.opentelemetry.io/exectrace/libtrace"
)

// Instruction is a recorded event resolved against the instruction catalog.
type Instruction struct {
	ClassName  string
	Method     string
	Activation libtrace.ActivationID
	ID         libtrace.InstructionID
	Line       libtrace.SourceLine
	Kind       libtrace.Kind
	// Field is only set for libtrace.KindPutStatic.
	Field libtrace.FieldRef
}

// NodeID indexes Trace.Nodes.
type NodeID int32

// RootID is the index of the root node. The root is never a child.
const RootID NodeID = 0

// Child is one entry of a node's ordered children: either an instruction
// executed by the node's activation or a nested call.
type Child struct {
	Instruction Instruction
	// Node is set (non-zero) when the child is a nested call.
	Node NodeID
}

// InstructionChild wraps an instruction.
func InstructionChild(in Instruction) Child {
	return Child{Instruction: in}
}

// NodeChild references the nested call id.
func NodeChild(id NodeID) Child {
	return Child{Node: id}
}

// IsNode reports whether the child is a nested call.
func (c Child) IsNode() bool {
	return c.Node != RootID
}

// Node is one method activation of the call tree.
type Node struct {
	ClassName  string
	Method     string
	Activation libtrace.ActivationID
	// Depth is 1 for the root.
	Depth    int
	Children []Child
}

// LastInstruction returns the last instruction recorded directly by this
// activation, skipping nested calls.
func (n *Node) LastInstruction() (Instruction, bool) {
	for i := len(n.Children) - 1; i >= 0; i-- {
		if !n.Children[i].IsNode() {
			return n.Children[i].Instruction, true
		}
	}
	return Instruction{}, false
}

// Termination returns the kind of the last instruction recorded by the
// activation. After reconstruction it is always Return, ExplicitThrow or
// ImplicitThrow.
func (n *Node) Termination() libtrace.Kind {
	in, ok := n.LastInstruction()
	if !ok {
		return libtrace.KindCommon
	}
	return in.Kind
}

// Trace is the reconstructed record of one concrete execution. Nodes form an
// arena: children refer to nested calls by index, Nodes[RootID] is the root.
type Trace struct {
	Nodes       []Node
	UsedStatics libtrace.Set[libtrace.FieldRef]
	// InferredExits counts the frames closed with an inferred ImplicitThrow.
	InferredExits int
}

// Root returns the root node.
func (t *Trace) Root() *Node {
	return &t.Nodes[RootID]
}

// Node returns the node with the given id.
func (t *Trace) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

// Len returns the number of nodes.
func (t *Trace) Len() int {
	return len(t.Nodes)
}

// MaxDepth returns the depth of the deepest node.
func (t *Trace) MaxDepth() int {
	depth := 0
	for i := range t.Nodes {
		depth = max(depth, t.Nodes[i].Depth)
	}
	return depth
}

// Walk visits the nodes in pre-order, children in recording order. Returning
// false from fn skips the subtree of that node.
func (t *Trace) Walk(fn func(id NodeID, n *Node) bool) {
	if len(t.Nodes) == 0 {
		return
	}
	t.walk(RootID, fn)
}

func (t *Trace) walk(id NodeID, fn func(NodeID, *Node) bool) {
	n := &t.Nodes[id]
	if !fn(id, n) {
		return
	}
	for _, c := range n.Children {
		if c.IsNode() {
			t.walk(c.Node, fn)
		}
	}
}
