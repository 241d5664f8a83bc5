// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package converter projects a reconstructed call tree into a compact
// description of which activations ran and how each one ended. The textual
// form is deterministic so two executions can be diffed as plain text.
package converter // import "go.opentelemetry.io/exectrace/converter"

import (
	"bytes"
	"io"

	"go.opentelemetry.io/exectrace/calltree"
	"go.opentelemetry.io/exectrace/libtrace"
)

// Element is a child of a FunctionCall: a Marker or a nested *FunctionCall.
type Element interface {
	element()
}

// Marker summarizes one or more instructions of an activation.
type Marker uint8

const (
	// Pass stands for a run of consecutive plain instructions.
	Pass Marker = iota
	// Return is a normal exit of the activation.
	Return
	// ExplicitThrow is an exit through an explicit throw instruction.
	ExplicitThrow
	// ImplicitThrow is an exit inferred because none was recorded.
	ImplicitThrow
)

var markerNames = [...]string{
	Pass:          "Pass",
	Return:        "Return",
	ExplicitThrow: "ExplicitThrow",
	ImplicitThrow: "ImplicitThrow",
}

func (m Marker) String() string {
	if int(m) < len(markerNames) {
		return markerNames[m]
	}
	return "Marker(?)"
}

func (Marker) element() {}

// FunctionCall is the projection of one activation.
type FunctionCall struct {
	Signature string
	Children  []Element
}

func (*FunctionCall) element() {}

// Function builds a FunctionCall, mostly for writing expected trees.
func Function(signature string, children ...Element) *FunctionCall {
	return &FunctionCall{Signature: signature, Children: children}
}

// Convert projects the whole trace, starting at its root.
func Convert(t *calltree.Trace) *FunctionCall {
	return convertNode(t, t.Root())
}

func convertNode(t *calltree.Trace, n *calltree.Node) *FunctionCall {
	fc := &FunctionCall{
		Signature: n.Method,
		Children:  make([]Element, 0, len(n.Children)),
	}
	for _, c := range n.Children {
		if c.IsNode() {
			fc.Children = append(fc.Children, convertNode(t, t.Node(c.Node)))
			continue
		}
		switch c.Instruction.Kind {
		case libtrace.KindCommon, libtrace.KindPutStatic:
			if k := len(fc.Children); k > 0 && fc.Children[k-1] == Pass {
				continue
			}
			fc.Children = append(fc.Children, Pass)
		case libtrace.KindReturn:
			fc.Children = append(fc.Children, Return)
		case libtrace.KindExplicitThrow:
			fc.Children = append(fc.Children, ExplicitThrow)
		case libtrace.KindImplicitThrow:
			fc.Children = append(fc.Children, ImplicitThrow)
		case libtrace.KindInvoke:
			// The callee shows up as its own FunctionCall, if it was recorded.
		}
	}
	return fc
}

const (
	branch     = "├── "
	lastBranch = "└── "
	indent     = "│   "
	lastIndent = "    "
)

// String renders the call as a tree, one element per line.
func (fc *FunctionCall) String() string {
	var buf bytes.Buffer
	fc.render(&buf)
	return buf.String()
}

// WriteTo writes the rendering of String to w.
func (fc *FunctionCall) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	fc.render(&buf)
	return buf.WriteTo(w)
}

func (fc *FunctionCall) render(buf *bytes.Buffer) {
	buf.WriteString(fc.Signature)
	buf.WriteByte('\n')
	fc.renderChildren(buf, "")
}

func (fc *FunctionCall) renderChildren(buf *bytes.Buffer, prefix string) {
	for i, child := range fc.Children {
		last := i == len(fc.Children)-1
		buf.WriteString(prefix)
		if last {
			buf.WriteString(lastBranch)
		} else {
			buf.WriteString(branch)
		}

		switch c := child.(type) {
		case Marker:
			buf.WriteString(c.String())
			buf.WriteByte('\n')
		case *FunctionCall:
			buf.WriteString(c.Signature)
			buf.WriteByte('\n')
			if last {
				c.renderChildren(buf, prefix+lastIndent)
			} else {
				c.renderChildren(buf, prefix+indent)
			}
		}
	}
}
