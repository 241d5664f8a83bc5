// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libtrace // import "go.opentelemetry.io/exectrace/libtrace"

import "fmt"

// Kind classifies an instruction of interest. The classification itself is done
// by the instrumentation, the engine only consumes it.
type Kind uint8

const (
	// KindCommon is any instruction without control-flow meaning for the trace.
	KindCommon Kind = iota
	// KindInvoke is a method invocation.
	KindInvoke
	// KindReturn is a normal method exit.
	KindReturn
	// KindPutStatic writes a static field.
	KindPutStatic
	// KindImplicitThrow marks an exit inferred during reconstruction.
	KindImplicitThrow
	// KindExplicitThrow is an explicit throw instruction.
	KindExplicitThrow
)

var kindNames = [...]string{
	KindCommon:        "common",
	KindInvoke:        "invoke",
	KindReturn:        "return",
	KindPutStatic:     "putstatic",
	KindImplicitThrow: "implicit-throw",
	KindExplicitThrow: "explicit-throw",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsTerminal reports whether an instruction of this kind ends an activation.
func (k Kind) IsTerminal() bool {
	return k == KindReturn || k == KindExplicitThrow || k == KindImplicitThrow
}

// ParseKind converts the name produced by String back into a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindCommon, fmt.Errorf("unknown instruction kind %q", s)
}
