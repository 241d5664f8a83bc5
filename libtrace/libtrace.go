// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package libtrace holds the identifiers and records shared by every stage of
// execution trace capture and reconstruction.
package libtrace // import "go.opentelemetry.io/exectrace/libtrace"

import (
	"errors"
	"strings"
)

// ErrContractViolation is wrapped by all errors that indicate a broken contract
// between the engine and one of its collaborators (instrumentation, driver).
// These are never expected from well-formed input and must not be tolerated silently.
var ErrContractViolation = errors.New("internal contract violation")

// ClassID is the small integer assigned to a class name on first sight.
type ClassID uint32

// LocalID numbers the instructions of interest within one class, in discovery order.
type LocalID uint32

// MethodID is the small integer assigned to a (class, method signature) pair.
type MethodID uint32

// ActivationID identifies one dynamic method activation within a trace.
// Valid ids are strictly positive.
type ActivationID int32

// SourceLine is a line number within the source file of a class.
type SourceLine uint32

// FieldRef identifies a static field written by a PutStatic instruction.
type FieldRef struct {
	// Owner is the JVM internal name of the declaring class, e.g. "java/lang/System".
	Owner      string
	Name       string
	Descriptor string
}

// ClassName returns the owner in its dotted binary form.
func (f FieldRef) ClassName() string {
	return strings.ReplaceAll(f.Owner, "/", ".")
}

// String returns "owner.name:descriptor".
func (f FieldRef) String() string {
	return f.ClassName() + "." + f.Name + ":" + f.Descriptor
}

// Record is the immutable metadata of one instruction of interest.
type Record struct {
	Kind   Kind
	Line   SourceLine
	Method string
	// Field is only set for KindPutStatic.
	Field FieldRef
}

// Void allows to use maps as sets without memory allocation for the values.
type Void struct{}

// Set is a convenience alias for a map with a `Void` key.
type Set[T comparable] map[T]Void

// Add inserts item into the set.
func (s Set[T]) Add(item T) {
	s[item] = Void{}
}

// Contains reports whether item is part of the set.
func (s Set[T]) Contains(item T) bool {
	_, ok := s[item]
	return ok
}

// ToSlice converts the Set keys into a slice.
func (s Set[T]) ToSlice() []T {
	slice := make([]T, 0, len(s))
	for item := range s {
		slice = append(slice, item)
	}
	return slice
}

// SliceToSet creates a set from a slice, deduplicating it.
func SliceToSet[T comparable](s []T) Set[T] {
	set := make(Set[T], len(s))
	for _, item := range s {
		set[item] = Void{}
	}
	return set
}
