// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tracehandler // import "go.opentelemetry.io/exectrace/tracehandler"

import (
	"go.opentelemetry.io/exectrace/libtrace"
)

// ClassScope hands out instruction ids for one instrumentation pass over a
// class. Local ids restart at 0 for every pass, so instrumenting the same
// class again yields the same ids and leaves the catalog untouched.
type ClassScope struct {
	h         *Handler
	className string
	class     libtrace.ClassID
	next      libtrace.LocalID
}

// ClassScope starts an instrumentation pass over className.
func (h *Handler) ClassScope(className string) *ClassScope {
	return &ClassScope{
		h:         h,
		className: className,
		class:     h.registry.RegisterClass(className),
	}
}

// ClassID returns the id of the class being instrumented.
func (s *ClassScope) ClassID() libtrace.ClassID {
	return s.class
}

// Register assigns the next local id to an instruction of interest and
// records its metadata. It returns the id to pass to Hooks.Record.
func (s *ClassScope) Register(rec libtrace.Record) libtrace.InstructionID {
	id := libtrace.NewInstructionID(s.class, s.next)
	s.next++
	method := s.h.registry.RegisterMethod(s.className, rec.Method)
	s.h.catalog.Register(id, method, rec)
	return id
}
