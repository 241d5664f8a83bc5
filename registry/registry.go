// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry maps class names and method signatures to the small integers
// used inside packed instruction ids.
package registry // import "go.opentelemetry.io/exectrace/registry"

import (
	"fmt"
	"math"
	"sync"

	"go.opentelemetry.io/exectrace/libtrace"
)

// classMethod is the key of a method id.
type classMethod struct {
	className string
	signature string
}

// Registry is a bijective mapping between class names and ClassIDs. It additionally
// numbers methods per (class, signature) pair. Registration is idempotent and safe
// for concurrent use, since classes may be loaded from several threads.
type Registry struct {
	mu sync.RWMutex

	classToID map[string]libtrace.ClassID
	// idToClass is indexed by ClassID.
	idToClass []string

	methodToID map[classMethod]libtrace.MethodID
	idToMethod []classMethod
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		classToID:  make(map[string]libtrace.ClassID),
		methodToID: make(map[classMethod]libtrace.MethodID),
	}
}

// RegisterClass returns the id of name, allocating the next one on first sight.
func (r *Registry) RegisterClass(name string) libtrace.ClassID {
	r.mu.RLock()
	id, ok := r.classToID[name]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok = r.classToID[name]; ok {
		return id
	}
	if uint64(len(r.idToClass)) > math.MaxUint32 {
		panic("registry: class id space exhausted")
	}
	id = libtrace.ClassID(len(r.idToClass))
	r.classToID[name] = id
	r.idToClass = append(r.idToClass, name)
	return id
}

// ClassID looks up the id of name without allocating one.
func (r *Registry) ClassID(name string) (libtrace.ClassID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.classToID[name]
	return id, ok
}

// Resolve returns the class name registered for id.
func (r *Registry) Resolve(id libtrace.ClassID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if uint64(id) >= uint64(len(r.idToClass)) {
		return "", fmt.Errorf("%w: class id %d was never registered",
			libtrace.ErrContractViolation, id)
	}
	return r.idToClass[id], nil
}

// MustResolve is like Resolve but panics on unknown ids.
func (r *Registry) MustResolve(id libtrace.ClassID) string {
	name, err := r.Resolve(id)
	if err != nil {
		panic(err)
	}
	return name
}

// NumClasses returns the number of registered classes.
func (r *Registry) NumClasses() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.idToClass)
}

// Classes returns the registered class names indexed by ClassID.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.idToClass...)
}

// InstructionID packs the id of an already registered class with a local id.
func (r *Registry) InstructionID(className string,
	local libtrace.LocalID) (libtrace.InstructionID, error) {
	id, ok := r.ClassID(className)
	if !ok {
		return 0, fmt.Errorf("%w: class %q was never registered",
			libtrace.ErrContractViolation, className)
	}
	return libtrace.NewInstructionID(id, local), nil
}

// Decompose splits an instruction id into its class name and local id.
func (r *Registry) Decompose(id libtrace.InstructionID) (string, libtrace.LocalID, error) {
	className, err := r.Resolve(id.ClassID())
	if err != nil {
		return "", 0, err
	}
	return className, id.LocalID(), nil
}

// RegisterMethod returns the id of the (className, signature) pair, allocating
// the next one on first sight.
func (r *Registry) RegisterMethod(className, signature string) libtrace.MethodID {
	key := classMethod{className: className, signature: signature}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.methodToID[key]; ok {
		return id
	}
	id := libtrace.MethodID(len(r.idToMethod))
	r.methodToID[key] = id
	r.idToMethod = append(r.idToMethod, key)
	return id
}

// MethodID looks up the id of a method without allocating one.
func (r *Registry) MethodID(className, signature string) (libtrace.MethodID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.methodToID[classMethod{className: className, signature: signature}]
	return id, ok
}

// Method returns the class name and signature registered for id.
func (r *Registry) Method(id libtrace.MethodID) (className, signature string, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if uint64(id) >= uint64(len(r.idToMethod)) {
		return "", "", fmt.Errorf("%w: method id %d was never registered",
			libtrace.ErrContractViolation, id)
	}
	m := r.idToMethod[id]
	return m.className, m.signature, nil
}

// Methods returns the (class name, signature) pairs indexed by MethodID.
func (r *Registry) Methods() [][2]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([][2]string, len(r.idToMethod))
	for i, m := range r.idToMethod {
		out[i] = [2]string{m.className, m.signature}
	}
	return out
}
