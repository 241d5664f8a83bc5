// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog stores the metadata of every instruction of interest, keyed by its
// global instruction id.
package catalog // import "go.opentelemetry.io/exectrace/catalog"

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/exectrace/libtrace"
)

// Entry is one catalog record together with its keys.
type Entry struct {
	ID     libtrace.InstructionID
	Method libtrace.MethodID
	Record libtrace.Record
}

// Catalog holds the InstructionRecords registered during instrumentation.
// The first registration of an id wins: re-instrumenting a class must not corrupt
// metadata that recorded traces already refer to.
type Catalog struct {
	mu sync.RWMutex

	records map[libtrace.InstructionID]Entry
	// perClass counts the distinct instructions discovered per class.
	perClass map[libtrace.ClassID]uint64
	// perMethod lists instruction ids per method in discovery order.
	perMethod map[libtrace.MethodID][]libtrace.InstructionID
}

// New creates an empty Catalog.
func New() *Catalog {
	return &Catalog{
		records:   make(map[libtrace.InstructionID]Entry),
		perClass:  make(map[libtrace.ClassID]uint64),
		perMethod: make(map[libtrace.MethodID][]libtrace.InstructionID),
	}
}

// Register stores rec for id unless id is already known. It reports whether the
// record was added.
func (c *Catalog) Register(id libtrace.InstructionID, method libtrace.MethodID,
	rec libtrace.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[id]; ok {
		return false
	}
	c.records[id] = Entry{ID: id, Method: method, Record: rec}
	c.perClass[id.ClassID()]++
	c.perMethod[method] = append(c.perMethod[method], id)
	return true
}

// Lookup returns the record registered for id.
func (c *Catalog) Lookup(id libtrace.InstructionID) (libtrace.Record, error) {
	c.mu.RLock()
	entry, ok := c.records[id]
	c.mu.RUnlock()
	if !ok {
		return libtrace.Record{}, fmt.Errorf("%w: instruction %v was never registered",
			libtrace.ErrContractViolation, id)
	}
	return entry.Record, nil
}

// MustLookup is like Lookup but panics on unknown ids.
func (c *Catalog) MustLookup(id libtrace.InstructionID) libtrace.Record {
	rec, err := c.Lookup(id)
	if err != nil {
		panic(err)
	}
	return rec
}

// InstructionCount returns the number of instructions registered for class.
func (c *Catalog) InstructionCount(class libtrace.ClassID) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.perClass[class]
}

// MethodInstructions returns the ids registered for method in discovery order.
func (c *Catalog) MethodInstructions(method libtrace.MethodID) []libtrace.InstructionID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.perMethod[method])
}

// Len returns the number of registered instructions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Entries returns all entries ordered by instruction id.
func (c *Catalog) Entries() []Entry {
	c.mu.RLock()
	entries := make([]Entry, 0, len(c.records))
	for _, entry := range c.records {
		entries = append(entries, entry)
	}
	c.mu.RUnlock()

	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return entries
}
