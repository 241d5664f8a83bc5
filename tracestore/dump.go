// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tracestore // import "go.opentelemetry.io/exectrace/tracestore"

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"go.opentelemetry.io/exectrace/catalog"
	"go.opentelemetry.io/exectrace/libtrace"
	"go.opentelemetry.io/exectrace/recorder"
	"go.opentelemetry.io/exectrace/registry"
)

// dumpVersion is bumped on incompatible changes of the Dump layout.
const dumpVersion = 1

// Method is a (class, signature) pair, indexed by MethodID in Dump.Methods.
type Method struct {
	_msgpack struct{} `msgpack:",as_array"`

	ClassName string
	Signature string
}

// Instruction is one catalog entry.
type Instruction struct {
	_msgpack struct{} `msgpack:",as_array"`

	ID     uint64
	Method uint32
	Kind   string
	Line   uint32
	Field  libtrace.FieldRef
}

// Event is one recorded event.
type Event struct {
	_msgpack struct{} `msgpack:",as_array"`

	Activation int32
	ID         uint64
}

// Dump holds everything needed to rebuild the call tree of one capture
// offline: the identity tables, the instruction catalog and the raw events.
type Dump struct {
	Version      int           `msgpack:"v"`
	SessionID    string        `msgpack:"session"`
	Created      time.Time     `msgpack:"created"`
	Capacity     int           `msgpack:"capacity"`
	Dropped      uint64        `msgpack:"dropped"`
	Interrupted  bool          `msgpack:"interrupted"`
	Classes      []string      `msgpack:"classes"`
	Methods      []Method      `msgpack:"methods"`
	Instructions []Instruction `msgpack:"instructions"`
	Events       []Event       `msgpack:"events"`
}

// NewDump snapshots reg and cat together with the drained events.
func NewDump(reg *registry.Registry, cat *catalog.Catalog, events []recorder.RawEvent) *Dump {
	d := &Dump{
		Version: dumpVersion,
		Created: time.Now().UTC(),
		Classes: reg.Classes(),
	}
	for _, m := range reg.Methods() {
		d.Methods = append(d.Methods, Method{ClassName: m[0], Signature: m[1]})
	}
	for _, e := range cat.Entries() {
		d.Instructions = append(d.Instructions, Instruction{
			ID:     uint64(e.ID),
			Method: uint32(e.Method),
			Kind:   e.Record.Kind.String(),
			Line:   uint32(e.Record.Line),
			Field:  e.Record.Field,
		})
	}
	d.Events = make([]Event, len(events))
	for i, ev := range events {
		d.Events[i] = Event{Activation: int32(ev.Activation), ID: uint64(ev.Instruction)}
	}
	return d
}

// Restore rebuilds the registry, the catalog and the events of the dump.
func (d *Dump) Restore() (*registry.Registry, *catalog.Catalog, []recorder.RawEvent, error) {
	if d.Version != dumpVersion {
		return nil, nil, nil, fmt.Errorf("unsupported dump version %d", d.Version)
	}

	reg := registry.New()
	for i, name := range d.Classes {
		if id := reg.RegisterClass(name); int(id) != i {
			return nil, nil, nil, fmt.Errorf("duplicate class %q in dump", name)
		}
	}
	for i, m := range d.Methods {
		if id := reg.RegisterMethod(m.ClassName, m.Signature); int(id) != i {
			return nil, nil, nil, fmt.Errorf("duplicate method %s.%s in dump",
				m.ClassName, m.Signature)
		}
	}

	cat := catalog.New()
	for _, in := range d.Instructions {
		kind, err := libtrace.ParseKind(in.Kind)
		if err != nil {
			return nil, nil, nil, err
		}
		if int(in.Method) >= len(d.Methods) {
			return nil, nil, nil, fmt.Errorf("instruction %v refers to unknown method %d",
				libtrace.InstructionID(in.ID), in.Method)
		}
		cat.Register(libtrace.InstructionID(in.ID), libtrace.MethodID(in.Method),
			libtrace.Record{
				Kind:   kind,
				Line:   libtrace.SourceLine(in.Line),
				Method: d.Methods[in.Method].Signature,
				Field:  in.Field,
			})
	}

	events := make([]recorder.RawEvent, len(d.Events))
	for i, ev := range d.Events {
		events[i] = recorder.RawEvent{
			Activation:  libtrace.ActivationID(ev.Activation),
			Instruction: libtrace.InstructionID(ev.ID),
		}
	}
	return reg, cat, events, nil
}

// Marshal encodes the dump.
func (d *Dump) Marshal() ([]byte, error) {
	return msgpack.Marshal(d)
}

// Unmarshal decodes a dump produced by Marshal.
func Unmarshal(data []byte) (*Dump, error) {
	var d Dump
	if err := msgpack.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode dump: %w", err)
	}
	return &d, nil
}
