// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libtrace // import "go.opentelemetry.io/exectrace/libtrace"

import (
	"encoding/binary"
	"strconv"

	"github.com/zeebo/xxh3"
)

// classShift places the ClassID in the upper 32 bits of an InstructionID.
const classShift = 32

// InstructionID is the global identity of one instruction location:
// classID * 2^32 + localID.
type InstructionID uint64

// NewInstructionID packs a class and a local id into an InstructionID.
func NewInstructionID(class ClassID, local LocalID) InstructionID {
	return InstructionID(uint64(class)<<classShift | uint64(local))
}

// ClassID returns the class part of the id.
func (id InstructionID) ClassID() ClassID {
	return ClassID(uint64(id) >> classShift)
}

// LocalID returns the per-class part of the id.
func (id InstructionID) LocalID() LocalID {
	return LocalID(uint64(id) & (1<<classShift - 1))
}

// Bytes returns the id as big-endian byte sequence.
func (id InstructionID) Bytes() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return b[:]
}

// Hash calculates a hash from the id.
func (id InstructionID) Hash() uint64 {
	return xxh3.Hash(id.Bytes())
}

// Hash32 returns a 32 bits hash of the id.
// It's main purpose is to be used as key for caching.
func (id InstructionID) Hash32() uint32 {
	return uint32(id.Hash())
}

// String returns "<classID>:<localID>".
func (id InstructionID) String() string {
	return strconv.FormatUint(uint64(id.ClassID()), 10) + ":" +
		strconv.FormatUint(uint64(id.LocalID()), 10)
}
