// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package recorder // import "go.opentelemetry.io/exectrace/recorder"

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NewShared creates (or truncates) the file at path and maps a buffer of the
// given capacity into it. Any process mapping the same file with OpenShared
// sees the same cursor, counter and events.
func NewShared(path string, capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid buffer capacity %d", capacity)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	size := headerSize + capacity*eventSize
	if err = f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("failed to size %s: %v", path, err)
	}
	b, err := mapBuffer(f, path, size)
	if err != nil {
		return nil, err
	}
	b.hdr.capacity = uint64(capacity)
	b.hdr.magic = headerMagic
	b.events = eventView(b.mapping, capacity)
	return b, nil
}

// OpenShared maps a buffer previously created by NewShared.
func OpenShared(path string) (*Buffer, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() < headerSize {
		return nil, fmt.Errorf("%s is too small for a trace buffer", path)
	}
	b, err := mapBuffer(f, path, int(st.Size()))
	if err != nil {
		return nil, err
	}
	capacity := int(b.hdr.capacity)
	if b.hdr.magic != headerMagic || headerSize+capacity*eventSize != len(b.mapping) {
		_ = b.Close()
		return nil, fmt.Errorf("%s is not a trace buffer", path)
	}
	b.events = eventView(b.mapping, capacity)
	return b, nil
}

func mapBuffer(f *os.File, path string, size int) (*Buffer, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to map %s: %v", path, err)
	}
	return &Buffer{
		hdr:     (*header)(unsafe.Pointer(&data[0])),
		mapping: data,
		path:    path,
	}, nil
}

func eventView(data []byte, capacity int) []RawEvent {
	return unsafe.Slice((*RawEvent)(unsafe.Pointer(&data[headerSize])), capacity)
}

// Shared reports whether the buffer lives in a shared memory segment.
func (b *Buffer) Shared() bool {
	return b.mapping != nil
}

// Close unmaps a shared buffer. The backing file is left in place. Close is a
// no-op for heap backed buffers.
func (b *Buffer) Close() error {
	if b.mapping == nil {
		return nil
	}
	data := b.mapping
	b.mapping = nil
	b.events = nil
	b.hdr = &header{magic: headerMagic}
	if err := unix.Munmap(data); err != nil {
		return errors.Join(fmt.Errorf("failed to unmap %s", b.path), err)
	}
	return nil
}
