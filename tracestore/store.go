// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracestore persists trace dumps so that captures can be inspected
// and reconstructed offline. Dumps are stored zstd compressed in a local
// directory and can optionally be mirrored to an S3 bucket.
package tracestore // import "go.opentelemetry.io/exectrace/tracestore"

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"syscall"

	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/exectrace/libtrace"
)

const (
	// localTempPrefix specifies the prefix of files in the local storage while
	// they are still being written to.
	localTempPrefix = "tmp."
	// maxDumpSize bounds the decompressed size of a dump read back from disk.
	maxDumpSize = 1 << 30
)

// Store is a compressed storage for trace dumps. Upon inserting a dump, the
// caller receives a content derived ID to refer to it by. Dumps present in the
// remote bucket but not locally are downloaded when loaded.
//
// It is safe to create multiple `Store` instances for the same local directory
// and remote bucket at the same time.
type Store struct {
	s3client  S3API
	bucket    string
	localPath string
}

// New creates a store rooted at localPath. s3client may be nil, in which case
// all remote operations fail.
func New(s3client S3API, s3Bucket, localPath string) (*Store, error) {
	if err := os.MkdirAll(localPath, 0o750); err != nil {
		return nil, err
	}
	return &Store{
		s3client:  s3client,
		bucket:    s3Bucket,
		localPath: localPath,
	}, nil
}

// HasRemote reports whether the store is backed by a bucket.
func (store *Store) HasRemote() bool {
	return store.s3client != nil && store.bucket != ""
}

// Insert encodes and stores d locally, returning its ID. If an identical dump
// was stored before, the existing ID is returned and isNew is false.
func (store *Store) Insert(d *Dump) (id ID, isNew bool, err error) {
	payload, err := d.Marshal()
	if err != nil {
		return ID{}, false, fmt.Errorf("failed to encode dump: %w", err)
	}
	id = calculateID(payload)

	present, err := store.IsPresentLocally(id)
	if err != nil {
		return ID{}, false, fmt.Errorf("failed to check whether the dump exists locally: %w", err)
	}
	if present {
		return id, false, nil
	}

	// Write to a temporary file first so that crashes leave no half-written dumps.
	out, err := os.CreateTemp(store.localPath, localTempPrefix)
	if err != nil {
		return ID{}, false, fmt.Errorf("failed to create file in local store: %w", err)
	}
	defer out.Close()

	enc, err := zstd.NewWriter(out)
	if err != nil {
		_ = os.Remove(out.Name())
		return ID{}, false, err
	}
	if _, err = enc.Write(payload); err != nil {
		enc.Close()
		_ = os.Remove(out.Name())
		return ID{}, false, fmt.Errorf("failed to compress dump: %w", err)
	}
	if err = enc.Close(); err != nil {
		_ = os.Remove(out.Name())
		return ID{}, false, fmt.Errorf("failed to compress dump: %w", err)
	}

	if err = commitTempFile(out, store.makeLocalPath(id)); err != nil {
		_ = os.Remove(out.Name())
		return ID{}, false, err
	}
	return id, true, nil
}

// Load reads the dump with the given id, downloading it first if it is only
// present remotely. The content is verified against the id.
func (store *Store) Load(ctx context.Context, id ID) (*Dump, error) {
	localPath, err := store.ensurePresentLocally(ctx, id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local file %s: %w", localPath, err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(file, zstd.WithDecoderMaxMemory(maxDumpSize))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var payload bytes.Buffer
	if _, err = io.Copy(&payload, dec); err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", localPath, err)
	}
	if calculateID(payload.Bytes()) != id {
		return nil, fmt.Errorf("content of %s doesn't match its id", localPath)
	}
	return Unmarshal(payload.Bytes())
}

// Remove removes a dump from the local store. No-op if not present.
func (store *Store) Remove(id ID) error {
	err := os.Remove(store.makeLocalPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete local file: %w", err)
	}
	return nil
}

// IsPresentLocally checks whether a dump is present in the local store.
func (store *Store) IsPresentLocally(id ID) (bool, error) {
	_, err := os.Stat(store.makeLocalPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat local file: %w", err)
	}
	return true, nil
}

// ListLocal creates a set of all dumps present in the local store.
func (store *Store) ListLocal() (libtrace.Set[ID], error) {
	dumps := libtrace.Set[ID]{}

	dumpVisitor := func(id ID) error {
		dumps.Add(id)
		return nil
	}
	unkVisitor := func(string) error {
		return nil
	}
	if err := store.visitLocalDumps(dumpVisitor, unkVisitor); err != nil {
		return nil, err
	}
	return dumps, nil
}

// RemoveLocalTempFiles removes all lingering temporary files that were never
// fully committed.
//
// If multiple instances of `Store` exist for the same directory, this may
// interfere with uncommitted writes of the other instance.
func (store *Store) RemoveLocalTempFiles() error {
	dumpVisitor := func(ID) error {
		return nil
	}
	unkVisitor := func(unkPath string) error {
		if !strings.HasPrefix(path.Base(unkPath), localTempPrefix) {
			log.Warnf("`%s` file in local store is neither a temp file nor a dump", unkPath)
			return nil
		}
		if err := os.Remove(unkPath); err != nil {
			return fmt.Errorf("failed to remove file: %w", err)
		}
		return nil
	}
	return store.visitLocalDumps(dumpVisitor, unkVisitor)
}

// makeLocalPath creates the local path for the given ID.
func (store *Store) makeLocalPath(id ID) string {
	return path.Join(store.localPath, id.String())
}

// visitLocalDumps visits all files in the local path. `dumpVisitor` is called
// for each file named by a valid ID, `unkVisitor` with the full path of all
// other files.
func (store *Store) visitLocalDumps(dumpVisitor func(ID) error,
	unkVisitor func(string) error) error {
	files, err := os.ReadDir(store.localPath)
	if err != nil {
		return fmt.Errorf("failed to read files in local store: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		id, err := IDFromString(file.Name())
		if err == nil {
			err = dumpVisitor(id)
		} else {
			err = unkVisitor(path.Join(store.localPath, file.Name()))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// commitTempFile makes sure that the given file is flushed to disk, then
// moves it to its final destination.
func commitTempFile(temp *os.File, finalPath string) error {
	if err := syscall.Fsync(int(temp.Fd())); err != nil {
		return fmt.Errorf("failed to flush file to disk: %w", err)
	}
	if err := os.Rename(temp.Name(), finalPath); err != nil {
		return fmt.Errorf("failed to move file to final location: %w", err)
	}
	return nil
}

var errNoRemote = errors.New("store has no remote bucket configured")
