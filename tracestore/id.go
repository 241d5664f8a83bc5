// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tracestore // import "go.opentelemetry.io/exectrace/tracestore"

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	sha256 "github.com/minio/sha256-simd"
)

// ID identifies a dump in a Store by the SHA256 of its encoded payload.
type ID struct {
	hash [32]byte
}

// String implements the `fmt.Stringer` interface
func (id ID) String() string {
	return hex.EncodeToString(id.hash[:])
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id == ID{}
}

// IDFromString parses a string into an ID.
func IDFromString(s string) (ID, error) {
	if len(s) != 64 {
		return ID{}, fmt.Errorf("length %d doesn't match expected value (64)", len(s))
	}

	slice, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("failed to parse id: %w", err)
	}

	var id ID
	copy(id.hash[:], slice)

	return id, nil
}

// MarshalJSON encodes the ID into JSON.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes JSON into an ID.
func (id *ID) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := IDFromString(v)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// calculateID hashes an encoded dump.
func calculateID(payload []byte) ID {
	return ID{hash: sha256.Sum256(payload)}
}
