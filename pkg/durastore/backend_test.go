// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package durastore

import (
	"fmt"
	"testing"
)

// stringValue is a minimal encoding.BinaryUnmarshaler used to exercise
// GetTyped/multi-type tables across backends without pulling in a real
// bundle type.
type stringValue struct {
	typeCode uint64
	s        string
}

func (v *stringValue) UnmarshalBinary(data []byte) error {
	v.s = string(data)
	return nil
}

func stringAllocator(typeCode uint64) (interface{ UnmarshalBinary([]byte) error }, error) {
	if typeCode > 2 {
		return nil, fmt.Errorf("unknown type code %d", typeCode)
	}
	return &stringValue{typeCode: typeCode}, nil
}

// newTestBackend builds and initializes a backend of the given kind
// ("memdb", "btree" or "fsdb") rooted in a fresh temp directory, for the shared
// conformance suite in backend_conformance_test.go.
func newTestBackend(t *testing.T, kind string) Backend {
	t.Helper()

	dir := t.TempDir()
	var b Backend
	var cfg Config

	switch kind {
	case "memdb":
		b = newMemBackend()
		cfg = DefaultConfig(TypeMemoryDB, "", "")
	case "btree":
		b = newBTreeBackend()
		cfg = DefaultConfig(TypeBerkeleyDB, "store.db", dir)
		cfg.Init = true
	case "fsdb":
		b = newFSBackend()
		cfg = DefaultConfig(TypeFilesysDB, "store", dir)
		cfg.Init = true
	default:
		t.Fatalf("unknown backend kind %q", kind)
	}

	if err := b.Init(cfg); err != nil {
		t.Fatalf("Init(%s): %v", kind, err)
	}
	return b
}

func backendKinds() []string {
	return []string{"memdb", "btree", "fsdb"}
}
