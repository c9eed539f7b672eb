// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package durastore

import (
	"fmt"
	"sync"
)

// Reserved table names for the metatable, one spelling per back-end family
// as specified: SQL back-ends use the relational-sounding name, the
// embedded B-tree back-end uses the bracketed sentinel the original
// storage layer reserves for it.
const (
	MetatableNameSQL   = "META_DATA_TABLES"
	MetatableNameBTree = "___META_TABLE___"
)

// OpenFlags control how GetTable opens or creates a table. The low bits
// are discrete flags; the key size, when fixed-width, is packed into the
// upper bits via WithKeySize/KeySize so a single uint64 carries both.
type OpenFlags uint64

const (
	// Create creates the table if it does not already exist.
	Create OpenFlags = 1 << iota

	// Exclusive fails if the table already exists.
	Exclusive

	// MultiType marks the table as holding a type-code SDNV prefix
	// before each serialized value, dispatched through a caller-supplied
	// allocator on GetTyped.
	MultiType

	// AuxTable marks the table for auxiliary-column SQL projection; only
	// meaningful for back-ends whose AuxTablesAvailable returns true.
	AuxTable

	flagBits = 8 // low bits reserved for discrete flags above
)

// WithKeySize packs a fixed key width (in bytes) into f's upper bits. A
// width of 0 (the default, do not call WithKeySize) means variable-length
// keys up to 255 bytes.
func (f OpenFlags) WithKeySize(n uint8) OpenFlags {
	return (f &^ (0xff << flagBits)) | OpenFlags(n)<<flagBits
}

// KeySize extracts the fixed key width packed by WithKeySize, or 0 for
// variable-length keys.
func (f OpenFlags) KeySize() uint8 {
	return uint8(f >> flagBits)
}

func (f OpenFlags) has(bit OpenFlags) bool { return f&bit != 0 }

// Allocator builds a fresh value to decode into, keyed by the type code
// read from a multi-type table entry's SDNV prefix.
type Allocator func(typeCode uint64) (interface{ UnmarshalBinary([]byte) error }, error)

// Iterator walks a table's keys in sort order. It must be closed after
// use. The B-tree back-end's iterator holds a read transaction until
// Close; the in-memory and filesystem iterators work from the key list
// taken by Iterate and hold no lock between calls, so they do not block
// writes to the same table.
type Iterator interface {
	// Next advances to the next entry, returning false once exhausted or
	// on error (check Err after a false return).
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// Table is the per-table operation contract every back-end implements.
// Multi-type tables store a type code with each value (the B-tree,
// filesystem and SQL back-ends as an SDNV prefix); GetTyped decodes it and
// dispatches to the supplied Allocator.
type Table interface {
	Name() string
	Get(key []byte) (value []byte, status Status, err error)
	GetTyped(key []byte, alloc Allocator) (typeCode uint64, value interface{ UnmarshalBinary([]byte) error }, status Status, err error)
	Put(key []byte, typeCode uint64, value []byte, flags OpenFlags) (status Status, err error)
	Del(key []byte) (status Status, err error)
	Size() (int, error)
	KeyExists(key []byte) (bool, error)
	Iterate() (Iterator, error)
	Close() error
}

// refCounter tracks how many callers currently hold a table open, so a
// back-end can refuse DelTable with Busy while the count is nonzero and
// log (without aborting) any leaks still outstanding at shutdown.
type refCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRefCounter() *refCounter {
	return &refCounter{counts: make(map[string]int)}
}

func (r *refCounter) acquire(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[name]++
}

func (r *refCounter) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts[name] > 0 {
		r.counts[name]--
	}
	if r.counts[name] == 0 {
		delete(r.counts, name)
	}
}

func (r *refCounter) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

// leaks returns the names of tables still open, for a shutdown-time log
// line; it never causes teardown to abort.
func (r *refCounter) leaks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for name, n := range r.counts {
		if n > 0 {
			names = append(names, name)
		}
	}
	return names
}

func validateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("durastore: empty table name")
	}
	if name == MetatableNameSQL || name == MetatableNameBTree {
		return fmt.Errorf("durastore: %q is a reserved metatable name", name)
	}
	return nil
}
