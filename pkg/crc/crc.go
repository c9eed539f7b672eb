// SPDX-FileCopyrightText: 2018, 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package crc implements the two checksum algorithms used by BPv7 canonical
// and primary blocks: CRC-16/CCITT and CRC-32C (Castagnoli). Both are
// computed over a block's complete CBOR encoding with the CRC value field
// present and zero-filled; the result replaces the placeholder on emit and
// is compared against the transmitted value on receive.
package crc

import (
	"encoding/binary"
	"hash/crc32"
	"sync"

	"github.com/howeyc/crc16"
)

// Type indicates which CRC algorithm is in use for a block, as specified in
// section 4.1.1 of BPv7. Only the three defined consts are valid.
type Type uint64

const (
	// None means no CRC is present at all.
	None Type = 0

	// CRC16 is "a standard X-25 CRC-16", polynomial 0x8408 reflected,
	// initial state 0, final XOR 0xffff.
	CRC16 Type = 1

	// CRC32 is "a standard CRC32C (Castagnoli) CRC-32", polynomial
	// 0x82f63b78 reflected, initial 0xffffffff, final XOR 0xffffffff.
	CRC32 Type = 2
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case CRC16:
		return "CRC-16"
	case CRC32:
		return "CRC-32C"
	default:
		return "unknown"
	}
}

// Len returns the number of bytes the CRC value occupies on the wire for
// this Type, 0 for None.
func (t Type) Len() int {
	switch t {
	case CRC16:
		return 2
	case CRC32:
		return 4
	default:
		return 0
	}
}

var (
	crc16Table     = crc16.MakeTable(crc16.CCITT)
	crc32TableOnce sync.Once
	crc32Table     *crc32.Table
)

// crc32c lazily builds the Castagnoli table on first use with hash/crc32's
// MakeTable (a standard 256-entry table) rather than hand-rolling one,
// since Go's stdlib table-driven implementation is the idiomatic
// equivalent.
func crc32c() *crc32.Table {
	crc32TableOnce.Do(func() {
		crc32Table = crc32.MakeTable(crc32.Castagnoli)
	})
	return crc32Table
}

// Empty returns the all-zero placeholder value for a CRC Type, used while
// computing the checksum over a block whose CRC field is not yet known.
func Empty(t Type) []byte {
	switch t {
	case None:
		return nil
	case CRC16:
		return make([]byte, 2)
	case CRC32:
		return make([]byte, 4)
	default:
		return nil
	}
}

// Checksum computes the CRC of data for the given Type, returning the
// network-byte-order (big-endian) encoded value.
func Checksum(data []byte, t Type) []byte {
	switch t {
	case CRC16:
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, crc16.Checksum(data, crc16Table))
		return out
	case CRC32:
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, crc32.Checksum(data, crc32c()))
		return out
	default:
		return nil
	}
}

// Verify reports whether want matches the CRC of data for Type t. It is
// used on receive to compare a transmitted CRC against the recomputed one.
func Verify(data []byte, t Type, want []byte) bool {
	got := Checksum(data, t)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
