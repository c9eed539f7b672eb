// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package durastore

import "fmt"

// encodeSDNV writes v as a self-delimiting numeric value: 7 bits of value
// per byte, continuation flagged by the high bit of every byte but the
// last. Multi-type tables use this to prefix a stored value with its type
// code.
func encodeSDNV(v uint64) []byte {
	if v == 0 {
		return []byte{0x00}
	}

	var tmp [10]byte
	n := 0
	for v > 0 {
		tmp[n] = byte(v & 0x7f)
		v >>= 7
		n++
	}

	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b := tmp[n-1-i]
		if i != n-1 {
			b |= 0x80
		}
		out[i] = b
	}
	return out
}

// decodeSDNV reads a value encoded by encodeSDNV from the front of buf,
// returning the value and the number of bytes consumed.
func decodeSDNV(buf []byte) (v uint64, consumed int, err error) {
	for i, b := range buf {
		if i >= 10 {
			return 0, 0, fmt.Errorf("durastore: sdnv longer than 10 bytes")
		}
		v = (v << 7) | uint64(b&0x7f)
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("durastore: truncated sdnv")
}
