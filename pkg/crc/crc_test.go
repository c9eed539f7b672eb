// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package crc

import "testing"

func TestChecksumLen(t *testing.T) {
	tests := []struct {
		typ  Type
		want int
	}{
		{None, 0},
		{CRC16, 2},
		{CRC32, 4},
	}

	for _, test := range tests {
		if l := len(Checksum([]byte("hello"), test.typ)); l != test.want {
			t.Errorf("Checksum(%v) length = %d, want %d", test.typ, l, test.want)
		}
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	for _, typ := range []Type{CRC16, CRC32} {
		sum := Checksum(data, typ)
		if !Verify(data, typ, sum) {
			t.Errorf("Verify failed for %v", typ)
		}

		corrupted := append([]byte(nil), sum...)
		corrupted[0] ^= 0xff
		if Verify(data, typ, corrupted) {
			t.Errorf("Verify unexpectedly passed for corrupted %v checksum", typ)
		}
	}
}

func TestEmptyLen(t *testing.T) {
	if Empty(CRC16) == nil || len(Empty(CRC16)) != 2 {
		t.Fatal("Empty(CRC16) must be 2 zero bytes")
	}
	if Empty(CRC32) == nil || len(Empty(CRC32)) != 4 {
		t.Fatal("Empty(CRC32) must be 4 zero bytes")
	}
	if Empty(None) != nil {
		t.Fatal("Empty(None) must be nil")
	}
}
