// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package durastore

import "testing"

func TestSDNVRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 255, 16384, 1 << 20, 1 << 40, ^uint64(0)}

	for _, v := range values {
		enc := encodeSDNV(v)
		got, n, err := decodeSDNV(enc)
		if err != nil {
			t.Fatalf("decodeSDNV(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
		if n != len(enc) {
			t.Errorf("round trip %d: consumed %d, want %d", v, n, len(enc))
		}
	}
}

func TestSDNVDecodeConsumesPrefix(t *testing.T) {
	enc := encodeSDNV(300)
	buf := append(append([]byte{}, enc...), 0xAA, 0xBB)

	v, n, err := decodeSDNV(buf)
	if err != nil {
		t.Fatalf("decodeSDNV: %v", err)
	}
	if v != 300 {
		t.Errorf("got %d, want 300", v)
	}
	if n != len(enc) {
		t.Errorf("consumed %d, want %d", n, len(enc))
	}
}

func TestSDNVDecodeTruncated(t *testing.T) {
	enc := encodeSDNV(300)
	if _, _, err := decodeSDNV(enc[:len(enc)-1]); err == nil {
		t.Fatal("expected error decoding truncated sdnv")
	}
}

func TestSDNVDecodeTooLong(t *testing.T) {
	buf := make([]byte, 11)
	for i := range buf {
		buf[i] = 0x80
	}
	if _, _, err := decodeSDNV(buf); err == nil {
		t.Fatal("expected error decoding overlong sdnv")
	}
}
