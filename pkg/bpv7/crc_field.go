// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"bytes"

	"github.com/dtn7/cboring"

	"github.com/dtn7/bpcore/pkg/crc"
)

// crcFieldAppendAndCompute appends the CBOR byte-string header for an
// empty/zero-filled CRC value of type t to buf (so buf now holds exactly
// what was transmitted/received with the CRC field zeroed), then returns the
// checksum of the resulting bytes. Both primary and canonical blocks use
// this to compute their trailer over "the complete CBOR encoding of the
// block with the CRC field present and zero-filled", per section 4.1.
func crcFieldAppendAndCompute(buf *bytes.Buffer, t crc.Type) []byte {
	_ = cboring.WriteByteString(crc.Empty(t), buf)
	return crc.Checksum(buf.Bytes(), t)
}
