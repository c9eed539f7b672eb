// SPDX-FileCopyrightText: 2018, 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dtn7/cboring"

	"github.com/dtn7/bpcore/pkg/crc"
)

// CanonicalBlock is any bundle block other than the primary block, defined
// in section 4.3.2. It encodes as a fixed 5- or 6-element CBOR array: type,
// block number, processing flags, CRC type, block-type-specific data (a
// CBOR byte string), and optionally the CRC value.
//
// Data holds the already-encoded block-type-specific payload exactly as it
// sits inside the byte-string field; it is the per-block-type
// BlockProcessor's job to interpret it. This mirrors how the assembler
// receives a block before dispatching it to a processor (section 4.4): the
// header is generic, the body is opaque until a processor claims it.
type CanonicalBlock struct {
	TypeCode          uint64
	BlockNumber       uint64
	BlockControlFlags BlockControlFlags
	CRCType           crc.Type
	Data              []byte
	CRC               []byte
}

// NewCanonicalBlock builds a CanonicalBlock from an already-encoded
// block-type-specific payload (as produced by a BlockProcessor's generate
// step).
func NewCanonicalBlock(typeCode, blockNumber uint64, flags BlockControlFlags, data []byte) CanonicalBlock {
	return CanonicalBlock{
		TypeCode:     typeCode,
		BlockNumber:  blockNumber,
		BlockControlFlags: flags,
		CRCType:      crc.None,
		Data:         data,
	}
}

// HasCRC reports whether a CRC trailer is present.
func (cb CanonicalBlock) HasCRC() bool {
	return cb.CRCType != crc.None
}

// SetCRCType sets the CRC type. The CRC value itself is (re)computed by
// MarshalCbor.
func (cb *CanonicalBlock) SetCRCType(t crc.Type) {
	cb.CRCType = t
}

// arrayLength is 5 without a CRC trailer, 6 with one.
func (cb CanonicalBlock) arrayLength() uint64 {
	if cb.HasCRC() {
		return 6
	}
	return 5
}

// MarshalCbor writes this CanonicalBlock's CBOR representation, computing
// the CRC trailer over the full encoding with the CRC field zero-filled.
func (cb *CanonicalBlock) MarshalCbor(w io.Writer) error {
	crcBuf := new(bytes.Buffer)
	w = io.MultiWriter(w, crcBuf)

	if err := cboring.WriteArrayLength(cb.arrayLength(), w); err != nil {
		return err
	}

	for _, f := range []uint64{cb.TypeCode, cb.BlockNumber, uint64(cb.BlockControlFlags), uint64(cb.CRCType)} {
		if err := cboring.WriteUInt(f, w); err != nil {
			return err
		}
	}

	if err := cboring.WriteByteString(cb.Data, w); err != nil {
		return fmt.Errorf("CanonicalBlock: writing block-type-specific data: %w", err)
	}

	if cb.HasCRC() {
		crcVal := crcFieldAppendAndCompute(crcBuf, cb.CRCType)
		if err := cboring.WriteByteString(crcVal, w); err != nil {
			return err
		}
		cb.CRC = crcVal
	}

	return nil
}

// UnmarshalCbor reads a CanonicalBlock's CBOR representation, validating the
// CRC if present. Data is left exactly as received; interpreting it is a
// BlockProcessor's job.
func (cb *CanonicalBlock) UnmarshalCbor(r io.Reader) error {
	crcBuf := new(bytes.Buffer)
	teed := io.TeeReader(r, crcBuf)

	l, err := cboring.ReadArrayLength(teed)
	if err != nil {
		return err
	}
	if l != 5 && l != 6 {
		return fmt.Errorf("CanonicalBlock: expected array of length 5 or 6, got %d", l)
	}

	if tc, err := cboring.ReadUInt(teed); err != nil {
		return err
	} else {
		cb.TypeCode = tc
	}
	if bn, err := cboring.ReadUInt(teed); err != nil {
		return err
	} else {
		cb.BlockNumber = bn
	}
	if cf, err := cboring.ReadUInt(teed); err != nil {
		return err
	} else {
		cb.BlockControlFlags = BlockControlFlags(cf)
	}
	if ct, err := cboring.ReadUInt(teed); err != nil {
		return err
	} else {
		cb.CRCType = crc.Type(ct)
	}

	data, err := cboring.ReadByteString(teed)
	if err != nil {
		return fmt.Errorf("CanonicalBlock: reading block-type-specific data: %w", err)
	}
	cb.Data = data

	if l == 6 {
		crcCalc := crcFieldAppendAndCompute(crcBuf, cb.CRCType)
		crcVal, err := cboring.ReadByteString(r)
		if err != nil {
			return err
		}
		if !bytes.Equal(crcCalc, crcVal) {
			return fmt.Errorf("CanonicalBlock: invalid CRC, got %x want %x", crcVal, crcCalc)
		}
		cb.CRC = crcVal
	}

	return nil
}

// CheckValid returns an error for a block number that collides with the
// implicit payload block number or other clearly invalid header state.
func (cb CanonicalBlock) CheckValid() error {
	if cb.TypeCode == ExtBlockTypePayloadBlock && cb.BlockNumber != 1 {
		return fmt.Errorf("CanonicalBlock: payload block must have block number 1, got %d", cb.BlockNumber)
	}
	if cb.BlockNumber == 0 {
		return fmt.Errorf("CanonicalBlock: block number 0 is reserved for the primary block")
	}
	return nil
}

func (cb CanonicalBlock) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "type: %d, number: %d, flags: %b, crc: %v, data len: %d",
		cb.TypeCode, cb.BlockNumber, cb.BlockControlFlags, cb.CRCType, len(cb.Data))
	if cb.HasCRC() {
		fmt.Fprintf(&b, ", crc value: %x", cb.CRC)
	}
	return b.String()
}
