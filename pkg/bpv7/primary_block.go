// SPDX-FileCopyrightText: 2018, 2019, 2020, 2021 Alvar Penning
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
	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/bpcore/pkg/crc"
)

// dtnVersion is the fixed Bundle Protocol version this codec implements.
const dtnVersion uint64 = 7

// PrimaryBlock is the bundle's primary block, defined in section 4.3.1. Its
// block number is implicitly 0; unlike canonical blocks it carries 8 to 11
// array elements and no type code.
type PrimaryBlock struct {
	Version            uint64
	BundleControlFlags BundleControlFlags
	CRCType            crc.Type
	Destination        EndpointID
	SourceNode         EndpointID
	ReportTo           EndpointID
	CreationTimestamp  CreationTimestamp
	Lifetime           uint64
	FragmentOffset     uint64
	TotalDataLength    uint64
	CRC                []byte
}

// NewPrimaryBlock creates a new, non-fragmented primary block with a CRC-32C
// trailer already calculated. Lifetime is in milliseconds.
func NewPrimaryBlock(flags BundleControlFlags, destination, source EndpointID, ts CreationTimestamp, lifetimeMs uint64) PrimaryBlock {
	pb := PrimaryBlock{
		Version:            dtnVersion,
		BundleControlFlags: flags,
		CRCType:            crc.CRC32,
		Destination:        destination,
		SourceNode:         source,
		ReportTo:           source,
		CreationTimestamp:  ts,
		Lifetime:           lifetimeMs,
	}
	_ = pb.calculateCRC()
	return pb
}

// HasFragmentation reports whether the IsFragment control flag is set, in
// which case FragmentOffset and TotalDataLength are meaningful.
func (pb PrimaryBlock) HasFragmentation() bool {
	return pb.BundleControlFlags.Has(IsFragment)
}

// HasCRC reports whether a CRC trailer is present.
func (pb PrimaryBlock) HasCRC() bool {
	return pb.CRCType != crc.None
}

// SetCRCType sets the CRC type and recalculates the trailer. crc.None is
// upgraded to crc.CRC32, so a primary block set through here always
// carries a CRC.
func (pb *PrimaryBlock) SetCRCType(t crc.Type) {
	if t == crc.None {
		t = crc.CRC32
	}
	pb.CRCType = t
	_ = pb.calculateCRC()
}

func (pb *PrimaryBlock) calculateCRC() error {
	pb.CRC = nil
	return pb.MarshalCbor(new(bytes.Buffer))
}

// arrayLength returns the number of CBOR array elements for this primary
// block's current fragmentation/CRC shape (8, 9, 10 or 11).
func (pb PrimaryBlock) arrayLength() uint64 {
	switch frag, hasCRC := pb.HasFragmentation(), pb.HasCRC(); {
	case !frag && !hasCRC:
		return 8
	case !frag && hasCRC:
		return 9
	case frag && !hasCRC:
		return 10
	default:
		return 11
	}
}

// MarshalCbor writes the CBOR representation of a PrimaryBlock, computing
// the CRC trailer (with the CRC field zero-filled) over the full encoding.
func (pb *PrimaryBlock) MarshalCbor(w io.Writer) error {
	crcBuf := new(bytes.Buffer)
	w = io.MultiWriter(w, crcBuf)

	if err := cboring.WriteArrayLength(pb.arrayLength(), w); err != nil {
		return err
	}

	for _, f := range []uint64{dtnVersion, uint64(pb.BundleControlFlags), uint64(pb.CRCType)} {
		if err := cboring.WriteUInt(f, w); err != nil {
			return err
		}
	}

	for _, eid := range []*EndpointID{&pb.Destination, &pb.SourceNode, &pb.ReportTo} {
		if err := cboring.Marshal(eid, w); err != nil {
			return fmt.Errorf("EndpointID: %w", err)
		}
	}

	if err := cboring.Marshal(&pb.CreationTimestamp, w); err != nil {
		return fmt.Errorf("CreationTimestamp: %w", err)
	}

	if err := cboring.WriteUInt(pb.Lifetime, w); err != nil {
		return err
	}

	if pb.HasFragmentation() {
		for _, f := range []uint64{pb.FragmentOffset, pb.TotalDataLength} {
			if err := cboring.WriteUInt(f, w); err != nil {
				return err
			}
		}
	}

	if pb.HasCRC() {
		crcVal := crcFieldAppendAndCompute(crcBuf, pb.CRCType)
		if err := cboring.WriteByteString(crcVal, w); err != nil {
			return err
		}
		pb.CRC = crcVal
	}

	return nil
}

// UnmarshalCbor reads the CBOR representation of a PrimaryBlock, validating
// the CRC if present.
func (pb *PrimaryBlock) UnmarshalCbor(r io.Reader) error {
	crcBuf := new(bytes.Buffer)
	r = io.TeeReader(r, crcBuf)

	l, err := cboring.ReadArrayLength(r)
	if err != nil {
		return err
	}
	if l < 8 || l > 11 {
		return fmt.Errorf("PrimaryBlock: expected array of 8-11 elements, got %d", l)
	}

	version, err := cboring.ReadUInt(r)
	if err != nil {
		return err
	}
	if version != dtnVersion {
		return fmt.Errorf("PrimaryBlock: expected version %d, got %d", dtnVersion, version)
	}
	pb.Version = dtnVersion

	if bcf, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		pb.BundleControlFlags = BundleControlFlags(bcf)
	}

	if ct, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		pb.CRCType = crc.Type(ct)
	}

	for _, eid := range []*EndpointID{&pb.Destination, &pb.SourceNode, &pb.ReportTo} {
		if err := cboring.Unmarshal(eid, r); err != nil {
			return fmt.Errorf("EndpointID: %w", err)
		}
	}

	if err := cboring.Unmarshal(&pb.CreationTimestamp, r); err != nil {
		return fmt.Errorf("CreationTimestamp: %w", err)
	}

	if lt, err := cboring.ReadUInt(r); err != nil {
		return err
	} else {
		pb.Lifetime = lt
	}

	// The presence of exactly two trailing ints is fragmentation metadata
	// and a trailing byte string is the CRC; an array length whose shape
	// disagrees with the IsFragment flag or the CRC type is a protocol error.
	hasFragFields := l == 10 || l == 11
	hasCRCField := l == 9 || l == 11
	if hasFragFields != pb.HasFragmentation() || hasCRCField != pb.HasCRC() {
		return fmt.Errorf("PrimaryBlock: array of %d elements does not match its fragment flag and CRC type", l)
	}
	if hasFragFields {
		for _, f := range []*uint64{&pb.FragmentOffset, &pb.TotalDataLength} {
			if v, err := cboring.ReadUInt(r); err != nil {
				return err
			} else {
				*f = v
			}
		}
	}

	if hasCRCField {
		crcCalc := crcFieldAppendAndCompute(crcBuf, pb.CRCType)
		crcVal, err := cboring.ReadByteString(r)
		if err != nil {
			return err
		}
		if !bytes.Equal(crcCalc, crcVal) {
			return fmt.Errorf("PrimaryBlock: invalid CRC, got %x want %x", crcVal, crcCalc)
		}
		pb.CRC = crcVal
	}

	return nil
}

// CheckValid returns an accumulated error for malformed primary block data.
func (pb PrimaryBlock) CheckValid() (errs error) {
	if pb.Version != dtnVersion {
		errs = multierror.Append(errs, fmt.Errorf("PrimaryBlock: wrong version %d, want %d", pb.Version, dtnVersion))
	}
	if bcfErr := pb.BundleControlFlags.CheckValid(); bcfErr != nil {
		errs = multierror.Append(errs, bcfErr)
	}
	for name, eid := range map[string]EndpointID{"destination": pb.Destination, "source": pb.SourceNode, "report-to": pb.ReportTo} {
		if err := eid.CheckValid(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("PrimaryBlock: %s endpoint: %w", name, err))
		}
	}

	// 4.2.3: if source is dtn:none, the bundle must not be fragmented and no
	// status report flags may be set.
	if pb.SourceNode.IsZero() {
		ok := pb.BundleControlFlags.Has(MustNotFragmented) &&
			!pb.BundleControlFlags.Has(StatusRequestReception) &&
			!pb.BundleControlFlags.Has(StatusRequestForward) &&
			!pb.BundleControlFlags.Has(StatusRequestDelivery) &&
			!pb.BundleControlFlags.Has(StatusRequestDeletion)
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf(
				"PrimaryBlock: source is dtn:none but bundle may be fragmented or requests status reports"))
		}
	}

	return
}

func (pb PrimaryBlock) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "version: %d, flags: %b, crc: %v, dest: %v, src: %v, report-to: %v, ts: %v, lifetime: %d",
		pb.Version, pb.BundleControlFlags, pb.CRCType, pb.Destination, pb.SourceNode, pb.ReportTo,
		pb.CreationTimestamp, pb.Lifetime)
	if pb.HasFragmentation() {
		fmt.Fprintf(&b, ", fragment offset: %d, total length: %d", pb.FragmentOffset, pb.TotalDataLength)
	}
	return b.String()
}
