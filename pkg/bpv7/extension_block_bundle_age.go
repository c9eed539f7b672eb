// SPDX-FileCopyrightText: 2019, 2020, 2022 Alvar Penning
// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dtn7/cboring"
)

// BundleAgeBlock implements the Bundle Protocol's Bundle Age Block, defined
// in section 4.3.4. Its block-type-specific data is a single CBOR unsigned
// integer: the bundle's estimated age in milliseconds.
type BundleAgeBlock uint64

// NewBundleAgeBlock creates a new BundleAgeBlock for the given milliseconds.
func NewBundleAgeBlock(ms uint64) *BundleAgeBlock {
	bab := BundleAgeBlock(ms)
	return &bab
}

// NewCanonicalBundleAgeBlock builds a ready-to-send CanonicalBlock carrying
// a Bundle Age Block.
func NewCanonicalBundleAgeBlock(blockNumber uint64, flags BlockControlFlags, ms uint64) (CanonicalBlock, error) {
	bab := NewBundleAgeBlock(ms)
	data, err := encodeBlockValue(bab)
	if err != nil {
		return CanonicalBlock{}, err
	}
	return NewCanonicalBlock(ExtBlockTypeBundleAgeBlock, blockNumber, flags, data), nil
}

// ParseBundleAgeBlock decodes a Bundle Age Block out of a CanonicalBlock's
// Data field.
func ParseBundleAgeBlock(cb CanonicalBlock) (*BundleAgeBlock, error) {
	if cb.TypeCode != ExtBlockTypeBundleAgeBlock {
		return nil, fmt.Errorf("CanonicalBlock has type %d, not a Bundle Age Block", cb.TypeCode)
	}
	var bab BundleAgeBlock
	if err := decodeBlockValue(cb.Data, &bab); err != nil {
		return nil, err
	}
	return &bab, nil
}

// Age returns the age in milliseconds.
func (bab *BundleAgeBlock) Age() uint64 {
	return uint64(*bab)
}

// Increment with an offset in milliseconds and return the new time.
func (bab *BundleAgeBlock) Increment(offset uint64) uint64 {
	newVal := uint64(*bab) + offset
	*bab = BundleAgeBlock(newVal)
	return newVal
}

// MarshalCbor writes a CBOR representation for a Bundle Age Block.
func (bab *BundleAgeBlock) MarshalCbor(w io.Writer) error {
	return cboring.WriteUInt(uint64(*bab), w)
}

// UnmarshalCbor reads the CBOR representation for a Bundle Age Block.
func (bab *BundleAgeBlock) UnmarshalCbor(r io.Reader) error {
	us, err := cboring.ReadUInt(r)
	if err != nil {
		return err
	}
	*bab = BundleAgeBlock(us)
	return nil
}

// MarshalJSON writes a JSON representation for a Bundle Age Block, e.g., "23 ms".
func (bab *BundleAgeBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%d ms", bab.Age()))
}

type bundleAgeBlockProcessor struct{}

func (bundleAgeBlockProcessor) Name() string { return "Bundle Age Block" }

func (bundleAgeBlockProcessor) ValidateData(data []byte) error {
	var bab BundleAgeBlock
	return decodeBlockValue(data, &bab)
}

func (bundleAgeBlockProcessor) Prepare(plan *XmitPlan, source *CanonicalBlock, _ bool) error {
	return appendReceived(plan, source)
}

func (bundleAgeBlockProcessor) Generate(cb *CanonicalBlock) ([]byte, error) { return genericGenerate(cb) }

func (bundleAgeBlockProcessor) Produce(wire []byte, offset, length int) ([]byte, bool, error) {
	return genericProduce(wire, offset, length)
}

func (bundleAgeBlockProcessor) Finalize(plan *XmitPlan, index int) error { return noopFinalize(plan, index) }
