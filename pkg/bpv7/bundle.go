// SPDX-FileCopyrightText: 2018, 2019, 2020, 2022 Alvar Penning
// SPDX-FileCopyrightText: 2022 Markus Sommer
// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dtn7/cboring"
	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/bpcore/pkg/crc"
)

// Bundle represents a bundle as defined in section 4.2.1. Each Bundle
// contains exactly one primary block and one or more canonical blocks, the
// last of which must be the payload block.
//
// A CanonicalBlock's Data field is opaque bytes until a caller asks a
// specific block type's Parse function (ParseHopCountBlock,
// ParsePayloadBlock, ...) to interpret it; this is the same split the
// assembler (section 4.4) and the block processor registry observe.
type Bundle struct {
	PrimaryBlock    PrimaryBlock
	CanonicalBlocks []CanonicalBlock

	// APIBlocks holds blocks injected locally (by routing, before the next
	// transmission) that are not yet folded into CanonicalBlocks. Kept
	// separate so a received bundle's own block list stays exactly as it
	// arrived until PrepareBlocks builds an outgoing transmission plan.
	APIBlocks []CanonicalBlock

	// XmitPlans holds one transmission block list per outgoing link,
	// populated by PrepareBlocks/GenerateBlocks (section 4.4).
	XmitPlans map[LinkID]*XmitPlan

	// IMCState accumulates this bundle's multicast loop-prevention sets
	// (processed-regions/processed-by-nodes, section 4.6) across every
	// IMC-Destinations/IMC-State block seen so far, independent of
	// whichever copy currently sits in CanonicalBlocks.
	IMCState *ImcBlock
}

// NewBundle creates a new Bundle. The values and flags of the blocks will be
// checked and an error might be returned.
func NewBundle(primary PrimaryBlock, canonicals []CanonicalBlock) (b Bundle, err error) {
	b = MustNewBundle(primary, canonicals)
	err = b.CheckValid()
	return
}

// MustNewBundle creates a new Bundle like NewBundle, but skips the validity
// check. No panic will be called!
func MustNewBundle(primary PrimaryBlock, canonicals []CanonicalBlock) (b Bundle) {
	b = Bundle{
		PrimaryBlock:    primary,
		CanonicalBlocks: canonicals,
	}
	b.sortBlocks()
	return
}

// ParseBundle reads a new CBOR encoded Bundle from a Reader.
func ParseBundle(r io.Reader) (b Bundle, err error) {
	err = cboring.Unmarshal(&b, r)
	return
}

// WriteBundle writes this Bundle CBOR encoded into a Writer.
func (b *Bundle) WriteBundle(w io.Writer) error {
	return cboring.Marshal(b, w)
}

// ExtensionBlocks returns all this Bundle's canonical blocks matching the
// requested block type code. If no such block was found, an error will be
// returned.
func (b *Bundle) ExtensionBlocks(blockType uint64) (cbs []*CanonicalBlock, err error) {
	for i := 0; i < len(b.CanonicalBlocks); i++ {
		cb := &b.CanonicalBlocks[i]
		if cb.TypeCode == blockType {
			cbs = append(cbs, cb)
		}
	}

	if len(cbs) == 0 {
		cbs = nil
		err = fmt.Errorf("no CanonicalBlock with block type %d was found in Bundle", blockType)
	}
	return
}

// ExtensionBlock returns a Canonical Block for the requested type code.
//
// If there is no such Block or more than exactly one Block, an error will
// be returned.
func (b *Bundle) ExtensionBlock(blockType uint64) (*CanonicalBlock, error) {
	cbs, err := b.ExtensionBlocks(blockType)
	if err != nil {
		return nil, err
	}
	if l := len(cbs); l != 1 {
		return nil, fmt.Errorf("there are %d extension blocks for type code %d", l, blockType)
	}
	return cbs[0], nil
}

// HasExtensionBlock checks if a CanonicalBlock for some block type number is present.
func (b *Bundle) HasExtensionBlock(blockType uint64) bool {
	_, err := b.ExtensionBlocks(blockType)
	return err == nil
}

// PayloadBlock returns this Bundle's payload block or an error, if it does
// not exist.
func (b *Bundle) PayloadBlock() (*CanonicalBlock, error) {
	return b.ExtensionBlock(ExtBlockTypePayloadBlock)
}

// sortBlocks sorts the canonical blocks, payload last.
//
// This method is called internally after block modification, e.g., in
// MustNewBundle or AddExtensionBlock.
func (b *Bundle) sortBlocks() {
	sort.Sort(canonicalBlockNumberSort(b.CanonicalBlocks))
}

// AddExtensionBlock adds a new CanonicalBlock to this Bundle.
//
// The block number will be calculated and overwritten within this method.
func (b *Bundle) AddExtensionBlock(block CanonicalBlock) error {
	taken := make(map[uint64]bool, len(b.CanonicalBlocks))
	for i := 0; i < len(b.CanonicalBlocks); i++ {
		taken[b.CanonicalBlocks[i].BlockNumber] = true
	}

	blockNumber := uint64(1)
	if block.TypeCode != ExtBlockTypePayloadBlock {
		blockNumber = 2
	}
	for taken[blockNumber] {
		blockNumber++
	}

	block.BlockNumber = blockNumber
	b.CanonicalBlocks = append(b.CanonicalBlocks, block)
	b.sortBlocks()
	return nil
}

// GetExtensionBlockByBlockNumber searches and returns a CanonicalBlock with
// the given block number. If no such block exists, the method returns an
// error. Sorting is not performed, as the blocks are assumed to already be
// in order.
func (b *Bundle) GetExtensionBlockByBlockNumber(blockNumber uint64) (*CanonicalBlock, error) {
	for i := 0; i < len(b.CanonicalBlocks); i++ {
		if b.CanonicalBlocks[i].BlockNumber == blockNumber {
			return &b.CanonicalBlocks[i], nil
		}
	}
	return nil, fmt.Errorf("block with number %d not found", blockNumber)
}

// AddAPIBlock appends a locally-injected block to the API-submission list.
// It is folded into an outgoing transmission plan by the next PrepareBlocks
// call, rather than immediately merged into CanonicalBlocks.
func (b *Bundle) AddAPIBlock(cb CanonicalBlock) {
	b.APIBlocks = append(b.APIBlocks, cb)
}

// MergeIMCRoutingState folds every IMC-Destinations/IMC-State block
// currently in CanonicalBlocks into IMCState, initializing it on first
// call. This is the loop-prevention bookkeeping section 4.6 treats as an
// accumulated Bundle attribute, kept independent from whichever block copy
// eventually gets re-emitted on forwarding.
func (b *Bundle) MergeIMCRoutingState() error {
	for _, cb := range b.CanonicalBlocks {
		if cb.TypeCode != ExtBlockTypeImcDestinations && cb.TypeCode != ExtBlockTypeImcState {
			continue
		}
		ib, err := ParseImcBlock(cb)
		if err != nil {
			return fmt.Errorf("merging IMC routing state: %w", err)
		}
		if b.IMCState == nil {
			b.IMCState = ib
			continue
		}
		b.IMCState.Merge(ib)
	}
	return nil
}

// RemoveExtensionBlockByBlockNumber searches and removes a CanonicalBlock
// with the given block number. If no such block exists, the method does
// nothing.
func (b *Bundle) RemoveExtensionBlockByBlockNumber(blockNumber uint64) {
	for i := 0; i < len(b.CanonicalBlocks); i++ {
		if b.CanonicalBlocks[i].BlockNumber == blockNumber {
			b.CanonicalBlocks = append(b.CanonicalBlocks[:i], b.CanonicalBlocks[i+1:]...)
			return
		}
	}
}

// SetCRCType sets the given CRC type for the primary block and every
// canonical block; for crc.None the primary block keeps a CRC-32C trailer
// (see PrimaryBlock.SetCRCType).
func (b *Bundle) SetCRCType(t crc.Type) {
	b.PrimaryBlock.SetCRCType(t)
	for i := range b.CanonicalBlocks {
		b.CanonicalBlocks[i].SetCRCType(t)
	}
}

// ID returns a BundleID representing this Bundle.
func (b Bundle) ID() BundleID {
	return BundleID{
		SourceNode: b.PrimaryBlock.SourceNode,
		Timestamp:  b.PrimaryBlock.CreationTimestamp,

		IsFragment:      b.PrimaryBlock.BundleControlFlags.Has(IsFragment),
		FragmentOffset:  b.PrimaryBlock.FragmentOffset,
		TotalDataLength: b.PrimaryBlock.TotalDataLength,
	}
}

func (b Bundle) String() string {
	return b.ID().String()
}

// IsLifetimeExceeded checks this Bundle's age against its Lifetime, falling
// back to the Bundle Age Block when the creation timestamp is zero (no
// accurate clock at creation time).
func (b Bundle) IsLifetimeExceeded() bool {
	if b.PrimaryBlock.CreationTimestamp.IsZeroTime() {
		cb, err := b.ExtensionBlock(ExtBlockTypeBundleAgeBlock)
		if err != nil {
			return true
		}
		bab, err := ParseBundleAgeBlock(*cb)
		if err != nil {
			return true
		}
		return bab.Age() > b.PrimaryBlock.Lifetime
	}

	maxTimestamp := b.PrimaryBlock.CreationTimestamp.DtnTime().Time().Add(
		time.Duration(b.PrimaryBlock.Lifetime) * time.Millisecond)
	return time.Now().After(maxTimestamp)
}

// CheckValid returns an accumulated error for incorrect data.
func (b Bundle) CheckValid() (errs error) {
	if err := b.PrimaryBlock.CheckValid(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if len(b.CanonicalBlocks) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("bundle contains no canonical blocks"))
		return
	}

	cbBlockNumbers := make(map[uint64]bool, len(b.CanonicalBlocks))
	for _, cb := range b.CanonicalBlocks {
		if err := cb.BlockControlFlags.CheckValid(); err != nil {
			errs = multierror.Append(errs, err)
		}
		if err := cb.CheckValid(); err != nil {
			errs = multierror.Append(errs, err)
		}
		if err := processorFor(cb.TypeCode).ValidateData(cb.Data); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("block type %d: %w", cb.TypeCode, err))
		}

		if cbBlockNumbers[cb.BlockNumber] {
			errs = multierror.Append(errs, fmt.Errorf("block number %d occurred multiple times", cb.BlockNumber))
		}
		cbBlockNumbers[cb.BlockNumber] = true

		if cb.BlockControlFlags.Has(StatusReportBlock) &&
			(b.PrimaryBlock.BundleControlFlags.Has(AdministrativeRecordPayload) || b.PrimaryBlock.SourceNode == DtnNone()) {
			errs = multierror.Append(errs, fmt.Errorf(
				"bundle processing control flags indicate that this bundle's payload is "+
					"an administrative record or the source node is omitted, but the "+
					"\"transmit status report if block cannot be processed\" block "+
					"processing control flag was set in a canonical block"))
		}
	}

	if last := b.CanonicalBlocks[len(b.CanonicalBlocks)-1].TypeCode; last != ExtBlockTypePayloadBlock {
		errs = multierror.Append(errs, fmt.Errorf("last canonical block is not a payload block, but %d", last))
	}

	if b.PrimaryBlock.CreationTimestamp.IsZeroTime() && !b.HasExtensionBlock(ExtBlockTypeBundleAgeBlock) {
		errs = multierror.Append(errs, fmt.Errorf("creation timestamp is zero, but no bundle age block exists"))
	}

	if b.IsLifetimeExceeded() {
		errs = multierror.Append(errs, fmt.Errorf("lifetime is exceeded"))
	}

	return
}

// IsAdministrativeRecord returns if this Bundle's control flags indicate
// this has an administrative record payload.
func (b Bundle) IsAdministrativeRecord() bool {
	return b.PrimaryBlock.BundleControlFlags.Has(AdministrativeRecordPayload)
}

// MarshalCbor writes this Bundle's CBOR representation as an indefinite-
// length array, per section 4.1: primary block, then each canonical block
// in order, terminated by a CBOR break byte.
func (b *Bundle) MarshalCbor(w io.Writer) error {
	if _, err := w.Write([]byte{cboring.IndefiniteArray}); err != nil {
		return err
	}

	if err := cboring.Marshal(&b.PrimaryBlock, w); err != nil {
		return fmt.Errorf("primary block: %w", err)
	}

	for i := 0; i < len(b.CanonicalBlocks); i++ {
		if err := cboring.Marshal(&b.CanonicalBlocks[i], w); err != nil {
			return fmt.Errorf("canonical block: %w", err)
		}
	}

	if _, err := w.Write([]byte{cboring.BreakCode}); err != nil {
		return err
	}

	return nil
}

// UnmarshalCbor reads this Bundle's CBOR representation. It tolerates a
// reader that runs dry mid-stream by surfacing cboring's own io.EOF /
// io.ErrUnexpectedEOF, which callers feed through cborio.Try to distinguish
// a genuinely malformed bundle from a chunk boundary (section 4.3).
func (b *Bundle) UnmarshalCbor(r io.Reader) error {
	if err := cboring.ReadExpect(cboring.IndefiniteArray, r); err != nil {
		return err
	}

	if err := cboring.Unmarshal(&b.PrimaryBlock, r); err != nil {
		return fmt.Errorf("primary block: %w", err)
	}

	for {
		cb := CanonicalBlock{}
		if err := cboring.Unmarshal(&cb, r); err == cboring.FlagBreakCode {
			break
		} else if err != nil {
			return fmt.Errorf("canonical block: %w", err)
		}
		b.CanonicalBlocks = append(b.CanonicalBlocks, cb)
	}

	if err := b.MergeIMCRoutingState(); err != nil {
		return err
	}

	return b.CheckValid()
}

// MarshalJSON creates a JSON object for this Bundle.
func (b Bundle) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		PrimaryBlock    PrimaryBlock     `json:"primaryBlock"`
		CanonicalBlocks []CanonicalBlock `json:"canonicalBlocks"`
	}{
		PrimaryBlock:    b.PrimaryBlock,
		CanonicalBlocks: b.CanonicalBlocks,
	})
}
