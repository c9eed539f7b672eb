// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"fmt"
	"io"

	"github.com/dtn7/cboring"
)

// ImcFormat selects the wire shape of an IMC-Destinations or IMC-State
// block, per section 4.6. The same three formats apply to both block
// types; only their type code differs.
type ImcFormat uint64

const (
	// ImcFormatRegular is used by ordinary multicast bundles: it carries
	// only the processed-regions and processed-by-nodes loop-prevention
	// sets.
	ImcFormatRegular ImcFormat = 0

	// ImcFormatGroupPetition is used by group-petition bundles addressed
	// to imc::0.0. It adds a sync-request flag, an is-proxy flag, and a
	// proxy-specific processed-by-nodes set.
	ImcFormatGroupPetition ImcFormat = 1

	// ImcFormatBriefing is used by administrative briefing bundles. It
	// carries only flags, no loop-prevention sets.
	ImcFormatBriefing ImcFormat = 2
)

func (f ImcFormat) String() string {
	switch f {
	case ImcFormatRegular:
		return "regular"
	case ImcFormatGroupPetition:
		return "group-petition"
	case ImcFormatBriefing:
		return "briefing"
	default:
		return fmt.Sprintf("unknown(%d)", uint64(f))
	}
}

// ImcBlock is the shared body of an IMC-Destinations or IMC-State block.
// Recipients merge ProcessedRegions and ProcessedByNodes into their own
// sets before forwarding, which is how multicast loop prevention is
// implemented without a routed topology.
type ImcBlock struct {
	Format ImcFormat

	ProcessedRegions []uint64
	ProcessedByNodes []EndpointID

	SyncRequest bool
	IsProxy     bool

	ProxyProcessedByNodes []EndpointID

	SyncReply bool
	IsRouter  bool
}

// NewRegularImcBlock creates an ImcBlock in the regular multicast format.
func NewRegularImcBlock(regions []uint64, nodes []EndpointID) *ImcBlock {
	return &ImcBlock{Format: ImcFormatRegular, ProcessedRegions: regions, ProcessedByNodes: nodes}
}

// NewGroupPetitionImcBlock creates an ImcBlock addressed to imc::0.0.
func NewGroupPetitionImcBlock(regions []uint64, nodes []EndpointID, syncRequest, isProxy bool, proxyNodes []EndpointID) *ImcBlock {
	return &ImcBlock{
		Format:                ImcFormatGroupPetition,
		ProcessedRegions:      regions,
		ProcessedByNodes:      nodes,
		SyncRequest:           syncRequest,
		IsProxy:               isProxy,
		ProxyProcessedByNodes: proxyNodes,
	}
}

// NewBriefingImcBlock creates an ImcBlock in the administrative briefing
// format.
func NewBriefingImcBlock(syncRequest, syncReply, isRouter bool) *ImcBlock {
	return &ImcBlock{Format: ImcFormatBriefing, SyncRequest: syncRequest, SyncReply: syncReply, IsRouter: isRouter}
}

func (ib *ImcBlock) arrayLength() uint64 {
	switch ib.Format {
	case ImcFormatRegular:
		return 3
	case ImcFormatGroupPetition:
		return 6
	case ImcFormatBriefing:
		return 4
	default:
		return 1
	}
}

func writeEndpointSlice(eids []EndpointID, w io.Writer) error {
	if err := cboring.WriteArrayLength(uint64(len(eids)), w); err != nil {
		return err
	}
	for i := range eids {
		if err := cboring.Marshal(&eids[i], w); err != nil {
			return err
		}
	}
	return nil
}

func readEndpointSlice(r io.Reader) ([]EndpointID, error) {
	l, err := cboring.ReadArrayLength(r)
	if err != nil {
		return nil, err
	}
	eids := make([]EndpointID, l)
	for i := range eids {
		if err := cboring.Unmarshal(&eids[i], r); err != nil {
			return nil, err
		}
	}
	return eids, nil
}

func writeUintSlice(vals []uint64, w io.Writer) error {
	if err := cboring.WriteArrayLength(uint64(len(vals)), w); err != nil {
		return err
	}
	for _, v := range vals {
		if err := cboring.WriteUInt(v, w); err != nil {
			return err
		}
	}
	return nil
}

func readUintSlice(r io.Reader) ([]uint64, error) {
	l, err := cboring.ReadArrayLength(r)
	if err != nil {
		return nil, err
	}
	vals := make([]uint64, l)
	for i := range vals {
		v, err := cboring.ReadUInt(r)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func writeBool(b bool, w io.Writer) error {
	v := uint64(0)
	if b {
		v = 1
	}
	return cboring.WriteUInt(v, w)
}

func readBool(r io.Reader) (bool, error) {
	v, err := cboring.ReadUInt(r)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// MarshalCbor writes this ImcBlock's CBOR representation: an array whose
// length and remaining element shape depend on Format.
func (ib *ImcBlock) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(ib.arrayLength(), w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(ib.Format), w); err != nil {
		return err
	}

	switch ib.Format {
	case ImcFormatRegular:
		if err := writeUintSlice(ib.ProcessedRegions, w); err != nil {
			return err
		}
		return writeEndpointSlice(ib.ProcessedByNodes, w)

	case ImcFormatGroupPetition:
		if err := writeUintSlice(ib.ProcessedRegions, w); err != nil {
			return err
		}
		if err := writeEndpointSlice(ib.ProcessedByNodes, w); err != nil {
			return err
		}
		if err := writeBool(ib.SyncRequest, w); err != nil {
			return err
		}
		if err := writeBool(ib.IsProxy, w); err != nil {
			return err
		}
		return writeEndpointSlice(ib.ProxyProcessedByNodes, w)

	case ImcFormatBriefing:
		if err := writeBool(ib.SyncRequest, w); err != nil {
			return err
		}
		if err := writeBool(ib.SyncReply, w); err != nil {
			return err
		}
		return writeBool(ib.IsRouter, w)

	default:
		return fmt.Errorf("ImcBlock: unknown format version %d", ib.Format)
	}
}

// UnmarshalCbor reads an ImcBlock's CBOR representation.
func (ib *ImcBlock) UnmarshalCbor(r io.Reader) error {
	l, err := cboring.ReadArrayLength(r)
	if err != nil {
		return err
	}

	format, err := cboring.ReadUInt(r)
	if err != nil {
		return err
	}
	ib.Format = ImcFormat(format)

	switch ib.Format {
	case ImcFormatRegular:
		if l != 3 {
			return fmt.Errorf("ImcBlock: regular format expects array length 3, got %d", l)
		}
		if ib.ProcessedRegions, err = readUintSlice(r); err != nil {
			return err
		}
		if ib.ProcessedByNodes, err = readEndpointSlice(r); err != nil {
			return err
		}

	case ImcFormatGroupPetition:
		if l != 6 {
			return fmt.Errorf("ImcBlock: group-petition format expects array length 6, got %d", l)
		}
		if ib.ProcessedRegions, err = readUintSlice(r); err != nil {
			return err
		}
		if ib.ProcessedByNodes, err = readEndpointSlice(r); err != nil {
			return err
		}
		if ib.SyncRequest, err = readBool(r); err != nil {
			return err
		}
		if ib.IsProxy, err = readBool(r); err != nil {
			return err
		}
		if ib.ProxyProcessedByNodes, err = readEndpointSlice(r); err != nil {
			return err
		}

	case ImcFormatBriefing:
		if l != 4 {
			return fmt.Errorf("ImcBlock: briefing format expects array length 4, got %d", l)
		}
		if ib.SyncRequest, err = readBool(r); err != nil {
			return err
		}
		if ib.SyncReply, err = readBool(r); err != nil {
			return err
		}
		if ib.IsRouter, err = readBool(r); err != nil {
			return err
		}

	default:
		return fmt.Errorf("ImcBlock: unknown format version %d", ib.Format)
	}

	return nil
}

// Merge folds other's processed-regions and processed-by-nodes sets into
// this block, deduplicating. This is the loop-prevention step a recipient
// runs before forwarding, per section 4.6.
func (ib *ImcBlock) Merge(other *ImcBlock) {
	ib.ProcessedRegions = mergeUint64Set(ib.ProcessedRegions, other.ProcessedRegions)
	ib.ProcessedByNodes = mergeEndpointSet(ib.ProcessedByNodes, other.ProcessedByNodes)
	if ib.Format == ImcFormatGroupPetition {
		ib.ProxyProcessedByNodes = mergeEndpointSet(ib.ProxyProcessedByNodes, other.ProxyProcessedByNodes)
	}
}

func mergeUint64Set(a, b []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			a = append(a, v)
			seen[v] = struct{}{}
		}
	}
	return a
}

func mergeEndpointSet(a, b []EndpointID) []EndpointID {
	seen := make(map[EndpointID]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			a = append(a, v)
			seen[v] = struct{}{}
		}
	}
	return a
}

// NewCanonicalImcDestinationsBlock builds a ready-to-send CanonicalBlock
// carrying an IMC-Destinations block.
func NewCanonicalImcDestinationsBlock(blockNumber uint64, flags BlockControlFlags, ib *ImcBlock) (CanonicalBlock, error) {
	data, err := encodeBlockValue(ib)
	if err != nil {
		return CanonicalBlock{}, err
	}
	return NewCanonicalBlock(ExtBlockTypeImcDestinations, blockNumber, flags, data), nil
}

// NewCanonicalImcStateBlock builds a ready-to-send CanonicalBlock carrying
// an IMC-State block.
func NewCanonicalImcStateBlock(blockNumber uint64, flags BlockControlFlags, ib *ImcBlock) (CanonicalBlock, error) {
	data, err := encodeBlockValue(ib)
	if err != nil {
		return CanonicalBlock{}, err
	}
	return NewCanonicalBlock(ExtBlockTypeImcState, blockNumber, flags, data), nil
}

// ParseImcBlock decodes an ImcBlock out of a CanonicalBlock's Data field.
// It accepts either the IMC-Destinations or IMC-State type code.
func ParseImcBlock(cb CanonicalBlock) (*ImcBlock, error) {
	if cb.TypeCode != ExtBlockTypeImcDestinations && cb.TypeCode != ExtBlockTypeImcState {
		return nil, fmt.Errorf("CanonicalBlock has type %d, not an IMC block", cb.TypeCode)
	}
	var ib ImcBlock
	if err := decodeBlockValue(cb.Data, &ib); err != nil {
		return nil, err
	}
	return &ib, nil
}

type imcDestinationsBlockProcessor struct{}

func (imcDestinationsBlockProcessor) Name() string { return "IMC-Destinations Block" }

func (imcDestinationsBlockProcessor) ValidateData(data []byte) error {
	var ib ImcBlock
	return decodeBlockValue(data, &ib)
}

func (imcDestinationsBlockProcessor) Prepare(plan *XmitPlan, source *CanonicalBlock, _ bool) error {
	return appendReceived(plan, source)
}

func (imcDestinationsBlockProcessor) Generate(cb *CanonicalBlock) ([]byte, error) { return genericGenerate(cb) }

func (imcDestinationsBlockProcessor) Produce(wire []byte, offset, length int) ([]byte, bool, error) {
	return genericProduce(wire, offset, length)
}

func (imcDestinationsBlockProcessor) Finalize(plan *XmitPlan, index int) error {
	return noopFinalize(plan, index)
}

type imcStateBlockProcessor struct{}

func (imcStateBlockProcessor) Name() string { return "IMC-State Block" }

func (imcStateBlockProcessor) ValidateData(data []byte) error {
	var ib ImcBlock
	return decodeBlockValue(data, &ib)
}

func (imcStateBlockProcessor) Prepare(plan *XmitPlan, source *CanonicalBlock, _ bool) error {
	return appendReceived(plan, source)
}

func (imcStateBlockProcessor) Generate(cb *CanonicalBlock) ([]byte, error) { return genericGenerate(cb) }

func (imcStateBlockProcessor) Produce(wire []byte, offset, length int) ([]byte, bool, error) {
	return genericProduce(wire, offset, length)
}

func (imcStateBlockProcessor) Finalize(plan *XmitPlan, index int) error { return noopFinalize(plan, index) }
