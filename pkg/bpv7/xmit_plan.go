// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"fmt"
	"sort"
)

// LinkID identifies one outgoing convergence-layer link for the purposes of
// the transmission pipeline in section 4.4. Opening and framing the link
// itself is an external collaborator; this core only needs a stable key to
// keep one link's transmission block list distinct from another's.
type LinkID string

// XmitPlan is the ordered transmission block list being built for one
// outgoing link, populated by PrepareBlocks and then walked by
// GenerateBlocks. Generated holds each block's laid-out wire bytes once
// GenerateBlocks has run, indexed the same as Blocks.
type XmitPlan struct {
	Link      LinkID
	Blocks    []CanonicalBlock
	Generated [][]byte
}

// sortPayloadLast restores the "payload block is always last" invariant
// after every Prepare call has had a chance to append to the plan,
// reusing the same stable ordering CheckValid requires of a Bundle's own
// CanonicalBlocks.
func (p *XmitPlan) sortPayloadLast() {
	sort.Stable(canonicalBlockNumberSort(p.Blocks))
}

// PrepareBlocks builds the outgoing block list for link, per section 4.4:
// received blocks in their original order (blocks following the payload
// are dropped if this bundle is a fragment, since nothing useful follows a
// fragment's payload), then API-injected blocks, then a last-chance
// Prepare call to every registered processor so it may inject a fresh
// block of its own type instead of propagating a received one.
func (b *Bundle) PrepareBlocks(link LinkID) (*XmitPlan, error) {
	plan := &XmitPlan{Link: link}
	fragment := b.PrimaryBlock.BundleControlFlags.Has(IsFragment)

	payloadSeen := false
	for i := range b.CanonicalBlocks {
		if fragment && payloadSeen {
			continue
		}
		cb := b.CanonicalBlocks[i]
		if cb.TypeCode == ExtBlockTypePayloadBlock {
			payloadSeen = true
		}
		if err := processorFor(cb.TypeCode).Prepare(plan, &cb, fragment); err != nil {
			return nil, fmt.Errorf("preparing received block type %d: %w", cb.TypeCode, err)
		}
	}

	// API-injected blocks were built locally for this transmission, so they
	// are appended as given rather than passed through their processor's
	// Prepare (which would drop a Previous Node block or bump a hop count).
	plan.Blocks = append(plan.Blocks, b.APIBlocks...)

	for typeCode, proc := range blockProcessors {
		if err := proc.Prepare(plan, nil, fragment); err != nil {
			return nil, fmt.Errorf("last-chance prepare for type %d: %w", typeCode, err)
		}
	}

	plan.sortPayloadLast()

	if b.XmitPlans == nil {
		b.XmitPlans = make(map[LinkID]*XmitPlan)
	}
	b.XmitPlans[link] = plan
	return plan, nil
}

// GenerateBlocks lays out every block in plan's list in list order, then
// runs Finalize back-to-front across the same list, per section 4.4's
// generate-then-reverse-finalize transmission pipeline.
func (b *Bundle) GenerateBlocks(plan *XmitPlan) error {
	plan.Generated = make([][]byte, len(plan.Blocks))
	for i := range plan.Blocks {
		wire, err := processorFor(plan.Blocks[i].TypeCode).Generate(&plan.Blocks[i])
		if err != nil {
			return fmt.Errorf("generating block type %d: %w", plan.Blocks[i].TypeCode, err)
		}
		plan.Generated[i] = wire
	}

	for i := len(plan.Blocks) - 1; i >= 0; i-- {
		if err := processorFor(plan.Blocks[i].TypeCode).Finalize(plan, i); err != nil {
			return fmt.Errorf("finalizing block type %d: %w", plan.Blocks[i].TypeCode, err)
		}
	}

	return nil
}
