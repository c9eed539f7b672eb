// SPDX-FileCopyrightText: 2020 Alvar Penning
// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

// canonicalBlockNumberSort implements sort.Interface to sort []CanonicalBlock
// based on their block number, ascending. An exception is the payload
// block (block number 1), which always sorts last despite having the
// lowest block number.
//
// This allows deterministic sorting of canonical blocks, necessary for
// CheckValid's "payload block must be last" invariant.
type canonicalBlockNumberSort []CanonicalBlock

func (cbns canonicalBlockNumberSort) Len() int { return len(cbns) }

func (cbns canonicalBlockNumberSort) Less(i, j int) bool {
	switch {
	case cbns[i].BlockNumber == 1:
		return false
	case cbns[j].BlockNumber == 1:
		return true
	default:
		return cbns[i].BlockNumber < cbns[j].BlockNumber
	}
}

func (cbns canonicalBlockNumberSort) Swap(i, j int) {
	cbns[i], cbns[j] = cbns[j], cbns[i]
}
