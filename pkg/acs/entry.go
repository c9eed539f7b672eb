// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package acs

import "sort"

// Entry is one run-length-encoded fill range: the custody IDs
// [LeftEdge, LeftEdge+LengthOfFill-1] are all acknowledged together.
// DiffToPrevRightEdge is the gap between this entry's left edge and the
// right edge of the fill immediately before it in encoding order, kept on
// the entry (rather than computed at encode time) so the value used to
// check a decoded entry against ASSERT(diff == entry->diff_to_prev_right_edge_)
// in the original is available without re-deriving it.
type Entry struct {
	LeftEdge             uint64
	DiffToPrevRightEdge  uint64
	LengthOfFill         uint64
}

// RightEdge is the last custody ID this entry covers.
func (e Entry) RightEdge() uint64 {
	return e.LeftEdge + e.LengthOfFill - 1
}

// sdnvLen is the encoded byte length of this entry's diff and fill-length
// pair, used to track a pending signal's running payload size.
func (e Entry) sdnvLen() int {
	return len(encodeSDNV(e.DiffToPrevRightEdge)) + len(encodeSDNV(e.LengthOfFill))
}

// entrySet holds the fill ranges for one pending signal, always sorted by
// LeftEdge, and merges adjacent or overlapping ranges as custody IDs
// arrive so the encoded signal stays as compact as possible.
type entrySet struct {
	entries []*Entry
}

// add inserts a single custody ID, merging it into an existing fill range
// where possible. Returns false if id was already covered.
func (s *entrySet) add(id uint64) bool {
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].LeftEdge > id })
	// Candidate predecessor is the last entry whose LeftEdge <= id.
	if i > 0 {
		prev := s.entries[i-1]
		if id <= prev.RightEdge() {
			return false // already covered
		}
		if prev.RightEdge()+1 == id {
			prev.LengthOfFill++
			s.mergeForward(i - 1)
			s.recomputeDiffs()
			return true
		}
	}
	if i < len(s.entries) && s.entries[i].LeftEdge == id+1 {
		s.entries[i].LeftEdge--
		s.entries[i].LengthOfFill++
		if i > 0 {
			s.mergeForward(i - 1)
		}
		s.recomputeDiffs()
		return true
	}

	e := &Entry{LeftEdge: id, LengthOfFill: 1}
	s.entries = append(s.entries, nil)
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e
	s.recomputeDiffs()
	return true
}

// mergeForward absorbs the entry following index i into it, if they are
// now adjacent or overlapping.
func (s *entrySet) mergeForward(i int) {
	for i+1 < len(s.entries) && s.entries[i].RightEdge()+1 >= s.entries[i+1].LeftEdge {
		next := s.entries[i+1]
		if next.RightEdge() > s.entries[i].RightEdge() {
			s.entries[i].LengthOfFill = next.RightEdge() - s.entries[i].LeftEdge + 1
		}
		s.entries = append(s.entries[:i+1], s.entries[i+2:]...)
	}
}

// recomputeDiffs refreshes every entry's DiffToPrevRightEdge after a
// mutation; the first entry's diff is measured from a right edge of 0,
// matching the wire format's implicit starting point.
func (s *entrySet) recomputeDiffs() {
	var rightEdge uint64
	for _, e := range s.entries {
		e.DiffToPrevRightEdge = e.LeftEdge - rightEdge
		rightEdge = e.RightEdge()
	}
}

func (s *entrySet) len() int { return len(s.entries) }

func (s *entrySet) clear() { s.entries = nil }

// payloadLen returns the total SDNV-encoded byte length of every entry,
// the variable part of an aggregate custody signal's payload.
func (s *entrySet) payloadLen() int {
	n := 0
	for _, e := range s.entries {
		n += e.sdnvLen()
	}
	return n
}

func (s *entrySet) numCustodyIDs() uint64 {
	var n uint64
	for _, e := range s.entries {
		n += e.LengthOfFill
	}
	return n
}
