// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package acs

import "testing"

func TestEntrySetAddContiguousRun(t *testing.T) {
	var s entrySet
	for _, id := range []uint64{5, 6, 7, 8} {
		if !s.add(id) {
			t.Fatalf("add(%d) reported already covered", id)
		}
	}

	if s.len() != 1 {
		t.Fatalf("expected a single merged entry, got %d", s.len())
	}
	e := s.entries[0]
	if e.LeftEdge != 5 || e.LengthOfFill != 4 {
		t.Fatalf("got left=%d len=%d, want left=5 len=4", e.LeftEdge, e.LengthOfFill)
	}
}

func TestEntrySetAddOutOfOrder(t *testing.T) {
	var s entrySet
	for _, id := range []uint64{8, 5, 7, 6} {
		s.add(id)
	}

	if s.len() != 1 {
		t.Fatalf("expected a single merged entry, got %d", s.len())
	}
	e := s.entries[0]
	if e.LeftEdge != 5 || e.LengthOfFill != 4 {
		t.Fatalf("got left=%d len=%d, want left=5 len=4", e.LeftEdge, e.LengthOfFill)
	}
}

func TestEntrySetAddDuplicateIsNoop(t *testing.T) {
	var s entrySet
	s.add(10)
	if s.add(10) {
		t.Fatal("re-adding the same custody ID should report already covered")
	}
	if s.len() != 1 {
		t.Fatalf("expected one entry, got %d", s.len())
	}
}

func TestEntrySetAddDisjointRanges(t *testing.T) {
	var s entrySet
	s.add(1)
	s.add(2)
	s.add(100)
	s.add(101)

	if s.len() != 2 {
		t.Fatalf("expected two disjoint entries, got %d", s.len())
	}
	if s.entries[0].LeftEdge != 1 || s.entries[0].LengthOfFill != 2 {
		t.Errorf("first entry wrong: %+v", s.entries[0])
	}
	if s.entries[1].LeftEdge != 100 || s.entries[1].LengthOfFill != 2 {
		t.Errorf("second entry wrong: %+v", s.entries[1])
	}
}

func TestEntrySetBridgeMergesThreeIntoOne(t *testing.T) {
	var s entrySet
	s.add(1)
	s.add(3)
	if s.len() != 2 {
		t.Fatalf("expected two entries before bridging, got %d", s.len())
	}

	s.add(2) // bridges the gap between the two entries
	if s.len() != 1 {
		t.Fatalf("expected bridging to merge into one entry, got %d", s.len())
	}
	e := s.entries[0]
	if e.LeftEdge != 1 || e.LengthOfFill != 3 {
		t.Fatalf("got left=%d len=%d, want left=1 len=3", e.LeftEdge, e.LengthOfFill)
	}
}

func TestEntrySetDiffToPrevRightEdge(t *testing.T) {
	var s entrySet
	s.add(5)
	s.add(6)
	s.add(20)

	if len(s.entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(s.entries))
	}
	if s.entries[0].DiffToPrevRightEdge != 5 {
		t.Errorf("first entry diff = %d, want 5 (right edge starts at 0)", s.entries[0].DiffToPrevRightEdge)
	}
	// second entry's left edge is 20, previous right edge is 6: diff = 14.
	if s.entries[1].DiffToPrevRightEdge != 14 {
		t.Errorf("second entry diff = %d, want 14", s.entries[1].DiffToPrevRightEdge)
	}
}

func TestEntrySetNumCustodyIDs(t *testing.T) {
	var s entrySet
	s.add(1)
	s.add(2)
	s.add(3)
	s.add(50)

	if n := s.numCustodyIDs(); n != 4 {
		t.Errorf("numCustodyIDs() = %d, want 4", n)
	}
}
