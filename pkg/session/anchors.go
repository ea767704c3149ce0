package session

import (
	"context"
	"sort"
)

// Anchor is the in-memory mirror of one persisted selection: two endpoints in
// the CRDT's (origin, sequence) address space. The coordinates are opaque to
// the coordinator beyond equality and offset arithmetic.
type Anchor struct {
	SelectionID int64
	StartOrigin float64
	StartSeq    float64
	EndOrigin   float64
	EndSeq      float64
}

// AddAnchor inserts an anchor into the session's set, replacing any previous
// anchor with the same selection ID.
func (s *FileSession) AddAnchor(a Anchor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := a
	s.anchors[a.SelectionID] = &copied
}

// RemoveAnchor deletes an anchor from the set. Removing an unknown selection
// ID is not an error.
func (s *FileSession) RemoveAnchor(selectionID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.anchors, selectionID)
}

// Anchors returns a copy of the anchor set, ordered by selection ID.
func (s *FileSession) Anchors() []Anchor {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Anchor, 0, len(s.anchors))
	for _, a := range s.anchors {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SelectionID < out[j].SelectionID })
	return out
}

// RebaseAnchors rewrites anchor endpoints after the CRDT re-origins a range
// of text. For each offset i in [0, length), the first anchor (in selection
// ID order) whose start equals (oldOrigin, oldSeq+i) has its start rewritten
// to (newOrigin, newSeq+i), and likewise for ends. endOnly skips the start
// scan, used when old start and end coordinates coincide and only the end
// moved.
//
// Each rewrite is persisted immediately; runs under the session lock so a
// concurrent log replacement cannot interleave with the rebase.
func (s *FileSession) RebaseAnchors(ctx context.Context, oldOrigin, oldSeq, newOrigin, newSeq float64, length int, endOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]*Anchor, 0, len(s.anchors))
	for _, a := range s.anchors {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SelectionID < ordered[j].SelectionID })

	for i := 0; i < length; i++ {
		offset := float64(i)

		if !endOnly {
			for _, a := range ordered {
				if a.StartOrigin == oldOrigin && a.StartSeq == oldSeq+offset {
					a.StartOrigin = newOrigin
					a.StartSeq = newSeq + offset
					if err := s.persistAnchor(ctx, a); err != nil {
						return err
					}
					break
				}
			}
		}

		for _, a := range ordered {
			if a.EndOrigin == oldOrigin && a.EndSeq == oldSeq+offset {
				a.EndOrigin = newOrigin
				a.EndSeq = newSeq + offset
				if err := s.persistAnchor(ctx, a); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

func (s *FileSession) persistAnchor(ctx context.Context, a *Anchor) error {
	return s.rel.UpdateSelection(ctx, a.SelectionID, a.StartOrigin, a.StartSeq, a.EndOrigin, a.EndSeq)
}
