package state

import (
	"slices"
	"time"
)

// Relationship records that Original was erased into Segments.
type Relationship struct {
	OriginalID string    `json:"originalId"`
	SegmentIDs []string  `json:"segmentIds"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Lineage is the table of erase relationships. It lets an action that names
// an object which has since been split find the objects that replaced it.
type Lineage struct {
	byOriginal map[string]Relationship
	bySegment  map[string]string
	order      []string
}

// NewLineage creates an empty lineage table.
func NewLineage() *Lineage {
	return &Lineage{
		byOriginal: make(map[string]Relationship),
		bySegment:  make(map[string]string),
	}
}

// Record adds the relationship original -> segments, replacing any earlier
// entry for original.
func (l *Lineage) Record(originalID string, segmentIDs []string, at time.Time) {
	l.Forget(originalID)
	rel := Relationship{
		OriginalID: originalID,
		SegmentIDs: slices.Clone(segmentIDs),
		CreatedAt:  at,
	}
	l.byOriginal[originalID] = rel
	for _, id := range segmentIDs {
		l.bySegment[id] = originalID
	}
	l.order = append(l.order, originalID)
}

// Forget drops the relationship recorded for original.
func (l *Lineage) Forget(originalID string) bool {
	rel, ok := l.byOriginal[originalID]
	if !ok {
		return false
	}
	delete(l.byOriginal, originalID)
	for _, id := range rel.SegmentIDs {
		if l.bySegment[id] == originalID {
			delete(l.bySegment, id)
		}
	}
	if i := slices.Index(l.order, originalID); i >= 0 {
		l.order = slices.Delete(l.order, i, i+1)
	}
	return true
}

// ByOriginal returns the relationship recorded for an erased object.
func (l *Lineage) ByOriginal(originalID string) (Relationship, bool) {
	rel, ok := l.byOriginal[originalID]
	return rel, ok
}

// BySegment returns the relationship that produced segmentID.
func (l *Lineage) BySegment(segmentID string) (Relationship, bool) {
	orig, ok := l.bySegment[segmentID]
	if !ok {
		return Relationship{}, false
	}
	return l.byOriginal[orig], true
}

// Len returns the number of recorded relationships.
func (l *Lineage) Len() int {
	return len(l.byOriginal)
}

// Resolve follows erase chains from id down to the objects that currently
// exist. An id that exists resolves to itself; an id erased to nothing, or
// unknown to the table, resolves to nil.
func (l *Lineage) Resolve(id string, exists func(string) bool) []string {
	var out []string
	seen := make(map[string]struct{})
	var walk func(string)
	walk = func(cur string) {
		if _, ok := seen[cur]; ok {
			return
		}
		seen[cur] = struct{}{}
		if exists(cur) {
			out = append(out, cur)
			return
		}
		rel, ok := l.byOriginal[cur]
		if !ok {
			return
		}
		for _, seg := range rel.SegmentIDs {
			walk(seg)
		}
	}
	walk(id)
	return out
}

// Prune drops relationships older than retention and then the oldest ones
// until at most maxEntries remain. A zero retention or maxEntries disables
// that bound. It returns the number of relationships dropped.
func (l *Lineage) Prune(now time.Time, retention time.Duration, maxEntries int) int {
	dropped := 0
	if retention > 0 {
		cutoff := now.Add(-retention)
		for _, id := range slices.Clone(l.order) {
			if l.byOriginal[id].CreatedAt.Before(cutoff) {
				l.Forget(id)
				dropped++
			}
		}
	}
	if maxEntries > 0 {
		for len(l.order) > maxEntries {
			l.Forget(l.order[0])
			dropped++
		}
	}
	return dropped
}

// All returns the recorded relationships, oldest first.
func (l *Lineage) All() []Relationship {
	out := make([]Relationship, 0, len(l.order))
	for _, id := range l.order {
		rel := l.byOriginal[id]
		rel.SegmentIDs = slices.Clone(rel.SegmentIDs)
		out = append(out, rel)
	}
	return out
}
