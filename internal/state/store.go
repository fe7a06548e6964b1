// Package state holds the shared object table of a board together with the
// action types that are the only way to change it.
package state

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"localboard/internal/geom"
)

// Store is the object table, the per-user selection and the erase lineage.
// Store is not safe for concurrent use; the board serializes access.
type Store struct {
	objects   map[string]Object
	selection map[string][]string
	lineage   *Lineage
	space     *SpaceIndex
	now       func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the time source used to stamp lineage relationships.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithCellSize sets the grid cell size of the spatial index.
func WithCellSize(size float64) StoreOption {
	return func(s *Store) { s.space = NewSpaceIndex(size) }
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		objects:   make(map[string]Object),
		selection: make(map[string][]string),
		lineage:   NewLineage(),
		space:     NewSpaceIndex(0),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the object with the given id.
func (s *Store) Get(id string) (Object, bool) {
	o, ok := s.objects[id]
	return o, ok
}

// Has reports whether the object exists.
func (s *Store) Has(id string) bool {
	_, ok := s.objects[id]
	return ok
}

// Len returns the number of objects.
func (s *Store) Len() int {
	return len(s.objects)
}

// Objects returns a snapshot of all objects ordered by creation time, ties
// broken by id.
func (s *Store) Objects() []Object {
	out := make([]Object, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Query returns the objects whose bounds, grown by half their stroke width,
// overlap b.
func (s *Store) Query(b geom.Bounds) []Object {
	ids := s.space.Query(b)
	out := make([]Object, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.objects[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Selection returns the ids userID has selected.
func (s *Store) Selection(userID string) []string {
	return slices.Clone(s.selection[userID])
}

// Lineage exposes the erase lineage table.
func (s *Store) Lineage() *Lineage {
	return s.lineage
}

// Relationship returns the erase relationship id takes part in, either as the
// erased original or as one of its segments.
func (s *Store) Relationship(id string) (Relationship, bool) {
	if rel, ok := s.lineage.ByOriginal(id); ok {
		return rel, true
	}
	return s.lineage.BySegment(id)
}

// Resolve maps id to the objects that currently stand for it. See
// Lineage.Resolve.
func (s *Store) Resolve(id string) []string {
	return s.lineage.Resolve(id, s.Has)
}

// Apply performs a. A batch is applied all-or-nothing: when one of its
// actions fails, the ones already applied are reverted in reverse order and
// the store is left as it was.
func (s *Store) Apply(a Action) error {
	if a.Payload == nil {
		return actionErr(a, "", fmt.Errorf("%w: missing payload", ErrInvalidAction))
	}
	switch p := a.Payload.(type) {
	case AddPayload:
		if p.Object.ID == "" {
			return actionErr(a, "", fmt.Errorf("%w: object without id", ErrInvalidAction))
		}
		if s.Has(p.Object.ID) {
			return actionErr(a, p.Object.ID, ErrObjectExists)
		}
		s.put(p.Object)

	case UpdatePayload:
		if p.After.ID != p.Before.ID {
			return actionErr(a, p.After.ID, fmt.Errorf("%w: update changes object id", ErrInvalidAction))
		}
		if !s.Has(p.After.ID) {
			return actionErr(a, p.After.ID, ErrObjectNotFound)
		}
		s.put(p.After)

	case DeletePayload:
		if !s.Has(p.Object.ID) {
			return actionErr(a, p.Object.ID, ErrObjectNotFound)
		}
		s.remove(p.Object.ID)

	case SelectPayload:
		if len(p.Selected) == 0 {
			delete(s.selection, a.UserID)
		} else {
			s.selection[a.UserID] = slices.Clone(p.Selected)
		}

	case ErasePayload:
		if !s.Has(p.Original.ID) {
			return actionErr(a, p.Original.ID, ErrObjectNotFound)
		}
		for _, seg := range p.Segments {
			if s.Has(seg.ID) {
				return actionErr(a, seg.ID, ErrObjectExists)
			}
		}
		s.remove(p.Original.ID)
		for _, seg := range p.Segments {
			s.put(seg)
		}
		s.lineage.Record(p.Original.ID, segmentIDs(p.Segments), s.now())

	case RestorePayload:
		if s.Has(p.Original.ID) {
			return actionErr(a, p.Original.ID, ErrObjectExists)
		}
		for _, seg := range p.Segments {
			if !s.Has(seg.ID) {
				return actionErr(a, seg.ID, ErrObjectNotFound)
			}
		}
		for _, seg := range p.Segments {
			s.remove(seg.ID)
		}
		s.put(p.Original)
		s.lineage.Forget(p.Original.ID)

	case BatchPayload:
		saved := s.saveSelection()
		for i, sub := range p.Actions {
			if err := s.Apply(sub); err != nil {
				for j := i - 1; j >= 0; j-- {
					// reverting what was just applied cannot fail
					_ = s.Apply(p.Actions[j].Inverse())
				}
				s.selection = saved
				return err
			}
		}

	default:
		return actionErr(a, "", fmt.Errorf("%w: unknown payload %T", ErrInvalidAction, p))
	}
	return nil
}

// Load fills an empty store from a snapshot taken on another peer. It is the
// one way to change the table without an action and only serves catch-up
// of a freshly joined peer.
func (s *Store) Load(objects []Object, relationships []Relationship) error {
	if len(s.objects) > 0 || s.lineage.Len() > 0 {
		return ErrNotEmpty
	}
	for _, o := range objects {
		if o.ID == "" {
			continue
		}
		s.put(o)
	}
	for _, rel := range relationships {
		s.lineage.Record(rel.OriginalID, rel.SegmentIDs, rel.CreatedAt)
	}
	return nil
}

// Revert applies the inverse of a.
func (s *Store) Revert(a Action) error {
	if a.Payload == nil {
		return actionErr(a, "", fmt.Errorf("%w: missing payload", ErrInvalidAction))
	}
	return s.Apply(a.Inverse())
}

func (s *Store) saveSelection() map[string][]string {
	saved := make(map[string][]string, len(s.selection))
	for user, sel := range s.selection {
		saved[user] = slices.Clone(sel)
	}
	return saved
}

func (s *Store) put(o Object) {
	s.objects[o.ID] = o
	s.space.Insert(o.ID, o.Bounds().Inflate(o.Style.StrokeWidth/2))
}

func (s *Store) remove(id string) {
	delete(s.objects, id)
	s.space.Remove(id)
	for user, sel := range s.selection {
		if i := slices.Index(sel, id); i >= 0 {
			sel = slices.Delete(sel, i, i+1)
			if len(sel) == 0 {
				delete(s.selection, user)
			} else {
				s.selection[user] = sel
			}
		}
	}
}
