// Package action builds the typed, invertible edit records that are the only
// way to change a board.
package action

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"localboard/internal/erase"
	"localboard/internal/geom"
	"localboard/internal/state"
)

// ErrUnknownObject is returned when an inverse snapshot must be taken of an
// object that is not in the table.
var ErrUnknownObject = errors.New("unknown object")

// Objects is the read side of the object table the manager snapshots from.
type Objects interface {
	Get(id string) (state.Object, bool)
	Selection(userID string) []string
}

// Manager stamps actions with identity, time and Lamport order, and fills in
// the inverse payload from the current table when the caller leaves it out.
type Manager struct {
	objects Objects
	clock   *state.Clock
	engine  *erase.Engine
	now     func() time.Time
	newID   func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithNow sets the time source.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDs sets the id generator used for actions and segment objects.
func WithIDs(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// WithEngine sets the erasure engine used by Erase.
func WithEngine(e *erase.Engine) Option {
	return func(m *Manager) { m.engine = e }
}

// NewManager creates a manager reading snapshots from objects.
func NewManager(objects Objects, clock *state.Clock, opts ...Option) *Manager {
	if clock == nil {
		clock = &state.Clock{}
	}
	m := &Manager{
		objects: objects,
		clock:   clock,
		engine:  erase.New(erase.DefaultOptions()),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateAction wraps payload into an Action for userID. Missing inverse data
// is reconstructed from the table: the Before of an update, the snapshot of a
// delete, the Previous selection and the erased Original. It fails with
// ErrUnknownObject when that object is not there.
func (m *Manager) CreateAction(payload state.Payload, userID string) (state.Action, error) {
	if payload == nil {
		return state.Action{}, fmt.Errorf("create action: %w", state.ErrInvalidAction)
	}
	p, err := m.complete(payload, userID)
	if err != nil {
		return state.Action{}, err
	}
	return m.stamp(p, userID), nil
}

func (m *Manager) stamp(p state.Payload, userID string) state.Action {
	return state.Action{
		ID:        m.newID(),
		Type:      p.Kind(),
		UserID:    userID,
		Timestamp: m.now(),
		Lamport:   m.clock.Tick(),
		Payload:   p,
	}
}

func (m *Manager) complete(payload state.Payload, userID string) (state.Payload, error) {
	switch p := payload.(type) {
	case state.UpdatePayload:
		if p.Before.ID == "" {
			before, err := m.snapshot(p.After.ID)
			if err != nil {
				return nil, err
			}
			p.Before = before
		}
		return p, nil
	case state.DeletePayload:
		if p.Object.Type == "" {
			obj, err := m.snapshot(p.Object.ID)
			if err != nil {
				return nil, err
			}
			p.Object = obj
		}
		return p, nil
	case state.SelectPayload:
		if p.Previous == nil {
			p.Previous = m.objects.Selection(userID)
		}
		return p, nil
	case state.ErasePayload:
		if p.Original.Type == "" {
			obj, err := m.snapshot(p.Original.ID)
			if err != nil {
				return nil, err
			}
			p.Original = obj
		}
		return p, nil
	default:
		return payload, nil
	}
}

func (m *Manager) snapshot(id string) (state.Object, error) {
	obj, ok := m.objects.Get(id)
	if !ok {
		return state.Object{}, fmt.Errorf("snapshot %s: %w", id, ErrUnknownObject)
	}
	return obj, nil
}

// Add creates an add action. The object gets an id and timestamps when it
// has none.
func (m *Manager) Add(obj state.Object, userID string) (state.Action, error) {
	now := m.now()
	if obj.ID == "" {
		obj.ID = m.newID()
	}
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = now
	}
	obj.UpdatedAt = now
	if obj.CreatedBy == "" {
		obj.CreatedBy = userID
	}
	return m.CreateAction(state.AddPayload{Object: obj}, userID)
}

// Update creates an update action replacing the object with after.
func (m *Manager) Update(after state.Object, userID string) (state.Action, error) {
	after.UpdatedAt = m.now()
	return m.CreateAction(state.UpdatePayload{After: after}, userID)
}

// Delete creates a delete action for id.
func (m *Manager) Delete(id, userID string) (state.Action, error) {
	return m.CreateAction(state.DeletePayload{Object: state.Object{ID: id}}, userID)
}

// Select creates a selection change for userID.
func (m *Manager) Select(ids []string, userID string) (state.Action, error) {
	return m.CreateAction(state.SelectPayload{Selected: slices.Clone(ids)}, userID)
}

// Batch wraps actions into one compound action. The sub-actions keep their
// own ids.
func (m *Manager) Batch(actions []state.Action, userID string) state.Action {
	return m.stamp(state.BatchPayload{Actions: slices.Clone(actions)}, userID)
}

// Erase runs the erasure engine over a path object and wraps the result. The
// second return is false when the samples left the object untouched, in which
// case there is nothing to record. Segments inherit the original's style,
// anchor and creation time so they render and stack like the source stroke.
func (m *Manager) Erase(obj state.Object, samples []erase.Sample, userID string) (state.Action, bool, error) {
	if !obj.Erasable() || len(samples) == 0 {
		return state.Action{}, false, nil
	}
	// path data is relative to the anchor
	local := make([]erase.Sample, len(samples))
	for i, s := range samples {
		local[i] = erase.Sample{X: s.X - obj.X, Y: s.Y - obj.Y, Radius: s.Radius}
	}
	pts := geom.PathToPoints(obj.Data)
	segs := m.engine.ErasePoints(pts, obj.Style.StrokeWidth, local, obj.ID)
	if len(pts) < 2 || unchanged(pts, segs) {
		return state.Action{}, false, nil
	}

	now := m.now()
	objs := make([]state.Object, len(segs))
	for i, seg := range segs {
		o := obj
		o.ID = m.newID()
		o.Data = geom.PointsToPath(seg.Points)
		o.UpdatedAt = now
		objs[i] = o
	}
	a, err := m.CreateAction(state.ErasePayload{Original: obj, Segments: objs}, userID)
	if err != nil {
		return state.Action{}, false, err
	}
	return a, true, nil
}

func unchanged(pts []geom.Point, segs []erase.Segment) bool {
	return len(segs) == 1 && slices.Equal(segs[0].Points, pts)
}

// ShouldRecordAction reports whether a belongs in history. Selection changes
// are local-only; a batch is recorded when any of its parts is.
func ShouldRecordAction(a state.Action) bool {
	switch p := a.Payload.(type) {
	case nil:
		return false
	case state.SelectPayload:
		return false
	case state.BatchPayload:
		return slices.ContainsFunc(p.Actions, ShouldRecordAction)
	default:
		return true
	}
}
