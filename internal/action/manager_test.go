package action

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localboard/internal/erase"
	"localboard/internal/geom"
	"localboard/internal/state"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T) (*Manager, *state.Store) {
	t.Helper()
	store := state.NewStore()
	n := 0
	m := NewManager(store, &state.Clock{},
		WithNow(func() time.Time { return fixedNow }),
		WithIDs(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
	return m, store
}

func stroke(id string) state.Object {
	return state.Object{
		ID:    id,
		Type:  state.TypePath,
		Data:  "M 0 0 L 100 0",
		Style: state.Style{StrokeColor: "#f00", StrokeWidth: 4, Opacity: 0.5, BrushType: "marker"},
	}
}

func TestCreateActionStamps(t *testing.T) {
	m, _ := newTestManager(t)
	a, err := m.CreateAction(state.AddPayload{Object: stroke("p1")}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "id-1", a.ID)
	assert.Equal(t, state.ActionAdd, a.Type)
	assert.Equal(t, "alice", a.UserID)
	assert.Equal(t, fixedNow, a.Timestamp)
	assert.Equal(t, uint64(1), a.Lamport)

	b, err := m.CreateAction(state.AddPayload{Object: stroke("p2")}, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), b.Lamport)
}

func TestCreateActionReconstructsInverse(t *testing.T) {
	m, store := newTestManager(t)
	p := stroke("p1")
	add, err := m.CreateAction(state.AddPayload{Object: p}, "alice")
	require.NoError(t, err)
	require.NoError(t, store.Apply(add))

	moved := p
	moved.X = 20
	upd, err := m.CreateAction(state.UpdatePayload{After: moved}, "alice")
	require.NoError(t, err)
	assert.Equal(t, p, upd.Payload.(state.UpdatePayload).Before)

	del, err := m.Delete("p1", "alice")
	require.NoError(t, err)
	assert.Equal(t, p, del.Payload.(state.DeletePayload).Object)

	_, err = m.Delete("ghost", "alice")
	assert.ErrorIs(t, err, ErrUnknownObject)
	_, err = m.CreateAction(nil, "alice")
	assert.ErrorIs(t, err, state.ErrInvalidAction)
}

func TestSelectRemembersPrevious(t *testing.T) {
	m, store := newTestManager(t)
	add, _ := m.Add(stroke("p1"), "alice")
	require.NoError(t, store.Apply(add))

	first, err := m.Select([]string{"p1"}, "alice")
	require.NoError(t, err)
	require.NoError(t, store.Apply(first))

	second, err := m.Select(nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, second.Payload.(state.SelectPayload).Previous)
}

func TestAddFillsIdentity(t *testing.T) {
	m, _ := newTestManager(t)
	a, err := m.Add(state.Object{Type: state.TypeRectangle, Width: 10, Height: 10}, "bob")
	require.NoError(t, err)
	obj := a.Payload.(state.AddPayload).Object
	assert.NotEmpty(t, obj.ID)
	assert.Equal(t, "bob", obj.CreatedBy)
	assert.Equal(t, fixedNow, obj.CreatedAt)
}

func TestEraseSplitsAndKeepsStyle(t *testing.T) {
	m, store := newTestManager(t)
	p := stroke("p1")
	p.X, p.Y = 200, 300
	add, _ := m.Add(p, "alice")
	require.NoError(t, store.Apply(add))
	p, _ = store.Get("p1")

	// board coordinates: the anchor offsets the path
	a, ok, err := m.Erase(p, []erase.Sample{{X: 250, Y: 300, Radius: 10}}, "bob")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state.ActionErase, a.Type)

	ep := a.Payload.(state.ErasePayload)
	assert.Equal(t, p, ep.Original)
	require.Len(t, ep.Segments, 2)
	for _, seg := range ep.Segments {
		assert.Equal(t, p.Style, seg.Style)
		assert.Equal(t, p.X, seg.X)
		assert.Equal(t, p.CreatedAt, seg.CreatedAt)
		assert.NotEqual(t, "p1", seg.ID)
	}
	left := geom.PathToPoints(ep.Segments[0].Data)
	assert.Equal(t, geom.Pt(0, 0), left[0])
	assert.Less(t, left[len(left)-1].X, 40.0)
}

func TestEraseMissLeavesNothingToRecord(t *testing.T) {
	m, _ := newTestManager(t)
	_, ok, err := m.Erase(stroke("p1"), []erase.Sample{{X: 50, Y: 0, Radius: 10}}, "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	far := stroke("p2")
	far.Y = 500
	_, ok, err = m.Erase(far, []erase.Sample{{X: 50, Y: 0, Radius: 10}}, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	rect := state.Object{ID: "r", Type: state.TypeRectangle, Width: 100, Height: 100}
	_, ok, err = m.Erase(rect, []erase.Sample{{X: 50, Y: 50, Radius: 10}}, "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEraseEverything(t *testing.T) {
	m, _ := newTestManager(t)
	a, ok, err := m.Erase(stroke("p1"), []erase.Sample{{X: 50, Y: 0, Radius: 200}}, "bob")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, a.Payload.(state.ErasePayload).Segments)
}

func TestShouldRecordAction(t *testing.T) {
	add := state.Action{Payload: state.AddPayload{}}
	sel := state.Action{Payload: state.SelectPayload{}}

	tests := []struct {
		name string
		a    state.Action
		want bool
	}{
		{"add", add, true},
		{"erase", state.Action{Payload: state.ErasePayload{}}, true},
		{"select", sel, false},
		{"missing payload", state.Action{}, false},
		{"batch of selects", state.Action{Payload: state.BatchPayload{Actions: []state.Action{sel, sel}}}, false},
		{"mixed batch", state.Action{Payload: state.BatchPayload{Actions: []state.Action{sel, add}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRecordAction(tt.a))
		})
	}
}

func TestBatchKeepsSubActions(t *testing.T) {
	m, _ := newTestManager(t)
	a1, _ := m.Add(stroke("p1"), "alice")
	a2, _ := m.Add(stroke("p2"), "alice")
	b := m.Batch([]state.Action{a1, a2}, "alice")
	assert.Equal(t, state.ActionBatch, b.Type)
	assert.Equal(t, []state.Action{a1, a2}, b.Payload.(state.BatchPayload).Actions)
	assert.Greater(t, b.Lamport, a2.Lamport)
}
