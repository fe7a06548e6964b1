package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localboard/internal/batch"
	"localboard/internal/erase"
	"localboard/internal/state"
)

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeTimer struct {
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeScheduler struct {
	timers []*fakeTimer
}

func (s *fakeScheduler) schedule(_ time.Duration, f func()) batch.Timer {
	t := &fakeTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) fire() {
	last := s.timers[len(s.timers)-1]
	if !last.stopped {
		last.f()
	}
}

type recorder struct {
	events    []Event
	conflicts []Conflict
}

func newBoard(t *testing.T, user string, tweak ...func(*Config)) (*Board, *fakeScheduler, *recorder) {
	t.Helper()
	sched := &fakeScheduler{}
	rec := &recorder{}
	cfg := Config{
		UserID:     user,
		Limits:     batch.DefaultLimits(),
		Schedule:   sched.schedule,
		Now:        func() time.Time { return t0 },
		OnEvent:    func(e Event) { rec.events = append(rec.events, e) },
		OnConflict: func(c Conflict) { rec.conflicts = append(rec.conflicts, c) },
	}
	for _, fn := range tweak {
		fn(&cfg)
	}
	return New(cfg), sched, rec
}

func stroke() state.Object {
	return state.Object{
		Type:  state.TypePath,
		Data:  "M 0 0 L 100 0",
		Style: state.Style{StrokeColor: "#123456", StrokeWidth: 4, Opacity: 1, BrushType: "pen"},
	}
}

func rect(x float64) state.Object {
	return state.Object{Type: state.TypeRectangle, X: x, Width: 10, Height: 10}
}

func TestGestureIsOneHistoryEntry(t *testing.T) {
	b, _, _ := newBoard(t, "alice")
	obj, err := b.Add(rect(0))
	require.NoError(t, err)

	b.BeginGesture(state.ActionUpdate, obj.ID)
	for i := 1; i <= 3; i++ {
		obj.X = float64(i * 10)
		require.NoError(t, b.Update(obj))
	}
	require.True(t, b.EndGesture())

	actions, idx := b.History("alice")
	require.Len(t, actions, 2)
	assert.Equal(t, 1, idx)
	assert.Equal(t, state.ActionBatch, actions[1].Type)
	assert.Len(t, actions[1].Payload.(state.BatchPayload).Actions, 3)

	ok, err := b.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	got, _ := b.Get(obj.ID)
	assert.Equal(t, 0.0, got.X, "one undo reverts every edit of the gesture")
}

func TestUndoRedoSymmetry(t *testing.T) {
	b, _, _ := newBoard(t, "alice")
	s, err := b.Add(stroke())
	require.NoError(t, err)
	r, err := b.Add(rect(200))
	require.NoError(t, err)
	r.Width = 40
	require.NoError(t, b.Update(r))
	_, err = b.Erase([]erase.Sample{{X: 50, Y: 0, Radius: 10}})
	require.NoError(t, err)
	require.NoError(t, b.Delete(r.ID))

	for depth := 1; depth <= 5; depth++ {
		before := b.Objects()
		for i := 0; i < depth; i++ {
			ok, err := b.Undo()
			require.NoError(t, err)
			require.True(t, ok)
		}
		for i := 0; i < depth; i++ {
			ok, err := b.Redo()
			require.NoError(t, err)
			require.True(t, ok)
		}
		assert.Equal(t, before, b.Objects(), "depth %d", depth)
	}
	_, ok := b.Get(s.ID)
	assert.False(t, ok)
}

func TestUndoBeyondHistoryIsNoop(t *testing.T) {
	b, _, _ := newBoard(t, "alice")
	ok, err := b.Undo()
	assert.NoError(t, err)
	assert.False(t, ok)
	ok, err = b.Redo()
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, b.CanUndo())
}

func TestEraseRecordsLineage(t *testing.T) {
	b, _, _ := newBoard(t, "alice")
	x, err := b.Add(stroke())
	require.NoError(t, err)

	n, err := b.Erase([]erase.Sample{{X: 50, Y: 0, Radius: 10}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	objs := b.Objects()
	require.Len(t, objs, 2)
	for _, seg := range objs {
		rel, ok := b.Relationship(seg.ID)
		require.True(t, ok)
		assert.Equal(t, x.ID, rel.OriginalID)
		assert.Equal(t, x.Style, seg.Style)
	}
	_, ok := b.Get(x.ID)
	assert.False(t, ok)
}

func TestEraseSkipsShapesAndFarPaths(t *testing.T) {
	b, _, _ := newBoard(t, "alice")
	_, err := b.Add(rect(40))
	require.NoError(t, err)
	far := stroke()
	far.Y = 1000
	_, err = b.Add(far)
	require.NoError(t, err)

	n, err := b.Erase([]erase.Sample{{X: 45, Y: 5, Radius: 10}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, b.Objects(), 2)

	n, err = b.Erase(nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEraserGestureUndoesAsOne(t *testing.T) {
	b, _, _ := newBoard(t, "alice")
	x, err := b.Add(stroke())
	require.NoError(t, err)

	b.BeginGesture(state.ActionErase, "")
	_, err = b.Erase([]erase.Sample{{X: 20, Y: 0, Radius: 5}})
	require.NoError(t, err)
	_, err = b.Erase([]erase.Sample{{X: 80, Y: 0, Radius: 5}})
	require.NoError(t, err)
	require.True(t, b.EndGesture())
	assert.Len(t, b.Objects(), 3)

	actions, _ := b.History("alice")
	require.Len(t, actions, 2)

	ok, err := b.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	objs := b.Objects()
	require.Len(t, objs, 1)
	assert.Equal(t, x.ID, objs[0].ID)

	// the second pass split a segment of the first; redo replays both
	ok, err = b.Redo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, b.Objects(), 3)
	_, ok = b.Get(x.ID)
	assert.False(t, ok)
}

func TestCreateThenDragGestureRedoesWhole(t *testing.T) {
	b, _, _ := newBoard(t, "alice")
	b.BeginGesture(state.ActionAdd, "")
	obj, err := b.Add(rect(0))
	require.NoError(t, err)
	obj.X = 50
	require.NoError(t, b.Update(obj))
	require.True(t, b.EndGesture())

	ok, err := b.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, b.Objects())

	ok, err = b.Redo()
	require.NoError(t, err)
	require.True(t, ok)
	got, ok := b.Get(obj.ID)
	require.True(t, ok, "the drag names the object its own gesture created")
	assert.Equal(t, 50.0, got.X)
}

func TestAbortCommitsOpenGesture(t *testing.T) {
	b, _, _ := newBoard(t, "alice")
	obj, _ := b.Add(rect(0))
	b.BeginGesture(state.ActionUpdate, obj.ID)
	obj.X = 5
	require.NoError(t, b.Update(obj))

	assert.True(t, b.AbortGesture())
	actions, _ := b.History("alice")
	assert.Len(t, actions, 2)
	assert.False(t, b.AbortGesture())
}

func TestIdleGestureClosesOnTimer(t *testing.T) {
	b, sched, rec := newBoard(t, "alice")
	obj, _ := b.Add(rect(0))
	b.BeginGesture(state.ActionUpdate, obj.ID)
	obj.X = 5
	require.NoError(t, b.Update(obj))
	require.Len(t, rec.events, 1)

	sched.fire()
	require.Len(t, rec.events, 2)
	assert.Equal(t, state.ActionBatch, rec.events[1].Action.Type)
	assert.False(t, b.EndGesture())
}

func TestNewGestureFlushesPrevious(t *testing.T) {
	b, _, _ := newBoard(t, "alice")
	obj, _ := b.Add(rect(0))
	b.BeginGesture(state.ActionUpdate, obj.ID)
	obj.X = 5
	require.NoError(t, b.Update(obj))
	b.BeginGesture(state.ActionUpdate, obj.ID)

	actions, _ := b.History("alice")
	assert.Len(t, actions, 2)
}

func TestFullBatchRollsOver(t *testing.T) {
	b, _, _ := newBoard(t, "alice", func(c *Config) {
		c.Limits = batch.Limits{Pointer: batch.Limit{MaxActions: 2}}
	})
	obj, _ := b.Add(rect(0))
	b.BeginGesture(state.ActionUpdate, obj.ID)
	for i := 1; i <= 3; i++ {
		obj.X = float64(i)
		require.NoError(t, b.Update(obj))
	}
	b.EndGesture()

	actions, _ := b.History("alice")
	require.Len(t, actions, 3)
	assert.Len(t, actions[1].Payload.(state.BatchPayload).Actions, 2)
	assert.Len(t, actions[2].Payload.(state.BatchPayload).Actions, 1)
}

func TestSelectionIsNotRecordedOrPublished(t *testing.T) {
	b, _, rec := newBoard(t, "alice")
	obj, _ := b.Add(rect(0))
	require.Len(t, rec.events, 1)

	require.NoError(t, b.Select([]string{obj.ID}))
	assert.Equal(t, []string{obj.ID}, b.Selection())
	assert.Len(t, rec.events, 1)
	actions, _ := b.History("alice")
	assert.Len(t, actions, 1)
}

func TestUndoPublishesEvent(t *testing.T) {
	b, _, rec := newBoard(t, "alice")
	obj, _ := b.Add(rect(0))
	_, err := b.Undo()
	require.NoError(t, err)
	_, err = b.Redo()
	require.NoError(t, err)

	require.Len(t, rec.events, 3)
	assert.Equal(t, EventAction, rec.events[0].Kind)
	assert.Equal(t, EventUndo, rec.events[1].Kind)
	assert.Equal(t, EventRedo, rec.events[2].Kind)
	assert.Equal(t, obj.ID, rec.events[2].Action.Targets()[0])
}

func TestUndoCommitsOpenGestureFirst(t *testing.T) {
	b, _, _ := newBoard(t, "alice")
	obj, _ := b.Add(rect(0))
	b.BeginGesture(state.ActionUpdate, obj.ID)
	obj.X = 7
	require.NoError(t, b.Update(obj))
	assert.True(t, b.CanUndo())

	ok, err := b.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	got, _ := b.Get(obj.ID)
	assert.Equal(t, 0.0, got.X)
	assert.True(t, b.CanUndo(), "the add is still there")
}

func TestPruneLineage(t *testing.T) {
	now := t0
	b, _, _ := newBoard(t, "alice", func(c *Config) {
		c.Now = func() time.Time { return now }
		c.LineageRetention = time.Minute
	})
	x, _ := b.Add(stroke())
	_, err := b.Erase([]erase.Sample{{X: 50, Y: 0, Radius: 10}})
	require.NoError(t, err)

	assert.Equal(t, 0, b.PruneLineage())
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, b.PruneLineage())
	_, ok := b.Relationship(x.ID)
	assert.False(t, ok)
}
