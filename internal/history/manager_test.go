package history

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"localboard/internal/state"
)

// MockApplier is a mock implementation of the Applier interface
type MockApplier struct {
	mock.Mock
}

func (m *MockApplier) Apply(a state.Action) error {
	args := m.Called(a)
	return args.Error(0)
}

func (m *MockApplier) Revert(a state.Action) error {
	args := m.Called(a)
	return args.Error(0)
}

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func action(n int, user string) state.Action {
	return state.Action{
		ID:        fmt.Sprintf("a%d", n),
		Type:      state.ActionAdd,
		UserID:    user,
		Timestamp: base.Add(time.Duration(n) * time.Second),
		Payload:   state.AddPayload{Object: state.Object{ID: fmt.Sprintf("o%d", n), Type: state.TypePath}},
	}
}

func TestCursorStartsEmpty(t *testing.T) {
	m := NewManager(&MockApplier{}, 0)
	assert.False(t, m.CanUndo("alice"))
	assert.False(t, m.CanRedo("alice"))

	_, ok, err := m.Undo("alice")
	assert.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = m.Redo("alice")
	assert.NoError(t, err)
	assert.False(t, ok)

	actions, idx := m.User("alice")
	assert.Nil(t, actions)
	assert.Equal(t, -1, idx)
}

func TestUndoRedoMovesCursor(t *testing.T) {
	ap := &MockApplier{}
	ap.On("Revert", mock.Anything).Return(nil)
	ap.On("Apply", mock.Anything).Return(nil)
	m := NewManager(ap, 0)

	m.Record(action(1, "alice"))
	m.Record(action(2, "alice"))
	assert.True(t, m.CanUndo("alice"))
	assert.False(t, m.CanRedo("alice"))

	a, ok, err := m.Undo("alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a2", a.ID)
	assert.True(t, m.CanRedo("alice"))

	a, ok, err = m.Redo("alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a2", a.ID)

	ap.AssertCalled(t, "Revert", action(2, "alice"))
	ap.AssertCalled(t, "Apply", action(2, "alice"))
}

func TestNewActionTruncatesRedo(t *testing.T) {
	ap := &MockApplier{}
	ap.On("Revert", mock.Anything).Return(nil)
	m := NewManager(ap, 0)

	m.Record(action(1, "alice"))
	m.Record(action(2, "alice"))
	m.Record(action(3, "alice"))
	_, _, _ = m.Undo("alice")
	_, _, _ = m.Undo("alice")

	m.Record(action(4, "alice"))
	actions, idx := m.User("alice")
	require.Len(t, actions, 2)
	assert.Equal(t, "a1", actions[0].ID)
	assert.Equal(t, "a4", actions[1].ID)
	assert.Equal(t, 1, idx)
	assert.False(t, m.CanRedo("alice"))

	assert.Len(t, m.Global(), 4, "the global log keeps undone actions")
}

func TestHistoriesArePerUser(t *testing.T) {
	ap := &MockApplier{}
	ap.On("Revert", mock.Anything).Return(nil)
	m := NewManager(ap, 0)

	m.Record(action(1, "alice"))
	m.Record(action(2, "bob"))

	a, ok, err := m.Undo("alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a1", a.ID)
	assert.True(t, m.CanUndo("bob"))
	assert.False(t, m.CanUndo("alice"))
}

func TestFailedUndoKeepsCursor(t *testing.T) {
	ap := &MockApplier{}
	ap.On("Revert", mock.Anything).Return(errors.New("object gone"))
	m := NewManager(ap, 0)
	m.Record(action(1, "alice"))

	_, ok, err := m.Undo("alice")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.True(t, m.CanUndo("alice"))
	_, idx := m.User("alice")
	assert.Equal(t, 0, idx)
}

func TestMaxPerUserEvictsOldest(t *testing.T) {
	m := NewManager(&MockApplier{}, 3)
	for i := 1; i <= 5; i++ {
		m.Record(action(i, "alice"))
	}
	actions, idx := m.User("alice")
	require.Len(t, actions, 3)
	assert.Equal(t, "a3", actions[0].ID)
	assert.Equal(t, 2, idx)
	assert.Len(t, m.Global(), 5)
}

func TestSinceAndHas(t *testing.T) {
	m := NewManager(&MockApplier{}, 0)
	for i := 1; i <= 4; i++ {
		m.AddToGlobalHistory(action(i, "alice"))
	}
	got := m.Since(base.Add(2 * time.Second))
	require.Len(t, got, 2)
	assert.Equal(t, "a3", got[0].ID)
	assert.Equal(t, "a4", got[1].ID)
	assert.Empty(t, m.Since(base.Add(time.Hour)))

	assert.True(t, m.Has("a1"))
	assert.False(t, m.Has("a9"))
	assert.False(t, m.CanUndo("alice"), "global log does not feed user stacks")
}

func TestMirroredCursorMoves(t *testing.T) {
	m := NewManager(&MockApplier{}, 0)
	m.Record(action(1, "bob"))
	m.Record(action(2, "bob"))

	_, ok := m.Undone("bob", "a1")
	assert.False(t, ok, "only the entry at the cursor moves")
	a, ok := m.Undone("bob", "a2")
	require.True(t, ok)
	assert.Equal(t, action(2, "bob"), a)
	assert.True(t, m.CanRedo("bob"))

	_, ok = m.Redone("bob", "a1")
	assert.False(t, ok)
	a, ok = m.Redone("bob", "a2")
	require.True(t, ok)
	assert.Equal(t, "a2", a.ID)

	_, ok = m.Undone("carol", "a2")
	assert.False(t, ok)
}

func TestRestoreInstallsMissingStacks(t *testing.T) {
	src := NewManager(&MockApplier{}, 0)
	src.Record(action(1, "alice"))
	src.Record(action(2, "bob"))

	dst := NewManager(&MockApplier{}, 0)
	dst.Record(action(3, "bob"))
	dst.Restore(src.Stacks(), src.Global())

	alice, idx := dst.User("alice")
	require.Len(t, alice, 1)
	assert.Equal(t, 0, idx)
	bob, _ := dst.User("bob")
	require.Len(t, bob, 1)
	assert.Equal(t, "a3", bob[0].ID, "an existing stack is kept")
	assert.Len(t, dst.Global(), 3)
	assert.True(t, dst.Has("a1"))
}
