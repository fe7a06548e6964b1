// Package history keeps one undo/redo stack per user and a global
// chronological log of every committed action.
package history

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"localboard/internal/logger"
	"localboard/internal/state"
)

const DefaultMaxPerUser = 500

var log = logger.Tag("history")

// Applier performs actions and their inverses on the object table.
type Applier interface {
	Apply(state.Action) error
	Revert(state.Action) error
}

type userHistory struct {
	actions []state.Action
	index   int // last applied entry, -1 when nothing is applied
}

// Manager holds the per-user stacks and the global log.
type Manager struct {
	applier    Applier
	users      map[string]*userHistory
	global     []state.Action
	seen       map[string]struct{}
	maxPerUser int
	mutex      sync.Mutex
}

// NewManager creates a history manager undoing through applier. A
// non-positive maxPerUser uses DefaultMaxPerUser.
func NewManager(applier Applier, maxPerUser int) *Manager {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxPerUser
	}
	return &Manager{
		applier:    applier,
		users:      make(map[string]*userHistory),
		seen:       make(map[string]struct{}),
		maxPerUser: maxPerUser,
	}
}

func (m *Manager) user(userID string) *userHistory {
	h, ok := m.users[userID]
	if !ok {
		h = &userHistory{index: -1}
		m.users[userID] = h
	}
	return h
}

// AddToUserHistory appends a to userID's stack. Entries after the cursor
// were undone and are discarded first; the oldest entry is evicted once the
// stack exceeds its bound.
func (m *Manager) AddToUserHistory(a state.Action, userID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	h := m.user(userID)
	if h.index < len(h.actions)-1 {
		h.actions = h.actions[:h.index+1]
	}
	h.actions = append(h.actions, a)
	if len(h.actions) > m.maxPerUser {
		h.actions = h.actions[len(h.actions)-m.maxPerUser:]
	}
	h.index = len(h.actions) - 1

	log.Debugf("recorded %s %s for %s, index %d of %d", a.Type, a.ID, userID, h.index, len(h.actions))
}

// AddToGlobalHistory appends a to the global log. Undo and redo never touch
// the log.
func (m *Manager) AddToGlobalHistory(a state.Action) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.global = append(m.global, a)
	m.seen[a.ID] = struct{}{}
}

// Record adds a to its author's stack and to the global log.
func (m *Manager) Record(a state.Action) {
	m.AddToUserHistory(a, a.UserID)
	m.AddToGlobalHistory(a)
}

// Has reports whether an action with id was logged.
func (m *Manager) Has(id string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, ok := m.seen[id]
	return ok
}

// CanUndo reports whether userID has an applied entry.
func (m *Manager) CanUndo(userID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	h, ok := m.users[userID]
	return ok && h.index > -1
}

// CanRedo reports whether userID has an undone entry.
func (m *Manager) CanRedo(userID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	h, ok := m.users[userID]
	return ok && h.index < len(h.actions)-1
}

// Undo reverts userID's last applied action and returns it. With nothing to
// undo it returns false and no error. When reverting fails the cursor stays
// where it was.
func (m *Manager) Undo(userID string) (state.Action, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	h, ok := m.users[userID]
	if !ok || h.index < 0 {
		log.Debugf("nothing to undo for %s", userID)
		return state.Action{}, false, nil
	}
	a := h.actions[h.index]
	if err := m.applier.Revert(a); err != nil {
		log.Errorf("undo %s for %s: %v", a.ID, userID, err)
		return state.Action{}, false, fmt.Errorf("undo failed: %w", err)
	}
	h.index--
	log.Debugf("undid %s for %s, index %d", a.ID, userID, h.index)
	return a, true, nil
}

// Redo reapplies userID's next undone action and returns it.
func (m *Manager) Redo(userID string) (state.Action, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	h, ok := m.users[userID]
	if !ok || h.index >= len(h.actions)-1 {
		log.Debugf("nothing to redo for %s", userID)
		return state.Action{}, false, nil
	}
	a := h.actions[h.index+1]
	if err := m.applier.Apply(a); err != nil {
		log.Errorf("redo %s for %s: %v", a.ID, userID, err)
		return state.Action{}, false, fmt.Errorf("redo failed: %w", err)
	}
	h.index++
	log.Debugf("redid %s for %s, index %d", a.ID, userID, h.index)
	return a, true, nil
}

// Undone moves userID's cursor back over actionID without applying
// anything, mirroring an undo a peer already performed, and returns the
// recorded entry. It reports false when actionID is not the entry at the
// cursor.
func (m *Manager) Undone(userID, actionID string) (state.Action, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	h, ok := m.users[userID]
	if !ok || h.index < 0 || h.actions[h.index].ID != actionID {
		return state.Action{}, false
	}
	h.index--
	return h.actions[h.index+1], true
}

// Redone moves userID's cursor forward over actionID without applying
// anything, mirroring a peer's redo.
func (m *Manager) Redone(userID, actionID string) (state.Action, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	h, ok := m.users[userID]
	if !ok || h.index >= len(h.actions)-1 || h.actions[h.index+1].ID != actionID {
		return state.Action{}, false
	}
	h.index++
	return h.actions[h.index], true
}

// User returns a copy of userID's stack and its cursor.
func (m *Manager) User(userID string) ([]state.Action, int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	h, ok := m.users[userID]
	if !ok {
		return nil, -1
	}
	return slices.Clone(h.actions), h.index
}

// Global returns a copy of the global log.
func (m *Manager) Global() []state.Action {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return slices.Clone(m.global)
}

// Since returns the logged actions stamped after t, in log order.
func (m *Manager) Since(t time.Time) []state.Action {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var out []state.Action
	for _, a := range m.global {
		if a.Timestamp.After(t) {
			out = append(out, a)
		}
	}
	return out
}

// Stack is one user's history as carried in a snapshot.
type Stack struct {
	Actions []state.Action `json:"actions"`
	Index   int            `json:"index"`
}

// Stacks returns a copy of every user's stack.
func (m *Manager) Stacks() map[string]Stack {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make(map[string]Stack, len(m.users))
	for id, h := range m.users {
		out[id] = Stack{Actions: slices.Clone(h.actions), Index: h.index}
	}
	return out
}

// Restore installs stacks and log entries received from a peer without
// applying them. Users that already have a stack keep theirs; log entries
// already present are skipped.
func (m *Manager) Restore(stacks map[string]Stack, entries []state.Action) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for id, st := range stacks {
		if _, ok := m.users[id]; ok {
			continue
		}
		idx := min(max(st.Index, -1), len(st.Actions)-1)
		m.users[id] = &userHistory{actions: slices.Clone(st.Actions), index: idx}
	}
	for _, a := range entries {
		if _, ok := m.seen[a.ID]; ok {
			continue
		}
		m.global = append(m.global, a)
		m.seen[a.ID] = struct{}{}
	}
}
