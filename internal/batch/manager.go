// Package batch groups the actions of one gesture into a single compound
// action so undo and redo work per gesture.
package batch

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"localboard/internal/logger"
	"localboard/internal/state"
)

var log = logger.Tag("batch")

// Limit bounds one kind of gesture.
type Limit struct {
	// Timeout closes the batch when no action arrived for this long.
	Timeout time.Duration
	// MaxActions caps the number of actions in one batch.
	MaxActions int
}

// Limits holds the per-gesture limits. Eraser strokes emit many more
// fine-grained edits than pointer drags and get their own bounds.
type Limits struct {
	Pointer Limit
	Eraser  Limit
}

// DefaultLimits returns the limits used by the whiteboard.
func DefaultLimits() Limits {
	return Limits{
		Pointer: Limit{Timeout: time.Second, MaxActions: 100},
		Eraser:  Limit{Timeout: 3 * time.Second, MaxActions: 1000},
	}
}

func (l Limits) forType(t state.ActionType) Limit {
	if t == state.ActionErase {
		return l.Eraser
	}
	return l.Pointer
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler func(d time.Duration, f func()) Timer

// AfterFunc schedules on the runtime timer.
func AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Composer turns the actions of a closed batch into one compound action.
type Composer interface {
	Batch(actions []state.Action, userID string) state.Action
}

// Batch is an open gesture.
type Batch struct {
	ID         string
	ActionType state.ActionType
	ObjectID   string
	UserID     string
	Actions    []state.Action
	StartedAt  time.Time
}

// Config configures a Manager.
type Config struct {
	Limits   Limits
	Composer Composer
	// Schedule defaults to AfterFunc.
	Schedule Scheduler
	// OnExpire is called from the timer goroutine with the id of the batch
	// whose idle timeout fired; the owner is expected to call Expire with it
	// under its own lock. Without it batches never close on their own.
	OnExpire func(batchID string)
	Now      func() time.Time
}

// Manager is the gesture state machine: Idle, or Open with exactly one batch.
// It does no locking of its own; the owner serializes calls, including the
// Expire call made in response to OnExpire.
type Manager struct {
	limits   Limits
	composer Composer
	schedule Scheduler
	onExpire func(string)
	now      func() time.Time

	open  *Batch
	timer Timer
}

// NewManager creates an idle manager.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		limits:   cfg.Limits,
		composer: cfg.Composer,
		schedule: cfg.Schedule,
		onExpire: cfg.OnExpire,
		now:      cfg.Now,
	}
	if m.schedule == nil {
		m.schedule = AfterFunc
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// StartBatch opens a batch for a gesture of actionType on objectID by userID
// and returns its id. An open batch is closed first and returned as flushed;
// it is never discarded.
func (m *Manager) StartBatch(actionType state.ActionType, objectID, userID string) (id string, flushed state.Action, ok bool) {
	flushed, ok = m.EndBatch()
	m.open = &Batch{
		ID:         uuid.NewString(),
		ActionType: actionType,
		ObjectID:   objectID,
		UserID:     userID,
		StartedAt:  m.now(),
	}
	m.arm()
	log.Debugf("started %s batch %s for %s", actionType, m.open.ID, userID)
	return m.open.ID, flushed, ok
}

// AddToBatch appends a to the open batch. It reports false when no batch is
// open, when a belongs to another user than the batch, or when the batch is
// full; the caller must then close the batch and open a new one.
func (m *Manager) AddToBatch(a state.Action) bool {
	if m.open == nil {
		return false
	}
	if a.UserID != m.open.UserID {
		return false
	}
	if n := m.limit().MaxActions; n > 0 && len(m.open.Actions) >= n {
		log.Debugf("batch %s full at %d actions", m.open.ID, len(m.open.Actions))
		return false
	}
	m.open.Actions = append(m.open.Actions, a)
	m.arm()
	return true
}

// EndBatch closes the open batch and returns it as one compound action whose
// inverse undoes every part in reverse order. It reports false when no batch
// was open or the batch collected no actions.
func (m *Manager) EndBatch() (state.Action, bool) {
	if m.open == nil {
		return state.Action{}, false
	}
	b := m.open
	m.open = nil
	m.disarm()
	if len(b.Actions) == 0 {
		log.Debugf("closed empty batch %s", b.ID)
		return state.Action{}, false
	}
	log.Debugf("closed batch %s with %d actions", b.ID, len(b.Actions))
	return m.composer.Batch(b.Actions, b.UserID), true
}

// Expire closes batchID if it is still the open batch. A timer that fired
// after its batch was already closed is a no-op.
func (m *Manager) Expire(batchID string) (state.Action, bool) {
	if m.open == nil || m.open.ID != batchID {
		return state.Action{}, false
	}
	log.Debugf("batch %s idle, closing", batchID)
	return m.EndBatch()
}

// Current returns a copy of the open batch.
func (m *Manager) Current() (Batch, bool) {
	if m.open == nil {
		return Batch{}, false
	}
	b := *m.open
	b.Actions = slices.Clone(b.Actions)
	return b, true
}

// IsOpen reports whether a batch is open.
func (m *Manager) IsOpen() bool {
	return m.open != nil
}

func (m *Manager) limit() Limit {
	return m.limits.forType(m.open.ActionType)
}

// arm restarts the idle timer of the open batch.
func (m *Manager) arm() {
	m.disarm()
	timeout := m.limit().Timeout
	if m.onExpire == nil || timeout <= 0 {
		return
	}
	id, expire := m.open.ID, m.onExpire
	m.timer = m.schedule(timeout, func() { expire(id) })
}

func (m *Manager) disarm() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
