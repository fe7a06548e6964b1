// Package board ties the object table, the action, batch and history
// managers together. It is the entry point for the interaction controller
// (local edits and gestures) and for the network layer (remote actions).
package board

import (
	"fmt"
	"sync"
	"time"

	"localboard/internal/action"
	"localboard/internal/batch"
	"localboard/internal/erase"
	"localboard/internal/history"
	"localboard/internal/logger"
	"localboard/internal/state"
)

var log = logger.Tag("board")

// Config configures a Board.
type Config struct {
	// UserID identifies the local user. Required.
	UserID string
	Limits batch.Limits
	Erase  erase.Options
	// MaxHistory bounds each user's undo stack.
	MaxHistory int
	// LineageRetention and LineageMaxEntries bound the lineage table; see
	// PruneLineage.
	LineageRetention  time.Duration
	LineageMaxEntries int

	// Schedule runs the batch idle timers; defaults to batch.AfterFunc.
	Schedule batch.Scheduler
	Now      func() time.Time
	NewID    func() string

	// OnEvent receives local changes for broadcast. OnRemote receives the
	// peer actions, undos and redos this board applied. OnConflict receives
	// remote conflicts. All are called outside the board lock, in order,
	// and must not call back into the board synchronously.
	OnEvent    func(Event)
	OnRemote   func(Event)
	OnConflict func(Conflict)
}

// Board is one peer's replica of a whiteboard. All methods are safe for
// concurrent use; state changes are serialized by one lock.
type Board struct {
	mu     sync.Mutex
	sendMu sync.Mutex

	userID  string
	store   *state.Store
	clock   *state.Clock
	actions *action.Manager
	batches *batch.Manager
	history *history.Manager
	now     func() time.Time

	retention  time.Duration
	maxLineage int

	onEvent    func(Event)
	onRemote   func(Event)
	onConflict func(Conflict)
	events     []Event
	applied    []Event
	conflicts  []Conflict
	dropped    map[string]struct{}
}

// New creates an empty board for cfg.UserID.
func New(cfg Config) *Board {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	b := &Board{
		userID:     cfg.UserID,
		store:      state.NewStore(state.WithClock(now)),
		clock:      &state.Clock{},
		now:        now,
		retention:  cfg.LineageRetention,
		maxLineage: cfg.LineageMaxEntries,
		onEvent:    cfg.OnEvent,
		onRemote:   cfg.OnRemote,
		onConflict: cfg.OnConflict,
		dropped:    make(map[string]struct{}),
	}
	opts := []action.Option{
		action.WithNow(now),
		action.WithEngine(erase.New(cfg.Erase)),
	}
	if cfg.NewID != nil {
		opts = append(opts, action.WithIDs(cfg.NewID))
	}
	b.actions = action.NewManager(b.store, b.clock, opts...)
	b.batches = batch.NewManager(batch.Config{
		Limits:   cfg.Limits,
		Composer: b.actions,
		Schedule: cfg.Schedule,
		OnExpire: b.expire,
		Now:      now,
	})
	b.history = history.NewManager(resolver{b}, cfg.MaxHistory)
	return b
}

// UserID returns the local user.
func (b *Board) UserID() string {
	return b.userID
}

// run executes fn under the board lock and then hands out the events and
// conflicts it queued, keeping their order across callers.
func (b *Board) run(fn func() error) error {
	b.mu.Lock()
	err := fn()
	events, applied, conflicts := b.events, b.applied, b.conflicts
	b.events, b.applied, b.conflicts = nil, nil, nil
	b.sendMu.Lock()
	b.mu.Unlock()
	defer b.sendMu.Unlock()

	for _, c := range conflicts {
		if b.onConflict != nil {
			b.onConflict(c)
		}
	}
	for _, e := range applied {
		if b.onRemote != nil {
			b.onRemote(e)
		}
	}
	for _, e := range events {
		if b.onEvent != nil {
			b.onEvent(e)
		}
	}
	return err
}

func (b *Board) publish(kind EventKind, a state.Action) {
	b.events = append(b.events, Event{Kind: kind, Action: a})
}

// commit records a closed local action and queues it for broadcast.
func (b *Board) commit(a state.Action) {
	b.history.Record(a)
	b.publish(EventAction, a)
}

// Submit applies a local action. While a gesture is open the action joins
// its batch; otherwise it is committed on its own. Selection changes only
// touch the table.
func (b *Board) Submit(a state.Action) error {
	return b.run(func() error { return b.submit(a) })
}

func (b *Board) submit(a state.Action) error {
	if err := b.store.Apply(a); err != nil {
		return err
	}
	if !action.ShouldRecordAction(a) {
		return nil
	}
	if !b.batches.IsOpen() {
		b.commit(a)
		return nil
	}
	if b.batches.AddToBatch(a) {
		return nil
	}
	// the open batch is full: close it and carry on in a fresh one
	cur, _ := b.batches.Current()
	_, flushed, ok := b.batches.StartBatch(cur.ActionType, cur.ObjectID, b.userID)
	if ok {
		b.commit(flushed)
	}
	if !b.batches.AddToBatch(a) {
		b.commit(a)
	}
	return nil
}

// Add creates obj and returns it with its assigned id.
func (b *Board) Add(obj state.Object) (state.Object, error) {
	var out state.Object
	err := b.run(func() error {
		a, err := b.actions.Add(obj, b.userID)
		if err != nil {
			return err
		}
		out = a.Payload.(state.AddPayload).Object
		return b.submit(a)
	})
	return out, err
}

// Update replaces an existing object.
func (b *Board) Update(obj state.Object) error {
	return b.run(func() error {
		a, err := b.actions.Update(obj, b.userID)
		if err != nil {
			return err
		}
		return b.submit(a)
	})
}

// Delete removes an object.
func (b *Board) Delete(id string) error {
	return b.run(func() error {
		a, err := b.actions.Delete(id, b.userID)
		if err != nil {
			return err
		}
		return b.submit(a)
	})
}

// Select sets the local user's selection.
func (b *Board) Select(ids []string) error {
	return b.run(func() error {
		a, err := b.actions.Select(ids, b.userID)
		if err != nil {
			return err
		}
		return b.submit(a)
	})
}

// BeginGesture opens a batch for a gesture of actionType on objectID and
// returns its id. A gesture still open is committed first.
func (b *Board) BeginGesture(actionType state.ActionType, objectID string) string {
	var id string
	_ = b.run(func() error {
		var (
			flushed state.Action
			ok      bool
		)
		id, flushed, ok = b.batches.StartBatch(actionType, objectID, b.userID)
		if ok {
			b.commit(flushed)
		}
		return nil
	})
	return id
}

// EndGesture closes the open gesture and commits it as one action. It
// reports false when there was nothing to commit.
func (b *Board) EndGesture() bool {
	var ok bool
	_ = b.run(func() error {
		ok = b.flush()
		return nil
	})
	return ok
}

// AbortGesture closes the open gesture the same way EndGesture does, for a
// pointer that left the canvas or a window that lost focus. Edits already
// made are kept and committed.
func (b *Board) AbortGesture() bool {
	log.Debugf("gesture aborted")
	return b.EndGesture()
}

func (b *Board) flush() bool {
	a, ok := b.batches.EndBatch()
	if ok {
		b.commit(a)
	}
	return ok
}

func (b *Board) expire(batchID string) {
	_ = b.run(func() error {
		if a, ok := b.batches.Expire(batchID); ok {
			b.commit(a)
		}
		return nil
	})
}

// Erase sweeps the eraser samples across every path they can touch and
// returns how many objects were split or removed.
func (b *Board) Erase(samples []erase.Sample) (int, error) {
	var n int
	err := b.run(func() error {
		if len(samples) == 0 {
			return nil
		}
		for _, obj := range b.store.Query(erase.SampleBounds(samples)) {
			if !obj.Erasable() {
				continue
			}
			a, ok, err := b.actions.Erase(obj, samples, b.userID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := b.submit(a); err != nil {
				return fmt.Errorf("erase %s: %w", obj.ID, err)
			}
			n++
		}
		return nil
	})
	return n, err
}

// Undo reverts the local user's last action. An open gesture is committed
// first so it is what gets undone.
func (b *Board) Undo() (bool, error) {
	var ok bool
	err := b.run(func() error {
		b.flush()
		a, undone, err := b.history.Undo(b.userID)
		if err != nil || !undone {
			return err
		}
		ok = true
		b.publish(EventUndo, a)
		return nil
	})
	return ok, err
}

// Redo reapplies the local user's last undone action.
func (b *Board) Redo() (bool, error) {
	var ok bool
	err := b.run(func() error {
		b.flush()
		a, redone, err := b.history.Redo(b.userID)
		if err != nil || !redone {
			return err
		}
		ok = true
		b.publish(EventRedo, a)
		return nil
	})
	return ok, err
}

// CanUndo reports whether the local user has something to undo.
func (b *Board) CanUndo() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, open := b.batches.Current(); open && len(cur.Actions) > 0 {
		return true
	}
	return b.history.CanUndo(b.userID)
}

// CanRedo reports whether the local user has something to redo.
func (b *Board) CanRedo() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.CanRedo(b.userID)
}

// Objects returns the object table ordered by creation time.
func (b *Board) Objects() []state.Object {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Objects()
}

// Get returns one object.
func (b *Board) Get(id string) (state.Object, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Get(id)
}

// Selection returns the local user's selection.
func (b *Board) Selection() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Selection(b.userID)
}

// Relationship returns the erase lineage id takes part in.
func (b *Board) Relationship(id string) (state.Relationship, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Relationship(id)
}

// History returns a user's stack and cursor.
func (b *Board) History(userID string) ([]state.Action, int) {
	return b.history.User(userID)
}

// Since returns the committed actions stamped after t.
func (b *Board) Since(t time.Time) []state.Action {
	return b.history.Since(t)
}

// PruneLineage drops lineage older than the configured retention and beyond
// the configured size. Remote actions still naming a pruned original are
// then dropped silently instead of being reported.
func (b *Board) PruneLineage() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.store.Lineage().Prune(b.now(), b.retention, b.maxLineage)
	if n > 0 {
		log.Debugf("pruned %d lineage entries", n)
	}
	return n
}
