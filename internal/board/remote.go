package board

import (
	"fmt"

	"localboard/internal/state"
)

// ApplyRemote applies an action committed by a peer. Delivery is
// at-least-once and unordered, so an action already seen is ignored. The
// action goes into its author's history and the global log, never into the
// local user's stack and never into an open local gesture.
//
// Actions naming an object erased here are resolved through the lineage
// table: a delete is retargeted to the surviving segments, an update or a
// second erase is dropped and reported as a Conflict. Actions naming an
// object unknown to both the table and the lineage are dropped silently.
func (b *Board) ApplyRemote(a state.Action) error {
	return b.run(func() error { return b.notify(EventAction, a, b.applyRemote) })
}

// notify runs fn on a and queues a for OnRemote when fn applied it.
func (b *Board) notify(kind EventKind, a state.Action, fn func(state.Action) (bool, error)) error {
	applied, err := fn(a)
	if applied {
		b.applied = append(b.applied, Event{Kind: kind, Action: a})
	}
	return err
}

func (b *Board) applyRemote(a state.Action) (bool, error) {
	if a.Payload == nil {
		return false, fmt.Errorf("remote action %s: %w", a.ID, state.ErrInvalidAction)
	}
	if b.seen(a.ID) {
		log.Debugf("duplicate remote action %s", a.ID)
		return false, nil
	}
	b.clock.Observe(a.Lamport)

	resolved, ok, err := b.apply(a)
	if err != nil {
		b.dropped[a.ID] = struct{}{}
		log.Warnf("remote %s %s from %s not applied: %v", a.Type, a.ID, a.UserID, err)
		return false, err
	}
	if !ok {
		b.dropped[a.ID] = struct{}{}
		return false, nil
	}
	b.history.Record(resolved)
	log.Debugf("applied remote %s %s from %s", a.Type, a.ID, a.UserID)
	return true, nil
}

func (b *Board) seen(id string) bool {
	if _, ok := b.dropped[id]; ok {
		return true
	}
	return b.history.Has(id)
}

// ApplyRemoteUndo mirrors a peer's undo of a. It applies only when a is the
// entry at the author's mirrored cursor, which also makes a repeated undo
// message a no-op. The entry as recorded here is reverted, so a delete that
// was retargeted locally is undone on the objects it actually removed.
func (b *Board) ApplyRemoteUndo(a state.Action) error {
	return b.run(func() error { return b.notify(EventUndo, a, b.applyRemoteUndo) })
}

func (b *Board) applyRemoteUndo(a state.Action) (bool, error) {
	if a.Payload == nil {
		return false, fmt.Errorf("remote undo %s: %w", a.ID, state.ErrInvalidAction)
	}
	entry, ok := b.history.Undone(a.UserID, a.ID)
	if !ok {
		log.Debugf("remote undo %s from %s does not match its history", a.ID, a.UserID)
		return false, nil
	}
	if err := b.applyResolved(entry.Inverse()); err != nil {
		b.history.Redone(a.UserID, a.ID)
		return false, err
	}
	return true, nil
}

// ApplyRemoteRedo mirrors a peer's redo of a.
func (b *Board) ApplyRemoteRedo(a state.Action) error {
	return b.run(func() error { return b.notify(EventRedo, a, b.applyRemoteRedo) })
}

func (b *Board) applyRemoteRedo(a state.Action) (bool, error) {
	if a.Payload == nil {
		return false, fmt.Errorf("remote redo %s: %w", a.ID, state.ErrInvalidAction)
	}
	entry, ok := b.history.Redone(a.UserID, a.ID)
	if !ok {
		log.Debugf("remote redo %s from %s does not match its history", a.ID, a.UserID)
		return false, nil
	}
	if err := b.applyResolved(entry); err != nil {
		b.history.Undone(a.UserID, a.ID)
		return false, err
	}
	return true, nil
}

// Replay applies an event read back from an event log. Events are routed the
// way a peer's are, whoever authored them, so the local user's replayed
// actions land on the local undo stack again. Replayed events are not handed
// to OnRemote.
func (b *Board) Replay(e Event) error {
	return b.run(func() error {
		var err error
		switch e.Kind {
		case EventAction:
			_, err = b.applyRemote(e.Action)
		case EventUndo:
			_, err = b.applyRemoteUndo(e.Action)
		case EventRedo:
			_, err = b.applyRemoteRedo(e.Action)
		default:
			err = fmt.Errorf("replay %s: unknown event kind %q", e.Action.ID, e.Kind)
		}
		return err
	})
}

// resolver is the history applier: local and mirrored undo and redo go
// through the same lineage resolution as remote actions, so undoing an add
// whose object a peer has since erased removes the surviving segments.
type resolver struct{ b *Board }

func (r resolver) Apply(a state.Action) error  { return r.b.applyResolved(a) }
func (r resolver) Revert(a state.Action) error { return r.b.applyResolved(a.Inverse()) }

// applyResolved resolves and applies a without recording it. A fully dropped
// action is not an error.
func (b *Board) applyResolved(a state.Action) error {
	if _, _, err := b.apply(a); err != nil {
		log.Warnf("%s %s from %s not applied: %v", a.Type, a.ID, a.UserID, err)
		return err
	}
	return nil
}

// apply resolves a against the table and performs what is left of it,
// returning the action as applied. It reports false when nothing of a was
// left. The parts of a batch are resolved one at a time against the table
// the earlier parts left, so a gesture that creates and then drags an object,
// or erases a segment of its own erasure, replays whole. When a part fails
// the parts already applied are reverted and the table is left as it was.
func (b *Board) apply(a state.Action) (state.Action, bool, error) {
	p, isBatch := a.Payload.(state.BatchPayload)
	if !isBatch {
		resolved, ok := b.resolve(a)
		if !ok {
			return a, false, nil
		}
		if err := b.store.Apply(resolved); err != nil {
			return a, false, err
		}
		return resolved, true, nil
	}

	var done []state.Action
	for _, sub := range p.Actions {
		r, ok, err := b.apply(sub)
		if err != nil {
			for i := len(done) - 1; i >= 0; i-- {
				// reverting what was just applied cannot fail
				_ = b.store.Apply(done[i].Inverse())
			}
			return a, false, err
		}
		if ok {
			done = append(done, r)
		}
	}
	if len(done) == 0 {
		return a, false, nil
	}
	a.Payload = state.BatchPayload{Actions: done}
	return a, true, nil
}

// resolve rewrites a single action against the local table. It reports false
// when nothing of a is left to apply. Batches go through apply.
func (b *Board) resolve(a state.Action) (state.Action, bool) {
	switch p := a.Payload.(type) {
	case state.AddPayload:
		if b.store.Has(p.Object.ID) {
			log.Debugf("remote add %s: object %s already present", a.ID, p.Object.ID)
			return a, false
		}
		return a, true

	case state.UpdatePayload:
		if b.store.Has(p.After.ID) {
			return a, true
		}
		b.missing(a, p.After.ID, false)
		return a, false

	case state.DeletePayload:
		if cur, ok := b.store.Get(p.Object.ID); ok {
			p.Object = cur
			a.Payload = p
			return a, true
		}
		survivors := b.missing(a, p.Object.ID, true)
		if len(survivors) == 0 {
			return a, false
		}
		subs := make([]state.Action, 0, len(survivors))
		for _, id := range survivors {
			cur, _ := b.store.Get(id)
			sub := a
			sub.Type = state.ActionDelete
			sub.Payload = state.DeletePayload{Object: cur}
			subs = append(subs, sub)
		}
		a.Type = state.ActionBatch
		a.Payload = state.BatchPayload{Actions: subs}
		return a, true

	case state.ErasePayload:
		for _, seg := range p.Segments {
			if b.store.Has(seg.ID) {
				log.Debugf("remote erase %s: segment %s already present", a.ID, seg.ID)
				return a, false
			}
		}
		if cur, ok := b.store.Get(p.Original.ID); ok {
			// last writer wins: restore what this table held
			p.Original = cur
			a.Payload = p
			return a, true
		}
		b.missing(a, p.Original.ID, false)
		return a, false

	case state.RestorePayload:
		if b.store.Has(p.Original.ID) {
			return a, false
		}
		for _, seg := range p.Segments {
			if !b.store.Has(seg.ID) {
				b.report(a, seg.ID, b.store.Resolve(seg.ID), Dropped)
				return a, false
			}
		}
		return a, true

	case state.SelectPayload:
		// selection never leaves its peer
		return a, false

	}
	return a, false
}

// missing handles a remote action naming an absent object. With lineage it
// reports a conflict and, when retarget is set, returns the surviving ids the
// action should apply to instead.
func (b *Board) missing(a state.Action, id string, retarget bool) []string {
	if _, ok := b.store.Relationship(id); !ok {
		log.Debugf("remote %s %s: object %s unknown, dropped", a.Type, a.ID, id)
		return nil
	}
	survivors := b.store.Resolve(id)
	if retarget && len(survivors) > 0 {
		b.report(a, id, survivors, Retargeted)
		return survivors
	}
	b.report(a, id, survivors, Dropped)
	return nil
}

func (b *Board) report(a state.Action, id string, replacedBy []string, res Resolution) {
	c := Conflict{
		ActionID:   a.ID,
		UserID:     a.UserID,
		Type:       a.Type,
		ObjectID:   id,
		ReplacedBy: replacedBy,
		Resolution: res,
	}
	log.Warnf("conflict: %s %s from %s names %s, replaced by %v: %s", a.Type, a.ID, a.UserID, id, replacedBy, res)
	b.conflicts = append(b.conflicts, c)
}
