// Package net moves actions between peers: a websocket hub run by the host,
// the client link used by joiners, mDNS discovery and share links.
package net

import (
	"errors"
	"fmt"

	"localboard/internal/board"
	"localboard/internal/state"
)

// Kind names the message carried by an Envelope.
type Kind string

const (
	KindAction Kind = "action"
	KindUndo   Kind = "undo"
	KindRedo   Kind = "redo"
	KindSync   Kind = "sync"
	KindHello  Kind = "hello"
)

var ErrUnknownKind = errors.New("unknown envelope kind")

// Envelope is the wire message exchanged between peers.
type Envelope struct {
	Kind     Kind            `json:"kind"`
	From     string          `json:"from,omitempty"`
	Action   *state.Action   `json:"action,omitempty"`
	Snapshot *board.Snapshot `json:"snapshot,omitempty"`
}

// Replica is the board side of a connection.
type Replica interface {
	UserID() string
	ApplyRemote(state.Action) error
	ApplyRemoteUndo(state.Action) error
	ApplyRemoteRedo(state.Action) error
	Snapshot() board.Snapshot
	Load(board.Snapshot) error
}

// FromEvent wraps a local board event for the wire.
func FromEvent(e board.Event, from string) Envelope {
	a := e.Action
	env := Envelope{From: from, Action: &a}
	switch e.Kind {
	case board.EventUndo:
		env.Kind = KindUndo
	case board.EventRedo:
		env.Kind = KindRedo
	default:
		env.Kind = KindAction
	}
	return env
}

// Dispatch hands a received envelope to the replica.
func Dispatch(r Replica, env Envelope) error {
	switch env.Kind {
	case KindHello:
		return nil
	case KindSync:
		if env.Snapshot == nil {
			return fmt.Errorf("sync from %s: empty snapshot", env.From)
		}
		return r.Load(*env.Snapshot)
	case KindAction, KindUndo, KindRedo:
		if env.Action == nil {
			return fmt.Errorf("%s from %s: missing action", env.Kind, env.From)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	switch env.Kind {
	case KindUndo:
		return r.ApplyRemoteUndo(*env.Action)
	case KindRedo:
		return r.ApplyRemoteRedo(*env.Action)
	default:
		return r.ApplyRemote(*env.Action)
	}
}

// relayed reports whether the host forwards the envelope to the other peers.
func (e Envelope) relayed() bool {
	return e.Kind == KindAction || e.Kind == KindUndo || e.Kind == KindRedo
}
