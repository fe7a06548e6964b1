package board

import "localboard/internal/state"

// EventKind tells peers what happened to the carried action.
type EventKind string

const (
	// EventAction: a committed action to apply.
	EventAction EventKind = "action"
	// EventUndo: the author undid the carried action.
	EventUndo EventKind = "undo"
	// EventRedo: the author redid the carried action.
	EventRedo EventKind = "redo"
)

// Event is published for every local change that peers must replay.
type Event struct {
	Kind   EventKind    `json:"kind"`
	Action state.Action `json:"action"`
}

// Resolution is what the remote path did with a conflicting action.
type Resolution string

const (
	Retargeted Resolution = "retargeted"
	Dropped    Resolution = "dropped"
)

// Conflict reports a remote action that named an object erased locally.
type Conflict struct {
	ActionID   string
	UserID     string
	Type       state.ActionType
	ObjectID   string
	ReplacedBy []string
	Resolution Resolution
}
