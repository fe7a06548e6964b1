package state

import (
	"time"
)

// ActionType names the kind of state transition an Action performs.
type ActionType string

const (
	ActionAdd     ActionType = "add"
	ActionUpdate  ActionType = "update"
	ActionDelete  ActionType = "delete"
	ActionSelect  ActionType = "select"
	ActionErase   ActionType = "erase"
	ActionRestore ActionType = "restore"
	ActionBatch   ActionType = "batch"
)

// Action is an immutable record of one state transition. Each payload variant
// carries both what to apply and what is needed to invert it.
type Action struct {
	ID        string     `json:"id"`
	Type      ActionType `json:"type"`
	UserID    string     `json:"userId"`
	Timestamp time.Time  `json:"timestamp"`
	Lamport   uint64     `json:"lamport"`
	Payload   Payload    `json:"payload"`
}

// Payload is the sealed set of action variants.
type Payload interface {
	Kind() ActionType
	// Targets lists the object ids the payload operates on.
	Targets() []string
	invert() Payload
}

// AddPayload inserts a new object. Inverse: DeletePayload.
type AddPayload struct {
	Object Object `json:"object"`
}

// UpdatePayload replaces an object. Before is the inverse snapshot.
type UpdatePayload struct {
	Before Object `json:"before"`
	After  Object `json:"after"`
}

// DeletePayload removes an object. Object is the inverse snapshot.
type DeletePayload struct {
	Object Object `json:"object"`
}

// SelectPayload changes the acting user's selection. Selection is local-only
// state and never enters history.
type SelectPayload struct {
	Selected []string `json:"selected"`
	Previous []string `json:"previous"`
}

// ErasePayload replaces Original by the surviving Segments and records the
// lineage Original -> Segments. Original keeps the full style metadata so
// peers can render the segments even when they no longer hold the original.
type ErasePayload struct {
	Original Object   `json:"original"`
	Segments []Object `json:"segments"`
}

// RestorePayload is the inverse of an erase: it removes the segments, puts
// the original back and forgets the lineage.
type RestorePayload struct {
	Original Object   `json:"original"`
	Segments []Object `json:"segments"`
}

// BatchPayload groups the actions of one gesture into a single undo step.
type BatchPayload struct {
	Actions []Action `json:"actions"`
}

func (AddPayload) Kind() ActionType     { return ActionAdd }
func (UpdatePayload) Kind() ActionType  { return ActionUpdate }
func (DeletePayload) Kind() ActionType  { return ActionDelete }
func (SelectPayload) Kind() ActionType  { return ActionSelect }
func (ErasePayload) Kind() ActionType   { return ActionErase }
func (RestorePayload) Kind() ActionType { return ActionRestore }
func (BatchPayload) Kind() ActionType   { return ActionBatch }

func (p AddPayload) Targets() []string    { return []string{p.Object.ID} }
func (p UpdatePayload) Targets() []string { return []string{p.After.ID} }
func (p DeletePayload) Targets() []string { return []string{p.Object.ID} }
func (p SelectPayload) Targets() []string { return p.Selected }
func (p ErasePayload) Targets() []string  { return []string{p.Original.ID} }
func (p RestorePayload) Targets() []string {
	return segmentIDs(p.Segments)
}

func (p BatchPayload) Targets() []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, a := range p.Actions {
		for _, id := range a.Payload.Targets() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (p AddPayload) invert() Payload    { return DeletePayload{Object: p.Object} }
func (p UpdatePayload) invert() Payload { return UpdatePayload{Before: p.After, After: p.Before} }
func (p DeletePayload) invert() Payload { return AddPayload{Object: p.Object} }
func (p SelectPayload) invert() Payload {
	return SelectPayload{Selected: p.Previous, Previous: p.Selected}
}
func (p ErasePayload) invert() Payload {
	return RestorePayload{Original: p.Original, Segments: p.Segments}
}
func (p RestorePayload) invert() Payload {
	return ErasePayload{Original: p.Original, Segments: p.Segments}
}

// invert of a batch applies every inverse in reverse order.
func (p BatchPayload) invert() Payload {
	inv := make([]Action, len(p.Actions))
	for i, a := range p.Actions {
		inv[len(p.Actions)-1-i] = a.Inverse()
	}
	return BatchPayload{Actions: inv}
}

// Inverse returns the action that undoes a. It keeps a's identity so peers
// can correlate an undo with the action it reverts.
func (a Action) Inverse() Action {
	inv := a
	inv.Payload = a.Payload.invert()
	inv.Type = inv.Payload.Kind()
	return inv
}

// Targets lists the object ids the action operates on.
func (a Action) Targets() []string {
	if a.Payload == nil {
		return nil
	}
	return a.Payload.Targets()
}

func segmentIDs(objs []Object) []string {
	ids := make([]string, len(objs))
	for i, o := range objs {
		ids[i] = o.ID
	}
	return ids
}
