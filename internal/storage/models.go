package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"localboard/internal/board"
	"localboard/internal/state"
)

// EventRecord is one committed action, undo or redo as it was published.
type EventRecord struct {
	Seq       uint64         `gorm:"primarykey;autoIncrement" json:"seq"`
	BoardID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"board_id"`
	Kind      string         `gorm:"size:16;not null" json:"kind"`
	ActionID  string         `gorm:"size:64;not null;index" json:"action_id"`
	UserID    string         `gorm:"size:128;index" json:"user_id"`
	Type      string         `gorm:"size:16" json:"type"`
	Lamport   uint64         `json:"lamport"`
	Timestamp time.Time      `json:"timestamp"`
	Action    datatypes.JSON `json:"action"`
	CreatedAt time.Time      `json:"created_at"`
}

// ObjectRecord is one object of a stored board.
type ObjectRecord struct {
	BoardID   uuid.UUID      `gorm:"type:uuid;primarykey" json:"board_id"`
	ID        string         `gorm:"size:64;primarykey" json:"id"`
	Type      string         `gorm:"size:16" json:"type"`
	Data      datatypes.JSON `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func newEventRecord(boardID uuid.UUID, e board.Event) (*EventRecord, error) {
	data, err := json.Marshal(e.Action)
	if err != nil {
		return nil, fmt.Errorf("encode action %s: %w", e.Action.ID, err)
	}
	return &EventRecord{
		BoardID:   boardID,
		Kind:      string(e.Kind),
		ActionID:  e.Action.ID,
		UserID:    e.Action.UserID,
		Type:      string(e.Action.Type),
		Lamport:   e.Action.Lamport,
		Timestamp: e.Action.Timestamp,
		Action:    datatypes.JSON(data),
	}, nil
}

// Event decodes the stored action.
func (r EventRecord) Event() (board.Event, error) {
	var a state.Action
	if err := json.Unmarshal(r.Action, &a); err != nil {
		return board.Event{}, fmt.Errorf("decode event %d: %w", r.Seq, err)
	}
	return board.Event{Kind: board.EventKind(r.Kind), Action: a}, nil
}

func newObjectRecord(boardID uuid.UUID, o state.Object) (ObjectRecord, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return ObjectRecord{}, fmt.Errorf("encode object %s: %w", o.ID, err)
	}
	return ObjectRecord{
		BoardID:   boardID,
		ID:        o.ID,
		Type:      string(o.Type),
		Data:      datatypes.JSON(data),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}, nil
}

// Object decodes the stored object.
func (r ObjectRecord) Object() (state.Object, error) {
	var o state.Object
	if err := json.Unmarshal(r.Data, &o); err != nil {
		return state.Object{}, fmt.Errorf("decode object %s: %w", r.ID, err)
	}
	return o, nil
}
