package state

import (
	"encoding/json"
	"fmt"
	"time"
)

type actionJSON struct {
	ID        string          `json:"id"`
	Type      ActionType      `json:"type"`
	UserID    string          `json:"userId"`
	Timestamp time.Time       `json:"timestamp"`
	Lamport   uint64          `json:"lamport"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the payload next to a type tag so it can be decoded
// back into the right variant.
func (a Action) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(a.Payload)
	if err != nil {
		return nil, err
	}
	typ := a.Type
	if a.Payload != nil {
		typ = a.Payload.Kind()
	}
	return json.Marshal(actionJSON{
		ID:        a.ID,
		Type:      typ,
		UserID:    a.UserID,
		Timestamp: a.Timestamp,
		Lamport:   a.Lamport,
		Payload:   raw,
	})
}

// UnmarshalJSON decodes an action, selecting the payload variant by type.
func (a *Action) UnmarshalJSON(data []byte) error {
	var aj actionJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return err
	}
	p, err := decodePayload(aj.Type, aj.Payload)
	if err != nil {
		return fmt.Errorf("action %s: %w", aj.ID, err)
	}
	*a = Action{
		ID:        aj.ID,
		Type:      aj.Type,
		UserID:    aj.UserID,
		Timestamp: aj.Timestamp,
		Lamport:   aj.Lamport,
		Payload:   p,
	}
	return nil
}

func decodePayload(typ ActionType, raw json.RawMessage) (Payload, error) {
	switch typ {
	case ActionAdd:
		return decodeAs[AddPayload](raw)
	case ActionUpdate:
		return decodeAs[UpdatePayload](raw)
	case ActionDelete:
		return decodeAs[DeletePayload](raw)
	case ActionSelect:
		return decodeAs[SelectPayload](raw)
	case ActionErase:
		return decodeAs[ErasePayload](raw)
	case ActionRestore:
		return decodeAs[RestorePayload](raw)
	case ActionBatch:
		return decodeAs[BatchPayload](raw)
	default:
		return nil, fmt.Errorf("%w: unknown action type %q", ErrInvalidAction, typ)
	}
}

func decodeAs[P Payload](raw json.RawMessage) (Payload, error) {
	var p P
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidAction)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}
