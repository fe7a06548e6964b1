package state

import (
	"errors"
	"fmt"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectExists   = errors.New("object already exists")
	ErrInvalidAction  = errors.New("invalid action")
	ErrNotEmpty       = errors.New("store is not empty")
)

// ActionError reports which action and object an apply failed on.
type ActionError struct {
	ActionID string
	ObjectID string
	Err      error
}

func (e *ActionError) Error() string {
	if e.ObjectID == "" {
		return fmt.Sprintf("action %s: %v", e.ActionID, e.Err)
	}
	return fmt.Sprintf("action %s on object %s: %v", e.ActionID, e.ObjectID, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func actionErr(a Action, objectID string, err error) error {
	return &ActionError{ActionID: a.ID, ObjectID: objectID, Err: err}
}
