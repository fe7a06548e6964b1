package board

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"localboard/internal/history"
	"localboard/internal/state"
)

// Snapshot is what a peer sends to catch up a newly joined one. Replaying
// the global log alone would resurrect undone actions, so the snapshot
// carries the resulting table, the lineage and every user's stack with its
// cursor so later remote undos still line up.
type Snapshot struct {
	TakenAt       time.Time                `json:"takenAt"`
	Lamport       uint64                   `json:"lamport"`
	Objects       []state.Object           `json:"objects"`
	Relationships []state.Relationship     `json:"relationships"`
	Histories     map[string]history.Stack `json:"histories"`
	Log           []state.Action           `json:"log"`
}

// Snapshot captures the board for catch-up.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		TakenAt:       b.now(),
		Lamport:       b.clock.Now(),
		Objects:       b.store.Objects(),
		Relationships: b.store.Lineage().All(),
		Histories:     b.history.Stacks(),
		Log:           b.history.Global(),
	}
}

// Load installs a snapshot into a board that holds no objects yet. A board
// that already has content returns state.ErrNotEmpty and stays unchanged.
func (b *Board) Load(s Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.store.Load(s.Objects, s.Relationships); err != nil {
		return err
	}
	b.history.Restore(s.Histories, s.Log)
	b.clock.Observe(s.Lamport)
	log.Infof("loaded snapshot: %d objects, %d log entries", len(s.Objects), len(s.Log))
	return nil
}

// WriteSnapshot writes s as indented JSON.
func WriteSnapshot(w io.Writer, s Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot parses a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("invalid snapshot: %w", err)
	}
	return s, nil
}

// SaveFile writes the board's snapshot to path.
func (b *Board) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSnapshot(f, b.Snapshot()); err != nil {
		f.Close()
		return err
	}
	log.Infof("saved board to %s", path)
	return f.Close()
}

// OpenFile loads the snapshot at path into an empty board.
func (b *Board) OpenFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	s, err := ReadSnapshot(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return b.Load(s)
}
