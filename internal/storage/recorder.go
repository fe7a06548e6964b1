package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"localboard/internal/board"
	"localboard/internal/state"
	"localboard/internal/worker"
)

// Recorder writes a board's events and snapshots in the background. Writes
// run on the worker pool so the board never waits on the database.
type Recorder struct {
	repo    Repository
	pool    *worker.Pool
	boardID uuid.UUID
}

// NewRecorder records board boardID into repo through pool.
func NewRecorder(repo Repository, pool *worker.Pool, boardID uuid.UUID) *Recorder {
	return &Recorder{repo: repo, pool: pool, boardID: boardID}
}

// Record queues e for the event log. It reports false when the pool dropped
// the write.
func (r *Recorder) Record(e board.Event) bool {
	rec, err := newEventRecord(r.boardID, e)
	if err != nil {
		log.Errorf("%v", err)
		return false
	}
	return r.pool.Submit(func(ctx context.Context) error {
		if err := r.repo.AppendEvent(ctx, rec); err != nil {
			return fmt.Errorf("append %s %s: %w", rec.Kind, rec.ActionID, err)
		}
		return nil
	})
}

// SaveObjects queues a replacement of the stored object table.
func (r *Recorder) SaveObjects(objs []state.Object) bool {
	recs := make([]ObjectRecord, 0, len(objs))
	for _, o := range objs {
		rec, err := newObjectRecord(r.boardID, o)
		if err != nil {
			log.Errorf("%v", err)
			return false
		}
		recs = append(recs, rec)
	}
	return r.pool.Submit(func(ctx context.Context) error {
		if err := r.repo.ReplaceObjects(ctx, r.boardID, recs); err != nil {
			return fmt.Errorf("save %d objects: %w", len(recs), err)
		}
		log.Debugf("saved %d objects", len(recs))
		return nil
	})
}

// LoadObjects reads the stored object table.
func (r *Recorder) LoadObjects(ctx context.Context) ([]state.Object, error) {
	recs, err := r.repo.Objects(ctx, r.boardID)
	if err != nil {
		return nil, fmt.Errorf("load objects: %w", err)
	}
	objs := make([]state.Object, 0, len(recs))
	for _, rec := range recs {
		o, err := rec.Object()
		if err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}
	return objs, nil
}

// LoadEvents reads the stored event log in the order it was written.
func (r *Recorder) LoadEvents(ctx context.Context) ([]board.Event, error) {
	recs, err := r.repo.Events(ctx, r.boardID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	events := make([]board.Event, 0, len(recs))
	for _, rec := range recs {
		e, err := rec.Event()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// Restore loads the stored board into an empty board and returns the number
// of objects it ended up with. The stored object table is used when there is
// one; otherwise the event log is replayed, which also rebuilds every user's
// undo stack. Events that no longer apply are skipped.
func (r *Recorder) Restore(ctx context.Context, b *board.Board) (int, error) {
	objs, err := r.LoadObjects(ctx)
	if err != nil {
		return 0, err
	}
	if len(objs) > 0 {
		if err := b.Load(board.Snapshot{Objects: objs}); err != nil {
			return 0, fmt.Errorf("restore board %s: %w", r.boardID, err)
		}
		log.Infof("restored %d objects for board %s", len(objs), r.boardID)
		return len(objs), nil
	}

	events, err := r.LoadEvents(ctx)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	if len(b.Objects()) > 0 {
		return 0, fmt.Errorf("restore board %s: %w", r.boardID, state.ErrNotEmpty)
	}
	skipped := 0
	for _, e := range events {
		if err := b.Replay(e); err != nil {
			log.Warnf("replay %s %s: %v", e.Kind, e.Action.ID, err)
			skipped++
		}
	}
	n := len(b.Objects())
	log.Infof("replayed %d events (%d skipped) for board %s, %d objects", len(events), skipped, r.boardID, n)
	return n, nil
}
