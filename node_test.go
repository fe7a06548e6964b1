package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localboard/internal/board"
	"localboard/internal/config"
	peernet "localboard/internal/net"
	"localboard/internal/state"
	"localboard/internal/storage"
	"localboard/internal/worker"
)

// eventLog keeps appended events in memory.
type eventLog struct {
	mu     sync.Mutex
	events []storage.EventRecord
}

func (l *eventLog) AppendEvent(_ context.Context, rec *storage.EventRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, *rec)
	return nil
}

func (l *eventLog) Events(context.Context, uuid.UUID) ([]storage.EventRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]storage.EventRecord(nil), l.events...), nil
}

func (l *eventLog) ReplaceObjects(context.Context, uuid.UUID, []storage.ObjectRecord) error {
	return nil
}

func (l *eventLog) Objects(context.Context, uuid.UUID) ([]storage.ObjectRecord, error) {
	return nil, nil
}

func TestHostRecordsPeerActions(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Peer.UserID = "alice"
	n, err := newNode(cfg)
	require.NoError(t, err)
	repo := &eventLog{}
	pool := worker.NewPool(1, 10)
	n.recorder = storage.NewRecorder(repo, pool, uuid.New())

	_, err = n.board.Add(state.Object{Type: state.TypeRectangle, Width: 10, Height: 10})
	require.NoError(t, err)

	// what the hub does with a joiner's message
	obj := state.Object{ID: "y", Type: state.TypeRectangle, X: 40, Width: 10, Height: 10}
	add := state.Action{
		ID: "r1", Type: state.ActionAdd, UserID: "bob", Timestamp: time.Now(), Lamport: 9,
		Payload: state.AddPayload{Object: obj},
	}
	require.NoError(t, peernet.Dispatch(n.board, peernet.Envelope{Kind: peernet.KindAction, From: "bob", Action: &add}))
	require.NoError(t, peernet.Dispatch(n.board, peernet.Envelope{Kind: peernet.KindAction, From: "bob", Action: &add}))
	require.NoError(t, peernet.Dispatch(n.board, peernet.Envelope{Kind: peernet.KindUndo, From: "bob", Action: &add}))
	require.NoError(t, pool.Shutdown(context.Background()))

	require.Len(t, repo.events, 3, "a duplicate is logged once")
	assert.Equal(t, "alice", repo.events[0].UserID)
	assert.Equal(t, string(board.EventAction), repo.events[1].Kind)
	assert.Equal(t, "bob", repo.events[1].UserID)
	assert.Equal(t, "r1", repo.events[1].ActionID)
	assert.Equal(t, string(board.EventUndo), repo.events[2].Kind)

	// the log alone rebuilds the board
	replica := board.New(board.Config{UserID: "carol"})
	replayPool := worker.NewPool(1, 1)
	defer replayPool.Shutdown(context.Background())
	restored, err := storage.NewRecorder(repo, replayPool, uuid.New()).Restore(context.Background(), replica)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	want := n.board.Objects()
	got := replica.Objects()
	require.Len(t, want, 1)
	require.Len(t, got, 1)
	assert.Equal(t, want[0].ID, got[0].ID)
}
