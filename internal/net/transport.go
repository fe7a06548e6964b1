package net

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"localboard/internal/board"
)

// Path is where the hub accepts websocket connections.
const Path = "/ws"

// Hub is the host side of a session. Every joiner gets a snapshot of the
// host replica, and every message from a joiner is applied to the host and
// relayed to the other joiners.
type Hub struct {
	replica  Replica
	upgrader websocket.Upgrader

	mu     sync.Mutex
	peers  map[string]*peer
	closed bool
}

// NewHub creates a hub serving replica.
func NewHub(replica Replica) *Hub {
	return &Hub{
		replica: replica,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// peers are on the local network and carry no browser session
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: make(map[string]*peer),
	}
}

// ServeHTTP upgrades the request and serves the peer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	p := newPeer(uuid.NewString(), conn)
	if !h.register(p) {
		p.close()
		return
	}
	log.Infof("peer %s connected from %s", p.id, r.RemoteAddr)
	go p.writePump()

	if err := h.catchUp(p); err != nil {
		log.Errorf("catch-up for %s: %v", p.id, err)
		h.unregister(p)
		return
	}

	err = p.readPump(func(env Envelope, raw []byte) { h.receive(p, env, raw) })
	if err != nil {
		log.Warnf("peer %s: %v", p.id, err)
	}
	h.unregister(p)
}

func (h *Hub) register(p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.peers[p.id] = p
	return true
}

func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	_, ok := h.peers[p.id]
	user := p.user
	delete(h.peers, p.id)
	h.mu.Unlock()
	p.close()
	if ok {
		log.Infof("peer %s (%s) disconnected", p.id, user)
	}
}

// catchUp sends the snapshot and then whatever was broadcast while it was
// taken. Messages already folded into the snapshot are deduplicated by the
// receiving board.
func (h *Hub) catchUp(p *peer) error {
	snap := h.replica.Snapshot()
	data, err := json.Marshal(Envelope{Kind: KindSync, From: h.replica.UserID(), Snapshot: &snap})
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	queue := append([][]byte{data}, p.pending...)
	p.pending = nil
	p.ready = true
	for _, msg := range queue {
		if !p.trySend(msg) {
			log.Warnf("peer %s too slow, dropping", p.id)
			delete(h.peers, p.id)
			p.close()
			return nil
		}
	}
	return nil
}

func (h *Hub) receive(p *peer, env Envelope, raw []byte) {
	if env.Kind == KindHello {
		h.mu.Lock()
		p.user = env.From
		h.mu.Unlock()
		log.Infof("peer %s is %s", p.id, env.From)
		return
	}
	if err := Dispatch(h.replica, env); err != nil {
		log.Warnf("%s from %s: %v", env.Kind, p.id, err)
	}
	if env.relayed() {
		h.broadcast(raw, p)
	}
}

// broadcast queues data for every peer but exclude. Peers whose queue is
// full are disconnected.
func (h *Hub) broadcast(data []byte, exclude *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, p := range h.peers {
		if p == exclude {
			continue
		}
		if !p.ready {
			p.pending = append(p.pending, data)
			continue
		}
		if !p.trySend(data) {
			log.Warnf("peer %s too slow, dropping", id)
			delete(h.peers, id)
			p.close()
		}
	}
}

// Publish sends a local board event to every peer. It never blocks, so it
// can be used directly as board.Config.OnEvent.
func (h *Hub) Publish(e board.Event) {
	data, err := json.Marshal(FromEvent(e, h.replica.UserID()))
	if err != nil {
		log.Errorf("encode %s %s: %v", e.Kind, e.Action.ID, err)
		return
	}
	h.broadcast(data, nil)
}

// Peers returns the user ids of the connected peers that said hello.
func (h *Hub) Peers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	users := make([]string, 0, len(h.peers))
	for _, p := range h.peers {
		if p.user != "" {
			users = append(users, p.user)
		}
	}
	sort.Strings(users)
	return users
}

// Close disconnects every peer and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, p := range h.peers {
		p.close()
		delete(h.peers, id)
	}
}
