package net

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"localboard/internal/logger"
)

var log = logger.Tag("net")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 20
	sendBuffer     = 256
)

// peer is one websocket connection with its outgoing queue. Only writePump
// writes to conn.
type peer struct {
	id   string
	user string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	// set by the hub while the catch-up snapshot is being prepared
	ready   bool
	pending [][]byte
}

func newPeer(id string, conn *websocket.Conn) *peer {
	conn.SetReadLimit(maxMessageSize)
	return &peer{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

// trySend queues data without blocking. It reports false when the queue is
// full.
func (p *peer) trySend(data []byte) bool {
	select {
	case p.send <- data:
		return true
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.close()
	}()
	for {
		select {
		case data := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debugf("write to %s: %v", p.id, err)
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.done:
			_ = p.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// readPump decodes envelopes until the connection fails or closes.
func (p *peer) readPump(handle func(Envelope, []byte)) error {
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			select {
			case <-p.done:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warnf("bad message from %s: %v", p.id, err)
			continue
		}
		handle(env, data)
	}
}
