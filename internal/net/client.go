package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"localboard/internal/board"
	"localboard/internal/state"
)

var ErrClosed = errors.New("connection closed")

// Client is a joiner's connection to a host hub.
type Client struct {
	replica Replica
	peer    *peer
}

// Dial connects to the hub at url and introduces the local user. Call Run to
// start receiving.
func Dial(ctx context.Context, url string, replica Replica) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{replica: replica, peer: newPeer(url, conn)}
	go c.peer.writePump()

	hello, err := json.Marshal(Envelope{Kind: KindHello, From: replica.UserID()})
	if err != nil {
		c.Close()
		return nil, err
	}
	c.peer.send <- hello
	log.Infof("connected to %s as %s", url, replica.UserID())
	return c, nil
}

// Run applies incoming messages until ctx is done or the host goes away.
// The first message is the host snapshot; a replica that already has
// content keeps it and only applies what follows.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	err := c.peer.readPump(func(env Envelope, _ []byte) {
		err := Dispatch(c.replica, env)
		switch {
		case err == nil:
			if env.Kind == KindSync {
				log.Infof("caught up with %s", env.From)
			}
		case env.Kind == KindSync && errors.Is(err, state.ErrNotEmpty):
			log.Warnf("snapshot from %s ignored: board already has content", env.From)
		default:
			log.Warnf("%s from %s: %v", env.Kind, env.From, err)
		}
	})
	c.Close()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return err
	}
	return ErrClosed
}

// Publish sends a local board event to the host. It blocks only while the
// outgoing queue is full.
func (c *Client) Publish(e board.Event) {
	data, err := json.Marshal(FromEvent(e, c.replica.UserID()))
	if err != nil {
		log.Errorf("encode %s %s: %v", e.Kind, e.Action.ID, err)
		return
	}
	select {
	case c.peer.send <- data:
	case <-c.peer.done:
		log.Warnf("%s %s not sent: %v", e.Kind, e.Action.ID, ErrClosed)
	}
}

// Close drops the connection.
func (c *Client) Close() {
	c.peer.close()
}
