// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kanbanlab/boardsync/services/board/datatypes"
)

const (
	// sendBufferSize is the per-client outbound queue. A client that
	// falls this far behind starts losing events rather than stalling
	// the hub.
	sendBufferSize = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one websocket connection joined to a board session.
//
// The hub writes into the buffered send queue; WritePump is the only
// goroutine that touches the connection for writes. Reads happen in the
// upgrade handler's loop.
type Client struct {
	// ID identifies the connection, not the user; one user may hold
	// several connections.
	ID string

	// Session is the board session this client joined.
	Session string

	// User is the authenticated user behind the connection.
	User datatypes.UserRef

	conn *websocket.Conn

	// mu guards closed; queue and closeSend may race between the hub's
	// fan-out and a concurrent Leave.
	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewClient wraps an upgraded connection. conn may be nil in tests; only
// WritePump touches it.
func NewClient(conn *websocket.Conn, session string, user datatypes.UserRef) *Client {
	return &Client{
		ID:      uuid.New().String(),
		Session: session,
		User:    user,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
	}
}

// Outbound exposes the send queue for reading. Used by tests to observe
// what the hub delivered.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// queue enqueues a marshalled event without blocking. Returns false when
// the event was dropped because the buffer is full or the client is
// already detached.
func (c *Client) queue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue exactly once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// WritePump drains the send queue onto the websocket, interleaving pings.
// It returns when the hub closes the queue or a write fails; the caller
// owns closing the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("websocket write failed", "client", c.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
