// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package realtime is the board's broadcast channel: a session-keyed
// websocket hub that fans mutation events out to every connected client
// of a board session.
//
// Delivery is at-most-once. The hub never blocks on a slow client; a
// client whose outbound buffer is full loses the event and is expected
// to refetch board state on reconnect.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/kanbanlab/boardsync/services/board/observability"
)

// envelope is the wire shape of every outbound event.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// presencePayload is the body of userJoined / userLeft events.
type presencePayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Hub tracks the clients joined to each board session and fans events
// out to them.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{}

	metrics *observability.BoardMetrics
	log     *slog.Logger
}

// NewHub creates an empty hub. metrics may be nil.
func NewHub(log *slog.Logger, metrics *observability.BoardMetrics) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		sessions: make(map[string]map[*Client]struct{}),
		metrics:  metrics,
		log:      log,
	}
}

// Join registers the client with its session and announces it to the
// other members. The joining client does not receive its own userJoined.
func (h *Hub) Join(c *Client) {
	h.mu.Lock()
	members, ok := h.sessions[c.Session]
	if !ok {
		members = make(map[*Client]struct{})
		h.sessions[c.Session] = members
	}
	members[c] = struct{}{}
	h.mu.Unlock()

	h.metrics.ClientConnected()
	h.log.Info("client joined board session",
		"session", c.Session, "client", c.ID, "user", c.User.ID)

	h.Relay(c, EventUserJoined, presencePayload{
		UserID:   c.User.ID,
		UserName: c.User.DisplayName(),
	})
}

// Leave unregisters the client, closes its send queue, and announces the
// departure to the remaining members. Safe to call for a client that
// never joined or already left.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	members, ok := h.sessions[c.Session]
	if ok {
		if _, present := members[c]; !present {
			ok = false
		} else {
			delete(members, c)
			if len(members) == 0 {
				delete(h.sessions, c.Session)
			}
		}
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	c.closeSend()

	h.metrics.ClientDisconnected()
	h.log.Info("client left board session",
		"session", c.Session, "client", c.ID, "user", c.User.ID)

	h.Emit(c.Session, EventUserLeft, presencePayload{
		UserID:   c.User.ID,
		UserName: c.User.DisplayName(),
	})
}

// Emit broadcasts one event to every member of the session, the
// originating client included. Task mutation events use this path so the
// requester's other tabs converge too.
func (h *Hub) Emit(session, event string, payload any) {
	h.deliver(session, nil, event, payload)
}

// Relay broadcasts one event to every member of the sender's session
// except the sender. Presence and editing indicators use this path.
func (h *Hub) Relay(sender *Client, event string, payload any) {
	h.deliver(sender.Session, sender, event, payload)
}

// SessionSize returns the number of clients joined to a session.
func (h *Hub) SessionSize(session string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[session])
}

// Shutdown detaches every client and closes their send queues. Write
// pumps observe the close and send websocket close frames.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for session, members := range h.sessions {
		for c := range members {
			c.closeSend()
			h.metrics.ClientDisconnected()
		}
		delete(h.sessions, session)
	}
}

func (h *Hub) deliver(session string, exclude *Client, event string, payload any) {
	msg, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		h.log.Error("failed to encode realtime event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	// Snapshot the member set so queue() runs outside the lock's hot path
	// stays short; clients are only appended to their own channel.
	members := make([]*Client, 0, len(h.sessions[session]))
	for c := range h.sessions[session] {
		if c != exclude {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range members {
		if !c.queue(msg) {
			h.log.Warn("dropping event for slow client",
				"session", session, "client", c.ID, "event", event)
		}
	}
	if len(members) > 0 {
		h.metrics.RecordBroadcast(event)
	}
}
