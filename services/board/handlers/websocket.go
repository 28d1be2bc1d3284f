// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kanbanlab/boardsync/pkg/extensions"
	"github.com/kanbanlab/boardsync/services/board/datatypes"
	"github.com/kanbanlab/boardsync/services/board/realtime"
)

// authWait bounds how long a fresh connection may sit unauthenticated.
const authWait = 10 * time.Second

const pongWait = 60 * time.Second

var upgrader = websocket.Upgrader{
	// Browsers cannot set Authorization headers on websocket dials, so
	// the origin check is open and authentication happens in-band via
	// the first message.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// wsInbound is every message a client sends after connecting.
type wsInbound struct {
	Action string `json:"action"`

	// Token authenticates the connection; only read on the first
	// message (action "authenticate").
	Token string `json:"token,omitempty"`

	// TaskID accompanies editing indicator actions.
	TaskID string `json:"taskId,omitempty"`
}

// wsOutbound mirrors the hub's event envelope for direct replies.
type wsOutbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// editingPayload is relayed to the rest of the session for editing
// indicators.
type editingPayload struct {
	TaskID   string `json:"taskId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// HandleBoardWebSocket upgrades the connection and joins it to the
// board session.
//
// # Protocol
//
// The client's first message must be {"action": "authenticate",
// "token": "..."}; until it arrives the client receives nothing. On
// success the server replies {"event": "authenticated"} and the client
// starts receiving all board events. Editing indicators
// ("task-editing", "task-stopped-editing") are relayed to the rest of
// the session; the sender is excluded.
//
// Unauthenticated connections are dropped after a short deadline.
func HandleBoardWebSocket(hub *realtime.Hub, provider extensions.AuthProvider, session string) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		user, ok := authenticate(c, conn, provider)
		if !ok {
			return
		}

		client := realtime.NewClient(conn, session, user)

		// Join before the ack so events broadcast right after the ack
		// cannot miss this client. The direct write is safe: WritePump
		// has not started, so nothing else touches the connection yet.
		hub.Join(client)
		defer hub.Leave(client)

		if err := conn.WriteJSON(wsOutbound{Event: "authenticated", Data: gin.H{
			"userId":   user.ID,
			"userName": user.DisplayName(),
		}}); err != nil {
			return
		}
		go client.WritePump()

		readLoop(hub, client, conn)
	}
}

// authenticate reads the mandatory first message and validates its
// token. Writes the failure reply itself.
func authenticate(c *gin.Context, conn *websocket.Conn, provider extensions.AuthProvider) (datatypes.UserRef, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(authWait))

	var first wsInbound
	if err := conn.ReadJSON(&first); err != nil {
		return datatypes.UserRef{}, false
	}
	if first.Action != "authenticate" {
		_ = conn.WriteJSON(wsOutbound{Event: "error", Data: gin.H{
			"message": "first message must be an authenticate action",
		}})
		return datatypes.UserRef{}, false
	}

	info, err := provider.Validate(c.Request.Context(), first.Token)
	if err != nil || info == nil {
		_ = conn.WriteJSON(wsOutbound{Event: "error", Data: gin.H{
			"message": "authentication failed",
		}})
		return datatypes.UserRef{}, false
	}

	return datatypes.UserRef{
		ID:    info.UserID,
		Name:  info.Name,
		Email: info.Email,
	}, true
}

// readLoop drains inbound messages until the client disconnects,
// relaying editing indicators to the session.
func readLoop(hub *realtime.Hub, client *realtime.Client, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg wsInbound
		if err := conn.ReadJSON(&msg); err != nil {
			slog.Debug("websocket client disconnected",
				"client", client.ID, "error", err)
			return
		}

		payload := editingPayload{
			TaskID:   msg.TaskID,
			UserID:   client.User.ID,
			UserName: client.User.DisplayName(),
		}
		switch msg.Action {
		case "task-editing":
			hub.Relay(client, realtime.EventUserEditing, payload)
		case "task-stopped-editing":
			hub.Relay(client, realtime.EventUserStoppedEditing, payload)
		default:
			// Unknown actions are ignored; clients may be newer than
			// the server.
		}
	}
}
