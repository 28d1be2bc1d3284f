//go:build ignore

// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// seed_board populates a running boardsync server with demo tasks so the
// board has content to play with during development.
//
// Usage:
//
//	go run scripts/seed_board.go [-addr http://localhost:12400] [-token dev]
//
// The script is idempotent-ish: duplicate titles are rejected by the
// server, so re-running against a seeded board just reports skips.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type seedTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

var demoTasks = []seedTask{
	{Title: "Set up project board", Description: "Agree on columns and priorities", Status: "done", Priority: "high"},
	{Title: "Wire websocket reconnect", Description: "Clients should rejoin after network blips", Status: "in-progress", Priority: "high"},
	{Title: "Write onboarding doc", Description: "How to run the server locally", Status: "todo", Priority: "medium"},
	{Title: "Tune activity retention", Status: "todo", Priority: "low"},
	{Title: "Demo conflict resolution", Description: "Two browsers editing the same card", Status: "todo", Priority: "medium"},
}

func main() {
	addr := flag.String("addr", "http://localhost:12400", "boardsync server address")
	token := flag.String("token", "dev", "bearer token to authenticate with")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	created, skipped := 0, 0

	for _, task := range demoTasks {
		body, _ := json.Marshal(task)
		req, err := http.NewRequest(http.MethodPost, *addr+"/v1/tasks", bytes.NewReader(body))
		if err != nil {
			fmt.Fprintf(os.Stderr, "build request: %v\n", err)
			os.Exit(1)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+*token)

		resp, err := client.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed %q: %v\n", task.Title, err)
			os.Exit(1)
		}
		payload, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			created++
			fmt.Printf("created %q\n", task.Title)
		case http.StatusBadRequest:
			skipped++
			fmt.Printf("skipped %q (already present?)\n", task.Title)
		default:
			fmt.Fprintf(os.Stderr, "seed %q: HTTP %d: %s\n", task.Title, resp.StatusCode, payload)
			os.Exit(1)
		}
	}

	fmt.Printf("done: %d created, %d skipped\n", created, skipped)
}
