// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v int64) *int64 { return &v }

func TestCheck(t *testing.T) {
	cases := []struct {
		name   string
		client *int64
		stored int64
		want   Decision
	}{
		{"no client version proceeds", nil, 7, Proceed},
		{"matching version proceeds", ptr(3), 3, Proceed},
		{"stale version conflicts", ptr(3), 4, Conflict},
		{"future version conflicts", ptr(5), 4, Conflict},
		{"initial version match", ptr(1), 1, Proceed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Check(tc.client, tc.stored))
		})
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "proceed", Proceed.String())
	assert.Equal(t, "conflict", Conflict.String())
}
