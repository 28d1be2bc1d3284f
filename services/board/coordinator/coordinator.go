// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package coordinator sequences every task mutation through the same
// pipeline: validate, guard the version, apply atomically, log the
// activity, broadcast.
//
// # Description
//
// The coordinator is the only writer of tasks and activities. Handlers
// never touch the stores directly; they translate HTTP into coordinator
// calls and map the returned error taxonomy onto status codes.
//
// Version guarding happens inside the store's transactional update
// closure, so the check and the write are one atomic step: a concurrent
// writer that commits first forces this transaction to retry against
// the fresh record, where the stale version fails the guard instead of
// silently overwriting.
//
// Activity logging is best-effort. A failed activity write is logged
// and the mutation still succeeds; the audit trail is advisory, the
// task store is authoritative.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kanbanlab/boardsync/services/board/conflict"
	"github.com/kanbanlab/boardsync/services/board/datatypes"
	"github.com/kanbanlab/boardsync/services/board/observability"
	"github.com/kanbanlab/boardsync/services/board/realtime"
	"github.com/kanbanlab/boardsync/services/board/store"
)

// HistoryLimit caps how many history entries a task exposes.
const HistoryLimit = 50

// Broadcaster fans an event out to every client of a board session.
// Satisfied by realtime.Hub.
type Broadcaster interface {
	Emit(session, event string, payload any)
}

// Config wires a Coordinator's collaborators.
type Config struct {
	Tasks      *store.TaskStore
	Activities *store.ActivityStore
	Users      *store.UserDirectory
	Bus        Broadcaster

	// Session is the board session all events broadcast to.
	Session string

	// Metrics may be nil.
	Metrics *observability.BoardMetrics

	// Log defaults to slog.Default().
	Log *slog.Logger
}

// Coordinator owns the mutation pipeline for one board.
type Coordinator struct {
	tasks   *store.TaskStore
	acts    *store.ActivityStore
	users   *store.UserDirectory
	bus     Broadcaster
	session string
	metrics *observability.BoardMetrics
	log     *slog.Logger
}

// New creates a Coordinator from cfg.
func New(cfg Config) *Coordinator {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		tasks:   cfg.Tasks,
		acts:    cfg.Activities,
		users:   cfg.Users,
		bus:     cfg.Bus,
		session: cfg.Session,
		metrics: cfg.Metrics,
		log:     log,
	}
}

// =============================================================================
// Task Mutations
// =============================================================================

// Create validates and persists a new task, logs the creation, and
// broadcasts taskCreated.
func (c *Coordinator) Create(ctx context.Context, actor datatypes.UserRef, req datatypes.CreateTaskRequest) (*datatypes.Task, error) {
	if datatypes.IsReservedTitle(req.Title) {
		return nil, validationf("title %q matches a board column name", req.Title)
	}

	status := datatypes.Status(req.Status)
	if req.Status == "" {
		status = datatypes.StatusTodo
	}
	priority := datatypes.Priority(req.Priority)
	if req.Priority == "" {
		priority = datatypes.PriorityMedium
	}

	assignee, err := c.resolveAssignee(ctx, req.AssignedTo)
	if err != nil {
		return nil, err
	}

	t := &datatypes.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		Priority:    priority,
		AssignedTo:  assignee,
		CreatedBy:   actor,
	}

	if err := c.tasks.Create(ctx, t); err != nil {
		if errors.Is(err, store.ErrDuplicateTitle) {
			c.metrics.RecordMutation(observability.OpCreate, "error")
			return nil, validationf("a task titled %q already exists", req.Title)
		}
		c.metrics.RecordMutation(observability.OpCreate, "error")
		return nil, fmt.Errorf("create task: %w", err)
	}
	c.metrics.RecordMutation(observability.OpCreate, "success")

	act := c.logActivity(ctx, datatypes.ActionCreated, t.ID, t.Title, actor,
		fmt.Sprintf("Created task with %s priority", t.Priority))
	c.emit(realtime.EventTaskCreated, t)
	c.emitActivity(act)
	return t, nil
}

// Update applies a partial update under the version guard.
//
// A nil req.Version skips the guard and the update proceeds
// unconditionally. On a version mismatch Update broadcasts the conflict
// envelope to the session and returns a *ConflictError carrying the
// same envelope; storage is not touched.
func (c *Coordinator) Update(ctx context.Context, actor datatypes.UserRef, id string, req datatypes.UpdateTaskRequest) (*datatypes.Task, error) {
	if req.Empty() {
		return nil, validationf("update carries no fields")
	}
	if req.Title != nil && datatypes.IsReservedTitle(*req.Title) {
		return nil, validationf("title %q matches a board column name", *req.Title)
	}

	var newAssignee *datatypes.UserRef
	if req.AssignedTo != nil {
		a, err := c.resolveAssignee(ctx, *req.AssignedTo)
		if err != nil {
			return nil, err
		}
		newAssignee = a
	}

	var prevStatus datatypes.Status
	updated, err := c.tasks.Update(ctx, id, func(t *datatypes.Task) error {
		if d := conflict.Check(req.Version, t.Version); d == conflict.Conflict {
			return &ConflictError{Envelope: c.buildEnvelope(t, req, actor)}
		}
		prevStatus = t.Status

		if req.Title != nil {
			t.Title = *req.Title
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.Status != nil {
			t.Status = datatypes.Status(*req.Status)
		}
		if req.Priority != nil {
			t.Priority = datatypes.Priority(*req.Priority)
		}
		if req.AssignedTo != nil {
			t.AssignedTo = newAssignee
		}
		t.UpdatedBy = &actor
		t.Version++
		return nil
	})
	if err != nil {
		return nil, c.mutationFailed(observability.OpUpdate, id, err)
	}
	c.metrics.RecordMutation(observability.OpUpdate, "success")

	action := datatypes.ActionUpdated
	details := "Updated task details"
	if req.Status != nil && updated.Status != prevStatus {
		action = datatypes.ActionMoved
		details = fmt.Sprintf("Moved from %s to %s", prevStatus, updated.Status)
	}

	act := c.logActivity(ctx, action, updated.ID, updated.Title, actor, details)
	c.emit(realtime.EventTaskUpdated, updated)
	c.emitActivity(act)
	return updated, nil
}

// Delete removes a task, logs the deletion, and broadcasts taskDeleted.
func (c *Coordinator) Delete(ctx context.Context, actor datatypes.UserRef, id string) (*datatypes.Task, error) {
	deleted, err := c.tasks.Delete(ctx, id)
	if err != nil {
		c.metrics.RecordMutation(observability.OpDelete, "error")
		return nil, err
	}
	c.metrics.RecordMutation(observability.OpDelete, "success")

	act := c.logActivity(ctx, datatypes.ActionDeleted, deleted.ID, deleted.Title, actor,
		"Deleted task")
	c.emit(realtime.EventTaskDeleted, deleted)
	c.emitActivity(act)
	return deleted, nil
}

// BulkUpdate applies the same partial update to every task in the set.
// Each task's version increments independently; there is no version
// guard on bulk operations. Missing ids are skipped. One activity entry
// covers the whole batch.
func (c *Coordinator) BulkUpdate(ctx context.Context, actor datatypes.UserRef, req datatypes.BulkUpdateRequest) ([]*datatypes.Task, error) {
	f := req.Updates
	if f.Status == nil && f.Priority == nil && f.AssignedTo == nil {
		return nil, validationf("bulk update carries no fields")
	}

	var newAssignee *datatypes.UserRef
	if f.AssignedTo != nil {
		a, err := c.resolveAssignee(ctx, *f.AssignedTo)
		if err != nil {
			return nil, err
		}
		newAssignee = a
	}

	var updated []*datatypes.Task
	for _, id := range req.TaskIDs {
		t, err := c.tasks.Update(ctx, id, func(t *datatypes.Task) error {
			if f.Status != nil {
				t.Status = datatypes.Status(*f.Status)
			}
			if f.Priority != nil {
				t.Priority = datatypes.Priority(*f.Priority)
			}
			if f.AssignedTo != nil {
				t.AssignedTo = newAssignee
			}
			t.UpdatedBy = &actor
			t.Version++
			return nil
		})
		if errors.Is(err, store.ErrTaskNotFound) {
			c.log.Warn("bulk update skipping missing task", "task", id)
			continue
		}
		if err != nil {
			c.metrics.RecordMutation(observability.OpBulkUpdate, "error")
			return nil, fmt.Errorf("bulk update task %s: %w", id, err)
		}
		updated = append(updated, t)
	}
	if len(updated) == 0 {
		c.metrics.RecordMutation(observability.OpBulkUpdate, "error")
		return nil, store.ErrTaskNotFound
	}
	c.metrics.RecordMutation(observability.OpBulkUpdate, "success")

	act := c.logActivity(ctx, datatypes.ActionBulkUpdated,
		updated[0].ID, fmt.Sprintf("%d tasks", len(updated)), actor,
		fmt.Sprintf("Bulk updated %d tasks", len(updated)))
	for _, t := range updated {
		c.emit(realtime.EventTaskUpdated, t)
	}
	c.emitActivity(act)
	return updated, nil
}

// Reassign changes only the assignee. An empty AssignedTo unassigns.
func (c *Coordinator) Reassign(ctx context.Context, actor datatypes.UserRef, id string, req datatypes.ReassignTaskRequest) (*datatypes.Task, error) {
	assignee, err := c.resolveAssignee(ctx, req.AssignedTo)
	if err != nil {
		return nil, err
	}

	var prevName string
	updated, err := c.tasks.Update(ctx, id, func(t *datatypes.Task) error {
		prevName = assigneeName(t.AssignedTo)
		t.AssignedTo = assignee
		t.UpdatedBy = &actor
		t.Version++
		return nil
	})
	if err != nil {
		c.metrics.RecordMutation(observability.OpReassign, "error")
		return nil, err
	}
	c.metrics.RecordMutation(observability.OpReassign, "success")

	act := c.logActivity(ctx, datatypes.ActionReassigned, updated.ID, updated.Title, actor,
		fmt.Sprintf("Reassigned from %s to %s", prevName, assigneeName(assignee)))
	c.emit(realtime.EventTaskUpdated, updated)
	c.emitActivity(act)
	return updated, nil
}

// SmartAssign assigns the task to the user with the fewest active
// (todo, in-progress) tasks. Ties break toward the user who entered the
// directory first. Returns ErrNoUsers when the directory is empty.
func (c *Coordinator) SmartAssign(ctx context.Context, actor datatypes.UserRef, id string) (*datatypes.Task, error) {
	users, err := c.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		c.metrics.RecordMutation(observability.OpSmartAssign, "error")
		return nil, ErrNoUsers
	}

	counts, err := c.tasks.ActiveCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active tasks: %w", err)
	}

	chosen := users[0]
	for _, u := range users[1:] {
		if counts[u.ID] < counts[chosen.ID] {
			chosen = u
		}
	}

	updated, err := c.tasks.Update(ctx, id, func(t *datatypes.Task) error {
		a := chosen
		t.AssignedTo = &a
		t.UpdatedBy = &actor
		t.Version++
		return nil
	})
	if err != nil {
		c.metrics.RecordMutation(observability.OpSmartAssign, "error")
		return nil, err
	}
	c.metrics.RecordMutation(observability.OpSmartAssign, "success")

	act := c.logActivity(ctx, datatypes.ActionAssigned, updated.ID, updated.Title, actor,
		fmt.Sprintf("Smart assigned to %s (%d active tasks)", chosen.DisplayName(), counts[chosen.ID]))
	c.emit(realtime.EventTaskUpdated, updated)
	c.emitActivity(act)
	return updated, nil
}

// ResolveConflict applies a client's chosen resolution for a previously
// broadcast conflict. The resolved record's version lands strictly
// above both snapshot versions (and above the stored version, if yet
// another write slipped in since the envelope was built).
func (c *Coordinator) ResolveConflict(ctx context.Context, actor datatypes.UserRef, id string, req datatypes.ResolveConflictRequest) (*datatypes.Task, error) {
	if !req.Resolution.Valid() {
		return nil, validationf("unknown resolution strategy %q", req.Resolution)
	}

	resolved, err := conflict.Resolve(req.Resolution, req.CurrentVersion, req.IncomingVersion)
	if err != nil {
		return nil, validationf("%s", err)
	}

	updated, err := c.tasks.Update(ctx, id, func(t *datatypes.Task) error {
		version := resolved.Version
		if version <= t.Version {
			version = t.Version + 1
		}
		t.Title = resolved.Title
		t.Description = resolved.Description
		t.Status = resolved.Status
		t.Priority = resolved.Priority
		t.AssignedTo = resolved.AssignedTo
		t.UpdatedBy = &actor
		t.Version = version
		return nil
	})
	if err != nil {
		c.metrics.RecordMutation(observability.OpResolveConflict, "error")
		return nil, err
	}
	c.metrics.RecordMutation(observability.OpResolveConflict, "success")
	c.metrics.RecordConflictResolved(string(req.Resolution))

	act := c.logActivity(ctx, datatypes.ActionResolvedConflict, updated.ID, updated.Title, actor,
		fmt.Sprintf("Resolved conflict using %s strategy", req.Resolution))
	c.emit(realtime.EventTaskUpdated, updated)
	c.emitActivity(act)
	return updated, nil
}

// =============================================================================
// Reads
// =============================================================================

// Get returns one task.
func (c *Coordinator) Get(ctx context.Context, id string) (*datatypes.Task, error) {
	return c.tasks.Get(ctx, id)
}

// List returns all tasks, newest first.
func (c *Coordinator) List(ctx context.Context) ([]*datatypes.Task, error) {
	return c.tasks.List(ctx)
}

// History returns a task's activity entries, newest first, capped at
// HistoryLimit.
func (c *Coordinator) History(ctx context.Context, taskID string, limit int) ([]*datatypes.Activity, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	return c.acts.ListByTask(ctx, taskID, limit)
}

// RecentActivities returns one page of the board-wide feed plus the
// total entry count.
func (c *Coordinator) RecentActivities(ctx context.Context, limit, offset int) ([]*datatypes.Activity, int, error) {
	return c.acts.ListRecent(ctx, limit, offset)
}

// Users returns the directory in first-encountered order.
func (c *Coordinator) Users(ctx context.Context) ([]datatypes.UserRef, error) {
	return c.users.List(ctx)
}

// User returns one directory entry.
func (c *Coordinator) User(ctx context.Context, id string) (*datatypes.UserRef, error) {
	return c.users.Get(ctx, id)
}

// PurgeActivities deletes activity entries older than cutoff and
// records the count.
func (c *Coordinator) PurgeActivities(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	n, err := c.acts.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	c.metrics.RecordActivitiesPurged(n)
	if n > 0 {
		c.log.Info("purged old activities", "count", n, "olderThanDays", olderThanDays)
	}
	return n, nil
}

// =============================================================================
// Internals
// =============================================================================

// buildEnvelope snapshots a guard rejection. User1 is the author of the
// stored version ("Unknown" when the task has only its creation write),
// User2 the losing writer.
func (c *Coordinator) buildEnvelope(t *datatypes.Task, req datatypes.UpdateTaskRequest, actor datatypes.UserRef) datatypes.ConflictEnvelope {
	user1 := "Unknown"
	if t.UpdatedBy != nil {
		user1 = t.UpdatedBy.DisplayName()
	}
	return datatypes.ConflictEnvelope{
		TaskID:          t.ID,
		TaskTitle:       t.Title,
		CurrentVersion:  t.Clone(),
		IncomingVersion: req,
		User1:           user1,
		User2:           actor.DisplayName(),
	}
}

// mutationFailed classifies an update error, recording metrics and
// broadcasting the conflict envelope for guard rejections.
func (c *Coordinator) mutationFailed(op observability.Operation, id string, err error) error {
	var ce *ConflictError
	if errors.As(err, &ce) {
		c.metrics.RecordMutation(op, "conflict")
		c.metrics.RecordConflictDetected()
		c.log.Info("version conflict detected",
			"task", id, "user1", ce.Envelope.User1, "user2", ce.Envelope.User2)
		c.emit(realtime.EventConflict, ce.Envelope)
		return ce
	}
	if errors.Is(err, store.ErrDuplicateTitle) {
		c.metrics.RecordMutation(op, "error")
		return validationf("a task with that title already exists")
	}
	c.metrics.RecordMutation(op, "error")
	return err
}

// resolveAssignee maps a user id to its directory snapshot. Empty id
// means unassigned.
func (c *Coordinator) resolveAssignee(ctx context.Context, id string) (*datatypes.UserRef, error) {
	if id == "" {
		return nil, nil
	}
	u, err := c.users.Get(ctx, id)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, validationf("assignee %q is not a known user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve assignee: %w", err)
	}
	return u, nil
}

// logActivity appends an audit entry, best-effort. Returns nil when the
// write failed; the caller skips the activityUpdated broadcast.
func (c *Coordinator) logActivity(ctx context.Context, action datatypes.Action, taskID, taskTitle string, actor datatypes.UserRef, details string) *datatypes.Activity {
	a := &datatypes.Activity{
		Action:    action,
		TaskID:    taskID,
		TaskTitle: taskTitle,
		User:      actor,
		Details:   details,
	}
	if err := c.acts.Append(ctx, a); err != nil {
		c.log.Warn("failed to record activity",
			"action", action, "task", taskID, "error", err)
		return nil
	}
	return a
}

func (c *Coordinator) emit(event string, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Emit(c.session, event, payload)
}

func (c *Coordinator) emitActivity(a *datatypes.Activity) {
	if a != nil {
		c.emit(realtime.EventActivityUpdated, a)
	}
}

func assigneeName(u *datatypes.UserRef) string {
	if u == nil {
		return "Unassigned"
	}
	return u.DisplayName()
}
