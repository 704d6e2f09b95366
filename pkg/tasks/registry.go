package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/geeth24/xpool-agent/pkg/logger"
)

// ErrNotTracked is returned when an operation names a task id the registry
// does not hold.
var ErrNotTracked = errors.New("task is not tracked")

const defaultPollInterval = 3 * time.Second

// Nominal percentages for tasks that have not reported real progress yet, so
// progress displays show motion immediately.
const (
	queuedPercent  = 5
	startedPercent = 20
)

// Registry tracks background tasks spawned by tool invocations. Each entry
// owns a recurring poll loop whose lifetime is tied 1:1 to registry
// membership: reaching a terminal status or being dismissed always stops the
// loop.
type Registry struct {
	mu       sync.RWMutex
	client   StatusClient
	interval time.Duration
	entries  map[string]*entry
	onUpdate func(TrackedTask)
}

type entry struct {
	task   TrackedTask
	cancel context.CancelFunc
}

// NewRegistry creates a registry polling through client at the given
// interval. A non-positive interval falls back to the default.
func NewRegistry(client StatusClient, interval time.Duration) *Registry {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &Registry{
		client:   client,
		interval: interval,
		entries:  make(map[string]*entry),
	}
}

// SetOnUpdate installs a callback invoked with a copy of the task after every
// state transition. Intended for the presentation layer; called outside the
// registry lock.
func (r *Registry) SetOnUpdate(fn func(TrackedTask)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUpdate = fn
}

// Register inserts a new queued entry for taskID and starts its poll loop.
// Registering an id that is already present is a no-op; a re-delivered
// tool_result must not spawn a duplicate tracker.
func (r *Registry) Register(taskID string, metadata Metadata) {
	if taskID == "" {
		return
	}

	r.mu.Lock()
	if _, exists := r.entries[taskID]; exists {
		r.mu.Unlock()
		return
	}

	now := time.Now()
	task := TrackedTask{
		ID:     taskID,
		Status: StatusQueued,
		Progress: Progress{
			Stage:      "queued",
			StageLabel: "Queued",
			Percent:    queuedPercent,
		},
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.entries[taskID] = &entry{task: task, cancel: cancel}
	onUpdate := r.onUpdate
	r.mu.Unlock()

	logger.Info("tracking task %s (tool=%s)", taskID, metadata.Tool)

	if onUpdate != nil {
		onUpdate(task)
	}

	go r.pollLoop(ctx, taskID)
}

// Poll performs a single status fetch for taskID and applies the result.
// Transport failures are recorded on the entry but are not terminal.
func (r *Registry) Poll(ctx context.Context, taskID string) (TrackedTask, error) {
	r.mu.RLock()
	e, exists := r.entries[taskID]
	var current TrackedTask
	if exists {
		current = e.task
	}
	r.mu.RUnlock()
	if !exists {
		return TrackedTask{}, ErrNotTracked
	}
	if current.Done() {
		return current, nil
	}

	statuses, err := r.client.TasksStatus(ctx, []string{taskID})
	if err != nil {
		r.recordPollError(taskID, err)
		return TrackedTask{}, fmt.Errorf("failed to poll task %s: %w", taskID, err)
	}

	status, ok := statuses[taskID]
	if !ok {
		err := fmt.Errorf("no status returned for task %s", taskID)
		r.recordPollError(taskID, err)
		return TrackedTask{}, err
	}

	return r.applyStatus(taskID, status)
}

// Dismiss removes the entry unconditionally and stops its poll loop. The
// underlying backend job is unaffected; dismissal is a tracking concern only.
func (r *Registry) Dismiss(taskID string) {
	r.mu.Lock()
	e, exists := r.entries[taskID]
	if exists {
		delete(r.entries, taskID)
	}
	r.mu.Unlock()

	if exists {
		e.cancel()
		logger.Debug("dismissed task %s", taskID)
	}
}

// Get returns a copy of the tracked task for taskID.
func (r *Registry) Get(taskID string) (TrackedTask, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[taskID]
	if !exists {
		return TrackedTask{}, false
	}
	return e.task, true
}

// Snapshot returns a copy of all tracked tasks ordered by registration time.
func (r *Registry) Snapshot() []TrackedTask {
	r.mu.RLock()
	out := make([]TrackedTask, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.task)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Active returns the number of tracked tasks that have not reached a
// terminal status.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.entries {
		if !e.task.Done() {
			count++
		}
	}
	return count
}

// Close stops every poll loop. Entries are left in place for inspection.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		e.cancel()
	}
}

func (r *Registry) pollLoop(ctx context.Context, taskID string) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task, err := r.Poll(ctx, taskID)
			if errors.Is(err, ErrNotTracked) {
				return
			}
			if err != nil {
				// Transient; keep polling on the next tick
				logger.Warn("poll failed for task %s: %v", taskID, err)
				continue
			}
			if task.Done() {
				r.stopLoop(taskID)
				return
			}
		}
	}
}

// stopLoop cancels the entry's context without removing it; terminal tasks
// stay visible until dismissed.
func (r *Registry) stopLoop(taskID string) {
	r.mu.RLock()
	e, exists := r.entries[taskID]
	r.mu.RUnlock()

	if exists {
		e.cancel()
	}
}

func (r *Registry) recordPollError(taskID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, exists := r.entries[taskID]; exists && !e.task.Done() {
		e.task.LastError = err.Error()
		e.task.UpdatedAt = time.Now()
	}
}

// applyStatus folds a backend status record into the tracked task. Terminal
// entries are never modified again.
func (r *Registry) applyStatus(taskID string, status TaskStatus) (TrackedTask, error) {
	r.mu.Lock()
	e, exists := r.entries[taskID]
	if !exists {
		r.mu.Unlock()
		return TrackedTask{}, ErrNotTracked
	}
	if e.task.Done() {
		task := e.task
		r.mu.Unlock()
		return task, nil
	}

	task := &e.task
	task.LastError = ""
	task.UpdatedAt = time.Now()

	switch status.Status {
	case "PENDING":
		task.Status = StatusQueued
		task.Progress = Progress{Stage: "queued", StageLabel: "Queued", Percent: queuedPercent}
	case "STARTED":
		task.Status = StatusRunning
		task.Progress = Progress{Stage: "searching", StageLabel: "Searching...", Percent: startedPercent}
	case "PROGRESS":
		task.Status = StatusInProgress
		task.Progress = Progress{
			Stage:      status.Stage,
			StageLabel: status.StageLabel,
			Percent:    clampPercent(status.ProgressPercent),
			Details:    status.Details,
		}
	case "SUCCESS":
		task.Status = StatusSucceeded
		task.Progress = Progress{Stage: "complete", StageLabel: "Complete", Percent: 100}
		task.Result = status.Result
	case "FAILURE":
		task.Status = StatusFailed
		task.Progress = Progress{Stage: "failed", StageLabel: "Failed", Percent: 0}
		task.Error = failureReason(status)
	default:
		task.Status = StatusRunning
		task.Progress = Progress{Stage: "processing", StageLabel: "Processing...", Percent: 50}
	}

	updated := *task
	onUpdate := r.onUpdate
	r.mu.Unlock()

	if updated.Done() {
		logger.Info("task %s reached %s", taskID, updated.Status)
	}
	if onUpdate != nil {
		onUpdate(updated)
	}

	return updated, nil
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func failureReason(status TaskStatus) string {
	if status.Error != "" {
		return status.Error
	}
	if msg, ok := status.Result["error"].(string); ok && msg != "" {
		return msg
	}
	return "Unknown error"
}
