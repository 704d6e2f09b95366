package tasks

import (
	"context"
	"time"
)

// Status is the tracked lifecycle state of a background task.
//
// queued -> running -> in-progress* -> succeeded | failed
//
// succeeded and failed are terminal: once reached, the task is never polled
// again. Entries stay visible until explicitly dismissed.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusRunning    Status = "running"
	StatusInProgress Status = "in-progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status ends polling.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Progress mirrors the backend's progress payload for a task. Percent is
// clamped to [0,100] but is not monotonic across polls; the backend may
// report regressions.
type Progress struct {
	Stage      string         `json:"stage"`
	StageLabel string         `json:"stage_label"`
	Percent    int            `json:"percent"`
	Details    map[string]any `json:"details,omitempty"`
}

// Metadata is free-form context captured when a task is registered. It is
// immutable for the lifetime of the entry.
type Metadata struct {
	Tool  string `json:"tool,omitempty"`  // tool whose result spawned the task
	Query string `json:"query,omitempty"` // originating user request
	JobID string `json:"job_id,omitempty"`
}

// TrackedTask is one registered background job.
type TrackedTask struct {
	ID       string   `json:"id"`
	Status   Status   `json:"status"`
	Progress Progress `json:"progress"`

	// Result holds the terminal success payload; Error the terminal failure
	// reason. LastError records the most recent poll transport error, which
	// is non-terminal: polling continues on the next tick.
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	LastError string         `json:"last_error,omitempty"`

	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Done reports whether the task reached a terminal status.
func (t TrackedTask) Done() bool {
	return t.Status.Terminal()
}

// TaskStatus is the backend's status record for one task id, as returned by
// the task-status endpoint.
type TaskStatus struct {
	Status          string         `json:"status"` // PENDING, STARTED, PROGRESS, SUCCESS, FAILURE
	Stage           string         `json:"stage"`
	StageLabel      string         `json:"stage_label"`
	ProgressPercent int            `json:"progress_percent"`
	Details         map[string]any `json:"details,omitempty"`
	Result          map[string]any `json:"result,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// StatusClient fetches backend status for a batch of task ids.
type StatusClient interface {
	TasksStatus(ctx context.Context, ids []string) (map[string]TaskStatus, error)
}
