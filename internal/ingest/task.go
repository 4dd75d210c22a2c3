// internal/ingest/task.go
package ingest

import (
	"context"

	"github.com/merchware/media-ingest/internal/upload"
)

// TaskStatus is the lifecycle state of one upload task. Transitions are
// append-only except Failed -> Uploading on retry.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskUploading TaskStatus = "uploading"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskCanceled  TaskStatus = "canceled"
)

// Terminal reports whether no further transition can happen without an
// explicit retry.
func (s TaskStatus) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed || s == TaskCanceled
}

// task is the mutable record tracking one file's journey. All fields are
// guarded by the orchestrator mutex.
type task struct {
	id       string
	batchID  string
	path     string
	filename string
	seq      int

	status     TaskStatus
	progress   int
	err        error
	descriptor *upload.AssetDescriptor

	// canceled marks a task whose result must be discarded even if the
	// in-flight adapter call still settles successfully.
	canceled bool
	cancel   context.CancelFunc

	// settled records that this task was counted into its batch summary.
	// Retry clears it again while the batch is still open, so each task
	// contributes exactly one outcome to BatchDone.
	settled bool
}

// TaskSnapshot is the caller-visible copy of a task's state.
type TaskSnapshot struct {
	ID         string                  `json:"id"`
	Filename   string                  `json:"filename"`
	Status     TaskStatus              `json:"status"`
	Progress   int                     `json:"progress"`
	Error      string                  `json:"error,omitempty"`
	Descriptor *upload.AssetDescriptor `json:"descriptor,omitempty"`
}

func (t *task) snapshot() TaskSnapshot {
	snap := TaskSnapshot{
		ID:       t.id,
		Filename: t.filename,
		Status:   t.status,
		Progress: t.progress,
	}
	if t.err != nil {
		snap.Error = t.err.Error()
	}
	if t.descriptor != nil {
		d := *t.descriptor
		snap.Descriptor = &d
	}
	return snap
}
