// internal/ingest/orchestrator.go

// Package ingest owns the set of in-flight upload tasks: it validates a
// submitted batch, fans the accepted files out through the configured
// adapter, tracks per-task progress and terminal state, and appends each
// stored asset to the gallery.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/merchware/media-ingest/internal/deliver"
	"github.com/merchware/media-ingest/internal/gallery"
	"github.com/merchware/media-ingest/internal/upload"
	"github.com/merchware/media-ingest/internal/validate"
	"github.com/merchware/media-ingest/pkg/schema"
)

// ErrTooManyFiles rejects a whole batch that would push the gallery past its
// capacity. No tasks are created for any file in the batch.
var ErrTooManyFiles = errors.New("too many files")

// Publisher mirrors pipeline events onto a message bus for back-office
// consumers. A nil publisher disables mirroring.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// Config tunes the orchestrator. Zero values select the documented defaults.
type Config struct {
	// MaxFiles caps gallery size per product; 0 means the gallery capacity.
	MaxFiles int
	// MaxConcurrent bounds simultaneous adapter calls; 0 launches every
	// accepted file at once, matching the storefront behaviour.
	MaxConcurrent int
	// ProgressInterval paces the synthetic progress ticks emitted while the
	// adapter call is in flight; 0 means 200ms.
	ProgressInterval time.Duration
	// EventSubject is the bus subject prefix; empty means "media.ingest".
	EventSubject string

	// Per-upload request parameters passed to the adapter.
	Folder  string
	Tags    []string
	Context map[string]string
	Eager   []string

	Limits validate.Limits

	Logger    *slog.Logger
	Publisher Publisher
	// OnUpdate, when set, receives a snapshot after every task state or
	// progress change. Called without internal locks held.
	OnUpdate func(TaskSnapshot)
}

// Rejection reports one file refused by the validator. Rejected files never
// become tasks.
type Rejection struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// BatchReceipt is returned by Submit: which files became tasks and which were
// rejected individually.
type BatchReceipt struct {
	BatchID  string      `json:"batch_id"`
	TaskIDs  []string    `json:"task_ids"`
	Rejected []Rejection `json:"rejected"`
}

// Stats is the aggregate progress counter across all tasks. Canceled tasks
// are counted on their own: the user asked for them to stop, which is not a
// failure.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`
}

type batchState struct {
	id        string
	submitted int
	rejected  int
	remaining int
	completed int
	failed    int
	started   time.Time
}

// Orchestrator coordinates upload tasks for one gallery.
type Orchestrator struct {
	cfg     Config
	adapter upload.Adapter
	deriver deliver.Deriver
	gallery *gallery.Gallery
	logger  *slog.Logger
	sem     *semaphore.Weighted

	mu      sync.Mutex
	tasks   map[string]*task
	batches map[string]*batchState
	seq     int

	wg sync.WaitGroup
}

// New wires an orchestrator against the chosen adapter, deriver and gallery.
func New(adapter upload.Adapter, deriver deliver.Deriver, g *gallery.Gallery, cfg Config) *Orchestrator {
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = g.MaxItems()
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 200 * time.Millisecond
	}
	if cfg.EventSubject == "" {
		cfg.EventSubject = "media.ingest"
	}
	if cfg.Limits.MaxBytes == 0 {
		cfg.Limits = validate.DefaultLimits()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		cfg:     cfg,
		adapter: adapter,
		deriver: deriver,
		gallery: g,
		logger:  logger,
		tasks:   map[string]*task{},
		batches: map[string]*batchState{},
	}
	if cfg.MaxConcurrent > 0 {
		o.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return o
}

// Submit validates a batch of candidate files and launches one concurrent
// upload task per accepted file. A batch that would exceed the gallery
// capacity is rejected whole with ErrTooManyFiles and creates no tasks;
// individual validation failures are reported per file in the receipt and do
// not block their siblings.
func (o *Orchestrator) Submit(ctx context.Context, paths []string) (*BatchReceipt, error) {
	if len(paths) == 0 {
		return &BatchReceipt{BatchID: uuid.NewString()}, nil
	}

	current := o.gallery.Len()
	if current+len(paths) > o.cfg.MaxFiles {
		return nil, fmt.Errorf("%w: %d selected with %d already stored exceeds the %d image limit",
			ErrTooManyFiles, len(paths), current, o.cfg.MaxFiles)
	}

	receipt := &BatchReceipt{BatchID: uuid.NewString()}
	var accepted []*task

	o.mu.Lock()
	for _, path := range paths {
		if err := o.cfg.Limits.Check(path); err != nil {
			var rej *validate.RejectionError
			reason := err.Error()
			if errors.As(err, &rej) {
				reason = rej.Reason
			}
			receipt.Rejected = append(receipt.Rejected, Rejection{Path: path, Reason: reason})
			o.logger.Warn("file rejected", "path", path, "reason", reason)
			continue
		}
		o.seq++
		t := &task{
			id:       uuid.NewString(),
			batchID:  receipt.BatchID,
			path:     path,
			filename: filepath.Base(path),
			seq:      o.seq,
			status:   TaskPending,
		}
		o.tasks[t.id] = t
		receipt.TaskIDs = append(receipt.TaskIDs, t.id)
		accepted = append(accepted, t)
	}
	o.batches[receipt.BatchID] = &batchState{
		id:        receipt.BatchID,
		submitted: len(paths),
		rejected:  len(receipt.Rejected),
		remaining: len(accepted),
		started:   time.Now(),
	}
	o.mu.Unlock()

	o.logger.Info("batch submitted",
		"batch_id", receipt.BatchID,
		"selected", len(paths),
		"accepted", len(accepted),
		"rejected", len(receipt.Rejected))

	for _, t := range accepted {
		o.emitStage(t, schema.StageAccepted, "")
		o.wg.Add(1)
		go o.run(ctx, t)
	}
	if len(accepted) == 0 {
		o.finishBatchIfDone(receipt.BatchID)
	}
	return receipt, nil
}

// Retry re-runs a failed task with the same validator-approved file. The task
// keeps its identity, so a later success cannot create a duplicate gallery
// entry.
func (o *Orchestrator) Retry(ctx context.Context, taskID string) error {
	o.mu.Lock()
	t, ok := o.tasks[taskID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("unknown task %s", taskID)
	}
	if t.status != TaskFailed {
		status := t.status
		o.mu.Unlock()
		return fmt.Errorf("task %s is %s, only failed tasks can be retried", taskID, status)
	}
	t.status = TaskPending
	t.err = nil
	t.progress = 0
	t.canceled = false
	// Re-arm batch accounting while the batch is still open, so BatchDone
	// waits for the retried outcome instead of counting the task twice. Once
	// the summary is published it stays final.
	if b, ok := o.batches[t.batchID]; ok {
		b.remaining++
		b.failed--
		t.settled = false
	}
	o.mu.Unlock()

	o.logger.Info("retrying task", "task_id", taskID)
	o.emitStage(t, schema.StageRetrying, "")
	o.wg.Add(1)
	go o.run(ctx, t)
	return nil
}

// Cancel marks a task so that its eventual completion is discarded, and
// aborts the in-flight request when one is outstanding. Canceling a terminal
// task is a no-op.
func (o *Orchestrator) Cancel(taskID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[taskID]
	if !ok {
		return fmt.Errorf("unknown task %s", taskID)
	}
	if t.status.Terminal() {
		return nil
	}
	t.canceled = true
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// Task returns the snapshot of one task.
func (o *Orchestrator) Task(taskID string) (TaskSnapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[taskID]
	if !ok {
		return TaskSnapshot{}, false
	}
	return t.snapshot(), true
}

// Tasks returns snapshots of every known task in submission order.
func (o *Orchestrator) Tasks() []TaskSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	ordered := make([]*task, 0, len(o.tasks))
	for _, t := range o.tasks {
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })
	out := make([]TaskSnapshot, len(ordered))
	for i, t := range ordered {
		out[i] = t.snapshot()
	}
	return out
}

// Stats aggregates terminal counts across all tasks.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Stats{Total: len(o.tasks)}
	for _, t := range o.tasks {
		switch t.status {
		case TaskSucceeded:
			s.Completed++
		case TaskFailed:
			s.Failed++
		case TaskCanceled:
			s.Canceled++
		}
	}
	return s
}

// Wait blocks until every launched task reached a terminal state.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) run(ctx context.Context, t *task) {
	defer o.wg.Done()

	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			o.finish(t, nil, fmt.Errorf("acquire upload slot: %w", err))
			return
		}
		defer o.sem.Release(1)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if t.canceled {
		o.mu.Unlock()
		o.finish(t, nil, context.Canceled)
		return
	}
	t.cancel = cancel
	t.status = TaskUploading
	t.progress = 0
	snap := t.snapshot()
	o.mu.Unlock()
	o.notify(snap)
	o.emitStage(t, schema.StageUploading, "")

	stopTicks := make(chan struct{})
	ticksDone := make(chan struct{})
	go o.tickProgress(t, stopTicks, ticksDone)

	desc, err := o.adapter.Upload(taskCtx, t.path, upload.Options{
		Folder:  o.cfg.Folder,
		Tags:    o.cfg.Tags,
		Context: o.cfg.Context,
		Eager:   o.cfg.Eager,
	})
	close(stopTicks)
	// Drain the ticker before settling so progress callbacks never trail the
	// terminal snapshot.
	<-ticksDone

	o.finish(t, desc, err)
}

// tickProgress emits synthetic, monotonically increasing progress while the
// adapter call is in flight, capped below 100 so the bar never completes
// before the request settles.
func (o *Orchestrator) tickProgress(t *task, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(o.cfg.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			o.mu.Lock()
			if t.status != TaskUploading || t.progress >= 90 {
				o.mu.Unlock()
				continue
			}
			t.progress += 10
			snap := t.snapshot()
			o.mu.Unlock()
			o.notify(snap)
		}
	}
}

// finish applies the terminal transition. Completions are attributed by task
// identity, and a canceled task's late success is discarded before any
// gallery mutation. Batch accounting happens in the same critical section as
// the status change, so a prompt Retry cannot race the settlement.
func (o *Orchestrator) finish(t *task, desc *upload.AssetDescriptor, err error) {
	o.mu.Lock()
	if t.canceled {
		t.status = TaskCanceled
		if err == nil {
			o.logger.Info("discarding late completion of canceled task", "task_id", t.id)
		}
		snap := t.snapshot()
		done := o.settleBatchLocked(t, false)
		o.mu.Unlock()
		o.notify(snap)
		o.emitStage(t, schema.StageCanceled, "")
		o.publishBatch(done)
		return
	}

	if err != nil {
		t.status = TaskFailed
		t.err = err
		snap := t.snapshot()
		done := o.settleBatchLocked(t, false)
		o.mu.Unlock()
		o.logger.Warn("upload failed", "task_id", t.id, "file", t.filename, "err", err)
		o.notify(snap)
		o.emitStage(t, schema.StageFailed, classifyFailure(err))
		o.publishBatch(done)
		return
	}

	t.status = TaskSucceeded
	t.progress = 100
	t.descriptor = desc
	snap := t.snapshot()
	o.mu.Unlock()

	urls := o.deriver.Derive(desc.RemoteID)
	if _, err := o.gallery.Append(gallery.Item{TaskID: t.id, Descriptor: *desc, URLs: urls}); err != nil {
		// Capacity is pre-checked at submit; hitting this means a concurrent
		// writer filled the gallery meanwhile.
		o.mu.Lock()
		t.status = TaskFailed
		t.err = err
		snap = t.snapshot()
		done := o.settleBatchLocked(t, false)
		o.mu.Unlock()
		o.logger.Warn("gallery append failed", "task_id", t.id, "err", err)
		o.notify(snap)
		o.emitStage(t, schema.StageFailed, schema.FailureTypePermanent)
		o.publishBatch(done)
		return
	}

	o.mu.Lock()
	done := o.settleBatchLocked(t, true)
	o.mu.Unlock()

	o.logger.Info("upload succeeded",
		"task_id", t.id,
		"file", t.filename,
		"remote_id", desc.RemoteID,
		"bytes", desc.Bytes)
	o.notify(snap)
	o.emitStage(t, schema.StageSucceeded, "")
	o.publish(".assets", schema.AssetStored{
		TaskID:      t.id,
		RemoteID:    desc.RemoteID,
		SecureURL:   desc.SecureURL,
		Width:       desc.Width,
		Height:      desc.Height,
		Bytes:       desc.Bytes,
		Format:      desc.Format,
		DerivedURLs: urls.Map(),
		HappenedAt:  time.Now().Unix(),
	})
	o.publishBatch(done)
}

// settleBatchLocked counts one terminal outcome into the task's batch,
// exactly once per arming, and returns the batch when this was its last
// outstanding task. Caller holds o.mu and publishes the returned summary
// after unlocking.
func (o *Orchestrator) settleBatchLocked(t *task, succeeded bool) *batchState {
	if t.settled {
		return nil
	}
	t.settled = true
	b, ok := o.batches[t.batchID]
	if !ok {
		return nil
	}
	b.remaining--
	if succeeded {
		b.completed++
	} else {
		b.failed++
	}
	if b.remaining > 0 {
		return nil
	}
	delete(o.batches, t.batchID)
	return b
}

func (o *Orchestrator) finishBatchIfDone(batchID string) {
	o.mu.Lock()
	b, ok := o.batches[batchID]
	if !ok || b.remaining > 0 {
		o.mu.Unlock()
		return
	}
	delete(o.batches, batchID)
	o.mu.Unlock()
	o.publishBatch(b)
}

// publishBatch emits the batch summary; a nil batch means the batch is not
// finished yet.
func (o *Orchestrator) publishBatch(b *batchState) {
	if b == nil {
		return
	}
	o.logger.Info("batch done",
		"batch_id", b.id,
		"completed", b.completed,
		"failed", b.failed,
		"rejected", b.rejected,
		"duration_ms", time.Since(b.started).Milliseconds())
	o.publish(".batches", schema.BatchDone{
		BatchID:          b.id,
		Submitted:        b.submitted,
		Rejected:         b.rejected,
		Completed:        b.completed,
		Failed:           b.failed,
		ProcessingTimeMs: time.Since(b.started).Milliseconds(),
		HappenedAt:       time.Now().Unix(),
	})
}

func (o *Orchestrator) notify(snap TaskSnapshot) {
	if o.cfg.OnUpdate != nil {
		o.cfg.OnUpdate(snap)
	}
}

// emitStage mirrors stage changes (not progress ticks) onto the bus.
func (o *Orchestrator) emitStage(t *task, stage schema.TaskStage, failure schema.FailureType) {
	o.mu.Lock()
	event := schema.TaskEvent{
		TaskID:      t.id,
		Filename:    t.filename,
		Stage:       stage,
		Progress:    t.progress,
		FailureType: failure,
		HappenedAt:  time.Now().Unix(),
	}
	if t.err != nil {
		event.Error = t.err.Error()
	}
	o.mu.Unlock()
	o.publish(".tasks", event)
}

func (o *Orchestrator) publish(suffix string, v any) {
	if o.cfg.Publisher == nil {
		return
	}
	subject := o.cfg.EventSubject + suffix
	if err := o.cfg.Publisher.PublishJSON(subject, v); err != nil {
		o.logger.Error("publish event failed", "subject", subject, "err", err)
	}
}

// classifyFailure buckets adapter errors the way the retry affordance needs:
// service-side 5xx and transport problems are retryable, 4xx rejections are
// permanent.
func classifyFailure(err error) schema.FailureType {
	var reqErr *upload.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.StatusCode >= 500 {
			return schema.FailureTypeRetryable
		}
		return schema.FailureTypePermanent
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return schema.FailureTypeRetryable
	}
	msg := err.Error()
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporary failure") {
		return schema.FailureTypeRetryable
	}
	return schema.FailureTypePermanent
}
