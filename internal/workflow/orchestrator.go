// internal/workflow/orchestrator.go
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snapq/capture-coordinator/internal/remote"
	"github.com/snapq/capture-coordinator/pkg/schema"
)

// Messenger delivers control messages to a tab's UI. Deliver retries
// internally and reports success; Notify is fire-and-forget.
type Messenger interface {
	Deliver(ctx context.Context, tabID string, env schema.Envelope) bool
	Notify(tabID string, env schema.Envelope)
}

// Navigator drives a tab to a URL and returns once the page has loaded.
type Navigator interface {
	Navigate(ctx context.Context, tabID, url string) error
}

// Capturer snapshots the visible viewport of a tab.
type Capturer interface {
	CaptureVisible(ctx context.Context, tabID string) ([]byte, error)
}

// JobClient is the boundary to the remote job-queue service.
type JobClient interface {
	FetchJobs(ctx context.Context) ([]schema.Job, error)
	Upload(ctx context.Context, job schema.Job, rect schema.Rect, image []byte) error
}

// CropFunc crops a captured frame to a selection rectangle.
type CropFunc func(frame []byte, rect schema.Rect) ([]byte, error)

// Recorder receives run lifecycle events for external observability.
// May be nil.
type Recorder interface {
	RunEvent(ev schema.RunEvent)
	RunDone(done schema.RunDone)
}

// Deps gathers the orchestrator's collaborators.
type Deps struct {
	Messenger Messenger
	Navigator Navigator
	Capturer  Capturer
	Remote    JobClient
	Crop      CropFunc
	Policy    *AllowPolicy
	Recorder  Recorder
	Logger    *slog.Logger
}

// Orchestrator owns the workflow state machine. All signals funnel through a
// single goroutine (Run), so handlers never race: out-of-order or duplicate
// signals are rejected by the status and sender guards, not by locks.
type Orchestrator struct {
	deps    Deps
	logger  *slog.Logger
	signals chan Signal

	// Owned by the Run goroutine.
	state State
	run   run
}

// New builds an Orchestrator in the idle state.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:    deps,
		logger:  deps.Logger,
		signals: make(chan Signal, 64),
		state:   State{Status: StatusIdle},
	}
}

// Run processes signals in arrival order until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-o.signals:
			o.handle(ctx, sig)
		}
	}
}

// Dispatch converts a UI frame into a signal and enqueues it. Implements the
// hub's Dispatcher. Never blocks the connection's read pump.
func (o *Orchestrator) Dispatch(tabID string, env schema.Envelope) {
	sig, ok := signalFromEnvelope(tabID, env)
	if !ok {
		o.logger.Debug("dropping unsupported ui frame", "type", env.Type, "tab_id", tabID)
		return
	}
	select {
	case o.signals <- sig:
	default:
		o.logger.Warn("signal queue full, dropping", "type", env.Type, "tab_id", tabID)
	}
}

func (o *Orchestrator) handle(ctx context.Context, sig Signal) {
	switch s := sig.(type) {
	case Start:
		o.handleStart(ctx, s)
	case Save:
		o.handleSave(ctx, s)
	case Cancel:
		o.handleCancel(s)
	case Ready:
		o.handleReady(ctx, s)
	case Hide:
		o.handleHide(s)
	}
}

// handleStart begins a run: fetch the queue, then drive the first job.
// Ignored unless idle and a tab id is supplied.
func (o *Orchestrator) handleStart(ctx context.Context, s Start) {
	if o.state.Status != StatusIdle || s.TabID == "" {
		o.logger.Debug("ignoring start signal", "status", o.state.Status, "tab_id", s.TabID)
		return
	}

	o.state = State{Status: StatusIdle, ActiveTabID: s.TabID}
	o.run = run{id: uuid.NewString(), startedAt: time.Now()}
	o.logger.Info("run started", "run_id", o.run.id, "tab_id", s.TabID)

	o.setStatus(StatusFetching, "Fetching capture jobs…")

	jobs, err := o.deps.Remote.FetchJobs(ctx)
	if err != nil {
		o.fail(fmt.Errorf("fetch jobs: %w", err))
		return
	}
	if len(jobs) == 0 {
		o.fail(ErrEmptyQueue)
		return
	}

	o.state.Jobs = jobs
	o.state.Index = 0
	o.advance(ctx)
}

// advance drives the job at the cursor, or finishes the run when the queue is
// exhausted.
func (o *Orchestrator) advance(ctx context.Context) {
	job, ok := remote.JobAt(o.state.Jobs, o.state.Index)
	if !ok {
		o.complete()
		return
	}

	o.setStatus(StatusNavigating, fmt.Sprintf("Opening %s (%d/%d)…", job.URL, o.state.Index+1, len(o.state.Jobs)))

	if !o.deps.Policy.Allows(job.URL) {
		o.fail(fmt.Errorf("%w: %s", ErrURLNotAllowed, job.URL))
		return
	}
	if err := o.deps.Navigator.Navigate(ctx, o.state.ActiveTabID, job.URL); err != nil {
		o.fail(fmt.Errorf("navigate to %s: %w", job.URL, err))
		return
	}

	// Delivery failure is soft: the UI can still catch up via ui-ready.
	if !o.deps.Messenger.Deliver(ctx, o.state.ActiveTabID, schema.BeginSelection()) {
		o.logger.Warn("begin-selection not delivered", "run_id", o.run.id, "job_id", job.ID)
	}

	o.setStatus(StatusAwaitingSelection, "Draw a rectangle to capture.")
}

// handleSave captures, crops, uploads, and moves the cursor. Ignored unless
// awaiting a selection and sent from the active tab; the status change makes
// duplicate saves no-ops.
func (o *Orchestrator) handleSave(ctx context.Context, s Save) {
	if o.state.Status != StatusAwaitingSelection || s.TabID != o.state.ActiveTabID {
		o.logger.Debug("ignoring save signal", "status", o.state.Status, "tab_id", s.TabID)
		return
	}

	job, ok := remote.JobAt(o.state.Jobs, o.state.Index)
	if !ok {
		o.fail(fmt.Errorf("job cursor %d out of range", o.state.Index))
		return
	}

	o.setStatus(StatusUploading, "Uploading capture…")

	frame, err := o.deps.Capturer.CaptureVisible(ctx, s.TabID)
	if err != nil {
		o.fail(fmt.Errorf("capture tab: %w", err))
		return
	}
	img, err := o.deps.Crop(frame, s.Rect)
	if err != nil {
		o.fail(fmt.Errorf("crop capture: %w", err))
		return
	}
	if err := o.deps.Remote.Upload(ctx, job, s.Rect, img); err != nil {
		o.fail(fmt.Errorf("upload capture: %w", err))
		return
	}

	o.logger.Info("capture uploaded", "run_id", o.run.id, "job_id", job.ID, "index", o.state.Index)
	o.state.Index++
	o.advance(ctx)
}

// handleCancel aborts the active run. Ignored when idle or from a stale tab.
func (o *Orchestrator) handleCancel(s Cancel) {
	if o.state.Status == StatusIdle || s.TabID != o.state.ActiveTabID {
		return
	}
	o.logger.Info("run cancelled", "run_id", o.run.id, "tab_id", s.TabID)
	o.finish("Capture cancelled.", fmt.Errorf("cancelled by user"))
}

// handleReady re-syncs a (re)loaded UI without touching the workflow state.
func (o *Orchestrator) handleReady(ctx context.Context, s Ready) {
	if o.state.Status == StatusAwaitingSelection && s.TabID == o.state.ActiveTabID {
		if !o.deps.Messenger.Deliver(ctx, s.TabID, schema.BeginSelection()) {
			o.logger.Warn("begin-selection re-sync not delivered", "tab_id", s.TabID)
		}
		return
	}
	if o.state.Status == StatusIdle {
		o.deps.Messenger.Notify(s.TabID, schema.StatusUpdate(string(StatusIdle), "No capture in progress."))
		return
	}
	o.deps.Messenger.Notify(s.TabID, schema.StatusUpdate(string(o.state.Status), "Capture run in progress."))
}

func (o *Orchestrator) handleHide(s Hide) {
	o.deps.Messenger.Notify(s.TabID, schema.ToggleVisibility(false))
}

// setStatus applies a status transition and sends the paired best-effort
// notification. Notification failures never roll the transition back.
func (o *Orchestrator) setStatus(status Status, message string) {
	o.state.Status = status
	o.deps.Messenger.Notify(o.state.ActiveTabID, schema.StatusUpdate(string(status), message))
	o.record(schema.RunStage(status))
}

// complete ends a run after the queue is exhausted.
func (o *Orchestrator) complete() {
	o.logger.Info("run completed", "run_id", o.run.id, "jobs", len(o.state.Jobs))
	o.deps.Messenger.Notify(o.state.ActiveTabID,
		schema.StatusUpdate(string(StatusIdle), fmt.Sprintf("All %d captures uploaded.", len(o.state.Jobs))))
	o.record(schema.StageCompleted)
	o.publishDone("")
	o.state.reset()
	o.run = run{}
}

// fail is the single failure path for every run step: log, notify the tab
// best-effort, reset fully to idle.
func (o *Orchestrator) fail(err error) {
	o.logger.Error("run step failed", "run_id", o.run.id, "status", o.state.Status, "err", err)
	o.finish(userMessage(err), err)
}

func (o *Orchestrator) finish(message string, cause error) {
	o.deps.Messenger.Notify(o.state.ActiveTabID, schema.ResetSelection(message))
	o.recordError(schema.StageFailed, cause)
	o.publishDone(cause.Error())
	o.state.reset()
	o.run = run{}
}

func (o *Orchestrator) record(stage schema.RunStage) {
	o.recordError(stage, nil)
}

func (o *Orchestrator) recordError(stage schema.RunStage, cause error) {
	ev := schema.RunEvent{
		RunID:      o.run.id,
		TabID:      o.state.ActiveTabID,
		Stage:      stage,
		JobIndex:   o.state.Index,
		TotalJobs:  len(o.state.Jobs),
		HappenedAt: time.Now().Unix(),
	}
	if job, ok := remote.JobAt(o.state.Jobs, o.state.Index); ok {
		ev.JobID = job.ID
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	o.run.lifecycle = append(o.run.lifecycle, ev)
	if o.deps.Recorder != nil {
		o.deps.Recorder.RunEvent(ev)
	}
}

func (o *Orchestrator) publishDone(errText string) {
	if o.deps.Recorder == nil {
		return
	}
	o.deps.Recorder.RunDone(schema.RunDone{
		RunID:            o.run.id,
		TabID:            o.state.ActiveTabID,
		JobsCompleted:    o.state.Index,
		TotalJobs:        len(o.state.Jobs),
		ProcessingTimeMs: time.Since(o.run.startedAt).Milliseconds(),
		Lifecycle:        o.run.lifecycle,
		Error:            errText,
		HappenedAt:       time.Now().Unix(),
	})
}
