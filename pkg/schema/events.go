// pkg/schema/events.go
package schema

// RunStage mirrors the orchestrator status plus the two terminal outcomes.
type RunStage string

const (
	StageFetching          RunStage = "fetching"
	StageNavigating        RunStage = "navigating"
	StageAwaitingSelection RunStage = "awaiting_selection"
	StageUploading         RunStage = "uploading"
	StageCompleted         RunStage = "completed"
	StageFailed            RunStage = "failed"
)

// RunEvent is published on the event bus for every stage change of a run.
type RunEvent struct {
	RunID      string   `json:"run_id"`
	TabID      string   `json:"tab_id"`
	Stage      RunStage `json:"stage"`
	JobID      string   `json:"job_id,omitempty"`
	JobIndex   int      `json:"job_index"`
	TotalJobs  int      `json:"total_jobs"`
	Error      string   `json:"error,omitempty"`
	HappenedAt int64    `json:"happened_at"`
}

// RunDone summarises a finished run, success or failure.
type RunDone struct {
	RunID            string     `json:"run_id"`
	TabID            string     `json:"tab_id"`
	JobsCompleted    int        `json:"jobs_completed"`
	TotalJobs        int        `json:"total_jobs"`
	ProcessingTimeMs int64      `json:"processing_time_ms"`
	Lifecycle        []RunEvent `json:"lifecycle,omitempty"`
	Error            string     `json:"error,omitempty"`
	HappenedAt       int64      `json:"happened_at"`
}
