// internal/bus/recorder.go
package bus

import (
	"log/slog"

	"github.com/snapq/capture-coordinator/pkg/schema"
)

// Recorder publishes run lifecycle events to the bus. Publishing is
// fire-and-forget: failures are logged and never surface to the workflow.
type Recorder struct {
	client  *Client
	subject string
	logger  *slog.Logger
}

// NewRecorder publishes stage events on subject+".lifecycle" and run
// summaries on subject.
func NewRecorder(client *Client, subject string, logger *slog.Logger) *Recorder {
	return &Recorder{client: client, subject: subject, logger: logger}
}

func (r *Recorder) RunEvent(ev schema.RunEvent) {
	if err := r.client.PublishJSON(r.subject+".lifecycle", ev); err != nil {
		r.logger.Warn("publish run event failed", "subject", r.subject, "stage", ev.Stage, "err", err)
	}
}

func (r *Recorder) RunDone(done schema.RunDone) {
	if err := r.client.PublishJSON(r.subject, done); err != nil {
		r.logger.Warn("publish run summary failed", "subject", r.subject, "run_id", done.RunID, "err", err)
	}
}
