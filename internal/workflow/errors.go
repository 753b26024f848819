// internal/workflow/errors.go
package workflow

import (
	"errors"

	"github.com/snapq/capture-coordinator/internal/crop"
	"github.com/snapq/capture-coordinator/internal/remote"
	"github.com/snapq/capture-coordinator/internal/tab"
)

var (
	// ErrEmptyQueue means the fetched job queue had zero jobs.
	ErrEmptyQueue = errors.New("job queue is empty")

	// ErrURLNotAllowed means a job URL failed the allow-policy.
	ErrURLNotAllowed = errors.New("job url not allowed")
)

// userMessage maps a run-step failure to the human-readable text sent to the
// tab with the reset notice.
func userMessage(err error) string {
	var remoteErr *remote.RemoteError
	switch {
	case errors.Is(err, ErrEmptyQueue):
		return "No capture jobs are queued."
	case errors.Is(err, ErrURLNotAllowed):
		return "The next job points at a URL this coordinator is not allowed to open."
	case errors.Is(err, tab.ErrNavigationTimeout):
		return "The page took too long to load."
	case errors.Is(err, crop.ErrCropTooSmall):
		return "The selection is too small to capture."
	case errors.As(err, &remoteErr):
		return "The job service rejected the request."
	default:
		return "The capture run failed: " + err.Error()
	}
}
