// internal/workflow/state.go
package workflow

import (
	"time"

	"github.com/snapq/capture-coordinator/pkg/schema"
)

// Status enumerates the orchestrator's states. There is no permanent terminal
// state: a run always comes back to idle.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusFetching          Status = "fetching"
	StatusNavigating        Status = "navigating"
	StatusAwaitingSelection Status = "awaiting_selection"
	StatusUploading         Status = "uploading"
)

// State is the single source of truth for the active run. Only the
// orchestrator goroutine mutates it; all mutation goes through the named
// transition handlers.
//
// Invariants: ActiveTabID is set iff Status != idle; Index only advances
// after a successful upload; Jobs is replaced wholesale, never edited.
type State struct {
	Status      Status
	Jobs        []schema.Job
	Index       int
	ActiveTabID string
}

func (s *State) reset() {
	*s = State{Status: StatusIdle}
}

// run carries per-run bookkeeping for lifecycle event publishing.
type run struct {
	id        string
	startedAt time.Time
	lifecycle []schema.RunEvent
}
