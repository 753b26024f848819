// internal/workflow/signals.go
package workflow

import (
	"github.com/snapq/capture-coordinator/pkg/schema"
)

// Signal is the closed set of inbound control signals. One variant per UI
// message; the orchestrator matches them exhaustively.
type Signal interface {
	signalTab() string
}

// Start begins a new run on the given tab.
type Start struct{ TabID string }

// Save carries the user's selection rectangle for the current job.
type Save struct {
	TabID string
	Rect  schema.Rect
}

// Cancel aborts the active run.
type Cancel struct{ TabID string }

// Ready announces a (re)loaded UI asking to be re-synced.
type Ready struct{ TabID string }

// Hide asks the coordinator to hide the UI overlay.
type Hide struct{ TabID string }

func (s Start) signalTab() string  { return s.TabID }
func (s Save) signalTab() string   { return s.TabID }
func (s Cancel) signalTab() string { return s.TabID }
func (s Ready) signalTab() string  { return s.TabID }
func (s Hide) signalTab() string   { return s.TabID }

// signalFromEnvelope converts a wire frame into a typed signal. Unknown or
// malformed frames yield ok=false and are dropped by the dispatcher.
func signalFromEnvelope(tabID string, env schema.Envelope) (Signal, bool) {
	switch env.Type {
	case schema.MsgStartWorkflow:
		return Start{TabID: tabID}, true
	case schema.MsgSaveSelection:
		if env.Rect == nil {
			return nil, false
		}
		return Save{TabID: tabID, Rect: *env.Rect}, true
	case schema.MsgCancelSelection:
		return Cancel{TabID: tabID}, true
	case schema.MsgUIReady:
		return Ready{TabID: tabID}, true
	case schema.MsgHideUI:
		return Hide{TabID: tabID}, true
	default:
		return nil, false
	}
}
