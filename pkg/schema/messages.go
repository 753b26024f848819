// pkg/schema/messages.go
package schema

// MessageType tags every frame exchanged with the in-page selection UI.
// The set is closed: the hub drops frames with an unknown type and the
// orchestrator matches inbound signals exhaustively.
type MessageType string

const (
	// Inbound (UI -> coordinator)
	MsgStartWorkflow   MessageType = "start-workflow"
	MsgSaveSelection   MessageType = "save-selection"
	MsgCancelSelection MessageType = "cancel-selection"
	MsgUIReady         MessageType = "ui-ready"
	MsgHideUI          MessageType = "hide-ui"
	MsgAck             MessageType = "ack"

	// Outbound (coordinator -> UI)
	MsgBeginSelection   MessageType = "begin-selection"
	MsgResetSelection   MessageType = "reset-selection"
	MsgStatusUpdate     MessageType = "status-update"
	MsgToggleVisibility MessageType = "toggle-visibility"
)

// Rect is a selection rectangle in page pixel coordinates as reported by the
// UI. It is consumed immediately on save and never persisted.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Envelope is the wire frame for UI messaging. Seq is set on outbound frames
// that expect an acknowledgement; the UI echoes it back in an ack frame.
type Envelope struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq,omitempty"`
	Rect    *Rect       `json:"rect,omitempty"`
	State   string      `json:"state,omitempty"`
	Message string      `json:"message,omitempty"`
	Visible *bool       `json:"visible,omitempty"`
}

func BeginSelection() Envelope {
	return Envelope{Type: MsgBeginSelection}
}

func ResetSelection(message string) Envelope {
	return Envelope{Type: MsgResetSelection, Message: message}
}

func StatusUpdate(state, message string) Envelope {
	return Envelope{Type: MsgStatusUpdate, State: state, Message: message}
}

func ToggleVisibility(visible bool) Envelope {
	return Envelope{Type: MsgToggleVisibility, Visible: &visible}
}
