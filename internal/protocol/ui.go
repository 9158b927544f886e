package protocol

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
)

// UI → core event names.
const (
	UIEventStep             = "step"
	UIEventContinue         = "continue"
	UIEventHalt             = "halt"
	UIEventRenameRun        = "rename_run"
	UIEventDownloadRequest  = "download_run_request"
	UIEventImportRun        = "import_run"
	UIEventUpdateMsgContent = "update_msg_content"
	UIEventDeleteRun        = "delete_run"
)

// Core → UI event names.
const (
	UIEventInitAppState   = "init_app_state"
	UIEventNewRun         = "new_run"
	UIEventNewMessage     = "new_message"
	UIEventUpdateRunState = "update_run_state"
	UIEventNewCommit      = "new_commit"
	UIEventRunExport      = "run_export"
	UIEventError          = "error"
)

// UIEnvelope is the outer shape of every UI message:
// {"event": <name>, "content": {...}}.
type UIEnvelope struct {
	Event   string          `json:"event"`
	Content json.RawMessage `json:"content"`
}

// RunRef is the content of step/continue/halt/download/delete commands.
type RunRef struct {
	Run string `json:"run"`
}

// RenameRun is the content of a rename_run command.
type RenameRun struct {
	Run  string `json:"run"`
	Name string `json:"name"`
}

// ImportRun is the content of an import_run command. Data carries
// base64-encoded zlib-compressed export bytes.
type ImportRun struct {
	Data string `json:"data"`
}

// UpdateMsgContent is the content of an update_msg_content command.
type UpdateMsgContent struct {
	Run     string          `json:"run"`
	Message string          `json:"message"`
	Content *domain.Payload `json:"content"`
}

// DecodeUIEnvelope parses the outer envelope of a UI frame.
func DecodeUIEnvelope(data []byte) (*UIEnvelope, error) {
	var env UIEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, parseErrf("invalid JSON frame: %v", err)
	}
	if env.Event == "" {
		return nil, parseErrf("frame has no event name")
	}
	return &env, nil
}

// DecodeContent parses an envelope's content into the given shape.
func DecodeContent(env *UIEnvelope, v interface{}) error {
	if err := json.Unmarshal(env.Content, v); err != nil {
		return parseErrf("%s content: %v", env.Event, err)
	}
	return nil
}

func encodeUI(event string, content interface{}) []byte {
	raw, err := json.Marshal(content)
	if err != nil {
		// Content is built from our own types; a marshal failure is a bug.
		raw = []byte("{}")
	}
	frame, _ := json.Marshal(UIEnvelope{Event: event, Content: raw})
	return frame
}

// EncodeError frames an error event for the UI.
func EncodeError(message string) []byte {
	return encodeUI(UIEventError, map[string]string{"message": message})
}

type initAppStateContent struct {
	Runs      []*SerializedRun `json:"runs"`
	ActiveRun *uuid.UUID       `json:"active_run,omitempty"`
	HaltedAt  *uuid.UUID       `json:"halted_at,omitempty"`
}

// EncodeInitAppState frames the snapshot sent once on UI connect.
func EncodeInitAppState(runs []*SerializedRun, activeRun, haltedAt *uuid.UUID) []byte {
	return encodeUI(UIEventInitAppState, initAppStateContent{
		Runs:      runs,
		ActiveRun: activeRun,
		HaltedAt:  haltedAt,
	})
}

// EncodeNewRun frames a new_run event.
func EncodeNewRun(run *SerializedRun) []byte {
	return encodeUI(UIEventNewRun, map[string]interface{}{"run": run})
}

// EncodeNewMessage frames a new_message event for the given run.
func EncodeNewMessage(runID uuid.UUID, msg *Message) []byte {
	return encodeUI(UIEventNewMessage, map[string]interface{}{
		"run":     runID,
		"message": msg,
	})
}

type updateRunStateContent struct {
	Run        uuid.UUID             `json:"run"`
	State      domain.ExecutionState `json:"state"`
	AgentState domain.AgentState     `json:"agent_state"`
	HaltedAt   *uuid.UUID            `json:"halted_at,omitempty"`
}

// EncodeUpdateRunState frames an update_run_state event.
func EncodeUpdateRunState(runID uuid.UUID, state domain.ExecutionState, agentState domain.AgentState, haltedAt *uuid.UUID) []byte {
	return encodeUI(UIEventUpdateRunState, updateRunStateContent{
		Run:        runID,
		State:      state,
		AgentState: agentState,
		HaltedAt:   haltedAt,
	})
}

// EncodeNewCommit frames a new_commit event.
func EncodeNewCommit(runID uuid.UUID, commit domain.Commit) []byte {
	return encodeUI(UIEventNewCommit, map[string]interface{}{
		"run":    runID,
		"commit": commit,
	})
}

// EncodeRunExport frames a run_export event. Data must already be packed
// with PackRunBytes.
func EncodeRunExport(name, data string) []byte {
	return encodeUI(UIEventRunExport, map[string]string{
		"name": name,
		"data": data,
	})
}
