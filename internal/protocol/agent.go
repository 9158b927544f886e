// Package protocol implements the wire codec: the three envelope families
// exchanged with the agent and the event shapes exchanged with the UI. All
// framing is UTF-8 JSON.
package protocol

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
)

// Agent envelope tags.
const (
	MessageEvent      = "event"
	MessageBreakpoint = "breakpoint"
	MessageCommit     = "commit"
)

// AgentEnvelope is the outer shape of every agent message:
// {"message": <tag>, "data": {...}}.
type AgentEnvelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// AgentMessage is a decoded agent envelope. Exactly one field is non-nil.
type AgentMessage struct {
	Event      *domain.Event
	Breakpoint *domain.Breakpoint
	Commit     *domain.Commit
}

// DecodeAgentMessage parses an inbound agent frame. Unknown tags fail with a
// PROTOCOL error; tagged frames with missing or mistyped fields fail with
// PARSE.
func DecodeAgentMessage(data []byte) (*AgentMessage, error) {
	var env AgentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, parseErrf("invalid JSON frame: %v", err)
	}
	switch env.Message {
	case MessageEvent, MessageBreakpoint, MessageCommit:
	default:
		return nil, protocolErrf("unknown agent message tag %q", env.Message)
	}
	if len(env.Data) == 0 {
		return nil, parseErrf("envelope %q has no data", env.Message)
	}

	switch env.Message {
	case MessageEvent:
		var ev domain.Event
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, parseErrf("event data: %v", err)
		}
		if ev.UUID == uuid.Nil {
			return nil, parseErrf("event missing event_id")
		}
		if !ev.Type.Valid() {
			return nil, parseErrf("unknown event_type %q", ev.Type)
		}
		return &AgentMessage{Event: &ev}, nil

	case MessageBreakpoint:
		var bp domain.Breakpoint
		if err := json.Unmarshal(env.Data, &bp); err != nil {
			return nil, parseErrf("breakpoint data: %v", err)
		}
		if bp.UUID == uuid.Nil {
			return nil, parseErrf("breakpoint missing uuid")
		}
		if bp.EventID == uuid.Nil {
			return nil, parseErrf("breakpoint missing event_id")
		}
		if !bp.Phase.Valid() {
			return nil, parseErrf("unknown breakpoint phase %q", bp.Phase)
		}
		if bp.ModifiedData == nil {
			bp.ModifiedData = bp.OriginalData.Clone()
		}
		return &AgentMessage{Breakpoint: &bp}, nil

	case MessageCommit:
		var c domain.Commit
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, parseErrf("commit data: %v", err)
		}
		if c.ID == "" {
			return nil, parseErrf("commit missing id")
		}
		return &AgentMessage{Commit: &c}, nil

	default:
		return nil, protocolErrf("unknown agent message tag %q", env.Message)
	}
}

// EncodeBreakpoint frames a breakpoint envelope for the agent. This is the
// only message family the core sends to the agent.
func EncodeBreakpoint(bp *domain.Breakpoint) ([]byte, error) {
	data, err := json.Marshal(bp)
	if err != nil {
		return nil, fmt.Errorf("marshal breakpoint: %w", err)
	}
	return json.Marshal(AgentEnvelope{Message: MessageBreakpoint, Data: data})
}

// PackRunBytes compresses export bytes and encodes them for transport:
// base64(zlib(data)).
func PackRunBytes(data []byte) string {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(data)
	zw.Close()
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// UnpackRunBytes reverses PackRunBytes.
func UnpackRunBytes(packed string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(packed)
	if err != nil {
		return nil, parseErrf("run data is not valid base64: %v", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, parseErrf("run data is not zlib-compressed: %v", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, parseErrf("decompressing run data: %v", err)
	}
	return raw, nil
}
