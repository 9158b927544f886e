package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
)

func TestDecodeAgentEvent(t *testing.T) {
	id := uuid.New()
	frame := fmt.Sprintf(`{"message":"event","data":{
		"event_id":%q,
		"event_type":"LLM_QUERY",
		"payload":{"kind":"json","value":{"prompt":"p"}},
		"sent_at":"2026-08-05T10:00:00.000Z",
		"breakpoints":null
	}}`, id)

	msg, err := DecodeAgentMessage([]byte(frame))
	require.NoError(t, err)
	require.NotNil(t, msg.Event)
	assert.Equal(t, id, msg.Event.UUID)
	assert.Equal(t, domain.EventLLMQuery, msg.Event.Type)
	assert.Equal(t, domain.PayloadJSON, msg.Event.Payload.Kind)
}

func TestDecodeAgentBreakpoint(t *testing.T) {
	bpID, evID := uuid.New(), uuid.New()
	frame := fmt.Sprintf(`{"message":"breakpoint","data":{
		"uuid":%q,
		"event_id":%q,
		"phase":"begin",
		"original_data":{"kind":"text","value":"prompt text"},
		"modified_data":null,
		"sent_at":"2026-08-05T10:00:00.000Z"
	}}`, bpID, evID)

	msg, err := DecodeAgentMessage([]byte(frame))
	require.NoError(t, err)
	require.NotNil(t, msg.Breakpoint)
	bp := msg.Breakpoint
	assert.Equal(t, bpID, bp.UUID)
	assert.Equal(t, evID, bp.EventID)
	assert.Equal(t, domain.PhaseBegin, bp.Phase)
	// modified data defaults to the original on decode
	require.NotNil(t, bp.ModifiedData)
	assert.True(t, bp.OriginalData.Equal(bp.ModifiedData))
}

func TestDecodeAgentCommit(t *testing.T) {
	frame := `{"message":"commit","data":{
		"id":"deadbeef",
		"date":"2026-08-05T10:00:00.000Z",
		"title":"fix the parser",
		"changes":[{"path":"a.go","kind":"MODIFIED","content":"x","previous_content":"y"}]
	}}`

	msg, err := DecodeAgentMessage([]byte(frame))
	require.NoError(t, err)
	require.NotNil(t, msg.Commit)
	assert.Equal(t, "deadbeef", msg.Commit.ID)
	require.Len(t, msg.Commit.Changes, 1)
	assert.Equal(t, domain.ChangeModified, msg.Commit.Changes[0].Kind)
}

func TestDecodeAgentUnknownTag(t *testing.T) {
	_, err := DecodeAgentMessage([]byte(`{"message":"telemetry","data":{}}`))
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, CodeProtocol, perr.Code)
}

func TestDecodeAgentParseFailures(t *testing.T) {
	cases := map[string]string{
		"not json":           `{"message":`,
		"no data":            `{"message":"event"}`,
		"missing event id":   `{"message":"event","data":{"event_type":"LLM_QUERY","sent_at":"2026-08-05T10:00:00.000Z"}}`,
		"bad event type":     fmt.Sprintf(`{"message":"event","data":{"event_id":%q,"event_type":"NOPE","sent_at":"2026-08-05T10:00:00.000Z"}}`, uuid.New()),
		"bad phase":          fmt.Sprintf(`{"message":"breakpoint","data":{"uuid":%q,"event_id":%q,"phase":"middle","sent_at":"2026-08-05T10:00:00.000Z"}}`, uuid.New(), uuid.New()),
		"missing commit id":  `{"message":"commit","data":{"date":"2026-08-05T10:00:00.000Z","title":"t","changes":[]}}`,
		"mistyped timestamp": fmt.Sprintf(`{"message":"event","data":{"event_id":%q,"event_type":"LLM_QUERY","sent_at":12345}}`, uuid.New()),
	}
	for name, frame := range cases {
		_, err := DecodeAgentMessage([]byte(frame))
		var perr *Error
		require.True(t, errors.As(err, &perr), "%s: expected protocol error, got %v", name, err)
		assert.Equal(t, CodeParse, perr.Code, name)
	}
}

func TestEncodeBreakpointRoundTrip(t *testing.T) {
	bp := domain.NewBreakpoint(uuid.New(), domain.PhaseBegin, domain.TextPayload("original"))
	bp.ModifiedData = domain.TextPayload("modified")

	frame, err := EncodeBreakpoint(bp)
	require.NoError(t, err)

	msg, err := DecodeAgentMessage(frame)
	require.NoError(t, err)
	require.NotNil(t, msg.Breakpoint)
	assert.Equal(t, bp.UUID, msg.Breakpoint.UUID)
	assert.Equal(t, "modified", msg.Breakpoint.ModifiedData.Text)
	assert.Equal(t, "original", msg.Breakpoint.OriginalData.Text)
}

func TestPackUnpackRunBytes(t *testing.T) {
	data := []byte(`{"uuid":"x","events":[]}`)
	packed := PackRunBytes(data)
	unpacked, err := UnpackRunBytes(packed)
	require.NoError(t, err)
	assert.Equal(t, data, unpacked)
}

func TestUnpackRunBytesRejectsGarbage(t *testing.T) {
	_, err := UnpackRunBytes("not base64!!")
	assert.Error(t, err)

	// valid base64 but not zlib
	_, err = UnpackRunBytes("aGVsbG8=")
	assert.Error(t, err)
}

func TestDecodeUIEnvelope(t *testing.T) {
	env, err := DecodeUIEnvelope([]byte(`{"event":"step","content":{"run":"r1"}}`))
	require.NoError(t, err)
	assert.Equal(t, UIEventStep, env.Event)

	var ref RunRef
	require.NoError(t, DecodeContent(env, &ref))
	assert.Equal(t, "r1", ref.Run)

	_, err = DecodeUIEnvelope([]byte(`{"content":{}}`))
	assert.Error(t, err)
	_, err = DecodeUIEnvelope([]byte(`{`))
	assert.Error(t, err)
}

func TestEncodeUpdateRunState(t *testing.T) {
	runID := uuid.New()
	bpID := uuid.New()
	frame := EncodeUpdateRunState(runID, domain.ExecutionHalted, domain.AgentHalted, &bpID)

	var env UIEnvelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, UIEventUpdateRunState, env.Event)

	var content map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Content, &content))
	assert.Equal(t, runID.String(), content["run"])
	assert.Equal(t, "halted", content["state"])
	assert.Equal(t, "halted", content["agent_state"])
	assert.Equal(t, bpID.String(), content["halted_at"])
}

func TestEncodeUpdateRunStateOmitsHaltedAt(t *testing.T) {
	frame := EncodeUpdateRunState(uuid.New(), domain.ExecutionStep, domain.AgentRunning, nil)
	var content map[string]interface{}
	var env UIEnvelope
	require.NoError(t, json.Unmarshal(frame, &env))
	require.NoError(t, json.Unmarshal(env.Content, &content))
	_, present := content["halted_at"]
	assert.False(t, present)
}
