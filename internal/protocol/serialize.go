package protocol

import (
	"github.com/google/uuid"

	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
)

// Participant labels the source or destination of a UI message.
type Participant string

const (
	ParticipantLLM    Participant = "LLM"
	ParticipantCore   Participant = "Core"
	ParticipantTools  Participant = "Tools"
	ParticipantSystem Participant = "System"
)

// Message is the UI-facing rendering of a breakpoint or debug event.
type Message struct {
	UUID    uuid.UUID        `json:"uuid"`
	From    Participant      `json:"from"`
	To      Participant      `json:"to"`
	Summary string           `json:"summary,omitempty"`
	Content *domain.Payload  `json:"content"`
	SentAt  domain.Timestamp `json:"sent_at"`
}

// MessageFromBreakpoint renders a breakpoint as a UI message, deriving the
// participants from the breakpoint's phase and its event's type.
func MessageFromBreakpoint(bp *domain.Breakpoint, ev *domain.Event) *Message {
	return &Message{
		UUID:    bp.UUID,
		From:    fromParticipant(bp, ev),
		To:      toParticipant(bp, ev),
		Summary: bp.Summary,
		Content: bp.OriginalData,
		SentAt:  bp.SentAt,
	}
}

// MessageFromDebugEvent renders a DEBUG_MESSAGE event as a UI message. The
// debug text becomes the summary.
func MessageFromDebugEvent(ev *domain.Event) *Message {
	summary := ""
	if ev.Payload != nil {
		if ev.Payload.Kind == domain.PayloadText {
			summary = ev.Payload.Text
		} else {
			summary = string(ev.Payload.JSON)
		}
	}
	return &Message{
		UUID:    ev.UUID,
		From:    ParticipantSystem,
		To:      ParticipantSystem,
		Summary: summary,
		SentAt:  ev.SentAt,
	}
}

func fromParticipant(bp *domain.Breakpoint, ev *domain.Event) Participant {
	if bp.Phase == domain.PhaseEnd {
		switch ev.Type {
		case domain.EventLLMQuery:
			return ParticipantLLM
		case domain.EventToolInvocation:
			return ParticipantTools
		}
	}
	if ev.Type == domain.EventProgramStarted || ev.Type == domain.EventProgramFinished {
		return ParticipantSystem
	}
	return ParticipantCore
}

func toParticipant(bp *domain.Breakpoint, ev *domain.Event) Participant {
	if bp.Phase == domain.PhaseBegin {
		switch ev.Type {
		case domain.EventLLMQuery:
			return ParticipantLLM
		case domain.EventToolInvocation:
			return ParticipantTools
		}
	}
	if ev.Type == domain.EventProgramStarted || ev.Type == domain.EventProgramFinished {
		return ParticipantSystem
	}
	return ParticipantCore
}

// MessagesFromEvents renders every breakpoint and debug event of a run in
// event and breakpoint order.
func MessagesFromEvents(events []*domain.Event) []*Message {
	var messages []*Message
	for _, ev := range events {
		if len(ev.Breakpoints) > 0 {
			for _, bp := range ev.Breakpoints {
				messages = append(messages, MessageFromBreakpoint(bp, ev))
			}
		} else if ev.Type == domain.EventDebugMessage {
			messages = append(messages, MessageFromDebugEvent(ev))
		}
	}
	return messages
}

// SerializedRun is the UI-facing rendering of a whole run.
type SerializedRun struct {
	UUID        uuid.UUID             `json:"uuid"`
	Name        string                `json:"name"`
	ProgramName string                `json:"program_name"`
	StartTime   domain.Timestamp      `json:"start_time"`
	State       domain.ExecutionState `json:"state"`
	AgentState  domain.AgentState     `json:"agent_state"`
	HaltedAt    *uuid.UUID            `json:"halted_at,omitempty"`
	Messages    []*Message            `json:"messages"`
	Commits     []domain.Commit       `json:"commits"`
}

// SerializeRun renders a run with the given live state. Historical runs are
// serialized as idle/agent_finished.
func SerializeRun(run *domain.Run, state domain.ExecutionState, agentState domain.AgentState, haltedAt *uuid.UUID) *SerializedRun {
	return &SerializedRun{
		UUID:        run.UUID,
		Name:        run.Name,
		ProgramName: run.ProgramName,
		StartTime:   run.StartTime,
		State:       state,
		AgentState:  agentState,
		HaltedAt:    haltedAt,
		Messages:    MessagesFromEvents(run.Events),
		Commits:     run.Commits,
	}
}
