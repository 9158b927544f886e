package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
)

func queryEventWithBreakpoints(t *testing.T) (*domain.Event, *domain.Breakpoint, *domain.Breakpoint) {
	t.Helper()
	ev := domain.NewEvent(domain.EventLLMQuery, domain.TextPayload("p"))
	begin := domain.NewBreakpoint(ev.UUID, domain.PhaseBegin, domain.TextPayload("p"))
	end := domain.NewBreakpoint(ev.UUID, domain.PhaseEnd, domain.TextPayload("answer"))
	ev.Breakpoints = append(ev.Breakpoints, begin, end)
	return ev, begin, end
}

func TestMessageParticipantsLLMQuery(t *testing.T) {
	ev, begin, end := queryEventWithBreakpoints(t)

	beginMsg := MessageFromBreakpoint(begin, ev)
	assert.Equal(t, ParticipantCore, beginMsg.From)
	assert.Equal(t, ParticipantLLM, beginMsg.To)

	endMsg := MessageFromBreakpoint(end, ev)
	assert.Equal(t, ParticipantLLM, endMsg.From)
	assert.Equal(t, ParticipantCore, endMsg.To)
}

func TestMessageParticipantsToolInvocation(t *testing.T) {
	ev := domain.NewEvent(domain.EventToolInvocation, nil)
	begin := domain.NewBreakpoint(ev.UUID, domain.PhaseBegin, domain.TextPayload("ls"))
	end := domain.NewBreakpoint(ev.UUID, domain.PhaseEnd, domain.TextPayload("files"))
	ev.Breakpoints = append(ev.Breakpoints, begin, end)

	assert.Equal(t, ParticipantTools, MessageFromBreakpoint(begin, ev).To)
	assert.Equal(t, ParticipantTools, MessageFromBreakpoint(end, ev).From)
}

func TestMessageParticipantsProgramLifecycle(t *testing.T) {
	ev := domain.NewEvent(domain.EventProgramFinished, nil)
	bp := domain.NewBreakpoint(ev.UUID, domain.PhaseMessage, nil)
	bp.Summary = "agent disconnected"
	ev.Breakpoints = append(ev.Breakpoints, bp)

	msg := MessageFromBreakpoint(bp, ev)
	assert.Equal(t, ParticipantSystem, msg.From)
	assert.Equal(t, ParticipantSystem, msg.To)
	assert.Equal(t, "agent disconnected", msg.Summary)
}

func TestMessageFromDebugEvent(t *testing.T) {
	ev := domain.NewEvent(domain.EventDebugMessage, domain.TextPayload("checkpoint reached"))
	msg := MessageFromDebugEvent(ev)
	assert.Equal(t, ev.UUID, msg.UUID)
	assert.Equal(t, ParticipantSystem, msg.From)
	assert.Equal(t, "checkpoint reached", msg.Summary)
	assert.Nil(t, msg.Content)
}

func TestMessagesFromEventsOrder(t *testing.T) {
	query, _, _ := queryEventWithBreakpoints(t)
	debug := domain.NewEvent(domain.EventDebugMessage, domain.TextPayload("dbg"))
	bare := domain.NewEvent(domain.EventLLMQuery, nil) // no breakpoints yet

	messages := MessagesFromEvents([]*domain.Event{query, debug, bare})
	require.Len(t, messages, 3)
	assert.Equal(t, query.Breakpoints[0].UUID, messages[0].UUID)
	assert.Equal(t, query.Breakpoints[1].UUID, messages[1].UUID)
	assert.Equal(t, debug.UUID, messages[2].UUID)
}

func TestSerializeRun(t *testing.T) {
	run := domain.NewRun("Run #1 of demo", "demo", "v1", domain.Now())
	ev, begin, _ := queryEventWithBreakpoints(t)
	run.AddEvent(ev)
	run.AddCommit(domain.Commit{ID: "c1", Date: domain.Now(), Title: "t"})

	id := begin.UUID
	s := SerializeRun(run, domain.ExecutionHalted, domain.AgentHalted, &id)
	assert.Equal(t, run.UUID, s.UUID)
	assert.Equal(t, domain.ExecutionHalted, s.State)
	assert.Equal(t, &id, s.HaltedAt)
	assert.Len(t, s.Messages, 2)
	assert.Len(t, s.Commits, 1)
}
