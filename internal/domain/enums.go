// Package domain defines the core entities of the debugger: runs, events,
// breakpoints and commits, together with the state enums of the halt/step
// machinery.
package domain

// ExecutionState is the control mode of the debugger core.
type ExecutionState string

const (
	// ExecutionIdle means no run is active and the core is waiting for an
	// agent to start one.
	ExecutionIdle ExecutionState = "idle"
	// ExecutionStep means the core halts at the next breakpoint.
	ExecutionStep ExecutionState = "step"
	// ExecutionHalted means the agent is blocked at a breakpoint awaiting an
	// operator decision.
	ExecutionHalted ExecutionState = "halted"
	// ExecutionContinue means breakpoints are echoed back immediately.
	ExecutionContinue ExecutionState = "continue"
)

// AgentState is a reporting label for what the agent appears to be doing.
type AgentState string

const (
	AgentRunning  AgentState = "agent_running"
	LLMThinking   AgentState = "llm_thinking"
	ToolExecuting AgentState = "tool_executing"
	AgentHalting  AgentState = "halting"
	AgentHalted   AgentState = "halted"
	AgentFinished AgentState = "agent_finished"
)

// EventType is the kind of a trajectory event.
type EventType string

const (
	EventProgramStarted  EventType = "PROGRAM_STARTED"
	EventProgramFinished EventType = "PROGRAM_FINISHED"
	EventLLMQuery        EventType = "LLM_QUERY"
	EventToolInvocation  EventType = "TOOL_INVOCATION"
	EventDebugMessage    EventType = "DEBUG_MESSAGE"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventProgramStarted, EventProgramFinished, EventLLMQuery, EventToolInvocation, EventDebugMessage:
		return true
	}
	return false
}

// BreakpointPhase marks where in an event's lifetime a breakpoint sits.
type BreakpointPhase string

const (
	// PhaseBegin brackets the start of the event's work.
	PhaseBegin BreakpointPhase = "begin"
	// PhaseEnd brackets the completion of the event's work.
	PhaseEnd BreakpointPhase = "end"
	// PhaseMessage is a standalone informational breakpoint.
	PhaseMessage BreakpointPhase = "message"
)

// Valid reports whether p is a known phase.
func (p BreakpointPhase) Valid() bool {
	switch p {
	case PhaseBegin, PhaseEnd, PhaseMessage:
		return true
	}
	return false
}

// ChangeKind is the type of a file change inside a commit.
type ChangeKind string

const (
	ChangeNewFile     ChangeKind = "NEW_FILE"
	ChangeDeletedFile ChangeKind = "DELETED_FILE"
	ChangeModified    ChangeKind = "MODIFIED"
)
