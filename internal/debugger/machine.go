package debugger

import (
	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
)

// Machine holds the execution state, the agent state and the pending
// breakpoint of the active run. It is passive: all transitions are driven by
// the controller on its execution lane. The pending breakpoint is non-nil
// exactly while the execution state is halted.
type Machine struct {
	execution  domain.ExecutionState
	agentState domain.AgentState
	pending    *domain.Breakpoint
}

// NewMachine creates a machine in the idle state.
func NewMachine() *Machine {
	return &Machine{
		execution:  domain.ExecutionIdle,
		agentState: domain.AgentFinished,
	}
}

// Execution returns the current execution state.
func (m *Machine) Execution() domain.ExecutionState { return m.execution }

// AgentState returns the current agent state.
func (m *Machine) AgentState() domain.AgentState { return m.agentState }

// Pending returns the breakpoint the core is holding while halted, or nil.
func (m *Machine) Pending() *domain.Breakpoint { return m.pending }

// StartRun enters step mode for a freshly opened run.
func (m *Machine) StartRun() {
	m.execution = domain.ExecutionStep
	m.agentState = domain.AgentRunning
	m.pending = nil
}

// Halt records the breakpoint the agent is now blocked on.
func (m *Machine) Halt(bp *domain.Breakpoint) {
	m.execution = domain.ExecutionHalted
	m.agentState = domain.AgentHalted
	m.pending = bp
}

// TakePending clears and returns the pending breakpoint while moving to the
// given execution state. The caller owes the returned breakpoint to the
// agent.
func (m *Machine) TakePending(next domain.ExecutionState) *domain.Breakpoint {
	bp := m.pending
	m.pending = nil
	m.execution = next
	return bp
}

// SetExecution sets the execution state without touching the pending
// breakpoint.
func (m *Machine) SetExecution(s domain.ExecutionState) { m.execution = s }

// SetAgentState applies an explicit agent state (halting, halted,
// agent_finished) that overrides derivation.
func (m *Machine) SetAgentState(s domain.AgentState) { m.agentState = s }

// Finish returns the machine to idle after run closure.
func (m *Machine) Finish() {
	m.execution = domain.ExecutionIdle
	m.agentState = domain.AgentFinished
	m.pending = nil
}

// DeriveAgentState recomputes the agent state after a breakpoint is handed
// back. Stepping over a begin breakpoint means the agent is now inside the
// event's work; over an end breakpoint it is back to free running. Debug
// messages leave the state unchanged.
func (m *Machine) DeriveAgentState(phase domain.BreakpointPhase, eventType domain.EventType) {
	if eventType == domain.EventDebugMessage {
		return
	}
	if phase == domain.PhaseBegin {
		switch eventType {
		case domain.EventLLMQuery:
			m.agentState = domain.LLMThinking
			return
		case domain.EventToolInvocation:
			m.agentState = domain.ToolExecuting
			return
		}
	}
	m.agentState = domain.AgentRunning
}
