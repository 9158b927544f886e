package debugger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
	"github.com/agent-stepper-anon/agent-stepper/internal/protocol"
)

// handleAgentFrame dispatches one inbound agent frame on the execution lane.
func (ct *Controller) handleAgentFrame(data []byte) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	msg, err := protocol.DecodeAgentMessage(data)
	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			ct.failAgentSession(perr.Message)
		} else {
			ct.failAgentSession(err.Error())
		}
		return
	}

	switch {
	case msg.Event != nil:
		ct.handleEvent(msg.Event)
	case msg.Breakpoint != nil:
		ct.handleBreakpoint(msg.Breakpoint)
	case msg.Commit != nil:
		ct.handleCommit(msg.Commit)
	}
}

func (ct *Controller) handleEvent(ev *domain.Event) {
	if ev.Type == domain.EventProgramStarted {
		ct.startRun(ev)
		return
	}

	run := ct.store.Active()
	if run == nil {
		ct.failAgentSession(fmt.Sprintf("event %s received with no active run", ev.UUID))
		return
	}
	ct.store.AttachEvent(ev)

	switch ev.Type {
	case domain.EventDebugMessage:
		ct.sendUI(protocol.EncodeNewMessage(run.UUID, protocol.MessageFromDebugEvent(ev)))

	case domain.EventProgramFinished:
		ct.closeActiveRun("program finished")

	default:
		// Between breakpoints the agent has free execution time, unless a
		// halt was requested and the core is still waiting for the
		// breakpoint to land.
		if ct.machine.AgentState() != domain.AgentHalting {
			ct.machine.SetAgentState(domain.AgentRunning)
		}
		ct.updateRunState(run.UUID, nil)
	}
}

func (ct *Controller) startRun(ev *domain.Event) {
	if ct.store.Active() != nil {
		ct.closeActiveRun("agent protocol violation: run already active")
		ct.failAgentSession("PROGRAM_STARTED while a run is already active")
		return
	}

	programName := payloadText(ev.Payload)
	run := ct.store.OpenRun(programName, ev.SentAt)
	ct.store.AttachEvent(ev)
	ct.machine.StartRun()
	log.Printf("Run started: %s (%s)", run.Name, run.UUID)

	serialized := protocol.SerializeRun(run, ct.machine.Execution(), ct.machine.AgentState(), nil)
	ct.sendUI(protocol.EncodeNewRun(serialized))
	ct.updateRunState(run.UUID, nil)
}

func (ct *Controller) handleBreakpoint(bp *domain.Breakpoint) {
	run := ct.store.Active()
	if run == nil {
		ct.failAgentSession("breakpoint received with no active run")
		return
	}

	switch ct.machine.Execution() {
	case domain.ExecutionHalted:
		ct.failAgentSession("breakpoint received while already halted")
		return
	case domain.ExecutionIdle:
		ct.failAgentSession("breakpoint received while idle")
		return
	}

	ev := run.EventByID(bp.EventID)
	if ev == nil {
		ct.failAgentSession(fmt.Sprintf("breakpoint %s references unknown event %s", bp.UUID, bp.EventID))
		return
	}
	ct.store.AttachBreakpoint(bp)

	if bp.Summary == "" && ct.sum != nil {
		bp.Summary = ct.sum.Summarize(context.Background(), run, bp)
	}
	ct.sendUI(protocol.EncodeNewMessage(run.UUID, protocol.MessageFromBreakpoint(bp, ev)))

	switch ct.machine.Execution() {
	case domain.ExecutionStep:
		ct.machine.Halt(bp)
		id := bp.UUID
		ct.updateRunState(run.UUID, &id)

	case domain.ExecutionContinue:
		frame, err := protocol.EncodeBreakpoint(bp)
		if err != nil {
			ct.failAgentSession(fmt.Sprintf("echoing breakpoint %s: %v", bp.UUID, err))
			return
		}
		ct.sendAgent(frame)
		ct.machine.DeriveAgentState(bp.Phase, ev.Type)
		ct.updateRunState(run.UUID, nil)
	}
}

func (ct *Controller) handleCommit(c *domain.Commit) {
	run := ct.store.Active()
	if run == nil {
		ct.failAgentSession(fmt.Sprintf("commit %s received with no active run", c.ID))
		return
	}
	log.Printf("Commit %.6s, %s", c.ID, c.Title)
	ct.store.AttachCommit(*c)
	ct.sendUI(protocol.EncodeNewCommit(run.UUID, *c))
}

func payloadText(p *domain.Payload) string {
	if p == nil {
		return ""
	}
	if p.Kind == domain.PayloadText {
		return p.Text
	}
	return string(p.JSON)
}
