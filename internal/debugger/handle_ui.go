package debugger

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
	"github.com/agent-stepper-anon/agent-stepper/internal/protocol"
	"github.com/agent-stepper-anon/agent-stepper/internal/runstore"
)

// handleUIFrame dispatches one inbound UI frame on the execution lane.
// Semantically invalid commands are reported back through error events and
// leave the session open; only an unparseable frame closes the UI channel.
func (ct *Controller) handleUIFrame(data []byte) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	env, err := protocol.DecodeUIEnvelope(data)
	if err != nil {
		log.Printf("Invalid frame received from UI: %v", err)
		if ct.ui != nil {
			ct.ui.CloseWithReason(err.Error(), ct.cfg.WriteTimeout)
		}
		return
	}

	switch env.Event {
	case protocol.UIEventStep:
		ct.onUIStep()
	case protocol.UIEventContinue:
		ct.onUIContinue()
	case protocol.UIEventHalt:
		ct.onUIHalt()
	case protocol.UIEventRenameRun:
		ct.onUIRenameRun(env)
	case protocol.UIEventDownloadRequest:
		ct.onUIDownloadRequest(env)
	case protocol.UIEventImportRun:
		ct.onUIImportRun(env)
	case protocol.UIEventUpdateMsgContent:
		ct.onUIUpdateMsgContent(env)
	case protocol.UIEventDeleteRun:
		ct.onUIDeleteRun(env)
	default:
		ct.notifyError(fmt.Sprintf("unknown event %q", env.Event))
	}
}

// onUIStep hands the pending breakpoint back to the agent and stays in step
// mode, so the next breakpoint halts again.
func (ct *Controller) onUIStep() {
	if ct.machine.Execution() != domain.ExecutionHalted {
		ct.notifyError("step requires a halted run")
		return
	}
	ct.releasePending(domain.ExecutionStep)
}

// onUIContinue leaves halt-at-every-breakpoint mode. From halted the pending
// breakpoint is released first; from step mode the run simply stops halting.
func (ct *Controller) onUIContinue() {
	switch ct.machine.Execution() {
	case domain.ExecutionHalted:
		ct.releasePending(domain.ExecutionContinue)
	case domain.ExecutionStep:
		ct.machine.SetExecution(domain.ExecutionContinue)
		if run := ct.store.Active(); run != nil {
			ct.updateRunState(run.UUID, nil)
		}
	default:
		ct.notifyError("continue has no effect: no run is stepping or halted")
	}
}

// onUIHalt asks the core to halt at the next breakpoint. Outside continue
// mode this is a no-op.
func (ct *Controller) onUIHalt() {
	if ct.machine.Execution() != domain.ExecutionContinue {
		return
	}
	ct.machine.SetExecution(domain.ExecutionStep)

	run := ct.store.Active()
	if run == nil {
		return
	}
	if p := ct.machine.Pending(); p != nil {
		ct.machine.SetAgentState(domain.AgentHalted)
		id := p.UUID
		ct.updateRunState(run.UUID, &id)
	} else {
		ct.machine.SetAgentState(domain.AgentHalting)
		ct.updateRunState(run.UUID, nil)
	}
}

// releasePending fulfills the reply obligation of the pending breakpoint:
// its current modified data goes back to the agent, the machine moves to
// next, and the agent state is derived from what the agent will do next.
func (ct *Controller) releasePending(next domain.ExecutionState) {
	run := ct.store.Active()
	bp := ct.machine.TakePending(next)
	if bp == nil || run == nil {
		return
	}

	if ev := run.EventByID(bp.EventID); ev != nil {
		ct.machine.DeriveAgentState(bp.Phase, ev.Type)
	} else {
		ct.machine.SetAgentState(domain.AgentRunning)
	}

	frame, err := protocol.EncodeBreakpoint(bp)
	if err != nil {
		ct.notifyError(fmt.Sprintf("encoding breakpoint %s: %v", bp.UUID, err))
		return
	}
	ct.sendAgent(frame)
	ct.updateRunState(run.UUID, nil)
}

func (ct *Controller) onUIRenameRun(env *protocol.UIEnvelope) {
	var content protocol.RenameRun
	if err := protocol.DecodeContent(env, &content); err != nil {
		ct.notifyError(err.Error())
		return
	}
	id, err := uuid.Parse(content.Run)
	if err != nil {
		ct.notifyError(fmt.Sprintf("invalid run uuid %q", content.Run))
		return
	}
	if err := ct.store.Rename(id, content.Name); err != nil {
		ct.notifyError(err.Error())
		return
	}
	log.Printf("Renamed run %s to %q", id, content.Name)
}

func (ct *Controller) onUIDownloadRequest(env *protocol.UIEnvelope) {
	var content protocol.RunRef
	if err := protocol.DecodeContent(env, &content); err != nil {
		ct.notifyError(err.Error())
		return
	}
	id, err := uuid.Parse(content.Run)
	if err != nil {
		ct.notifyError(fmt.Sprintf("invalid run uuid %q", content.Run))
		return
	}
	run := ct.store.RunByID(id)
	if run == nil {
		ct.notifyError(fmt.Sprintf("no run with uuid %s", id))
		return
	}
	data, err := ct.store.Export(id)
	if err != nil {
		ct.notifyError(err.Error())
		return
	}
	ct.sendUI(protocol.EncodeRunExport(run.Name, protocol.PackRunBytes(data)))
}

func (ct *Controller) onUIImportRun(env *protocol.UIEnvelope) {
	var content protocol.ImportRun
	if err := protocol.DecodeContent(env, &content); err != nil {
		ct.notifyError(err.Error())
		return
	}
	raw, err := protocol.UnpackRunBytes(content.Data)
	if err != nil {
		ct.notifyError(err.Error())
		return
	}
	run, err := ct.store.Import(raw)
	if err != nil {
		if errors.Is(err, runstore.ErrVersionMismatch) {
			ct.notifyError(err.Error())
		} else {
			ct.notifyError(fmt.Sprintf("import failed: %v", err))
		}
		return
	}
	log.Printf("Imported run %q (%s)", run.Name, run.UUID)
	serialized := protocol.SerializeRun(run, domain.ExecutionIdle, domain.AgentFinished, nil)
	ct.sendUI(protocol.EncodeNewRun(serialized))
}

// onUIUpdateMsgContent rewrites the pending breakpoint's modified data. Only
// the breakpoint the run is halted at may be rewritten.
func (ct *Controller) onUIUpdateMsgContent(env *protocol.UIEnvelope) {
	var content protocol.UpdateMsgContent
	if err := protocol.DecodeContent(env, &content); err != nil {
		ct.notifyError(err.Error())
		return
	}
	pending := ct.machine.Pending()
	if ct.machine.Execution() != domain.ExecutionHalted || pending == nil {
		ct.notifyError("no pending breakpoint to update")
		return
	}
	if pending.UUID.String() != content.Message {
		ct.notifyError(fmt.Sprintf("message %s is not the pending breakpoint", content.Message))
		return
	}
	pending.ModifiedData = content.Content
	log.Printf("Updated content of breakpoint %s", pending.UUID)
}

func (ct *Controller) onUIDeleteRun(env *protocol.UIEnvelope) {
	var content protocol.RunRef
	if err := protocol.DecodeContent(env, &content); err != nil {
		ct.notifyError(err.Error())
		return
	}
	id, err := uuid.Parse(content.Run)
	if err != nil {
		ct.notifyError(fmt.Sprintf("invalid run uuid %q", content.Run))
		return
	}
	if err := ct.store.Delete(id); err != nil {
		ct.notifyError(err.Error())
		return
	}
	log.Printf("Deleted run %s", id)
}
