package debugger

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/agent-stepper-anon/agent-stepper/internal/config"
	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
	"github.com/agent-stepper-anon/agent-stepper/internal/protocol"
	"github.com/agent-stepper-anon/agent-stepper/internal/runstore"
	"github.com/agent-stepper-anon/agent-stepper/internal/summarizer"
)

// Controller wires the channels, the run store, the state machine and the
// summarizer. Every inbound message enters through a single serialized
// execution lane guarded by mu: handlers are atomic with respect to each
// other, and all shared state is only touched while it is held. Outbound
// frames leave through the per-connection send buffers and never block the
// lane.
type Controller struct {
	cfg     *config.Config
	store   *runstore.Store
	sum     *summarizer.Summarizer
	machine *Machine

	upgrader websocket.Upgrader

	mu    sync.Mutex
	agent *Conn
	ui    *Conn
}

// New creates a controller around the given collaborators. The summarizer
// may be nil, in which case breakpoint summaries stay empty.
func New(cfg *config.Config, store *runstore.Store, sum *summarizer.Summarizer) *Controller {
	return &Controller{
		cfg:     cfg,
		store:   store,
		sum:     sum,
		machine: NewMachine(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleAgent upgrades and runs the agent channel. Exactly one agent may be
// connected; a second attempt is closed with a reason and never read from.
func (ct *Controller) HandleAgent(c echo.Context) error {
	ws, err := ct.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade agent WebSocket: %v", err)
		return err
	}

	ct.mu.Lock()
	if ct.agent != nil {
		ct.mu.Unlock()
		log.Printf("Already connected to an agent, second agent not allowed")
		rejectSocket(ws, "an agent is already connected")
		return nil
	}
	conn := newConn(ws)
	ct.agent = conn
	ct.mu.Unlock()

	log.Printf("Agent connected")
	ws.SetReadLimit(ct.cfg.MaxMessageSize)

	go conn.writePump(ct.cfg.PingInterval, ct.cfg.WriteTimeout)
	go func() {
		conn.readPump(ct.cfg.ReadTimeout, ct.handleAgentFrame)
		ct.onAgentDisconnect(conn)
	}()
	return nil
}

// HandleUI upgrades and runs the UI channel; same single-peer discipline as
// the agent channel. The UI may send arbitrarily large frames (imports), so
// no read limit is set.
func (ct *Controller) HandleUI(c echo.Context) error {
	ws, err := ct.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade UI WebSocket: %v", err)
		return err
	}

	ct.mu.Lock()
	if ct.ui != nil {
		ct.mu.Unlock()
		log.Printf("Already connected to the UI, second connection not allowed")
		rejectSocket(ws, "a UI is already connected")
		return nil
	}
	conn := newConn(ws)
	ct.ui = conn
	snapshot := ct.initAppStateFrame()
	ct.mu.Unlock()

	log.Printf("UI connected")
	conn.Send(snapshot)

	go conn.writePump(ct.cfg.PingInterval, ct.cfg.WriteTimeout)
	go func() {
		conn.readPump(ct.cfg.ReadTimeout, ct.handleUIFrame)
		ct.onUIDisconnect(conn)
	}()
	return nil
}

// rejectSocket refuses a surplus connection: close frame with a reason, then
// drop. Nothing is ever read from it.
func rejectSocket(ws *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	ws.WriteControl(websocket.CloseMessage, msg, wsControlDeadline())
	ws.Close()
}

func (ct *Controller) onAgentDisconnect(conn *Conn) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if ct.agent != conn {
		return
	}
	ct.agent = nil
	log.Printf("Agent disconnected")
	if ct.store.Active() != nil {
		ct.closeActiveRun("agent disconnected")
	}
}

func (ct *Controller) onUIDisconnect(conn *Conn) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if ct.ui != conn {
		return
	}
	ct.ui = nil
	log.Printf("UI disconnected")
}

// sendUI queues a frame for the UI if one is connected. Lane must be held.
func (ct *Controller) sendUI(frame []byte) {
	if ct.ui != nil {
		ct.ui.Send(frame)
	}
}

// sendAgent queues a frame for the agent if one is connected. Lane must be
// held.
func (ct *Controller) sendAgent(frame []byte) {
	if ct.agent != nil {
		ct.agent.Send(frame)
	}
}

func (ct *Controller) notifyError(message string) {
	ct.sendUI(protocol.EncodeError(message))
}

// failAgentSession handles a fatal agent protocol violation: the UI is
// informed and the agent socket is closed with the reason. Run closure then
// happens through the normal disconnect path.
func (ct *Controller) failAgentSession(reason string) {
	log.Printf("Agent protocol violation: %s", reason)
	ct.notifyError("agent protocol violation: " + reason)
	if ct.agent != nil {
		ct.agent.CloseWithReason(reason, ct.cfg.WriteTimeout)
	}
}

// closeActiveRun seals the active run, resets the state machine and notifies
// the UI of the terminal message and state. Lane must be held.
func (ct *Controller) closeActiveRun(reason string) {
	run, terminal, err := ct.store.CloseActive(reason)
	if run == nil {
		return
	}
	ct.machine.Finish()

	if len(terminal.Breakpoints) > 0 {
		msg := protocol.MessageFromBreakpoint(terminal.Breakpoints[0], terminal)
		ct.sendUI(protocol.EncodeNewMessage(run.UUID, msg))
	}
	ct.sendUI(protocol.EncodeUpdateRunState(run.UUID, domain.ExecutionIdle, domain.AgentFinished, nil))

	if err != nil {
		// The run stays available in memory history even when the log write
		// failed.
		ct.notifyError(err.Error())
	}
}

// initAppStateFrame builds the snapshot sent once when the UI connects. Lane
// must be held.
func (ct *Controller) initAppStateFrame() []byte {
	active := ct.store.Active()

	var haltedAt *uuid.UUID
	if p := ct.machine.Pending(); p != nil {
		id := p.UUID
		haltedAt = &id
	}

	runs := make([]*protocol.SerializedRun, 0, len(ct.store.Runs()))
	for _, run := range ct.store.Runs() {
		if active != nil && run.UUID == active.UUID {
			runs = append(runs, protocol.SerializeRun(run, ct.machine.Execution(), ct.machine.AgentState(), haltedAt))
		} else {
			runs = append(runs, protocol.SerializeRun(run, domain.ExecutionIdle, domain.AgentFinished, nil))
		}
	}

	var activeID *uuid.UUID
	if active != nil {
		id := active.UUID
		activeID = &id
	}
	return protocol.EncodeInitAppState(runs, activeID, haltedAt)
}

// updateRunState pushes the machine's current state for the given run. Lane
// must be held.
func (ct *Controller) updateRunState(runID uuid.UUID, haltedAt *uuid.UUID) {
	ct.sendUI(protocol.EncodeUpdateRunState(runID, ct.machine.Execution(), ct.machine.AgentState(), haltedAt))
}
