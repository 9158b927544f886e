package domain

import (
	"github.com/google/uuid"
)

// Breakpoint is a payload-carrying marker attached to an event. Begin/end
// breakpoints bracket the work done by the agent for that event; the core may
// halt on any of them. Once handed back to the agent a breakpoint is
// read-only history.
type Breakpoint struct {
	UUID         uuid.UUID       `json:"uuid"`
	EventID      uuid.UUID       `json:"event_id"`
	Phase        BreakpointPhase `json:"phase"`
	OriginalData *Payload        `json:"original_data"`
	ModifiedData *Payload        `json:"modified_data"`
	Summary      string          `json:"summary,omitempty"`
	SentAt       Timestamp       `json:"sent_at"`
}

// NewBreakpoint creates a breakpoint attached to the given event. The
// modified data starts out equal to the original.
func NewBreakpoint(eventID uuid.UUID, phase BreakpointPhase, data *Payload) *Breakpoint {
	return &Breakpoint{
		UUID:         uuid.New(),
		EventID:      eventID,
		Phase:        phase,
		OriginalData: data,
		ModifiedData: data.Clone(),
		SentAt:       Now(),
	}
}

// Data returns what the agent should observe on resume: the modified data if
// present, the original otherwise.
func (b *Breakpoint) Data() *Payload {
	if b.ModifiedData != nil {
		return b.ModifiedData
	}
	return b.OriginalData
}

// Event is a discrete moment in a run's trajectory.
type Event struct {
	UUID        uuid.UUID     `json:"event_id"`
	Type        EventType     `json:"event_type"`
	Payload     *Payload      `json:"payload"`
	SentAt      Timestamp     `json:"sent_at"`
	Breakpoints []*Breakpoint `json:"breakpoints"`
}

// NewEvent creates an event of the given type.
func NewEvent(t EventType, payload *Payload) *Event {
	return &Event{
		UUID:    uuid.New(),
		Type:    t,
		Payload: payload,
		SentAt:  Now(),
	}
}

// HasEndBreakpoint reports whether the event already carries its end
// breakpoint.
func (e *Event) HasEndBreakpoint() bool {
	for _, b := range e.Breakpoints {
		if b.Phase == PhaseEnd {
			return true
		}
	}
	return false
}

// BeginBreakpoint returns the begin-phase breakpoint, or nil.
func (e *Event) BeginBreakpoint() *Breakpoint {
	for _, b := range e.Breakpoints {
		if b.Phase == PhaseBegin {
			return b
		}
	}
	return nil
}

// EndBreakpoint returns the end-phase breakpoint, or nil.
func (e *Event) EndBreakpoint() *Breakpoint {
	for _, b := range e.Breakpoints {
		if b.Phase == PhaseEnd {
			return b
		}
	}
	return nil
}

// Change is a single file mutation inside a commit.
type Change struct {
	Path            string     `json:"path"`
	Kind            ChangeKind `json:"kind"`
	Content         string     `json:"content"`
	PreviousContent string     `json:"previous_content"`
}

// Commit is a snapshot of the agent's workspace linked to the run.
type Commit struct {
	ID      string    `json:"id"`
	Date    Timestamp `json:"date"`
	Title   string    `json:"title"`
	Changes []Change  `json:"changes"`
}
