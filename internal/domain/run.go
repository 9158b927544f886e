package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Run is one execution of an agent program, start to finish, as observed by
// the core. A run owns its events and commits, and through the events their
// breakpoints.
type Run struct {
	UUID          uuid.UUID
	Name          string
	ProgramName   string
	StartTime     Timestamp
	ServerVersion string
	Events        []*Event
	Commits       []Commit

	eventIndex map[uuid.UUID]*Event
}

// NewRun creates a run for the given program with a fresh uuid.
func NewRun(name, programName, serverVersion string, startTime Timestamp) *Run {
	return &Run{
		UUID:          uuid.New(),
		Name:          name,
		ProgramName:   programName,
		StartTime:     startTime,
		ServerVersion: serverVersion,
		eventIndex:    make(map[uuid.UUID]*Event),
	}
}

// AddEvent appends an event and indexes it by id.
func (r *Run) AddEvent(e *Event) {
	if r.eventIndex == nil {
		r.eventIndex = make(map[uuid.UUID]*Event)
	}
	r.Events = append(r.Events, e)
	r.eventIndex[e.UUID] = e
}

// AddCommit appends a commit. Commits are strictly ordered and never mutated.
func (r *Run) AddCommit(c Commit) {
	r.Commits = append(r.Commits, c)
}

// EventByID returns the event with the given id, or nil.
func (r *Run) EventByID(id uuid.UUID) *Event {
	return r.eventIndex[id]
}

// PreviousQueries returns the LLM query events that happened strictly before
// the given event, oldest first. Events arrive in order, so slice order is
// time order.
func (r *Run) PreviousQueries(before *Event) []*Event {
	var queries []*Event
	for _, e := range r.Events {
		if before != nil && e.UUID == before.UUID {
			break
		}
		if e.Type == EventLLMQuery {
			queries = append(queries, e)
		}
	}
	return queries
}

type runWire struct {
	UUID          uuid.UUID `json:"uuid"`
	Name          string    `json:"name"`
	ProgramName   string    `json:"program_name"`
	StartTime     Timestamp `json:"start_time"`
	ServerVersion string    `json:"server_version"`
	Events        []*Event  `json:"events"`
	Commits       []Commit  `json:"commits"`
}

// MarshalJSON produces the deterministic, self-describing serialization used
// for export and log persistence.
func (r *Run) MarshalJSON() ([]byte, error) {
	return json.Marshal(runWire{
		UUID:          r.UUID,
		Name:          r.Name,
		ProgramName:   r.ProgramName,
		StartTime:     r.StartTime,
		ServerVersion: r.ServerVersion,
		Events:        r.Events,
		Commits:       r.Commits,
	})
}

// UnmarshalJSON reconstructs a run, rebuilding the event index.
func (r *Run) UnmarshalJSON(data []byte) error {
	var w runWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	r.UUID = w.UUID
	r.Name = w.Name
	r.ProgramName = w.ProgramName
	r.StartTime = w.StartTime
	r.ServerVersion = w.ServerVersion
	r.Commits = w.Commits
	r.Events = nil
	r.eventIndex = make(map[uuid.UUID]*Event)
	for _, e := range w.Events {
		r.AddEvent(e)
	}
	return nil
}
