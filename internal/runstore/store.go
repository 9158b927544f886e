// Package runstore maintains the in-memory aggregate of all known runs: the
// single active run, the closed historical runs, and the indexes over them.
package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
)

// Sentinel errors callers branch on.
var (
	ErrNoActiveRun     = errors.New("no active run")
	ErrUnknownEvent    = errors.New("breakpoint references an unknown event")
	ErrUnknownRun      = errors.New("no run with that uuid")
	ErrActiveRun       = errors.New("the active run cannot be deleted")
	ErrVersionMismatch = errors.New("run was exported by a different server version")
)

// Log persists closed runs durably. Implementations own the byte sequences
// of closed runs; the store keeps everything else in memory.
type Log interface {
	Save(run *domain.Run, exportBytes []byte) error
	LoadAll() ([]*domain.Run, error)
}

// Store is the in-memory run aggregate. It is not safe for concurrent use;
// the controller serializes access.
type Store struct {
	serverVersion string
	runlog        Log

	historical []*domain.Run // newest first
	active     *domain.Run
	index      map[uuid.UUID]*domain.Run
}

// New creates an empty store persisting closed runs to runlog. A nil runlog
// disables persistence.
func New(serverVersion string, runlog Log) *Store {
	return &Store{
		serverVersion: serverVersion,
		runlog:        runlog,
		index:         make(map[uuid.UUID]*domain.Run),
	}
}

// Restore loads previously persisted runs from the log into history, newest
// first. Called once at startup.
func (s *Store) Restore() error {
	if s.runlog == nil {
		return nil
	}
	runs, err := s.runlog.LoadAll()
	if err != nil {
		return fmt.Errorf("restoring run history: %w", err)
	}
	for _, run := range runs {
		run.Name = s.uniqueName(run.Name, run.UUID)
		s.historical = append(s.historical, run)
		s.index[run.UUID] = run
	}
	return nil
}

// OpenRun creates a new active run for the given program.
func (s *Store) OpenRun(programName string, startTime domain.Timestamp) *domain.Run {
	name := s.uniqueName(s.defaultName(programName), uuid.Nil)
	run := domain.NewRun(name, programName, s.serverVersion, startTime)
	s.active = run
	s.index[run.UUID] = run
	return run
}

// defaultName yields "Run #n of <program>" where n is one more than the
// number of runs of the same program already in the store.
func (s *Store) defaultName(programName string) string {
	n := 1
	for _, run := range s.allRuns() {
		if run.ProgramName == programName {
			n++
		}
	}
	return fmt.Sprintf("Run #%d of %s", n, programName)
}

// uniqueName suffixes an integer until the candidate collides with no run
// other than self.
func (s *Store) uniqueName(candidate string, self uuid.UUID) string {
	name := candidate
	for i := 2; s.nameTaken(name, self); i++ {
		name = fmt.Sprintf("%s (%d)", candidate, i)
	}
	return name
}

func (s *Store) nameTaken(name string, self uuid.UUID) bool {
	for _, run := range s.allRuns() {
		if run.Name == name && run.UUID != self {
			return true
		}
	}
	return false
}

func (s *Store) allRuns() []*domain.Run {
	runs := make([]*domain.Run, 0, len(s.historical)+1)
	runs = append(runs, s.historical...)
	if s.active != nil {
		runs = append(runs, s.active)
	}
	return runs
}

// Active returns the active run, or nil.
func (s *Store) Active() *domain.Run { return s.active }

// Runs returns the historical runs (newest first) followed by the active run
// if any.
func (s *Store) Runs() []*domain.Run { return s.allRuns() }

// RunByID looks up any known run.
func (s *Store) RunByID(id uuid.UUID) *domain.Run { return s.index[id] }

// AttachEvent appends an event to the active run.
func (s *Store) AttachEvent(ev *domain.Event) error {
	if s.active == nil {
		return ErrNoActiveRun
	}
	s.active.AddEvent(ev)
	return nil
}

// AttachBreakpoint appends a breakpoint to its event in the active run and
// returns that event. The modified data defaults to the original.
func (s *Store) AttachBreakpoint(bp *domain.Breakpoint) (*domain.Event, error) {
	if s.active == nil {
		return nil, ErrNoActiveRun
	}
	ev := s.active.EventByID(bp.EventID)
	if ev == nil {
		return nil, ErrUnknownEvent
	}
	if bp.ModifiedData == nil {
		bp.ModifiedData = bp.OriginalData.Clone()
	}
	ev.Breakpoints = append(ev.Breakpoints, bp)
	return ev, nil
}

// AttachCommit appends a commit to the active run.
func (s *Store) AttachCommit(c domain.Commit) error {
	if s.active == nil {
		return ErrNoActiveRun
	}
	s.active.AddCommit(c)
	return nil
}

// CloseActive seals the active run: it synthesizes a terminal
// PROGRAM_FINISHED event carrying reason as a message-phase breakpoint,
// persists the run, and moves it to history. The terminal event is returned
// so the caller can notify the UI. A persistence failure is reported but the
// run is still kept in history.
func (s *Store) CloseActive(reason string) (*domain.Run, *domain.Event, error) {
	if s.active == nil {
		return nil, nil, ErrNoActiveRun
	}
	run := s.active

	terminal := domain.NewEvent(domain.EventProgramFinished, nil)
	bp := domain.NewBreakpoint(terminal.UUID, domain.PhaseMessage, nil)
	bp.Summary = reason
	terminal.Breakpoints = append(terminal.Breakpoints, bp)
	run.AddEvent(terminal)

	s.historical = append([]*domain.Run{run}, s.historical...)
	s.active = nil

	var persistErr error
	if s.runlog != nil {
		data, err := s.Export(run.UUID)
		if err == nil {
			err = s.runlog.Save(run, data)
		}
		if err != nil {
			log.Printf("Failed to persist run %s: %v", run.UUID, err)
			persistErr = fmt.Errorf("persisting run %q: %w", run.Name, err)
		}
	}
	return run, terminal, persistErr
}

// Export serializes the whole run deterministically.
func (s *Store) Export(id uuid.UUID) ([]byte, error) {
	run := s.index[id]
	if run == nil {
		return nil, ErrUnknownRun
	}
	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("exporting run %s: %w", id, err)
	}
	return data, nil
}

// Import reconstructs a run from export bytes and inserts it into history.
// The uuid is preserved unless it collides with a run already known.
func (s *Store) Import(data []byte) (*domain.Run, error) {
	var run domain.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parsing imported run: %w", err)
	}
	if run.ServerVersion != s.serverVersion {
		return nil, fmt.Errorf("%w: got %q, need %q", ErrVersionMismatch, run.ServerVersion, s.serverVersion)
	}
	if _, exists := s.index[run.UUID]; exists {
		run.UUID = uuid.New()
	}
	run.Name = s.uniqueName(run.Name, run.UUID)
	s.historical = append([]*domain.Run{&run}, s.historical...)
	s.index[run.UUID] = &run
	return &run, nil
}

// Delete removes a historical run. The active run cannot be deleted.
func (s *Store) Delete(id uuid.UUID) error {
	if s.active != nil && s.active.UUID == id {
		return ErrActiveRun
	}
	if _, ok := s.index[id]; !ok {
		return ErrUnknownRun
	}
	delete(s.index, id)
	for i, run := range s.historical {
		if run.UUID == id {
			s.historical = append(s.historical[:i], s.historical[i+1:]...)
			break
		}
	}
	return nil
}

// Rename updates a run's name, keeping names unique store-wide.
func (s *Store) Rename(id uuid.UUID, name string) error {
	run := s.index[id]
	if run == nil {
		return ErrUnknownRun
	}
	run.Name = s.uniqueName(name, id)
	return nil
}
