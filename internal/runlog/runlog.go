// Package runlog persists closed runs. The log is an append-only directory
// with one file per run holding the exact export byte sequence, plus a
// sqlite catalog so history can be listed without parsing every file. The
// files are the source of truth; the catalog is rebuilt from them when
// missing or stale.
package runlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agent-stepper-anon/agent-stepper/internal/domain"
)

const runFileExt = ".run"

// DirLog is a directory-backed run log.
type DirLog struct {
	dir string
	db  *sql.DB
}

// Open opens (creating if needed) the log directory and its catalog.
func Open(dir string) (*DirLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, "catalog.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	l := &DirLog{dir: dir, db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate catalog: %w", err)
	}
	if err := l.reconcile(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reconcile catalog: %w", err)
	}
	return l, nil
}

func (l *DirLog) migrate() error {
	_, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		uuid TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		program_name TEXT NOT NULL,
		start_time TEXT NOT NULL,
		server_version TEXT NOT NULL,
		file TEXT NOT NULL
	)`)
	return err
}

// reconcile inserts catalog rows for run files written by an earlier core
// whose catalog entries are missing.
func (l *DirLog) reconcile() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), runFileExt) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), runFileExt)
		var count int
		if err := l.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE uuid = ?`, id).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		run, err := l.readRunFile(entry.Name())
		if err != nil {
			// An unreadable file is skipped, not fatal: the log must never
			// prevent the core from starting.
			continue
		}
		if err := l.insert(run, entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (l *DirLog) insert(run *domain.Run, file string) error {
	_, err := l.db.Exec(
		`INSERT OR REPLACE INTO runs (uuid, name, program_name, start_time, server_version, file) VALUES (?, ?, ?, ?, ?, ?)`,
		run.UUID.String(), run.Name, run.ProgramName, run.StartTime.String(), run.ServerVersion, file)
	return err
}

// Save writes the run's export bytes to a per-run file and catalogs it.
func (l *DirLog) Save(run *domain.Run, exportBytes []byte) error {
	file := run.UUID.String() + runFileExt
	if err := os.WriteFile(filepath.Join(l.dir, file), exportBytes, 0o644); err != nil {
		return fmt.Errorf("writing run file: %w", err)
	}
	if err := l.insert(run, file); err != nil {
		return fmt.Errorf("cataloging run: %w", err)
	}
	return nil
}

// Load returns the persisted byte sequence of the given run.
func (l *DirLog) Load(id uuid.UUID) ([]byte, error) {
	var file string
	err := l.db.QueryRow(`SELECT file FROM runs WHERE uuid = ?`, id.String()).Scan(&file)
	if err == sql.ErrNoRows {
		file = id.String() + runFileExt
	} else if err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(l.dir, file))
}

// LoadAll reads every cataloged run, newest first.
func (l *DirLog) LoadAll() ([]*domain.Run, error) {
	rows, err := l.db.Query(`SELECT file FROM runs ORDER BY start_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		var file string
		if err := rows.Scan(&file); err != nil {
			return nil, err
		}
		run, err := l.readRunFile(file)
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (l *DirLog) readRunFile(file string) (*domain.Run, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, file))
	if err != nil {
		return nil, err
	}
	var run domain.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	return &run, nil
}

// Close closes the catalog.
func (l *DirLog) Close() error {
	return l.db.Close()
}
