// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package results persists throughput measurements in SQLite. Each run
// records one TX and one RX value per rotation angle.
package results

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// TimeLayout formats a run's timestamp.
const TimeLayout = "2006/01/02 15:04:05"

// Direction of a measurement.
type Direction string

const (
	TX Direction = "TX"
	RX Direction = "RX"
)

// ErrUnknownRun is returned by Record for a zero Run.
var ErrUnknownRun = errors.New("results: unknown run")

const schema = `CREATE TABLE IF NOT EXISTS measurements (
	run_at    TEXT NOT NULL,
	run_id    TEXT NOT NULL,
	direction TEXT NOT NULL CHECK (direction IN ('TX', 'RX')),
	angle     REAL NOT NULL,
	mbps      REAL NOT NULL
)`

// Run identifies one invocation of the measurement loop.
type Run struct {
	ID string
	At string
}

// Store is a results database. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// NewRun starts a run stamped with the current local time.
func (s *Store) NewRun() Run {
	return Run{ID: uuid.NewString(), At: s.now().Format(TimeLayout)}
}

// Record stores one measurement.
func (s *Store) Record(run Run, dir Direction, angle, mbps float64) error {
	if run.ID == "" {
		return ErrUnknownRun
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		"INSERT INTO measurements (run_at, run_id, direction, angle, mbps) VALUES (?, ?, ?, ?, ?)",
		run.At, run.ID, string(dir), angle, mbps,
	)
	if err != nil {
		return fmt.Errorf("recording %s at %v: %w", dir, angle, err)
	}
	return nil
}

// Series is the pivot of one direction: a row per angle and a column per
// run. Cells[i][j] is the value at Angles[i] in Runs[j], or nil.
type Series struct {
	Direction Direction
	Angles    []float64
	Runs      []Run
	Cells     [][]*float64
}

// Series returns every measurement for dir. Angles and runs keep the order
// they were first recorded in.
func (s *Store) Series(dir Direction) (*Series, error) {
	rows, err := s.db.Query(
		"SELECT run_at, run_id, angle, mbps FROM measurements WHERE direction = ? ORDER BY rowid",
		string(dir),
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", dir, err)
	}
	defer rows.Close()

	out := &Series{Direction: dir}
	angleRow := map[float64]int{}
	runCol := map[string]int{}
	type cell struct {
		row, col int
		mbps     float64
	}
	var cells []cell
	for rows.Next() {
		var (
			run         Run
			angle, mbps float64
		)
		if err := rows.Scan(&run.At, &run.ID, &angle, &mbps); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
		r, ok := angleRow[angle]
		if !ok {
			r = len(out.Angles)
			angleRow[angle] = r
			out.Angles = append(out.Angles, angle)
		}
		c, ok := runCol[run.ID]
		if !ok {
			c = len(out.Runs)
			runCol[run.ID] = c
			out.Runs = append(out.Runs, run)
		}
		cells = append(cells, cell{r, c, mbps})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	out.Cells = make([][]*float64, len(out.Angles))
	for i := range out.Cells {
		out.Cells[i] = make([]*float64, len(out.Runs))
	}
	for _, c := range cells {
		v := c.mbps
		out.Cells[c.row][c.col] = &v
	}
	return out, nil
}
