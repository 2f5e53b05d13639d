package eventlog

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/traysim/traysim/sim"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteSink persists events to a SQLite database, one row per event keyed by
// (run id, sequence number).
type SQLiteSink struct {
	db     *sql.DB
	insert *sql.Stmt
	runID  string
	seq    int64
}

// OpenSQLite creates or opens the database at path and prepares it for
// appending events of runID.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - a single connection, since SQLite allows one writer at a time
func OpenSQLite(path, runID string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	insert, err := db.Prepare(`INSERT INTO events
		(run_id, seq, t, kind, station, tray, workpiece, tail, head, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	return &SQLiteSink{db: db, insert: insert, runID: runID}, nil
}

// Record implements sim.EventSink.
func (s *SQLiteSink) Record(e sim.Event) error {
	s.seq++
	_, err := s.insert.Exec(s.runID, s.seq, float64(e.Time), string(e.Kind),
		e.Station, e.Tray, e.Workpiece, e.Tail, e.Head, float64(e.Duration))
	if err != nil {
		return fmt.Errorf("insert event %d: %w", s.seq, err)
	}
	return nil
}

// RunID returns the run id stamped on every row.
func (s *SQLiteSink) RunID() string {
	return s.runID
}

// Events reads back the events of runID in recording order.
func (s *SQLiteSink) Events(runID string) ([]sim.Event, error) {
	rows, err := s.db.Query(`SELECT t, kind, station, tray, workpiece, tail, head, duration
		FROM events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	var events []sim.Event
	for rows.Next() {
		var (
			e             sim.Event
			t, d          float64
			kind          string
			station, tray uint32
			wp, tail, hd  uint32
		)
		if err := rows.Scan(&t, &kind, &station, &tray, &wp, &tail, &hd, &d); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Time, e.Kind, e.Duration = sim.Time(t), sim.EventKind(kind), sim.Time(d)
		e.Station, e.Tray, e.Workpiece = sim.StationID(station), sim.TrayID(tray), sim.WorkpieceID(wp)
		e.Tail, e.Head = sim.StationID(tail), sim.StationID(hd)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close releases the statement and the database.
func (s *SQLiteSink) Close() error {
	if s.db == nil {
		return nil
	}
	s.insert.Close()
	err := s.db.Close()
	s.db = nil
	return err
}
