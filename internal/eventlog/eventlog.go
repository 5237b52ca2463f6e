// Package eventlog persists simulation event streams to CSV or SQLite,
// adapted from the teacher's CSVLogger/SQLiteLogger pair in
// csv_logger.go/sqlite_logger.go. Where those loggers fan writer
// functions out over per-field channels for genotype data, a
// hypergraph-contagion run has one flat stream of transition events, so
// each Sink here exposes a single RecordEvent call instead.
package eventlog

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
)

// Sink receives one call per event a simulation run emits.
type Sink interface {
	RecordEvent(runID string, t float64, source *string, target, oldState, newState string, initial bool) error
	Close() error
}

// NewRunID mints a new sortable run identifier, the same convention the
// teacher uses for genotype and node IDs elsewhere in the package.
func NewRunID() string {
	return ksuid.New().String()
}

// CSVSink appends one row per event to a CSV file, creating it with a
// header on first use. It mirrors AppendToFile's create-or-append
// semantics from the teacher's csv_logger.go.
type CSVSink struct {
	path string
	f    *os.File
	w    *csv.Writer
}

// NewCSVSink opens (or creates) path for append and prepares a CSV
// writer. The header row is written only when the file is new.
func NewCSVSink(path string) (*CSVSink, error) {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening event log %s", path)
	}
	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write([]string{"run_id", "time", "source", "target", "old_state", "new_state", "initial"}); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "writing event log header")
		}
		w.Flush()
	}
	return &CSVSink{path: path, f: f, w: w}, nil
}

func (s *CSVSink) RecordEvent(runID string, t float64, source *string, target, oldState, newState string, initial bool) error {
	src := ""
	if source != nil {
		src = *source
	}
	row := []string{
		runID,
		strconv.FormatFloat(t, 'g', -1, 64),
		src,
		target,
		oldState,
		newState,
		strconv.FormatBool(initial),
	}
	if err := s.w.Write(row); err != nil {
		return errors.Wrap(err, "writing event log row")
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	return s.f.Close()
}

// SQLiteSink writes each run's events into its own table, named
// Events_<runID>, following the per-instance table-naming convention of
// the teacher's SQLiteLogger.Init.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the database at path, grounded on
// OpenSQLiteDB in sqlite_logger.go.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening event log database %s", path)
	}
	return &SQLiteSink{db: db}, nil
}

// EnsureTable creates the Events_<runID> table if it does not exist yet,
// mirroring the create-table-per-run pattern of SQLiteLogger.Init.
func (s *SQLiteSink) EnsureTable(runID string) error {
	stmt := fmt.Sprintf(
		`create table if not exists %s (
			id integer not null primary key,
			time real,
			source text,
			target text,
			old_state text,
			new_state text,
			initial integer
		)`,
		tableName(runID),
	)
	if _, err := s.db.Exec(stmt); err != nil {
		return errors.Wrapf(err, "creating event log table for run %s", runID)
	}
	return nil
}

func (s *SQLiteSink) RecordEvent(runID string, t float64, source *string, target, oldState, newState string, initial bool) error {
	stmt := "insert into " + tableName(runID) + "(time, source, target, old_state, new_state, initial) values(?, ?, ?, ?, ?, ?)"
	var src interface{}
	if source != nil {
		src = *source
	}
	_, err := s.db.Exec(stmt, t, src, target, oldState, newState, initial)
	if err != nil {
		return errors.Wrapf(err, "inserting event log row for run %s", runID)
	}
	return nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func tableName(runID string) string {
	return "Events_" + runID
}
