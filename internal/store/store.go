// Package store persists mission survey data in SQLite: navigation and
// per-sensor samples decoded from binary logs, media assets with their
// frame indexes, and tide reference data. Batch writes are wrapped in
// one transaction per logical unit so a failed flush never leaves a
// half-written set behind.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const (
	// RunApply executes writes normally.
	RunApply RunMode = iota

	// RunSimulate makes every mutating operation a no-op while reads
	// behave as usual. The decision is made here, at the storage
	// boundary, so callers never branch on a dry-run flag themselves.
	RunSimulate
)

// RunMode selects whether mutating operations are applied or simulated.
type RunMode int

func (m RunMode) String() string {
	if m == RunSimulate {
		return "simulate"
	}
	return "apply"
}

// ErrNotFound is returned by single-row lookups with no matching row.
var ErrNotFound = errors.New("store: not found")

// WithRunMode sets the store's run mode. The default is RunApply.
func WithRunMode(mode RunMode) func(*Store) {
	return func(s *Store) {
		s.mode = mode
	}
}

// WithBatchSize caps how many rows each multi-VALUES insert statement
// carries within a transaction.
func WithBatchSize(size int) func(*Store) {
	return func(s *Store) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// Store handles database operations. Write and read connections are
// opened lazily and independently; the write connection initializes
// the schema on first use.
type Store struct {
	dbPath    string
	mode      RunMode
	batchSize int

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

const defaultBatchSize = 500

// New creates a store for the database at dbPath. No connection is
// opened until first use.
func New(dbPath string, options ...func(*Store)) *Store {
	s := Store{dbPath: dbPath, batchSize: defaultBatchSize}
	for _, option := range options {
		option(&s)
	}
	return &s
}

// Mode returns the store's run mode.
func (s *Store) Mode() RunMode {
	return s.mode
}

// Simulated reports whether mutating operations are being skipped.
func (s *Store) Simulated() bool {
	return s.mode == RunSimulate
}

func runSQLCommand(db *sql.DB, command string) error {
	_, err := db.Exec(command)
	return err
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath,
			"_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_loc=UTC"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro&_loc=UTC"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// Close closes both database connections. It is safe to call more
// than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}
