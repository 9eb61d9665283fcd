// Package session reads the signed-in admin's credentials from the
// console's local database. The console owns this file; the chat core
// only consumes it.
package session

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoSession indicates nobody is signed in to the console.
var ErrNoSession = errors.New("no active session")

// Session is the stored identity of the signed-in admin.
type Session struct {
	Token       string
	SelfID      string
	DisplayName string
}

// Store handles session database access.
type Store struct {
	db *sql.DB
}

// NewStore opens the console database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_fk=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate session database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			token TEXT NOT NULL,
			self_id TEXT NOT NULL,
			display_name TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Session returns the active session, or ErrNoSession if none is stored.
func (s *Store) Session() (*Session, error) {
	var sess Session
	err := s.db.QueryRow(`SELECT token, self_id, display_name FROM sessions WHERE id = 1`).
		Scan(&sess.Token, &sess.SelfID, &sess.DisplayName)
	if err == sql.ErrNoRows {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}
