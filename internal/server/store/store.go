// Package store persists vault accounts and password records in a
// local sqlite database. Password values are ciphertext produced by
// the owning client; the server never holds plaintext.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrUsernameTaken  = errors.New("store: username already exists")
	ErrPublicKeyTaken = errors.New("store: public key already exists")
	ErrUnknownUser    = errors.New("store: unknown user")
	ErrUnknownSource  = errors.New("store: unknown source")
	ErrSourceExists   = errors.New("store: source already has a password")
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	username    TEXT NOT NULL UNIQUE,
	public_key  BLOB NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS passwords (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL REFERENCES users(id),
	source      TEXT NOT NULL,
	ciphertext  BLOB NOT NULL,
	UNIQUE(user_id, source)
);
`

type Store struct {
	db *sql.DB
}

// Open opens (and bootstraps, if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: bootstrap schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser records a new account with its public key DER.
func (s *Store) CreateUser(username string, publicKey []byte) error {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM users WHERE username = ?`, username).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return ErrUsernameTaken
	}
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM users WHERE public_key = ?`, publicKey).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return ErrPublicKeyTaken
	}
	_, err := s.db.Exec(`INSERT INTO users (username, public_key) VALUES (?, ?)`, username, publicKey)
	return err
}

// PublicKey returns the stored public key DER for username.
func (s *Store) PublicKey(username string) ([]byte, error) {
	var der []byte
	err := s.db.QueryRow(`SELECT public_key FROM users WHERE username = ?`, username).Scan(&der)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	return der, nil
}

// UserID resolves username to its row id.
func (s *Store) UserID(username string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUnknownUser
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Sources lists the source names with stored passwords for userID.
func (s *Store) Sources(userID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT source FROM passwords WHERE user_id = ? ORDER BY source`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := []string{}
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// Password returns the stored ciphertext for one source.
func (s *Store) Password(userID int64, source string) ([]byte, error) {
	var ciphertext []byte
	err := s.db.QueryRow(`SELECT ciphertext FROM passwords WHERE user_id = ? AND source = ?`, userID, source).Scan(&ciphertext)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownSource
	}
	if err != nil {
		return nil, err
	}
	return ciphertext, nil
}

// SetPassword stores ciphertext for a source that has none yet.
func (s *Store) SetPassword(userID int64, source string, ciphertext []byte) error {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM passwords WHERE user_id = ? AND source = ?`, userID, source).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return ErrSourceExists
	}
	_, err := s.db.Exec(`INSERT INTO passwords (user_id, source, ciphertext) VALUES (?, ?, ?)`, userID, source, ciphertext)
	return err
}

// DeletePassword removes the record for one source.
func (s *Store) DeletePassword(userID int64, source string) error {
	res, err := s.db.Exec(`DELETE FROM passwords WHERE user_id = ? AND source = ?`, userID, source)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUnknownSource
	}
	return nil
}

// DeleteUser removes the account and every password it owns.
func (s *Store) DeleteUser(userID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM passwords WHERE user_id = ?`, userID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`DELETE FROM users WHERE id = ?`, userID); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
