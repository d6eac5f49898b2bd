package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/tatami/internal/checksum"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	body       BLOB NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (namespace, key)
);
`

// SQLite holds documents for any number of namespaces in a single database file.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database and applies the schema.
// dsn is a file path or a "file:" URI, optionally with its own parameters.
func OpenSQLite(dsn string) (*SQLite, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite3", dsn+sep+"_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if inMemory(dsn) {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

func inMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Backend returns a Backend scoped to namespace.
func (s *SQLite) Backend(namespace string) Backend {
	return &sqliteBackend{conn: s.conn, ns: namespace}
}

type sqliteBackend struct {
	conn *sql.DB
	ns   string
}

func (b *sqliteBackend) List() ([]string, error) {
	rows, err := b.conn.Query(`SELECT key FROM documents WHERE namespace = ? ORDER BY key`, b.ns)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (b *sqliteBackend) Read(key string) ([]byte, error) {
	var body []byte
	err := b.conn.QueryRow(`SELECT body FROM documents WHERE namespace = ? AND key = ?`, b.ns, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: read %s: %w", key, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return body, nil
}

func (b *sqliteBackend) Checksum(key string) (string, error) {
	var sum string
	err := b.conn.QueryRow(`SELECT checksum FROM documents WHERE namespace = ? AND key = ?`, b.ns, key).Scan(&sum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("storage: checksum %s: %w", key, fs.ErrNotExist)
	}
	if err != nil {
		return "", fmt.Errorf("storage: checksum %s: %w", key, err)
	}
	return sum, nil
}

func (b *sqliteBackend) Write(key string, content []byte) error {
	_, err := b.conn.Exec(`
		INSERT INTO documents (namespace, key, body, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			body       = excluded.body,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, b.ns, key, content, checksum.Sum(content), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	return nil
}

func (b *sqliteBackend) Delete(key string) error {
	res, err := b.conn.Exec(`DELETE FROM documents WHERE namespace = ? AND key = ?`, b.ns, key)
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("storage: delete %s: %w", key, fs.ErrNotExist)
	}
	return nil
}
