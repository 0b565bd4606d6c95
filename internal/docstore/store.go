// Package docstore provides the per-repository revisioned document store
// backed by SQLite. Documents are opaque JSON bodies keyed by prefixed
// string ids; every successful write assigns a fresh revision token and
// deletions are tombstone writes.
package docstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arvidh/inkwell/internal/apperr"
	"github.com/arvidh/inkwell/internal/checksum"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	rev        TEXT NOT NULL,
	body       TEXT NOT NULL DEFAULT '{}',
	deleted    INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store wraps a sql.DB holding one repository's documents.
type Store struct {
	conn *sql.DB
}

// Document is a stored document with its current revision.
type Document struct {
	ID   string
	Rev  string
	Body json.RawMessage
}

// PutResult reports the outcome of a successful write.
type PutResult struct {
	ID  string
	Rev string
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, wrapIO("open db", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, wrapIO("ping", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, wrapIO("apply schema", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Get returns the document with the given id. Tombstoned or absent documents
// yield apperr.ErrNotFound.
func (s *Store) Get(id string) (*Document, error) {
	var rev, body string
	err := s.conn.QueryRow(
		`SELECT rev, body FROM documents WHERE id = ? AND deleted = 0`, id,
	).Scan(&rev, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("docstore: get %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, wrapIO("get "+id, err)
	}
	return &Document{ID: id, Rev: rev, Body: json.RawMessage(body)}, nil
}

// Put writes body under id. When expectedRev is non-empty it must match the
// document's current revision or the write fails with apperr.ErrConflict;
// an empty expectedRev is an unconditional upsert. The returned revision is
// always distinct from the previous one.
func (s *Store) Put(id string, body json.RawMessage, expectedRev string) (PutResult, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return PutResult{}, wrapIO("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	cur, _, err := currentRev(tx, id)
	if err != nil {
		return PutResult{}, err
	}
	if expectedRev != "" && expectedRev != cur {
		return PutResult{}, fmt.Errorf("docstore: put %s: rev %q is stale: %w", id, expectedRev, apperr.ErrConflict)
	}

	rev := nextRev(cur, body)
	_, err = tx.Exec(`
		INSERT INTO documents (id, rev, body, deleted, updated_at)
		VALUES (?, ?, ?, 0, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			rev        = excluded.rev,
			body       = excluded.body,
			deleted    = 0,
			updated_at = excluded.updated_at
	`, id, rev, string(body))
	if err != nil {
		return PutResult{}, wrapIO("put "+id, err)
	}
	if err := tx.Commit(); err != nil {
		return PutResult{}, wrapIO("commit", err)
	}
	return PutResult{ID: id, Rev: rev}, nil
}

// Delete tombstones the document. The caller must supply the current
// revision; a stale revision fails with apperr.ErrConflict and a missing or
// already-deleted document with apperr.ErrNotFound.
func (s *Store) Delete(id, rev string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return wrapIO("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	cur, deleted, err := currentRev(tx, id)
	if err != nil {
		return err
	}
	if cur == "" || deleted {
		return fmt.Errorf("docstore: delete %s: %w", id, apperr.ErrNotFound)
	}
	if rev != cur {
		return fmt.Errorf("docstore: delete %s: rev %q is stale: %w", id, rev, apperr.ErrConflict)
	}

	_, err = tx.Exec(`
		UPDATE documents
		SET rev = ?, body = '{}', deleted = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, nextRev(cur, nil), id)
	if err != nil {
		return wrapIO("delete "+id, err)
	}
	if err := tx.Commit(); err != nil {
		return wrapIO("commit", err)
	}
	return nil
}

// ListAll returns every live document ordered by id.
func (s *Store) ListAll() ([]Document, error) {
	rows, err := s.conn.Query(`SELECT id, rev, body FROM documents WHERE deleted = 0 ORDER BY id`)
	if err != nil {
		return nil, wrapIO("list all", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var body string
		if err := rows.Scan(&d.ID, &d.Rev, &body); err != nil {
			return nil, wrapIO("scan", err)
		}
		d.Body = json.RawMessage(body)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapIO("list all", err)
	}
	return out, nil
}

// SearchNotes performs a LIKE-based search over note titles and content.
func (s *Store) SearchNotes(query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := s.conn.Query(`
		SELECT id, rev, body
		FROM documents
		WHERE deleted = 0
		  AND id LIKE 'note:%'
		  AND (json_extract(body, '$.meta.title') LIKE ?
		       OR json_extract(body, '$.content') LIKE ?)
		ORDER BY id
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, wrapIO("search", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var body string
		if err := rows.Scan(&d.ID, &d.Rev, &body); err != nil {
			return nil, wrapIO("scan", err)
		}
		d.Body = json.RawMessage(body)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapIO("search", err)
	}
	return out, nil
}

// currentRev reads a document's revision inside a transaction. It returns
// "" when the document has never existed; tombstoned documents keep their
// revision so that a recreate continues the generation sequence.
func currentRev(tx *sql.Tx, id string) (rev string, deleted bool, err error) {
	var del int
	err = tx.QueryRow(`SELECT rev, deleted FROM documents WHERE id = ?`, id).Scan(&rev, &del)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapIO("read rev "+id, err)
	}
	return rev, del == 1, nil
}

// nextRev builds the successor revision token: a monotonically increasing
// generation paired with a digest of the body.
func nextRev(cur string, body []byte) string {
	gen := 0
	if i := strings.Index(cur, "-"); i > 0 {
		if n, err := strconv.Atoi(cur[:i]); err == nil {
			gen = n
		}
	}
	return fmt.Sprintf("%d-%s", gen+1, checksum.Short(body))
}

func wrapIO(op string, err error) error {
	return fmt.Errorf("docstore: %s: %w: %v", op, apperr.ErrIO, err)
}
