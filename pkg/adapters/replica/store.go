package replica

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/aretw0/furrow/pkg/adapters/replica/migrations"
	"github.com/aretw0/furrow/pkg/core"
)

// store persists documents, entries and blobs in a single SQLite database.
type store struct {
	db   *sql.DB
	path string
}

func openStore(dataDir string) (*store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "furrow.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *store) Close() error {
	return s.db.Close()
}

// migrate applies every NNN_name.up.sql file newer than the recorded version.
func (s *store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	dirEntries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range dirEntries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *store) meta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM node_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

func (s *store) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO node_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *store) createDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO documents (id, created_at) VALUES (?, ?)",
		id, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("creating document %s: %w", id, err)
	}
	return nil
}

func (s *store) hasDocument(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("looking up document %s: %w", id, err)
	}
	return n > 0, nil
}

// putEntry stores e unless an entry at least as new already exists for the key.
// It reports whether the entry was applied.
func (s *store) putEntry(ctx context.Context, docID string, e core.Entry) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (doc_id, key, author, hash, len, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id, key) DO UPDATE SET
			author = excluded.author,
			hash = excluded.hash,
			len = excluded.len,
			timestamp = excluded.timestamp
		WHERE excluded.timestamp > entries.timestamp
		   OR (excluded.timestamp = entries.timestamp AND excluded.author > entries.author)`,
		docID, e.Key, e.Author, string(e.Hash), e.Len, e.Timestamp)
	if err != nil {
		return false, fmt.Errorf("storing entry %s: %w", e.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storing entry %s: %w", e.Key, err)
	}
	return n > 0, nil
}

func (s *store) entries(ctx context.Context, docID string) ([]core.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, author, hash, len, timestamp FROM entries WHERE doc_id = ? ORDER BY key", docID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var out []core.Entry
	for rows.Next() {
		var e core.Entry
		var hash string
		if err := rows.Scan(&e.Key, &e.Author, &hash, &e.Len, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.Hash = core.Hash(hash)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *store) putBlob(ctx context.Context, hash core.Hash, data []byte) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO blobs (hash, data) VALUES (?, ?)", string(hash), data)
	if err != nil {
		return fmt.Errorf("storing blob %s: %w", hash.Short(), err)
	}
	return nil
}

func (s *store) blob(ctx context.Context, hash core.Hash) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM blobs WHERE hash = ?", string(hash)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %s: %w", hash.Short(), core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", hash.Short(), err)
	}
	return data, nil
}

func (s *store) hasBlob(ctx context.Context, hash core.Hash) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blobs WHERE hash = ?", string(hash)).Scan(&n); err != nil {
		return false, fmt.Errorf("looking up blob %s: %w", hash.Short(), err)
	}
	return n > 0, nil
}

func (s *store) addPeer(ctx context.Context, docID, addr string) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO peers (doc_id, addr) VALUES (?, ?)", docID, addr)
	if err != nil {
		return fmt.Errorf("recording peer %s: %w", addr, err)
	}
	return nil
}

func (s *store) peers(ctx context.Context, docID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT addr FROM peers WHERE doc_id = ? ORDER BY addr", docID)
	if err != nil {
		return nil, fmt.Errorf("listing peers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scanning peer: %w", err)
		}
		out = append(out, addr)
	}
	return out, rows.Err()
}
