// Package registry is a disposable, rebuildable sqlite-backed index of
// projects, backing the CLI's `list`/`resume` verbs. It is never the
// source of truth for a project's state — the Artifact Store's
// session.json remains authoritative (spec §3) — the registry only avoids
// a full filesystem walk of projects_root on every CLI invocation. Adapted
// from the teacher's internal/store/trace_store.go: a single *sql.DB, a
// DDL migration run at construction, and a thin typed wrapper around plain
// SQL statements.
package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"scrapeforge/internal/artifact"
)

// DiscoverSessions walks projectsRoot one level deep and loads every
// session.json it finds, the filesystem fallback Rebuild consumes when the
// sqlite index is missing or known to be stale.
func DiscoverSessions(projectsRoot string) ([]*artifact.Session, error) {
	entries, err := os.ReadDir(projectsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read projects root %s: %w", projectsRoot, err)
	}

	var sessions []*artifact.Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(projectsRoot, entry.Name())
		store, err := artifact.New(dir)
		if err != nil {
			continue
		}
		session, err := store.LoadSession()
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// Entry is one row of the project index.
type Entry struct {
	ProjectID string
	URL       string
	Dir       string
	State     artifact.State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Registry owns the sqlite connection backing the index.
type Registry struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and ensures
// its schema exists.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	r := &Registry{db: db}
	if err := r.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) ensureSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS projects (
		project_id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		dir TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_projects_state ON projects(state);
	CREATE INDEX IF NOT EXISTS idx_projects_updated ON projects(updated_at);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Upsert records or refreshes one project's index row from its Session.
func (r *Registry) Upsert(session *artifact.Session) error {
	const stmt = `
	INSERT INTO projects (project_id, url, dir, state, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(project_id) DO UPDATE SET
		url = excluded.url, dir = excluded.dir, state = excluded.state, updated_at = excluded.updated_at;
	`
	_, err := r.db.Exec(stmt, session.ProjectID, session.URL, session.ProjectDir,
		string(session.State), session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert project %s: %w", session.ProjectID, err)
	}
	return nil
}

// List returns every indexed project, most recently updated first.
func (r *Registry) List() ([]Entry, error) {
	rows, err := r.db.Query(`SELECT project_id, url, dir, state, created_at, updated_at FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var state string
		if err := rows.Scan(&e.ProjectID, &e.URL, &e.Dir, &state, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		e.State = artifact.State(state)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get looks up one project by ID.
func (r *Registry) Get(projectID string) (*Entry, error) {
	row := r.db.QueryRow(`SELECT project_id, url, dir, state, created_at, updated_at FROM projects WHERE project_id = ?`, projectID)
	var e Entry
	var state string
	if err := row.Scan(&e.ProjectID, &e.URL, &e.Dir, &state, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	e.State = artifact.State(state)
	return &e, nil
}

// Remove deletes one project's index row (its directory is removed
// separately by the `clean` CLI verb).
func (r *Registry) Remove(projectID string) error {
	_, err := r.db.Exec(`DELETE FROM projects WHERE project_id = ?`, projectID)
	return err
}

// Rebuild clears and repopulates the index from a filesystem walk of
// projects already on disk, used when the index is missing or stale.
func (r *Registry) Rebuild(sessions []*artifact.Session) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM projects`); err != nil {
		tx.Rollback()
		return err
	}
	for _, s := range sessions {
		if _, err := tx.Exec(
			`INSERT INTO projects (project_id, url, dir, state, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			s.ProjectID, s.URL, s.ProjectDir, string(s.State), s.CreatedAt, s.UpdatedAt,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Close releases the underlying database connection.
func (r *Registry) Close() error { return r.db.Close() }
