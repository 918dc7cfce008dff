package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/remote"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds index store configuration.
type Config struct {
	DataDir string
}

// DefaultConfig returns the default configuration for the index store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir: filepath.Join(home, ".boardmirror"),
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the durable index. The committed snapshot lives in memory;
// SQLite holds the same data across restarts. Writers are serialized;
// readers always see the last committed snapshot and never block on a
// build in progress.
type Store struct {
	db    *sql.DB
	cfg   Config
	hooks storeHooks

	writeMu sync.Mutex

	mu   sync.RWMutex
	snap *Snapshot
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type storeHooks struct {
	exec    func(db execer, query string, args ...any) (sql.Result, error)
	beginTx func(db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func (s *Store) execHook(db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(db, query, args...)
	}
	return db.Exec(query, args...)
}

func (s *Store) beginTxHook() (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(s.db)
	}
	return s.db.Begin()
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New opens (or creates) the index database under cfg.DataDir, runs
// migrations and loads the committed snapshot.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("index: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "index.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("index: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("index: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, snap: NewSnapshot()}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("index: migration: %w", err)
	}
	snap, err := s.load()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("index: load: %w", err)
	}
	s.snap = snap
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			id          INTEGER PRIMARY KEY,
			name        TEXT    NOT NULL,
			description TEXT    NOT NULL DEFAULT '',
			status      TEXT    NOT NULL,
			board_id    INTEGER,
			created_at  TEXT    NOT NULL,
			updated_at  TEXT    NOT NULL,
			url         TEXT    NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS columns (
			key        TEXT    PRIMARY KEY,
			id         INTEGER NOT NULL,
			project_id INTEGER NOT NULL,
			title      TEXT    NOT NULL,
			position   INTEGER,
			type       TEXT    NOT NULL,
			label      TEXT    NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS cards (
			key            TEXT    PRIMARY KEY,
			id             INTEGER NOT NULL,
			project_id     INTEGER NOT NULL,
			project_name   TEXT    NOT NULL DEFAULT '',
			column_id      INTEGER NOT NULL,
			column_title   TEXT    NOT NULL,
			column_type    TEXT    NOT NULL,
			title          TEXT    NOT NULL,
			content        TEXT    NOT NULL DEFAULT '',
			completed      INTEGER NOT NULL DEFAULT 0,
			due_on         TEXT,
			assignee_ids   TEXT    NOT NULL DEFAULT '[]',
			assignee_names TEXT    NOT NULL DEFAULT '[]',
			created_at     TEXT    NOT NULL,
			updated_at     TEXT    NOT NULL,
			url            TEXT    NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS people (
			id         INTEGER PRIMARY KEY,
			name       TEXT    NOT NULL,
			email      TEXT    NOT NULL DEFAULT '',
			title      TEXT    NOT NULL DEFAULT '',
			admin      INTEGER NOT NULL DEFAULT 0,
			owner      INTEGER NOT NULL DEFAULT 0,
			avatar_url TEXT    NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS meta (
			id                INTEGER PRIMARY KEY CHECK (id = 1),
			build_id          TEXT    NOT NULL DEFAULT '',
			build_started_at  TEXT,
			build_finished_at TEXT,
			elapsed_seconds   REAL    NOT NULL DEFAULT 0,
			total_projects    INTEGER NOT NULL DEFAULT 0,
			total_columns     INTEGER NOT NULL DEFAULT 0,
			total_cards       INTEGER NOT NULL DEFAULT 0,
			total_people      INTEGER NOT NULL DEFAULT 0,
			account_id        TEXT    NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_columns_project ON columns(project_id);
		CREATE INDEX IF NOT EXISTS idx_cards_project   ON cards(project_id);
		CREATE INDEX IF NOT EXISTS idx_cards_column    ON cards(project_id, column_id);
	`
	_, err := s.execHook(s.db, schema)
	return err
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// Snapshot returns the committed snapshot. Callers must treat it as
// read-only.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Meta returns the committed snapshot's metadata.
func (s *Store) Meta() Meta {
	return s.Snapshot().Meta
}

// Card returns the card entry stored under key.
func (s *Store) Card(key string) (CardEntry, error) {
	c, ok := s.Snapshot().Cards[key]
	if !ok {
		return CardEntry{}, fmt.Errorf("card %q: %w", key, ErrNotFound)
	}
	return c, nil
}

func (s *Store) swap(next *Snapshot) {
	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()
}

// ─── Writes ──────────────────────────────────────────────────────────────────

// Commit replaces the whole index with snap in a single transaction. On
// any error the previous snapshot stays in place, on disk and in memory.
func (s *Store) Commit(snap *Snapshot) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap.syncCounts()

	tx, err := s.beginTxHook()
	if err != nil {
		return fmt.Errorf("index: commit: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"projects", "columns", "cards", "people", "meta"} {
		if _, err := s.execHook(tx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("index: commit: clear %s: %w", table, err)
		}
	}
	if err := s.insertSnapshot(tx, snap); err != nil {
		return err
	}
	if err := s.writeMeta(tx, snap.Meta); err != nil {
		return err
	}
	if err := s.commitHook(tx); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}

	s.swap(snap)
	return nil
}

// CommitProject replaces one project's record, columns and cards,
// leaving every other project untouched.
func (s *Store) CommitProject(project remote.Project, columns []ColumnEntry, cards []CardEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.Snapshot()
	next := &Snapshot{
		Projects: make(map[int64]remote.Project, len(cur.Projects)+1),
		Columns:  make(map[string]ColumnEntry, len(cur.Columns)),
		Cards:    make(map[string]CardEntry, len(cur.Cards)),
		People:   cur.People,
		Meta:     cur.Meta,
	}
	for id, p := range cur.Projects {
		next.Projects[id] = p
	}
	next.Projects[project.ID] = project
	for k, c := range cur.Columns {
		if c.ProjectID != project.ID {
			next.Columns[k] = c
		}
	}
	for k, c := range cur.Cards {
		if c.ProjectID != project.ID {
			next.Cards[k] = c
		}
	}
	for _, c := range columns {
		next.Columns[c.Key] = c
	}
	for _, c := range cards {
		next.Cards[c.Key] = c
	}
	next.syncCounts()

	tx, err := s.beginTxHook()
	if err != nil {
		return fmt.Errorf("index: commit project: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := s.execHook(tx, "DELETE FROM columns WHERE project_id = ?", project.ID); err != nil {
		return fmt.Errorf("index: commit project: %w", err)
	}
	if _, err := s.execHook(tx, "DELETE FROM cards WHERE project_id = ?", project.ID); err != nil {
		return fmt.Errorf("index: commit project: %w", err)
	}
	if _, err := s.execHook(tx, "DELETE FROM projects WHERE id = ?", project.ID); err != nil {
		return fmt.Errorf("index: commit project: %w", err)
	}
	partial := &Snapshot{
		Projects: map[int64]remote.Project{project.ID: project},
		Columns:  map[string]ColumnEntry{},
		Cards:    map[string]CardEntry{},
	}
	for _, c := range columns {
		partial.Columns[c.Key] = c
	}
	for _, c := range cards {
		partial.Cards[c.Key] = c
	}
	if err := s.insertSnapshot(tx, partial); err != nil {
		return err
	}
	if _, err := s.execHook(tx, "DELETE FROM meta"); err != nil {
		return fmt.Errorf("index: commit project: %w", err)
	}
	if err := s.writeMeta(tx, next.Meta); err != nil {
		return err
	}
	if err := s.commitHook(tx); err != nil {
		return fmt.Errorf("index: commit project: %w", err)
	}

	s.swap(next)
	return nil
}

// PatchCard merges the supplied fields into an existing card. A missing
// key is reported as ErrNotFound and never creates a card.
func (s *Store) PatchCard(key string, patch CardPatch) (CardEntry, error) {
	if _, _, err := ParseKey(key); err != nil {
		return CardEntry{}, err
	}
	if patch.ClearDueOn && patch.DueOn != nil {
		return CardEntry{}, fmt.Errorf("%w: due date both set and cleared", ErrInvalidInput)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.Snapshot()
	existing, ok := cur.Cards[key]
	if !ok {
		return CardEntry{}, fmt.Errorf("card %q: %w", key, ErrNotFound)
	}
	updated := patch.apply(existing)

	ids, err := json.Marshal(nonNilInts(updated.AssigneeIDs))
	if err != nil {
		return CardEntry{}, fmt.Errorf("index: patch: %w", err)
	}
	names, err := json.Marshal(nonNilStrings(updated.AssigneeNames))
	if err != nil {
		return CardEntry{}, fmt.Errorf("index: patch: %w", err)
	}

	if _, err := s.execHook(s.db,
		`UPDATE cards
		 SET title = ?, content = ?, completed = ?, due_on = ?,
		     column_id = ?, column_title = ?, column_type = ?,
		     assignee_ids = ?, assignee_names = ?, updated_at = ?
		 WHERE key = ?`,
		updated.Title, updated.Content, updated.Completed, formatTimePtr(updated.DueOn),
		updated.ColumnID, updated.ColumnTitle, string(updated.ColumnType),
		string(ids), string(names), formatTime(updated.UpdatedAt),
		key,
	); err != nil {
		return CardEntry{}, fmt.Errorf("index: patch %q: %w", key, err)
	}

	next := cur.withCards()
	next.Cards[key] = updated
	s.swap(next)
	return updated, nil
}

// Clear discards every entry and the metadata.
func (s *Store) Clear() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.beginTxHook()
	if err != nil {
		return fmt.Errorf("index: clear: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"projects", "columns", "cards", "people", "meta"} {
		if _, err := s.execHook(tx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}
	if err := s.commitHook(tx); err != nil {
		return fmt.Errorf("index: clear: %w", err)
	}

	s.swap(NewSnapshot())
	return nil
}

// ─── Row encoding ────────────────────────────────────────────────────────────

func (s *Store) insertSnapshot(tx execer, snap *Snapshot) error {
	for _, p := range snap.Projects {
		if _, err := s.execHook(tx,
			`INSERT INTO projects (id, name, description, status, board_id, created_at, updated_at, url)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Description, string(p.Status), p.BoardID,
			formatTime(p.CreatedAt), formatTime(p.UpdatedAt), p.URL,
		); err != nil {
			return fmt.Errorf("index: insert project %d: %w", p.ID, err)
		}
	}
	for _, c := range snap.Columns {
		if _, err := s.execHook(tx,
			`INSERT INTO columns (key, id, project_id, title, position, type, label)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.Key, c.ID, c.ProjectID, c.Title, c.Position, string(c.Type), c.Label,
		); err != nil {
			return fmt.Errorf("index: insert column %s: %w", c.Key, err)
		}
	}
	for _, c := range snap.Cards {
		ids, err := json.Marshal(nonNilInts(c.AssigneeIDs))
		if err != nil {
			return fmt.Errorf("index: encode card %s: %w", c.Key, err)
		}
		names, err := json.Marshal(nonNilStrings(c.AssigneeNames))
		if err != nil {
			return fmt.Errorf("index: encode card %s: %w", c.Key, err)
		}
		if _, err := s.execHook(tx,
			`INSERT INTO cards (key, id, project_id, project_name, column_id, column_title, column_type,
			                    title, content, completed, due_on, assignee_ids, assignee_names,
			                    created_at, updated_at, url)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Key, c.ID, c.ProjectID, c.ProjectName, c.ColumnID, c.ColumnTitle, string(c.ColumnType),
			c.Title, c.Content, c.Completed, formatTimePtr(c.DueOn), string(ids), string(names),
			formatTime(c.CreatedAt), formatTime(c.UpdatedAt), c.URL,
		); err != nil {
			return fmt.Errorf("index: insert card %s: %w", c.Key, err)
		}
	}
	for _, p := range snap.People {
		if _, err := s.execHook(tx,
			`INSERT INTO people (id, name, email, title, admin, owner, avatar_url)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Email, p.Title, p.Admin, p.Owner, p.AvatarURL,
		); err != nil {
			return fmt.Errorf("index: insert person %d: %w", p.ID, err)
		}
	}
	return nil
}

func (s *Store) writeMeta(tx execer, m Meta) error {
	_, err := s.execHook(tx,
		`INSERT INTO meta (id, build_id, build_started_at, build_finished_at, elapsed_seconds,
		                   total_projects, total_columns, total_cards, total_people, account_id)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.BuildID, formatTimePtr(m.BuildStartedAt), formatTimePtr(m.BuildFinishedAt), m.ElapsedSeconds,
		m.TotalProjects, m.TotalColumns, m.TotalCards, m.TotalPeople, m.AccountID,
	)
	if err != nil {
		return fmt.Errorf("index: write meta: %w", err)
	}
	return nil
}

// load reads the committed snapshot from disk.
func (s *Store) load() (*Snapshot, error) {
	snap := NewSnapshot()

	rows, err := s.db.Query(`SELECT id, name, description, status, board_id, created_at, updated_at, url FROM projects`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p remote.Project
		var status, created, updated string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &status, &p.BoardID, &created, &updated, &p.URL); err != nil {
			_ = rows.Close()
			return nil, err
		}
		p.Status = remote.ProjectStatus(status)
		p.CreatedAt = parseTime(created)
		p.UpdatedAt = parseTime(updated)
		snap.Projects[p.ID] = p
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(`SELECT key, id, project_id, title, position, type, label FROM columns`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c ColumnEntry
		var pos sql.NullInt64
		var typ string
		if err := rows.Scan(&c.Key, &c.ID, &c.ProjectID, &c.Title, &pos, &typ, &c.Label); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if pos.Valid {
			v := int(pos.Int64)
			c.Position = &v
		}
		c.Type = board.ColumnType(typ)
		snap.Columns[c.Key] = c
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(
		`SELECT key, id, project_id, project_name, column_id, column_title, column_type,
		        title, content, completed, due_on, assignee_ids, assignee_names,
		        created_at, updated_at, url
		 FROM cards`,
	)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c CardEntry
		var typ, ids, names, created, updated string
		var due sql.NullString
		if err := rows.Scan(
			&c.Key, &c.ID, &c.ProjectID, &c.ProjectName, &c.ColumnID, &c.ColumnTitle, &typ,
			&c.Title, &c.Content, &c.Completed, &due, &ids, &names,
			&created, &updated, &c.URL,
		); err != nil {
			_ = rows.Close()
			return nil, err
		}
		c.ColumnType = board.ColumnType(typ)
		if due.Valid && due.String != "" {
			t := parseTime(due.String)
			c.DueOn = &t
		}
		if err := json.Unmarshal([]byte(ids), &c.AssigneeIDs); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("card %s assignee ids: %w", c.Key, err)
		}
		if err := json.Unmarshal([]byte(names), &c.AssigneeNames); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("card %s assignee names: %w", c.Key, err)
		}
		c.CreatedAt = parseTime(created)
		c.UpdatedAt = parseTime(updated)
		snap.Cards[c.Key] = c
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(`SELECT id, name, email, title, admin, owner, avatar_url FROM people`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p remote.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Title, &p.Admin, &p.Owner, &p.AvatarURL); err != nil {
			_ = rows.Close()
			return nil, err
		}
		snap.People[p.ID] = p
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	var m Meta
	var started, finished sql.NullString
	err = s.db.QueryRow(
		`SELECT build_id, build_started_at, build_finished_at, elapsed_seconds,
		        total_projects, total_columns, total_cards, total_people, account_id
		 FROM meta WHERE id = 1`,
	).Scan(&m.BuildID, &started, &finished, &m.ElapsedSeconds,
		&m.TotalProjects, &m.TotalColumns, &m.TotalCards, &m.TotalPeople, &m.AccountID)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, err
	default:
		if started.Valid {
			t := parseTime(started.String)
			m.BuildStartedAt = &t
		}
		if finished.Valid {
			t := parseTime(finished.String)
			m.BuildFinishedAt = &t
		}
	}
	snap.Meta = m
	snap.syncCounts()
	return snap, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNilInts(v []int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
