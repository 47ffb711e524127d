// Package store archives filter and classification runs in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tsawler/pragma"
)

// ErrUnknownRun is returned when a run ID is not in the archive.
var ErrUnknownRun = errors.New("unknown run")

type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// A Run is one invocation of a pipeline command.
type Run struct {
	ID          string
	Command     string
	Input       string
	CreatedAt   string
	Annotations int
	UsageRows   int
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			input TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
		)`,
		`CREATE TABLE IF NOT EXISTS annotations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			record_index INTEGER NOT NULL,
			lemma TEXT NOT NULL,
			register TEXT NOT NULL,
			mood TEXT NOT NULL,
			sentence TEXT NOT NULL,
			source TEXT NOT NULL,
			cefr_level TEXT NOT NULL,
			context_window TEXT NOT NULL,
			num_contractions INTEGER NOT NULL DEFAULT 0,
			token_count INTEGER NOT NULL DEFAULT 0,
			analysis TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_annotations_run ON annotations(run_id, record_index)`,
		`CREATE INDEX IF NOT EXISTS idx_annotations_lemma ON annotations(lemma)`,
		`CREATE TABLE IF NOT EXISTS usage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			lemma TEXT NOT NULL,
			register TEXT NOT NULL,
			mood TEXT NOT NULL,
			category TEXT NOT NULL,
			sentence TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_run ON usage(run_id, register, category)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// CreateRun records the start of a command and returns its new ID.
func (s *Store) CreateRun(command, input string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	if _, err := s.db.Exec(`INSERT INTO runs (id, command, input) VALUES (?, ?, ?)`,
		id, strings.TrimSpace(command), strings.TrimSpace(input)); err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	run := Run{ID: id, Command: command, Input: input}
	if err := s.db.QueryRow(`SELECT created_at FROM runs WHERE id = ?`, id).Scan(&run.CreatedAt); err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return run, nil
}

// SaveAnnotations stores the retained records of a filter run.
func (s *Store) SaveAnnotations(runID string, records []pragma.FilteredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin annotations: %w", err)
	}
	defer tx.Rollback()

	if err := requireRun(tx, runID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO annotations (run_id, record_index, lemma, register, mood, sentence, source,
			cefr_level, context_window, num_contractions, token_count, analysis)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare annotations: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		analysis, err := json.Marshal(rec.Analysis)
		if err != nil {
			return fmt.Errorf("encode analysis %d: %w", rec.Index, err)
		}
		if _, err := stmt.Exec(runID, rec.Index, rec.TargetLemma, string(rec.Register), rec.Mood,
			rec.Sentence, rec.Source, rec.CEFRLevel, strings.Join(rec.Analysis.ContextWindow, " "),
			rec.Analysis.ContractionCount, rec.Analysis.TokenCount, string(analysis)); err != nil {
			return fmt.Errorf("insert annotation %d: %w", rec.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit annotations: %w", err)
	}
	return nil
}

// Annotations returns the records saved for runID in input order.
func (s *Store) Annotations(runID string) ([]pragma.FilteredRecord, error) {
	rows, err := s.db.Query(`
		SELECT record_index, lemma, register, mood, sentence, source, cefr_level, analysis
		FROM annotations
		WHERE run_id = ?
		ORDER BY record_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	records := make([]pragma.FilteredRecord, 0)
	for rows.Next() {
		var rec pragma.FilteredRecord
		var register, analysis string
		if err := rows.Scan(&rec.Index, &rec.TargetLemma, &register, &rec.Mood, &rec.Sentence,
			&rec.Source, &rec.CEFRLevel, &analysis); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		rec.Register = pragma.Register(register)
		if err := json.Unmarshal([]byte(analysis), &rec.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis %d: %w", rec.Index, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return records, nil
}

// SaveUsage stores the rows of a classification run.
func (s *Store) SaveUsage(runID string, usage []pragma.UsageRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin usage: %w", err)
	}
	defer tx.Rollback()

	if err := requireRun(tx, runID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO usage (run_id, lemma, register, mood, category, sentence)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare usage: %w", err)
	}
	defer stmt.Close()

	for i, row := range usage {
		if _, err := stmt.Exec(runID, row.Lemma, string(row.Register), row.Mood, row.UsageCategory, row.FullSentence); err != nil {
			return fmt.Errorf("insert usage row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit usage: %w", err)
	}
	return nil
}

// UsageCounts returns Register by Usage_Category counts for runID.
func (s *Store) UsageCounts(runID string) (map[pragma.Register]map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT register, category, COUNT(*)
		FROM usage
		WHERE run_id = ?
		GROUP BY register, category
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query usage counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[pragma.Register]map[string]int)
	for rows.Next() {
		var register, category string
		var n int
		if err := rows.Scan(&register, &category, &n); err != nil {
			return nil, fmt.Errorf("scan usage count: %w", err)
		}
		reg := pragma.Register(register)
		if counts[reg] == nil {
			counts[reg] = make(map[string]int)
		}
		counts[reg][category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage counts: %w", err)
	}
	return counts, nil
}

// Runs lists the most recent runs first. A non-positive limit returns 20.
func (s *Store) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT r.id, r.command, r.input, r.created_at,
			(SELECT COUNT(*) FROM annotations a WHERE a.run_id = r.id),
			(SELECT COUNT(*) FROM usage u WHERE u.run_id = r.id)
		FROM runs r
		ORDER BY r.created_at DESC, r.rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Command, &r.Input, &r.CreatedAt, &r.Annotations, &r.UsageRows); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func requireRun(tx *sql.Tx, runID string) error {
	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&n); err != nil {
		return fmt.Errorf("lookup run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", runID, ErrUnknownRun)
	}
	return nil
}
