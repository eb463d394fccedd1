// Package sqlitestore is an index-capable writer backend on SQLite. Each
// committed content is stored as JSON together with the term scores of its
// features-bag representations; finalizing a pass builds the per-field
// document-frequency table used to answer frequency queries.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
	"github.com/cognicore/canalyzer/pkg/canalyzer/memory"
)

// Store implements memory.Backend, memory.FrequencyIndex and memory.Reader.
type Store struct {
	path string

	mu  sync.Mutex
	db  *sql.DB
	seq int64
}

// New returns a store for the database at path. Nothing is opened until Open.
func New(path string) *Store {
	return &Store{path: path}
}

// Name implements memory.Backend.
func (s *Store) Name() string { return "sqlite:" + s.path }

// Open opens the database with WAL mode enabled and clears the previous pass.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return fmt.Errorf("%w: %s already open", internalerr.ErrStoreUnavailable, s.path)
	}
	db, err := openDB(ctx, s.path)
	if err != nil {
		return err
	}
	for _, stmt := range []string{`DELETE FROM field_terms`, `DELETE FROM term_df`, `DELETE FROM field_docs`, `DELETE FROM contents`} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return err
		}
	}
	s.db = db
	s.seq = 0
	return nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS contents (
	id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	body TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS field_terms (
	content_id TEXT NOT NULL,
	field TEXT NOT NULL,
	term TEXT NOT NULL,
	tf REAL NOT NULL,
	PRIMARY KEY(content_id, field, term),
	FOREIGN KEY(content_id) REFERENCES contents(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS term_df (
	field TEXT NOT NULL,
	term TEXT NOT NULL,
	df INTEGER NOT NULL,
	PRIMARY KEY(field, term)
);

CREATE TABLE IF NOT EXISTS field_docs (
	field TEXT PRIMARY KEY,
	n INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_field_terms_field ON field_terms(field, term);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Commit stores a content and its term scores in one transaction.
func (s *Store) Commit(ctx context.Context, c *content.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("%w: %s is closed", internalerr.ErrStoreUnavailable, s.path)
	}
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode content %q: %w", c.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM contents WHERE id = ?`, c.ID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("content %q: %w", c.ID, internalerr.ErrDuplicate)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO contents (id, seq, body) VALUES (?, ?, ?)`, c.ID, s.seq, string(body)); err != nil {
		return err
	}
	for _, f := range c.Fields() {
		if err := insertFieldTerms(ctx, tx, c.ID, f.Name, memory.TermScores(f)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.seq++
	return nil
}

func insertFieldTerms(ctx context.Context, tx *sql.Tx, contentID, field string, terms map[string]float64) error {
	if len(terms) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO field_terms (content_id, field, term, tf) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for term, tf := range terms {
		if term == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, contentID, field, term, tf); err != nil {
			return err
		}
	}
	return nil
}

// Finalize rebuilds the document-frequency tables.
func (s *Store) Finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("%w: %s is closed", internalerr.ErrStoreUnavailable, s.path)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM term_df`,
		`DELETE FROM field_docs`,
		`INSERT INTO term_df (field, term, df)
		 SELECT field, term, COUNT(DISTINCT content_id) FROM field_terms GROUP BY field, term`,
		`INSERT INTO field_docs (field, n)
		 SELECT field, COUNT(DISTINCT content_id) FROM field_terms GROUP BY field`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Frequencies returns tf * idf for every term of field in contentID, with
// idf(t) = ln((1 + N) / (1 + df(t))) + 1 over the contents carrying field.
func (s *Store) Frequencies(ctx context.Context, contentID, field string) (map[string]float64, error) {
	db, release, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var exists int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM contents WHERE id = ?`, contentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %q: %w", contentID, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var n int64
	err = db.QueryRowContext(ctx, `SELECT n FROM field_docs WHERE field = ?`, field).Scan(&n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT ft.term, ft.tf, COALESCE(df.df, 0)
FROM field_terms ft
LEFT JOIN term_df df ON df.field = ft.field AND df.term = ft.term
WHERE ft.content_id = ? AND ft.field = ?;
`, contentID, field)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			term string
			tf   float64
			df   int64
		)
		if err := rows.Scan(&term, &tf, &df); err != nil {
			return nil, err
		}
		out[term] = tf * memory.IDF(n, df)
	}
	return out, rows.Err()
}

// DocumentFrequency returns df(term) in field as of the last finalize.
func (s *Store) DocumentFrequency(ctx context.Context, field, term string) (int64, error) {
	db, release, err := s.reader(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var df int64
	err = db.QueryRowContext(ctx, `SELECT df FROM term_df WHERE field = ? AND term = ?`, field, term).Scan(&df)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return df, err
}

// Get implements memory.Reader.
func (s *Store) Get(ctx context.Context, id string) (*content.Content, error) {
	db, release, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var body string
	err = db.QueryRowContext(ctx, `SELECT body FROM contents WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %q: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	out := &content.Content{}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return nil, fmt.Errorf("decode content %q: %w", id, err)
	}
	return out, nil
}

// IDs returns the committed content ids in commit order.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	db, release, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, `SELECT id FROM contents ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Terms returns the distinct terms indexed for field, sorted.
func (s *Store) Terms(ctx context.Context, field string) ([]string, error) {
	db, release, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, `SELECT DISTINCT term FROM field_terms WHERE field = ?`, field)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms, rows.Err()
}

// reader returns the open write handle, or a fresh handle when the store is
// closed. The release func closes only handles it opened.
func (s *Store) reader(ctx context.Context) (*sql.DB, func(), error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db != nil {
		return db, func() {}, nil
	}
	if strings.Contains(s.path, ":memory:") {
		return nil, nil, fmt.Errorf("%w: in-memory database %s is gone after close", internalerr.ErrStoreUnavailable, s.path)
	}
	db, err := openDB(ctx, s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	return db, func() { db.Close() }, nil
}
