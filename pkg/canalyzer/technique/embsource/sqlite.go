package embsource

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	_ "modernc.org/sqlite"

	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
)

// SQLite serves vectors from a table embeddings(unit TEXT PRIMARY KEY,
// vector BLOB). Vectors are little-endian float64.
type SQLite struct {
	db   *sql.DB
	size int
}

// OpenSQLite opens (and if needed creates) an embeddings database.
func OpenSQLite(ctx context.Context, path string, size int) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	const schema = `CREATE TABLE IF NOT EXISTS embeddings (
	unit TEXT PRIMARY KEY,
	vector BLOB NOT NULL
)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db, size: size}, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Put inserts or replaces a vector.
func (s *SQLite) Put(ctx context.Context, unit string, vec []float64) error {
	if len(vec) != s.size {
		return fmt.Errorf("%w: vector for %q has %d dims, want %d", internalerr.ErrInvalidInput, unit, len(vec), s.size)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO embeddings(unit, vector) VALUES(?, ?)
		 ON CONFLICT(unit) DO UPDATE SET vector = excluded.vector`,
		unit, encodeVector(vec))
	return err
}

// Lookup implements technique.EmbeddingSource. Database failures are
// returned as errors; a missing row is a miss.
func (s *SQLite) Lookup(unit string) ([]float64, bool, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT vector FROM embeddings WHERE unit = ?`, unit).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return nil, false, err
	}
	if len(vec) != s.size {
		return nil, false, fmt.Errorf("%w: stored vector for %q has %d dims, want %d", internalerr.ErrInvalidInput, unit, len(vec), s.size)
	}
	return vec, true, nil
}

// Size implements technique.EmbeddingSource.
func (s *SQLite) Size() int { return s.size }

func encodeVector(vec []float64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("%w: vector blob of %d bytes", internalerr.ErrInvalidInput, len(blob))
	}
	vec := make([]float64, len(blob)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return vec, nil
}
