package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQL reads every row of a table through database/sql. Column names become
// field names; NULL columns are left out of the record.
type SQL struct {
	DB      *sql.DB
	Table   string
	OrderBy string
}

// NewSQL returns a source over table. Rows are ordered by orderBy when set so
// that repeated passes see the same sequence.
func NewSQL(db *sql.DB, table, orderBy string) (*SQL, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if orderBy != "" && !identRe.MatchString(orderBy) {
		return nil, fmt.Errorf("invalid order column %q", orderBy)
	}
	return &SQL{DB: db, Table: table, OrderBy: orderBy}, nil
}

// Iterate implements Source.
func (s *SQL) Iterate(ctx context.Context, fn func(Record) error) error {
	query := "SELECT * FROM " + s.Table
	if s.OrderBy != "" {
		query += " ORDER BY " + s.OrderBy
	}
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		rec := make(Record, len(cols))
		for i, col := range cols {
			if values[i].Valid {
				rec[col] = values[i].String
			}
		}
		if err := fn(rec); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return rows.Err()
}
