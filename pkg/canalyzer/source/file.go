package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// JSONLines reads one JSON object per line. Scalar values are converted to
// strings; nested values are kept as their JSON text. Null values are left
// out of the record, like SQL NULLs.
type JSONLines struct {
	Path string
}

// NewJSONLines returns a source reading path.
func NewJSONLines(path string) *JSONLines {
	return &JSONLines{Path: path}
}

// Iterate implements Source.
func (j *JSONLines) Iterate(ctx context.Context, fn func(Record) error) error {
	f, err := os.Open(j.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return fmt.Errorf("%s line %d: %w", j.Path, line, err)
		}
		rec := make(Record, len(raw))
		for k, v := range raw {
			if strings.TrimSpace(string(v)) == "null" {
				continue
			}
			rec[k] = rawString(v)
		}
		if err := fn(rec); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}

func rawString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return string(v)
}

// CSV reads a comma-separated file whose first row names the fields.
type CSV struct {
	Path  string
	Comma rune
}

// NewCSV returns a source reading path with ',' as separator.
func NewCSV(path string) *CSV {
	return &CSV{Path: path, Comma: ','}
}

// Iterate implements Source.
func (c *CSV) Iterate(ctx context.Context, fn func(Record) error) error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	if c.Comma != 0 {
		r.Comma = c.Comma
	}
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("%s header: %w", c.Path, err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", c.Path, err)
		}
		rec := make(Record, len(header))
		for i, name := range header {
			// short rows leave trailing fields absent rather than empty
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		if err := fn(rec); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}
