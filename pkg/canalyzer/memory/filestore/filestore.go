// Package filestore writes one compressed JSON file per content into a
// directory, plus a manifest listing the contents of the last finalized pass.
//
// Layout:
//
//	<dir>/.lock                 held while a pass is writing
//	<dir>/<id>.json.zst         one file per content (or .json.lz4)
//	<dir>/manifest.json         written on finalize
//
// File names are the content id with every rune that is not a letter, digit,
// underscore or space removed.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
)

const (
	lockName     = ".lock"
	manifestName = "manifest.json"
)

// Manifest describes a finalized pass.
type Manifest struct {
	Compression Compression     `json:"compression"`
	WrittenAt   time.Time       `json:"written_at"`
	Contents    []ManifestEntry `json:"contents"`
}

// ManifestEntry maps a content id to its file.
type ManifestEntry struct {
	ID   string `json:"id"`
	File string `json:"file"`
}

// Store is a directory-backed memory.Backend.
type Store struct {
	dir         string
	compression Compression
	now         func() time.Time

	mu      sync.Mutex
	open    bool
	entries []ManifestEntry
	files   map[string]string // file name → content id
}

// Option configures a Store.
type Option func(*Store)

// WithCompression selects the content file codec.
func WithCompression(c Compression) Option {
	return func(s *Store) { s.compression = c }
}

// WithClock overrides the manifest timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a store rooted at dir. Nothing is touched until Open.
func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, compression: Zstd, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements memory.Backend.
func (s *Store) Name() string { return "file:" + s.dir }

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Open creates the directory, takes the lock file and clears the contents
// and manifest of any earlier pass. A second writer on the same directory
// fails until the first releases it.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	lock, err := os.OpenFile(filepath.Join(s.dir, lockName), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s is locked by another writer", internalerr.ErrStoreUnavailable, s.dir)
		}
		return fmt.Errorf("lock output dir: %w", err)
	}
	fmt.Fprintf(lock, "%d\n", os.Getpid())
	lock.Close()

	if err := clearPass(s.dir); err != nil {
		os.Remove(filepath.Join(s.dir, lockName))
		return err
	}

	s.open = true
	s.entries = nil
	s.files = make(map[string]string)
	return nil
}

// Commit writes one content file atomically (temp file + rename).
func (s *Store) Commit(ctx context.Context, c *content.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return fmt.Errorf("%w: %s is closed", internalerr.ErrStoreUnavailable, s.dir)
	}
	base := SanitizeID(c.ID)
	if base == "" {
		return fmt.Errorf("content %q: %w: id has no usable characters for a file name", c.ID, internalerr.ErrInvalidInput)
	}
	name := base + s.compression.Ext()
	if prev, taken := s.files[name]; taken {
		return fmt.Errorf("content %q: %w: file %s already written for %q", c.ID, internalerr.ErrDuplicate, name, prev)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode content %q: %w", c.ID, err)
	}
	packed, err := compress(s.compression, data)
	if err != nil {
		return fmt.Errorf("compress content %q: %w", c.ID, err)
	}
	if err := writeAtomic(filepath.Join(s.dir, name), packed); err != nil {
		return err
	}

	s.files[name] = c.ID
	s.entries = append(s.entries, ManifestEntry{ID: c.ID, File: name})
	return nil
}

// Finalize writes manifest.json for the pass.
func (s *Store) Finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := Manifest{Compression: s.compression, WrittenAt: s.now().UTC(), Contents: s.entries}
	if m.Contents == nil {
		m.Contents = []ManifestEntry{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return writeAtomic(filepath.Join(s.dir, manifestName), data)
}

// Close releases the lock file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false
	if err := os.Remove(filepath.Join(s.dir, lockName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Get implements memory.Reader.
func (s *Store) Get(ctx context.Context, id string) (*content.Content, error) {
	return Load(s.dir, id)
}

// SanitizeID turns a content id into a file base name.
func SanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, id)
}

// clearPass removes the manifest and every content file left in dir.
func clearPass(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scan output dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if name != manifestName && !strings.HasSuffix(name, Zstd.Ext()) && !strings.HasSuffix(name, LZ4.Ext()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear previous pass: %w", err)
		}
	}
	return nil
}

// Load reads one content back from dir. Ids that only share a sanitized file
// name with a stored content are not found.
func Load(dir, id string) (*content.Content, error) {
	base := SanitizeID(id)
	for _, c := range []Compression{Zstd, LZ4} {
		path := filepath.Join(dir, base+c.Ext())
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read content %q: %w", id, err)
		}
		out, err := decodeFile(c, data, id)
		if err != nil {
			return nil, err
		}
		if out.ID != id {
			return nil, fmt.Errorf("content %q: %w", id, internalerr.ErrNotFound)
		}
		return out, nil
	}
	return nil, fmt.Errorf("content %q: %w", id, internalerr.ErrNotFound)
}

// LoadAll reads every content listed in the manifest, in commit order.
func LoadAll(dir string) (*content.Collection, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	out := content.NewCollection()
	for _, e := range m.Contents {
		data, err := os.ReadFile(filepath.Join(dir, e.File))
		if err != nil {
			return nil, fmt.Errorf("read content %q: %w", e.ID, err)
		}
		c, err := decodeFile(m.Compression, data, e.ID)
		if err != nil {
			return nil, err
		}
		out.Append(c)
	}
	return out, nil
}

// ReadManifest reads manifest.json from dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("manifest in %s: %w", dir, internalerr.ErrNotFound)
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

func decodeFile(c Compression, data []byte, id string) (*content.Content, error) {
	raw, err := decompress(c, data)
	if err != nil {
		return nil, fmt.Errorf("decompress content %q: %w", id, err)
	}
	out := &content.Content{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode content %q: %w", id, err)
	}
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
