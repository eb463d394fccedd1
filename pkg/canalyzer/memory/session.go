package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
)

// State is the lifecycle state of a Session.
type State int

const (
	Closed State = iota
	Writing
)

func (s State) String() string {
	if s == Writing {
		return "WRITING"
	}
	return "CLOSED"
}

// acquired holds every backend currently owned by a writing session.
var acquired = struct {
	sync.Mutex
	owners map[Backend]*Session
}{owners: make(map[Backend]*Session)}

// Session drives one backend through CLOSED → WRITING → CLOSED.
//
// While writing, contents are built with BeginContent and AddField and made
// durable by CommitContent. StopWriting finalizes and releases the backend;
// Abort releases it without finalizing. Contents committed before an abort
// stay committed.
type Session struct {
	backend Backend

	mu        sync.Mutex
	state     State
	current   *content.Content
	finalized bool
	committed int
}

// NewSession wraps a backend. The session starts CLOSED.
func NewSession(b Backend) *Session {
	return &Session{backend: b}
}

// Backend returns the wrapped backend.
func (s *Session) Backend() Backend { return s.backend }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Committed returns the number of contents committed in the current or last
// pass.
func (s *Session) Committed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// InitWriting acquires the backend exclusively and opens it.
func (s *Session) InitWriting(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Closed {
		return internalerr.Sequence(s.backend.Name(), "init_writing", "session already writing")
	}

	acquired.Lock()
	if owner, busy := acquired.owners[s.backend]; busy && owner != s {
		acquired.Unlock()
		return internalerr.Sequence(s.backend.Name(), "init_writing", "backend held by another session")
	}
	acquired.owners[s.backend] = s
	acquired.Unlock()

	if err := s.backend.Open(ctx); err != nil {
		s.release()
		return s.fail("open", err)
	}
	s.state = Writing
	s.current = nil
	s.finalized = false
	s.committed = 0
	return nil
}

// BeginContent starts a new content. Any uncommitted content is discarded.
func (s *Session) BeginContent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Writing {
		return internalerr.Sequence(s.backend.Name(), "begin_content", "session not writing")
	}
	s.current = content.New(id)
	return nil
}

// AddField attaches a field to the content being built. A field name may be
// added once per content.
func (s *Session) AddField(f *content.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Writing || s.current == nil {
		return internalerr.Sequence(s.backend.Name(), "add_field", "no content begun")
	}
	if err := s.current.Append(f); err != nil {
		return &internalerr.InterfaceError{Backend: s.backend.Name(), Op: "add_field", Err: err}
	}
	return nil
}

// CommitContent seals the current content and writes it to the backend.
func (s *Session) CommitContent(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Writing || s.current == nil {
		return internalerr.Sequence(s.backend.Name(), "commit_content", "no content begun")
	}
	c := s.current
	c.Seal()
	if err := s.backend.Commit(ctx, c); err != nil {
		return s.fail("commit_content", err)
	}
	s.current = nil
	s.committed++
	return nil
}

// StopWriting finalizes the backend and releases it. The session is CLOSED
// afterwards even when finalization fails.
func (s *Session) StopWriting(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Writing {
		return internalerr.Sequence(s.backend.Name(), "stop_writing", "session not writing")
	}
	s.current = nil
	s.state = Closed
	defer s.release()

	ferr := s.backend.Finalize(ctx)
	cerr := s.backend.Close()
	if ferr != nil {
		return s.fail("finalize", ferr)
	}
	if cerr != nil {
		return s.fail("close", cerr)
	}
	s.finalized = true
	return nil
}

// Abort releases the backend without finalizing. It is a no-op on a CLOSED
// session.
func (s *Session) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Writing {
		return nil
	}
	s.current = nil
	s.state = Closed
	defer s.release()
	if err := s.backend.Close(); err != nil {
		return s.fail("abort", err)
	}
	return nil
}

// Frequencies queries the backend's frequency index for one content field.
// It is only valid after a successful StopWriting.
func (s *Session) Frequencies(ctx context.Context, contentID, field string) (map[string]float64, error) {
	s.mu.Lock()
	ready := s.state == Closed && s.finalized
	s.mu.Unlock()

	if !ready {
		return nil, internalerr.Sequence(s.backend.Name(), "frequencies", "writing not stopped")
	}
	idx, ok := s.backend.(FrequencyIndex)
	if !ok {
		return nil, &internalerr.InterfaceError{Backend: s.backend.Name(), Op: "frequencies", Err: internalerr.ErrUnsupported}
	}
	freqs, err := idx.Frequencies(ctx, contentID, field)
	if err != nil {
		return nil, s.fail("frequencies", err)
	}
	return freqs, nil
}

func (s *Session) release() {
	acquired.Lock()
	if acquired.owners[s.backend] == s {
		delete(acquired.owners, s.backend)
	}
	acquired.Unlock()
}

func (s *Session) fail(op string, err error) error {
	var ie *internalerr.InterfaceError
	if errors.As(err, &ie) {
		return err
	}
	return &internalerr.InterfaceError{Backend: s.backend.Name(), Op: op, Err: err}
}

// WithWriting runs fn inside a writing pass on s. The pass is stopped when
// fn succeeds and aborted on every failure path, including panics.
func WithWriting(ctx context.Context, s *Session, fn func(*Session) error) error {
	if err := s.InitWriting(ctx); err != nil {
		return err
	}
	done := false
	defer func() {
		if !done {
			_ = s.Abort()
		}
	}()

	if err := fn(s); err != nil {
		return err
	}
	done = true
	if err := s.StopWriting(ctx); err != nil {
		return fmt.Errorf("stop writing: %w", err)
	}
	return nil
}
