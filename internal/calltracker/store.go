package calltracker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAlreadyAccepted is returned by Accept when another agent has already
// claimed the call. At most one accept succeeds per call id.
var ErrAlreadyAccepted = errors.New("call already accepted")

// Session is the ephemeral per-call state. It is never persisted across
// process restarts; a restart loses all in-flight call state by design.
type Session struct {
	CallID       string
	Accepted     bool
	TargetUserID string
	CreatedAt    time.Time
}

// Store tracks live call sessions. Implementations must make Accept an
// atomic check-and-set so the at-most-one-winner guarantee holds even under
// true parallel execution.
type Store interface {
	// Ensure creates the session with Accepted=false if absent and reports
	// whether it created it. An existing session is returned untouched.
	Ensure(ctx context.Context, callID, targetUserID string) (Session, bool, error)

	// Accept atomically claims the call. A missing session is created in the
	// accepted state. Returns ErrAlreadyAccepted if the call was claimed.
	Accept(ctx context.Context, callID string) error

	Get(ctx context.Context, callID string) (Session, bool, error)

	// End removes the session. Ending an unknown call id is a no-op.
	End(ctx context.Context, callID string) error

	// PruneStale removes sessions that were never accepted and are older
	// than maxAge, returning the pruned call ids.
	PruneStale(ctx context.Context, maxAge time.Duration) ([]string, error)
}

// MemoryStore is the default single-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	clock    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		clock:    time.Now,
	}
}

func (s *MemoryStore) Ensure(ctx context.Context, callID, targetUserID string) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[callID]; ok {
		return existing, false, nil
	}
	sess := Session{
		CallID:       callID,
		Accepted:     false,
		TargetUserID: targetUserID,
		CreatedAt:    s.clock().UTC(),
	}
	s.sessions[callID] = sess
	return sess, true, nil
}

func (s *MemoryStore) Accept(ctx context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		sess = Session{CallID: callID, CreatedAt: s.clock().UTC()}
	}
	if sess.Accepted {
		return ErrAlreadyAccepted
	}
	sess.Accepted = true
	s.sessions[callID] = sess
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, callID string) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[callID]
	return sess, ok, nil
}

func (s *MemoryStore) End(ctx context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, callID)
	return nil
}

func (s *MemoryStore) PruneStale(ctx context.Context, maxAge time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock().UTC().Add(-maxAge)
	var pruned []string
	for id, sess := range s.sessions {
		if !sess.Accepted && sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
			pruned = append(pruned, id)
		}
	}
	return pruned, nil
}
