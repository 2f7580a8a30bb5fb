// Package session owns per-session conversation state and serializes turns on
// the same session.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"hint-agent/internal/domain"
)

const DefaultMaxSessions = 500

// Backend persists state outside the process. Save must reject a write whose
// Version is not exactly one past the stored version with domain.ErrVersionConflict.
type Backend interface {
	Load(ctx context.Context, sessionID string) (domain.ConversationState, bool, error)
	Save(ctx context.Context, sessionID string, state domain.ConversationState) error
	Delete(ctx context.Context, sessionID string) (bool, error)
}

// entry fields are guarded by mu, except refs which is guarded by Store.mu.
// stored is written holding both locks.
type entry struct {
	mu      sync.Mutex
	refs    int
	state   domain.ConversationState
	stored  bool
	deleted bool
}

// Store is safe for concurrent use. Without a backend it is the source of
// truth; with one, entries live only while a turn is in flight and the cap
// bounds concurrently active sessions.
type Store struct {
	mu          sync.Mutex
	entries     map[string]*entry
	maxSessions int
	backend     Backend
	logger      *zap.Logger
}

type Option func(*Store)

func WithBackend(b Backend) Option {
	return func(s *Store) {
		s.backend = b
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a store admitting at most maxSessions sessions. Zero or less
// selects DefaultMaxSessions.
func New(maxSessions int, opts ...Option) *Store {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	s := &Store{
		entries:     make(map[string]*entry),
		maxSessions: maxSessions,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads the session's state, hands a copy to fn and persists what fn
// returns. Calls for the same session run one at a time; calls for different
// sessions do not block each other. A new session beyond the cap fails with
// domain.ErrSessionLimit.
func (s *Store) Run(ctx context.Context, sessionID string, fn func(domain.ConversationState) (domain.ConversationState, error)) error {
	for {
		e, err := s.acquire(sessionID)
		if err != nil {
			return err
		}
		e.mu.Lock()
		if e.deleted {
			// Cleared while we waited; start over on a fresh entry.
			e.mu.Unlock()
			s.release(sessionID, e)
			continue
		}
		err = s.runLocked(ctx, sessionID, e, fn)
		e.mu.Unlock()
		s.release(sessionID, e)
		return err
	}
}

func (s *Store) runLocked(ctx context.Context, sessionID string, e *entry, fn func(domain.ConversationState) (domain.ConversationState, error)) error {
	state := e.state
	if s.backend != nil {
		loaded, found, err := s.backend.Load(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("session: load %s: %w", sessionID, err)
		}
		state = domain.NewConversationState()
		if found {
			state = loaded
		}
	}

	next, err := fn(state.Clone())
	if err != nil {
		return err
	}
	next.Version = state.Version + 1

	if s.backend != nil {
		if err := s.backend.Save(ctx, sessionID, next); err != nil {
			return fmt.Errorf("session: save %s: %w", sessionID, err)
		}
	}
	e.state = next.Clone()
	// stored is read by release under s.mu only.
	s.mu.Lock()
	e.stored = true
	s.mu.Unlock()
	return nil
}

// Delete drops one session. It waits for an in-flight turn on the same
// session and never touches other sessions.
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	e, ok := s.entries[sessionID]
	if ok {
		e.refs++
	}
	s.mu.Unlock()

	existed := false
	if ok {
		e.mu.Lock()
		existed = e.stored && !e.deleted
		e.deleted = true
		s.mu.Lock()
		if s.entries[sessionID] == e {
			delete(s.entries, sessionID)
		}
		e.refs--
		s.mu.Unlock()
		e.mu.Unlock()
	}

	if s.backend != nil {
		removed, err := s.backend.Delete(ctx, sessionID)
		if err != nil {
			return false, fmt.Errorf("session: delete %s: %w", sessionID, err)
		}
		existed = removed
	}
	s.logger.Debug("session deleted", zap.String("session_id", sessionID), zap.Bool("existed", existed))
	return existed, nil
}

// Snapshot returns a copy of the stored state.
func (s *Store) Snapshot(ctx context.Context, sessionID string) (domain.ConversationState, bool, error) {
	if s.backend != nil {
		st, found, err := s.backend.Load(ctx, sessionID)
		if err != nil {
			return domain.ConversationState{}, false, fmt.Errorf("session: load %s: %w", sessionID, err)
		}
		return st, found, nil
	}
	s.mu.Lock()
	e, ok := s.entries[sessionID]
	if ok {
		e.refs++
	}
	s.mu.Unlock()
	if !ok {
		return domain.ConversationState{}, false, nil
	}
	defer s.release(sessionID, e)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.stored || e.deleted {
		return domain.ConversationState{}, false, nil
	}
	return e.state.Clone(), true, nil
}

// Len reports the number of sessions held in memory.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) acquire(sessionID string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		if len(s.entries) >= s.maxSessions {
			s.logger.Warn("session limit reached", zap.Int("max_sessions", s.maxSessions))
			return nil, domain.ErrSessionLimit
		}
		e = &entry{state: domain.NewConversationState()}
		s.entries[sessionID] = e
	}
	e.refs++
	return e, nil
}

// release drops a reference. Idle entries that hold no state of their own are
// removed so they stop counting against the cap.
func (s *Store) release(sessionID string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refs--
	if e.refs > 0 || s.entries[sessionID] != e {
		return
	}
	if s.backend != nil || !e.stored {
		delete(s.entries, sessionID)
	}
}
