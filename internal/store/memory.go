package store

import (
	"context"
	"sync"
)

// MemStore is an in-process SessionStore + MessageStore. It backs the demo
// binary and the tests; production deployments swap in a database-backed
// implementation behind the same interfaces.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	messages map[string][]Message
}

func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]Session),
		messages: make(map[string][]Message),
	}
}

// Put creates or overwrites a session record.
func (s *MemStore) Put(sess Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
}

func (s *MemStore) Get(ctx context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemStore) UpdateModes(ctx context.Context, id, inputMode, outputMode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.InputMode = inputMode
	sess.OutputMode = outputMode
	s.sessions[id] = sess
	return nil
}

func (s *MemStore) Append(ctx context.Context, sessionID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	return nil
}

// AttachAudio sets the audio reference on the latest assistant message.
func (s *MemStore) AttachAudio(ctx context.Context, sessionID string, ref AudioRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[sessionID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "assistant" {
			r := ref
			msgs[i].AudioRef = &r
			return nil
		}
	}
	// Nothing to attach to; the message may not have been persisted.
	return nil
}

// Messages returns a copy of the persisted messages for a session.
func (s *MemStore) Messages(sessionID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.messages[sessionID]
	out := make([]Message, len(src))
	copy(out, src)
	return out
}
