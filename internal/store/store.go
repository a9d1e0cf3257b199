package store

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned by session lookups for unknown ids.
var ErrSessionNotFound = errors.New("session not found")

// Session is the narrow view of a tutoring session this core reads and writes.
// The surrounding system owns the full record.
type Session struct {
	ID         string
	InputMode  string
	OutputMode string
}

// AudioRef points at synthesized audio attached to an assistant message.
type AudioRef struct {
	ID              string
	URL             string
	Available       bool
	DurationSeconds float64
}

// Message is one persisted conversation entry.
type Message struct {
	Role       string // "user" or "assistant"
	Content    string
	InputMode  string // mode tag snapshotted when the turn began
	OutputMode string
	AudioRef   *AudioRef
	CreatedAt  time.Time
}

// SessionStore persists session mode state. UpdateModes must complete before
// in-memory mode state is mutated.
type SessionStore interface {
	Get(ctx context.Context, id string) (Session, error)
	UpdateModes(ctx context.Context, id, inputMode, outputMode string) error
}

// MessageStore is the persistence callback for finalized turn content.
type MessageStore interface {
	Append(ctx context.Context, sessionID string, msg Message) error
}

// AudioAttacher is implemented by message stores that can attach an audio
// reference to the most recent assistant message after synthesis finishes.
// Attachment is best-effort; a store without it simply never records audio.
type AudioAttacher interface {
	AttachAudio(ctx context.Context, sessionID string, ref AudioRef) error
}
