package mode

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/montanon/ensenia-hackaton-sub000/internal/store"
)

// Input axis values.
const (
	InputText  = "text"
	InputVoice = "voice"
)

// Output axis values.
const (
	OutputText  = "text"
	OutputAudio = "audio"
)

// ErrInvalidMode is returned when a value outside the axis is requested. The
// dispatcher maps it to INVALID_INPUT_MODE / INVALID_OUTPUT_MODE.
var ErrInvalidMode = errors.New("invalid mode")

// ParseInput validates a value on the input axis.
func ParseInput(v string) (string, error) {
	switch v {
	case InputText, InputVoice:
		return v, nil
	}
	return "", fmt.Errorf("%w: input mode %q", ErrInvalidMode, v)
}

// ParseOutput validates a value on the output axis.
func ParseOutput(v string) (string, error) {
	switch v {
	case OutputText, OutputAudio:
		return v, nil
	}
	return "", fmt.Errorf("%w: output mode %q", ErrInvalidMode, v)
}

// State is the per-session mode pair. Setters write through the session store
// before mutating memory, so a failed durable write leaves the in-memory pair
// untouched and no success is signaled.
type State struct {
	sessionID string
	sessions  store.SessionStore

	mu     sync.Mutex
	input  string
	output string
}

func NewState(sessionID string, sessions store.SessionStore, input, output string) *State {
	if input == "" {
		input = InputText
	}
	if output == "" {
		output = OutputText
	}
	return &State{sessionID: sessionID, sessions: sessions, input: input, output: output}
}

// Input returns the current input mode.
func (s *State) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Output returns the current output mode.
func (s *State) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

// Snapshot returns both axes atomically.
func (s *State) Snapshot() (input, output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input, s.output
}

// SetInput validates and durably sets the input mode, leaving the output axis
// untouched.
func (s *State) SetInput(ctx context.Context, v string) error {
	parsed, err := ParseInput(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sessions.UpdateModes(ctx, s.sessionID, parsed, s.output); err != nil {
		return fmt.Errorf("update session modes: %w", err)
	}
	s.input = parsed
	return nil
}

// SetOutput validates and durably sets the output mode, leaving the input
// axis untouched.
func (s *State) SetOutput(ctx context.Context, v string) error {
	parsed, err := ParseOutput(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sessions.UpdateModes(ctx, s.sessionID, s.input, parsed); err != nil {
		return fmt.Errorf("update session modes: %w", err)
	}
	s.output = parsed
	return nil
}

// ToggleVoice flips both axes as a pair: text input becomes voice input with
// audio output, anything else returns to text/text. Two consecutive toggles
// restore the starting pair.
func (s *State) ToggleVoice(ctx context.Context) (input, output string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	input, output = InputText, OutputText
	if s.input == InputText {
		input, output = InputVoice, OutputAudio
	}
	if err = s.sessions.UpdateModes(ctx, s.sessionID, input, output); err != nil {
		return "", "", fmt.Errorf("update session modes: %w", err)
	}
	s.input = input
	s.output = output
	return input, output, nil
}
