package mode

import (
	"context"
	"errors"
	"testing"

	"github.com/montanon/ensenia-hackaton-sub000/internal/store"
)

type failingStore struct{ store.SessionStore }

func (failingStore) UpdateModes(ctx context.Context, id, in, out string) error {
	return errors.New("db down")
}

func newTestState(t *testing.T) (*State, *store.MemStore) {
	t.Helper()
	mem := store.NewMemStore()
	mem.Put(store.Session{ID: "s1", InputMode: InputText, OutputMode: OutputText})
	return NewState("s1", mem, InputText, OutputText), mem
}

func TestParseRejectsCrossAxisValues(t *testing.T) {
	if _, err := ParseInput("audio"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode for input=audio, got %v", err)
	}
	if _, err := ParseOutput("voice"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode for output=voice, got %v", err)
	}
	if _, err := ParseOutput("audio"); err != nil {
		t.Fatalf("expected output=audio valid, got %v", err)
	}
}

func TestSetOutputPersistsBeforeMutating(t *testing.T) {
	s, mem := newTestState(t)
	if err := s.SetOutput(context.Background(), OutputAudio); err != nil {
		t.Fatalf("set output: %v", err)
	}
	sess, _ := mem.Get(context.Background(), "s1")
	if sess.OutputMode != OutputAudio {
		t.Fatalf("store output = %q, want audio", sess.OutputMode)
	}
	if sess.InputMode != InputText {
		t.Fatalf("input axis changed unexpectedly: %q", sess.InputMode)
	}
	if s.Output() != OutputAudio {
		t.Fatalf("in-memory output = %q, want audio", s.Output())
	}
}

func TestSetInputInvalidLeavesStateUnchanged(t *testing.T) {
	s, mem := newTestState(t)
	if err := s.SetInput(context.Background(), "hologram"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	sess, _ := mem.Get(context.Background(), "s1")
	if sess.InputMode != InputText || s.Input() != InputText {
		t.Fatalf("state mutated on invalid mode: store=%q mem=%q", sess.InputMode, s.Input())
	}
}

func TestSetOutputDurableWriteFailureLeavesMemory(t *testing.T) {
	s := NewState("s1", failingStore{}, InputText, OutputText)
	if err := s.SetOutput(context.Background(), OutputAudio); err == nil {
		t.Fatal("expected error from failing store")
	}
	if s.Output() != OutputText {
		t.Fatalf("in-memory output mutated despite failed write: %q", s.Output())
	}
}

func TestToggleVoiceDoubleToggleRestores(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		output string
	}{
		{"from text", InputText, OutputText},
		{"from voice", InputVoice, OutputAudio},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mem := store.NewMemStore()
			mem.Put(store.Session{ID: "s1", InputMode: tc.input, OutputMode: tc.output})
			s := NewState("s1", mem, tc.input, tc.output)

			in1, out1, err := s.ToggleVoice(context.Background())
			if err != nil {
				t.Fatalf("first toggle: %v", err)
			}
			if in1 == tc.input {
				t.Fatalf("first toggle did not flip input axis")
			}
			if _, _, err := s.ToggleVoice(context.Background()); err != nil {
				t.Fatalf("second toggle: %v", err)
			}
			if s.Input() != tc.input || s.Output() != tc.output {
				t.Fatalf("double toggle = (%s,%s), want (%s,%s)", s.Input(), s.Output(), tc.input, tc.output)
			}
			_ = out1
		})
	}
}

func TestToggleVoiceSetsBothAxes(t *testing.T) {
	s, mem := newTestState(t)
	in, out, err := s.ToggleVoice(context.Background())
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if in != InputVoice || out != OutputAudio {
		t.Fatalf("toggle from text = (%s,%s), want (voice,audio)", in, out)
	}
	sess, _ := mem.Get(context.Background(), "s1")
	if sess.InputMode != InputVoice || sess.OutputMode != OutputAudio {
		t.Fatalf("store = (%s,%s), want (voice,audio)", sess.InputMode, sess.OutputMode)
	}
}
