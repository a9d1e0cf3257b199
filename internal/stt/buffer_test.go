package stt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/montanon/ensenia-hackaton-sub000/internal/protocol"
)

type fakeRecognizer struct {
	calls      int32
	hypotheses []Hypothesis
	err        error
}

func (f *fakeRecognizer) Transcribe(ctx context.Context, audio []byte) (<-chan Hypothesis, <-chan error) {
	atomic.AddInt32(&f.calls, 1)
	hypCh := make(chan Hypothesis, len(f.hypotheses))
	errCh := make(chan error, 1)
	go func() {
		defer close(hypCh)
		defer close(errCh)
		for _, h := range f.hypotheses {
			hypCh <- h
		}
		if f.err != nil {
			errCh <- f.err
		}
	}()
	return hypCh, errCh
}

type recordingSender struct {
	mu     sync.Mutex
	frames []protocol.ServerMessage
}

func (r *recordingSender) Send(sessionID string, msg interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, msg.(protocol.ServerMessage))
	return nil
}

func (r *recordingSender) byType(t string) []protocol.ServerMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.ServerMessage
	for _, f := range r.frames {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

func TestEndEmptyBufferSkipsEngine(t *testing.T) {
	rec := &fakeRecognizer{}
	b := NewBuffer("s1", rec, &recordingSender{}, nil)

	if err := b.End(context.Background()); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
	if atomic.LoadInt32(&rec.calls) != 0 {
		t.Fatal("recognizer invoked with empty buffer")
	}
}

func TestEndClearsBufferOnSuccess(t *testing.T) {
	rec := &fakeRecognizer{hypotheses: []Hypothesis{{Text: "hola", Confidence: 0.9, Final: true}}}
	sender := &recordingSender{}
	var final string
	b := NewBuffer("s1", rec, sender, func(ctx context.Context, transcript string) { final = transcript })

	b.Add([]byte{1})
	b.Add([]byte{2})
	b.Add([]byte{3})
	if b.Len() != 3 {
		t.Fatalf("buffered %d chunks, want 3", b.Len())
	}
	if err := b.End(context.Background()); err != nil {
		t.Fatalf("end: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("buffer not cleared after end: %d chunks left", b.Len())
	}
	if final != "hola" {
		t.Fatalf("final transcript = %q, want hola", final)
	}
	if got := sender.byType(protocol.TypeSTTResult); len(got) != 1 || got[0].Transcript != "hola" {
		t.Fatalf("stt_result frames = %+v", got)
	}
}

func TestEndClearsBufferOnFailure(t *testing.T) {
	rec := &fakeRecognizer{err: errors.New("engine down")}
	var finalCalled bool
	b := NewBuffer("s1", rec, &recordingSender{}, func(ctx context.Context, transcript string) { finalCalled = true })

	b.Add([]byte{1})
	if err := b.End(context.Background()); err == nil {
		t.Fatal("expected transcription error")
	}
	if b.Len() != 0 {
		t.Fatal("buffer not cleared after failed transcription")
	}
	if finalCalled {
		t.Fatal("onFinal invoked despite failure")
	}
	// Next utterance starts from a clean slate.
	if err := b.End(context.Background()); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio after clear, got %v", err)
	}
}

func TestInterimDeduplication(t *testing.T) {
	rec := &fakeRecognizer{hypotheses: []Hypothesis{
		{Text: "ho", Confidence: 0.3},
		{Text: "ho", Confidence: 0.4},
		{Text: "hola", Confidence: 0.5},
		{Text: "hola", Confidence: 0.6},
		{Text: "hola mundo", Confidence: 0.8, Final: true},
	}}
	sender := &recordingSender{}
	b := NewBuffer("s1", rec, sender, nil)

	b.Add([]byte{1})
	if err := b.End(context.Background()); err != nil {
		t.Fatalf("end: %v", err)
	}

	partials := sender.byType(protocol.TypeSTTPartial)
	if len(partials) != 2 {
		t.Fatalf("got %d stt_partial frames, want 2 (dedup)", len(partials))
	}
	if partials[0].Transcript != "ho" || partials[1].Transcript != "hola" {
		t.Fatalf("unexpected partials: %+v", partials)
	}
	if finals := sender.byType(protocol.TypeSTTResult); len(finals) != 1 {
		t.Fatalf("got %d stt_result frames, want 1", len(finals))
	}
}

func TestMultipleFinalsJoinIntoOneTranscript(t *testing.T) {
	rec := &fakeRecognizer{hypotheses: []Hypothesis{
		{Text: "hola", Final: true},
		{Text: "mundo", Final: true},
	}}
	var final string
	b := NewBuffer("s1", rec, &recordingSender{}, func(ctx context.Context, transcript string) { final = transcript })

	b.Add([]byte{1})
	if err := b.End(context.Background()); err != nil {
		t.Fatalf("end: %v", err)
	}
	if final != "hola mundo" {
		t.Fatalf("joined transcript = %q, want \"hola mundo\"", final)
	}
}

func TestAddDropsChunksWhileTranscribing(t *testing.T) {
	b := NewBuffer("s1", &fakeRecognizer{}, &recordingSender{}, nil)
	b.state = stateTranscribing
	b.Add([]byte{1})
	if len(b.chunks) != 0 {
		t.Fatal("chunk accepted while transcribing")
	}
}
