package tts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/montanon/ensenia-hackaton-sub000/internal/protocol"
)

type fakeSynth struct {
	calls int32
	fail  bool
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, v Voice) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fail {
		return nil, errors.New("engine down")
	}
	return []byte("audio:" + text), nil
}

type recordingSender struct {
	mu     sync.Mutex
	frames map[string][]protocol.ServerMessage
}

func newRecordingSender() *recordingSender {
	return &recordingSender{frames: make(map[string][]protocol.ServerMessage)}
}

func (r *recordingSender) Send(sessionID string, msg interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sm, ok := msg.(protocol.ServerMessage)
	if !ok {
		return errors.New("unexpected message type")
	}
	r.frames[sessionID] = append(r.frames[sessionID], sm)
	return nil
}

func (r *recordingSender) sent(sessionID string) []protocol.ServerMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.ServerMessage, len(r.frames[sessionID]))
	copy(out, r.frames[sessionID])
	return out
}

func TestResolveHitsCacheOnSecondCall(t *testing.T) {
	synth := &fakeSynth{}
	c := NewCoordinator(synth, NewCache(time.Minute), newRecordingSender(), nil, "http://localhost:8080")
	v := DefaultVoice("")

	k1, d1, err := c.Resolve(context.Background(), "Hola mundo.", v)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	k2, d2, err := c.Resolve(context.Background(), "Hola mundo.", v)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("keys differ: %s vs %s", k1, k2)
	}
	if string(d1) != string(d2) {
		t.Fatal("cached bytes differ from synthesized bytes")
	}
	if n := atomic.LoadInt32(&synth.calls); n != 1 {
		t.Fatalf("engine invoked %d times, want 1 (second call must be a cache hit)", n)
	}
}

func TestSynthesizeAndNotifySendsAudioReady(t *testing.T) {
	synth := &fakeSynth{}
	sender := newRecordingSender()
	c := NewCoordinator(synth, NewCache(time.Minute), sender, nil, "http://localhost:8080")

	ref := c.SynthesizeAndNotify(context.Background(), "s1", "Hola mundo.", DefaultVoice(""))
	if ref == nil {
		t.Fatal("expected audio ref on success")
	}
	frames := sender.sent("s1")
	if len(frames) != 1 || frames[0].Type != protocol.TypeAudioReady {
		t.Fatalf("expected one audio_ready frame, got %+v", frames)
	}
	if frames[0].AudioID == "" || frames[0].URL == "" {
		t.Fatalf("audio_ready missing id/url: %+v", frames[0])
	}
	if ref.ID != frames[0].AudioID || !ref.Available {
		t.Fatalf("ref does not match notification: %+v", ref)
	}
}

func TestSynthesisFailureIsNonFatal(t *testing.T) {
	synth := &fakeSynth{fail: true}
	sender := newRecordingSender()
	c := NewCoordinator(synth, NewCache(time.Minute), sender, nil, "http://localhost:8080")

	ref := c.SynthesizeAndNotify(context.Background(), "s1", "Hola mundo.", DefaultVoice(""))
	if ref != nil {
		t.Fatalf("expected nil ref on failure, got %+v", ref)
	}
	frames := sender.sent("s1")
	if len(frames) != 1 || frames[0].Type != protocol.TypeError || frames[0].Code != protocol.CodeAudioStreamError {
		t.Fatalf("expected AUDIO_STREAM_ERROR frame, got %+v", frames)
	}
	for _, f := range frames {
		if f.Type == protocol.TypeAudioReady {
			t.Fatal("audio_ready sent despite engine failure")
		}
	}
}

func TestUnconfiguredEngineReportsTTSNotConfigured(t *testing.T) {
	sender := newRecordingSender()
	c := NewCoordinator(nil, NewCache(time.Minute), sender, nil, "http://localhost:8080")
	if c.Configured() {
		t.Fatal("coordinator without engine reports configured")
	}
	if ref := c.SynthesizeAndNotify(context.Background(), "s1", "hola", DefaultVoice("")); ref != nil {
		t.Fatalf("expected nil ref, got %+v", ref)
	}
	frames := sender.sent("s1")
	if len(frames) != 1 || frames[0].Code != protocol.CodeTTSNotConfigured {
		t.Fatalf("expected TTS_NOT_CONFIGURED, got %+v", frames)
	}
}

func TestConcurrentSessionsShareAudioID(t *testing.T) {
	synth := &fakeSynth{}
	sender := newRecordingSender()
	c := NewCoordinator(synth, NewCache(time.Minute), sender, nil, "http://localhost:8080")
	v := DefaultVoice("")

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			c.SynthesizeAndNotify(context.Background(), id, "La misma frase.", v)
		}(id)
	}
	wg.Wait()

	fa, fb := sender.sent("a"), sender.sent("b")
	if len(fa) != 1 || len(fb) != 1 {
		t.Fatalf("expected one frame per session, got %d and %d", len(fa), len(fb))
	}
	if fa[0].Type != protocol.TypeAudioReady || fb[0].Type != protocol.TypeAudioReady {
		t.Fatalf("expected audio_ready for both, got %s and %s", fa[0].Type, fb[0].Type)
	}
	if fa[0].AudioID != fb[0].AudioID {
		t.Fatalf("same text and voice produced different audio ids: %s vs %s", fa[0].AudioID, fb[0].AudioID)
	}
}

func TestLookupServesCachedBytes(t *testing.T) {
	synth := &fakeSynth{}
	c := NewCoordinator(synth, NewCache(time.Minute), newRecordingSender(), nil, "http://localhost:8080")
	key, data, err := c.Resolve(context.Background(), "hola", DefaultVoice(""))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, ok := c.Lookup(key)
	if !ok || string(got) != string(data) {
		t.Fatalf("lookup mismatch: ok=%v", ok)
	}
}
