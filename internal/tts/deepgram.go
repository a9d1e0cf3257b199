package tts

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
)

// DeepgramSpeaker synthesizes speech through the Deepgram speak WebSocket,
// aggregating the streamed binary frames into one byte slice for caching.
type DeepgramSpeaker struct {
	apiKey string
}

func NewDeepgramSpeaker(apiKey string) *DeepgramSpeaker {
	return &DeepgramSpeaker{apiKey: apiKey}
}

func (d *DeepgramSpeaker) Synthesize(ctx context.Context, text string, v Voice) ([]byte, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("deepgram: API key missing")
	}
	if text == "" {
		return nil, fmt.Errorf("deepgram: empty text")
	}

	options := &clientinterfaces.WSSpeakOptions{
		Model:      v.Model,
		Encoding:   v.Encoding,
		SampleRate: v.SampleRate,
	}

	var (
		mu           sync.Mutex
		audio        []byte
		lastRecvUnix int64
		seenAudio    int32
	)

	cb := &speakCallback{onBinary: func(data []byte) error {
		if len(data) == 0 {
			return nil
		}
		atomic.StoreInt64(&lastRecvUnix, time.Now().UnixNano())
		atomic.StoreInt32(&seenAudio, 1)
		mu.Lock()
		audio = append(audio, data...)
		mu.Unlock()
		return nil
	}}

	dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
	if err != nil {
		return nil, fmt.Errorf("deepgram: create ws client: %w", err)
	}

	stopped := false
	stopClient := func() {
		if !stopped {
			stopped = true
			dg.Stop()
		}
	}
	defer stopClient()

	if ok := dg.Connect(); !ok {
		return nil, fmt.Errorf("deepgram: connect failed")
	}

	if err := dg.SpeakWithText(text); err != nil {
		return nil, fmt.Errorf("deepgram: speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		log.Printf("deepgram: flush error: %v", err)
	}

	// The speak socket has no explicit end-of-audio signal at this layer:
	// a quiet window after the first frame means completion, with a hard
	// deadline as backstop.
	idleWindow := 400 * time.Millisecond
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(12 * time.Second)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if atomic.LoadInt32(&seenAudio) == 1 {
				last := time.Unix(0, atomic.LoadInt64(&lastRecvUnix))
				if time.Since(last) > idleWindow {
					mu.Lock()
					out := make([]byte, len(audio))
					copy(out, audio)
					mu.Unlock()
					return out, nil
				}
			}
			if time.Now().After(deadline) {
				if atomic.LoadInt32(&seenAudio) == 0 {
					return nil, fmt.Errorf("deepgram: no audio before deadline")
				}
				mu.Lock()
				out := make([]byte, len(audio))
				copy(out, audio)
				mu.Unlock()
				return out, nil
			}
		}
	}
}

type speakCallback struct{ onBinary func([]byte) error }

func (s *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCallback) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (s *speakCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCallback) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakCallback) Error(*msginterfaces.ErrorResponse) error       { return nil }
func (s *speakCallback) UnhandledEvent([]byte) error                    { return nil }
func (s *speakCallback) Binary(byMsg []byte) error {
	if s.onBinary != nil {
		return s.onBinary(byMsg)
	}
	return nil
}
