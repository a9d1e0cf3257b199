package tts

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/montanon/ensenia-hackaton-sub000/internal/protocol"
	"github.com/montanon/ensenia-hackaton-sub000/internal/store"
)

// Sender is the slice of the connection registry the coordinator needs.
type Sender interface {
	Send(sessionID string, msg interface{}) error
}

// Uploader pushes synthesized audio to an object store and returns the URL it
// is served from. Optional; without it audio is served from the local cache
// route.
type Uploader interface {
	Upload(key string, data []byte) (string, error)
}

// Coordinator resolves synthesized audio through the cache and notifies
// connections when audio becomes available. Audio is an enhancement: every
// failure here degrades to a non-fatal protocol error, never a failed turn.
type Coordinator struct {
	synth    Synthesizer // nil when no engine is configured
	cache    *Cache
	sender   Sender
	uploader Uploader
	baseURL  string
}

func NewCoordinator(synth Synthesizer, cache *Cache, sender Sender, uploader Uploader, baseURL string) *Coordinator {
	return &Coordinator{
		synth:    synth,
		cache:    cache,
		sender:   sender,
		uploader: uploader,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Configured reports whether a synthesis engine is available.
func (c *Coordinator) Configured() bool { return c.synth != nil }

// Lookup returns cached audio bytes by content key, for the audio fetch route.
func (c *Coordinator) Lookup(key string) ([]byte, bool) {
	data, _, ok := c.cache.Get(key)
	return data, ok
}

// Resolve returns audio for the (text, voice) pair, hitting the cache first.
// The key computation is pure, so identical pairs across sessions always
// resolve to the same entry and the engine runs at most once per live key.
func (c *Coordinator) Resolve(ctx context.Context, text string, v Voice) (key string, data []byte, err error) {
	key = Key(text, v)
	if data, _, ok := c.cache.Get(key); ok {
		return key, data, nil
	}
	if c.synth == nil {
		return "", nil, fmt.Errorf("no synthesis engine configured")
	}
	data, err = c.synth.Synthesize(ctx, text, v)
	if err != nil {
		return "", nil, fmt.Errorf("synthesize: %w", err)
	}

	url := c.baseURL + "/audio/" + key
	if c.uploader != nil {
		if uploaded, uerr := c.uploader.Upload(key+".pcm", data); uerr != nil {
			log.Printf("audio upload failed, serving from cache route: %v", uerr)
		} else {
			url = uploaded
		}
	}
	c.cache.Put(key, data, url)
	return key, data, nil
}

// SynthesizeAndNotify resolves audio for finalized turn text and sends
// audio_ready to the session. It runs concurrently with turn completion; its
// notification may land before or after message_complete. On success the
// audio reference is returned so the caller can attach it to the persisted
// turn; on failure the result is nil and the turn stands on its text.
func (c *Coordinator) SynthesizeAndNotify(ctx context.Context, sessionID, text string, v Voice) *store.AudioRef {
	if c.synth == nil {
		c.sendError(sessionID, protocol.CodeTTSNotConfigured, "speech synthesis is not configured")
		return nil
	}

	key, data, err := c.Resolve(ctx, text, v)
	if err != nil {
		log.Printf("[%s] synthesis failed: %v", sessionID, err)
		c.sendError(sessionID, protocol.CodeAudioStreamError, "audio synthesis failed")
		return nil
	}

	_, url, _ := c.cache.Get(key)
	duration := pcmDuration(len(data), v)
	if err := c.sender.Send(sessionID, protocol.AudioReady(key, url, duration)); err != nil {
		// The connection may be gone by the time synthesis finishes;
		// notification is best-effort.
		log.Printf("[%s] audio_ready send failed: %v", sessionID, err)
	}
	return &store.AudioRef{ID: key, URL: url, Available: true, DurationSeconds: duration}
}

func (c *Coordinator) sendError(sessionID, code, message string) {
	if err := c.sender.Send(sessionID, protocol.Error(code, message)); err != nil {
		log.Printf("[%s] %s send failed: %v", sessionID, code, err)
	}
}

// pcmDuration derives playback seconds from byte length for 16-bit mono PCM.
// Unknown encodings yield 0 and the duration field is omitted on the wire.
func pcmDuration(n int, v Voice) float64 {
	if v.Encoding != "linear16" || v.SampleRate <= 0 {
		return 0
	}
	return float64(n) / float64(2*v.SampleRate)
}
