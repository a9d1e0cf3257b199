package stt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/montanon/ensenia-hackaton-sub000/internal/protocol"
)

// ErrNoAudio is returned by End when no chunks were buffered. The engine is
// not invoked in that case.
var ErrNoAudio = errors.New("no buffered audio")

type bufferState int

const (
	stateIdle bufferState = iota
	stateRecording
	stateTranscribing
)

// Sender is the slice of the connection registry the buffer needs.
type Sender interface {
	Send(sessionID string, msg interface{}) error
}

// Buffer accumulates the audio chunks of one utterance and, on the
// end-of-utterance signal, drives them through the recognizer. It is owned by
// a single connection's read loop; Add and End are never called concurrently.
type Buffer struct {
	sessionID  string
	recognizer Recognizer
	sender     Sender
	// onFinal receives the committed transcript, to be treated as typed
	// input with the voice input tag.
	onFinal func(ctx context.Context, transcript string)

	state       bufferState
	chunks      [][]byte
	lastInterim string
}

func NewBuffer(sessionID string, recognizer Recognizer, sender Sender, onFinal func(ctx context.Context, transcript string)) *Buffer {
	return &Buffer{sessionID: sessionID, recognizer: recognizer, sender: sender, onFinal: onFinal}
}

// Add appends one audio chunk, entering Recording from Idle on the first
// chunk. Chunks arriving while a transcription is in flight are dropped.
func (b *Buffer) Add(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	switch b.state {
	case stateIdle:
		b.state = stateRecording
	case stateTranscribing:
		log.Printf("[%s] audio chunk dropped, transcription in flight", b.sessionID)
		return
	}
	b.chunks = append(b.chunks, chunk)
}

// Len returns the number of buffered chunks.
func (b *Buffer) Len() int { return len(b.chunks) }

// Clear drops all buffered state and returns to Idle.
func (b *Buffer) Clear() {
	b.chunks = nil
	b.lastInterim = ""
	b.state = stateIdle
}

// End finalizes the utterance: the accumulated audio is pushed through the
// recognizer, interim hypotheses are relayed as stt_partial (deduplicated),
// finals as stt_result. Whatever happens the buffer is cleared afterward so
// one utterance can never contaminate the next. The committed transcript, if
// any, is handed to onFinal.
func (b *Buffer) End(ctx context.Context) error {
	if len(b.chunks) == 0 {
		return ErrNoAudio
	}
	b.state = stateTranscribing
	defer b.Clear()

	var total int
	for _, c := range b.chunks {
		total += len(c)
	}
	audio := make([]byte, 0, total)
	for _, c := range b.chunks {
		audio = append(audio, c...)
	}
	log.Printf("[%s] transcribing utterance: %d bytes in %d chunks", b.sessionID, total, len(b.chunks))

	hypCh, errCh := b.recognizer.Transcribe(ctx, audio)

	var finals []string
	var transcribeErr error
	openHyp, openErr := true, true
	for openHyp || openErr {
		select {
		case h, ok := <-hypCh:
			if !ok {
				openHyp = false
				continue
			}
			if h.Final {
				finals = append(finals, h.Text)
				if err := b.sender.Send(b.sessionID, protocol.STTResult(h.Text, h.Confidence)); err != nil {
					log.Printf("[%s] stt_result send failed: %v", b.sessionID, err)
				}
				continue
			}
			// De-duplicate interim hypotheses so the client UI is not
			// redrawn with identical text.
			if h.Text == b.lastInterim {
				continue
			}
			b.lastInterim = h.Text
			if err := b.sender.Send(b.sessionID, protocol.STTPartial(h.Text, h.Confidence)); err != nil {
				log.Printf("[%s] stt_partial send failed: %v", b.sessionID, err)
			}
		case e, ok := <-errCh:
			if !ok {
				openErr = false
				continue
			}
			if e != nil && transcribeErr == nil {
				transcribeErr = e
			}
		}
	}

	if transcribeErr != nil {
		return fmt.Errorf("transcription: %w", transcribeErr)
	}

	transcript := strings.TrimSpace(strings.Join(finals, " "))
	if transcript != "" && b.onFinal != nil {
		b.onFinal(ctx, transcript)
	}
	return nil
}
