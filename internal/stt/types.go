package stt

import "context"

// Hypothesis is one transcript candidate for an utterance. Interim hypotheses
// refine each other; a final hypothesis commits text.
type Hypothesis struct {
	Text       string
	Confidence float64
	Final      bool
}

// Recognizer drives a finite byte stream of recorded audio through a speech
// recognition engine and relays its hypotheses. Both channels are closed when
// the engine is done; a terminal failure arrives on the error channel.
type Recognizer interface {
	Transcribe(ctx context.Context, audio []byte) (<-chan Hypothesis, <-chan error)
}
