package tts

import "context"

// Voice is the synthesis parameter set. All fields participate in the cache
// key, so two requests differing in any parameter never share audio.
type Voice struct {
	ID         string
	Model      string
	Encoding   string
	SampleRate int
	Speed      float64
}

// DefaultVoice returns the voice used when a session has no override.
func DefaultVoice(model string) Voice {
	if model == "" {
		model = "aura-2-celeste-es"
	}
	return Voice{Model: model, Encoding: "linear16", SampleRate: 48000, Speed: 1.0}
}

// Synthesizer turns finalized text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, v Voice) ([]byte, error)
}
