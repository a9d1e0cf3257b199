package llm

import "context"

// Message is one prior conversation entry fed back to the generator.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Generator produces an ordered lazy sequence of text fragments for one
// conversational turn. Fragments arrive on the first channel in production
// order; a terminal failure arrives on the second. Both channels are closed
// when the sequence is exhausted.
type Generator interface {
	Stream(ctx context.Context, history []Message, instructions string) (<-chan string, <-chan error)
}
