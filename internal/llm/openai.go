package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator streams assistant replies through the chat-completions
// streaming API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4oMini
	}
	var client *openai.Client
	if apiKey != "" {
		client = openai.NewClient(apiKey)
	}
	return &OpenAIGenerator{client: client, model: model}
}

func (g *OpenAIGenerator) Stream(ctx context.Context, history []Message, instructions string) (<-chan string, <-chan error) {
	fragments := make(chan string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(fragments)
		defer close(errCh)

		if g.client == nil {
			errCh <- fmt.Errorf("openai: API key missing")
			return
		}

		messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
		if instructions != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: instructions,
			})
		}
		for _, m := range history {
			role := openai.ChatMessageRoleUser
			if m.Role == "assistant" {
				role = openai.ChatMessageRoleAssistant
			}
			messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
		}

		stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:    g.model,
			Messages: messages,
			Stream:   true,
		})
		if err != nil {
			errCh <- fmt.Errorf("openai: open stream: %w", err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- fmt.Errorf("openai: recv: %w", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case fragments <- delta:
			case <-ctx.Done():
				return
			}
		}
	}()

	return fragments, errCh
}
