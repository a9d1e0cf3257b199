package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CerebrasGenerator is an alternate generation engine over the Cerebras
// chat-completions API. The API is request/response, so the reply is split
// into sentence fragments to preserve the incremental delivery contract.
type CerebrasGenerator struct {
	HTTPClient *http.Client
	APIKey     string
	Model      string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatCompletionsResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

func NewCerebrasGenerator(apiKey, model string) *CerebrasGenerator {
	if model == "" {
		model = "llama-4-maverick-17b-128e-instruct"
	}
	return &CerebrasGenerator{
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
		APIKey:     apiKey,
		Model:      model,
	}
}

func (c *CerebrasGenerator) Stream(ctx context.Context, history []Message, instructions string) (<-chan string, <-chan error) {
	fragments := make(chan string, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(fragments)
		defer close(errCh)

		reply, err := c.generate(ctx, history, instructions)
		if err != nil {
			errCh <- err
			return
		}
		for _, sentence := range splitSentences(reply) {
			select {
			case fragments <- sentence + " ":
			case <-ctx.Done():
				return
			}
		}
	}()

	return fragments, errCh
}

func (c *CerebrasGenerator) generate(ctx context.Context, history []Message, instructions string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("cerebras api key missing")
	}
	endpoint := "https://api.cerebras.ai/v1/chat/completions"

	messages := make([]chatMessage, 0, len(history)+1)
	if instructions != "" {
		messages = append(messages, chatMessage{Role: "system", Content: instructions})
	}
	for _, m := range history {
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Content})
	}

	reqBody, _ := json.Marshal(chatCompletionsRequest{Model: c.Model, Messages: messages})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("cerebras error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var cr chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("cerebras: empty choices")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// splitSentences breaks a reply into sentence-like fragments, splitting on
// '.', '?', '!' and newlines while retaining punctuation.
func splitSentences(reply string) []string {
	txt := strings.TrimSpace(reply)
	if txt == "" {
		return nil
	}
	var out []string
	var b strings.Builder
	for _, r := range txt {
		switch r {
		case '.', '!', '?':
			b.WriteRune(r)
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		case '\n', '\r':
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if tail := strings.TrimSpace(b.String()); tail != "" {
		out = append(out, tail)
	}
	return out
}
