package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const sendChunkSize = 8192

// DeepgramRecognizer streams a recorded utterance through the Deepgram live
// listen WebSocket and relays interim/final results.
type DeepgramRecognizer struct {
	apiKey   string
	model    string
	language string
	// Encoding/SampleRate are left empty for container formats (webm, ogg);
	// Deepgram detects those itself. Set both for raw PCM.
	encoding   string
	sampleRate int
}

func NewDeepgramRecognizer(apiKey, model, language string) *DeepgramRecognizer {
	if model == "" {
		model = "nova-2-general"
	}
	return &DeepgramRecognizer{apiKey: apiKey, model: model, language: language}
}

// WithRawPCM configures the recognizer for raw linear16 input.
func (d *DeepgramRecognizer) WithRawPCM(sampleRate int) *DeepgramRecognizer {
	d.encoding = "linear16"
	d.sampleRate = sampleRate
	return d
}

type deepgramResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (d *DeepgramRecognizer) Transcribe(ctx context.Context, audio []byte) (<-chan Hypothesis, <-chan error) {
	hypCh := make(chan Hypothesis, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(hypCh)
		defer close(errCh)

		if d.apiKey == "" {
			errCh <- fmt.Errorf("deepgram: API key missing")
			return
		}

		q := url.Values{}
		q.Set("model", d.model)
		if d.language != "" {
			q.Set("language", d.language)
		}
		if d.encoding != "" {
			q.Set("encoding", d.encoding)
			q.Set("sample_rate", fmt.Sprintf("%d", d.sampleRate))
			q.Set("channels", "1")
		}
		u := url.URL{Scheme: "wss", Host: "api.deepgram.com", Path: "/v1/listen", RawQuery: q.Encode()}

		header := http.Header{}
		header.Set("Authorization", "Token "+d.apiKey)

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, resp, err := dialer.DialContext(ctx, u.String(), header)
		if err != nil {
			if resp != nil {
				log.Printf("deepgram listen: handshake failed with status %d", resp.StatusCode)
			}
			errCh <- fmt.Errorf("deepgram: dial listen ws: %w", err)
			return
		}
		defer conn.Close()

		// Writer: push the utterance in chunks, then signal end of stream so
		// the engine flushes its final result.
		writeErr := make(chan error, 1)
		go func() {
			defer close(writeErr)
			for off := 0; off < len(audio); off += sendChunkSize {
				end := off + sendChunkSize
				if end > len(audio) {
					end = len(audio)
				}
				if err := conn.WriteMessage(websocket.BinaryMessage, audio[off:end]); err != nil {
					writeErr <- fmt.Errorf("deepgram: send audio: %w", err)
					return
				}
			}
			if err := conn.WriteJSON(map[string]string{"type": "CloseStream"}); err != nil {
				writeErr <- fmt.Errorf("deepgram: close stream: %w", err)
			}
		}()

		// Reader: relay results until the engine closes the socket.
		sawResult := false
		for {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				if werr, ok := <-writeErr; ok && werr != nil {
					errCh <- werr
					return
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) || sawResult {
					return
				}
				errCh <- fmt.Errorf("deepgram: read result: %w", err)
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}

			var res deepgramResult
			if err := json.Unmarshal(msg, &res); err != nil {
				log.Printf("deepgram listen: unparseable message: %s", string(msg))
				continue
			}
			if res.Type == "Metadata" {
				// Engine is done; it closes the socket after this.
				return
			}
			if len(res.Channel.Alternatives) == 0 {
				continue
			}
			alt := res.Channel.Alternatives[0]
			if alt.Transcript == "" {
				continue
			}
			sawResult = true
			select {
			case hypCh <- Hypothesis{Text: alt.Transcript, Confidence: alt.Confidence, Final: res.IsFinal}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return hypCh, errCh
}
