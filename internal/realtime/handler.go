package realtime

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/montanon/ensenia-hackaton-sub000/internal/llm"
	"github.com/montanon/ensenia-hackaton-sub000/internal/mode"
	"github.com/montanon/ensenia-hackaton-sub000/internal/protocol"
	"github.com/montanon/ensenia-hackaton-sub000/internal/registry"
	"github.com/montanon/ensenia-hackaton-sub000/internal/store"
	"github.com/montanon/ensenia-hackaton-sub000/internal/stt"
	"github.com/montanon/ensenia-hackaton-sub000/internal/tts"
	"github.com/montanon/ensenia-hackaton-sub000/internal/turn"
)

// Close code for a handshake against a session that does not exist. The
// connection is rejected before registration.
const closeSessionNotFound = 4004

var upgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for demo use; restrict in production
		return true
	},
}

// Handler owns the per-connection message loop: it upgrades the transport,
// registers it, and routes decoded frames to mode state, the recognition
// buffer, or the turn orchestrator. All dependencies are injected once at
// startup; there are no package-level singletons.
type Handler struct {
	sessions     store.SessionStore
	messages     store.MessageStore
	reg          *registry.Registry
	generator    llm.Generator
	recognizer   stt.Recognizer
	coordinator  *tts.Coordinator
	voice        tts.Voice
	instructions string
}

func NewHandler(sessions store.SessionStore, messages store.MessageStore, reg *registry.Registry, generator llm.Generator, recognizer stt.Recognizer, coordinator *tts.Coordinator, voice tts.Voice, instructions string) *Handler {
	return &Handler{
		sessions:     sessions,
		messages:     messages,
		reg:          reg,
		generator:    generator,
		recognizer:   recognizer,
		coordinator:  coordinator,
		voice:        voice,
		instructions: instructions,
	}
}

// Serve is the echo route handler for GET /ws/:session_id.
func (h *Handler) Serve(c echo.Context) error {
	sessionID := c.Param("session_id")

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return nil
	}

	sess, err := h.sessions.Get(c.Request().Context(), sessionID)
	if err != nil {
		log.Printf("[%s] handshake rejected: %v", sessionID, err)
		closeMsg := websocket.FormatCloseMessage(closeSessionNotFound, protocol.CodeSessionNotFound)
		_ = conn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = conn.Close()
		return nil
	}

	h.run(sessionID, sess, conn)
	return nil
}

// run is the sequential read loop for one connection. No error class escapes
// it: malformed frames produce protocol errors, transport failure ends the
// loop, and teardown deregisters and joins in-flight audio work.
func (h *Handler) run(sessionID string, sess store.Session, conn *websocket.Conn) {
	// connCtx scopes turns and audio branches to the connection lifetime.
	connCtx, cancel := context.WithCancel(context.Background())

	modes := mode.NewState(sessionID, h.sessions, sess.InputMode, sess.OutputMode)
	orch := turn.NewOrchestrator(sessionID, h.reg, h.generator, h.messages, h.coordinator, h.voice, h.instructions, connCtx)

	runTurn := func(ctx context.Context, userText, inputMode string) {
		_, outputMode := modes.Snapshot()
		err := orch.Run(ctx, userText, inputMode, outputMode)
		switch {
		case err == nil:
		case errors.Is(err, turn.ErrUserPersist):
			h.sendError(sessionID, protocol.CodeProcessingError, "failed to record message")
		case errors.Is(err, turn.ErrGeneration):
			h.sendError(sessionID, protocol.CodeTextStreamError, "text generation failed")
		default:
			h.sendError(sessionID, protocol.CodeProcessingError, "failed to process message")
		}
	}

	buffer := stt.NewBuffer(sessionID, h.recognizer, h.reg, func(ctx context.Context, transcript string) {
		runTurn(ctx, transcript, mode.InputVoice)
	})

	// Short connection id so reconnects of the same session are
	// distinguishable in the logs.
	connID := uuid.NewString()[:8]

	h.reg.Connect(sessionID, conn)
	log.Printf("[%s] connected conn=%s (%d active)", sessionID, connID, h.reg.Count())

	defer func() {
		h.reg.Disconnect(sessionID, conn)
		buffer.Clear()
		cancel()
		orch.Join()
		_ = conn.Close()
		log.Printf("[%s] disconnected conn=%s (%d active)", sessionID, connID, h.reg.Count())
	}()

	in, out := modes.Snapshot()
	if err := h.reg.Send(sessionID, protocol.Connected(sessionID, in, out)); err != nil {
		log.Printf("[%s] connected frame send failed: %v", sessionID, err)
		return
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[%s] read error: %v", sessionID, err)
			}
			return
		}

		msg, err := protocol.Decode(frame)
		if err != nil {
			h.sendError(sessionID, protocol.CodeInvalidJSON, "invalid JSON message")
			continue
		}
		if !msg.Known() {
			h.sendError(sessionID, protocol.CodeUnknownMessageType, "unknown message type: "+msg.Type)
			continue
		}

		h.dispatch(connCtx, sessionID, msg, modes, buffer, runTurn)
	}
}

func (h *Handler) dispatch(ctx context.Context, sessionID string, msg protocol.ClientMessage, modes *mode.State, buffer *stt.Buffer, runTurn func(context.Context, string, string)) {
	switch msg.Type {
	case protocol.TypeMessage:
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			h.sendError(sessionID, protocol.CodeMissingContent, "message content is required")
			return
		}
		runTurn(ctx, content, modes.Input())

	case protocol.TypeSetMode, protocol.TypeSetOutputMode:
		if err := modes.SetOutput(ctx, msg.Mode); err != nil {
			if errors.Is(err, mode.ErrInvalidMode) {
				h.sendError(sessionID, protocol.CodeInvalidOutputMode, "output mode must be \"text\" or \"audio\"")
			} else {
				log.Printf("[%s] output mode update failed: %v", sessionID, err)
				h.sendError(sessionID, protocol.CodeOutputModeUpdateFailed, "failed to update output mode")
			}
			return
		}
		h.send(sessionID, protocol.OutputModeChanged(modes.Output()))

	case protocol.TypeSetInputMode:
		if err := modes.SetInput(ctx, msg.Mode); err != nil {
			if errors.Is(err, mode.ErrInvalidMode) {
				h.sendError(sessionID, protocol.CodeInvalidInputMode, "input mode must be \"text\" or \"voice\"")
			} else {
				log.Printf("[%s] input mode update failed: %v", sessionID, err)
				h.sendError(sessionID, protocol.CodeInputModeUpdateFailed, "failed to update input mode")
			}
			return
		}
		h.send(sessionID, protocol.InputModeChanged(modes.Input()))

	case protocol.TypeToggleVoice:
		in, out, err := modes.ToggleVoice(ctx)
		if err != nil {
			log.Printf("[%s] voice toggle failed: %v", sessionID, err)
			h.sendError(sessionID, protocol.CodeVoiceToggleFailed, "failed to toggle voice mode")
			return
		}
		h.send(sessionID, protocol.InputModeChanged(in))
		h.send(sessionID, protocol.OutputModeChanged(out))

	case protocol.TypeAudioChunk:
		if msg.Data == "" {
			h.sendError(sessionID, protocol.CodeMissingAudioData, "audio_chunk requires base64 data")
			return
		}
		chunk, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			h.sendError(sessionID, protocol.CodeAudioDecodeError, "audio data is not valid base64")
			return
		}
		buffer.Add(chunk)

	case protocol.TypeAudioEnd:
		if err := buffer.End(ctx); err != nil {
			if errors.Is(err, stt.ErrNoAudio) {
				h.sendError(sessionID, protocol.CodeNoAudioData, "no audio buffered for this utterance")
			} else {
				log.Printf("[%s] transcription failed: %v", sessionID, err)
				h.sendError(sessionID, protocol.CodeTranscriptionError, "speech recognition failed")
			}
		}

	case protocol.TypePing:
		h.send(sessionID, protocol.Pong())
	}
}

func (h *Handler) send(sessionID string, msg protocol.ServerMessage) {
	if err := h.reg.Send(sessionID, msg); err != nil {
		log.Printf("[%s] %s send failed: %v", sessionID, msg.Type, err)
	}
}

func (h *Handler) sendError(sessionID, code, message string) {
	h.send(sessionID, protocol.Error(code, message))
}
