package protocol

import "encoding/json"

// Client -> server message types.
const (
	TypeMessage       = "message"
	TypeSetMode       = "set_mode"
	TypeSetOutputMode = "set_output_mode"
	TypeSetInputMode  = "set_input_mode"
	TypeToggleVoice   = "toggle_voice"
	TypeAudioChunk    = "audio_chunk"
	TypeAudioEnd      = "audio_end"
	TypePing          = "ping"
)

// Server -> client message types.
const (
	TypeConnected         = "connected"
	TypeTextChunk         = "text_chunk"
	TypeAudioReady        = "audio_ready"
	TypeSTTPartial        = "stt_partial"
	TypeSTTResult         = "stt_result"
	TypeOutputModeChanged = "output_mode_changed"
	TypeInputModeChanged  = "input_mode_changed"
	TypeMessageComplete   = "message_complete"
	TypeError             = "error"
	TypePong              = "pong"
)

// ClientMessage is the decoded form of every inbound frame. The Type field is
// the discriminator; the remaining fields are populated per type and validated
// by the dispatcher.
type ClientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Data    string `json:"data,omitempty"` // base64 audio payload for audio_chunk
}

// Known reports whether the message type belongs to the client taxonomy.
// Unrecognized types are routed to an UNKNOWN_MESSAGE_TYPE error rather than
// silently dropped.
func (m ClientMessage) Known() bool {
	switch m.Type {
	case TypeMessage, TypeSetMode, TypeSetOutputMode, TypeSetInputMode,
		TypeToggleVoice, TypeAudioChunk, TypeAudioEnd, TypePing:
		return true
	}
	return false
}

// Decode parses one inbound frame. A decode failure maps to INVALID_JSON at
// the dispatcher; the connection stays open.
func Decode(frame []byte) (ClientMessage, error) {
	var m ClientMessage
	if err := json.Unmarshal(frame, &m); err != nil {
		return ClientMessage{}, err
	}
	return m, nil
}

// ServerMessage is the outbound envelope. Only the fields relevant to the
// given Type are set; omitempty keeps frames minimal on the wire.
type ServerMessage struct {
	Type       string   `json:"type"`
	SessionID  string   `json:"session_id,omitempty"`
	InputMode  string   `json:"input_mode,omitempty"`
	OutputMode string   `json:"output_mode,omitempty"`
	Content    string   `json:"content,omitempty"`
	AudioID    string   `json:"audio_id,omitempty"`
	URL        string   `json:"url,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
	Transcript string   `json:"transcript,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Mode       string   `json:"mode,omitempty"`
	Message    string   `json:"message,omitempty"`
	Code       string   `json:"code,omitempty"`
}

func Connected(sessionID, inputMode, outputMode string) ServerMessage {
	return ServerMessage{Type: TypeConnected, SessionID: sessionID, InputMode: inputMode, OutputMode: outputMode}
}

func TextChunk(content string) ServerMessage {
	return ServerMessage{Type: TypeTextChunk, Content: content}
}

func AudioReady(audioID, url string, duration float64) ServerMessage {
	msg := ServerMessage{Type: TypeAudioReady, AudioID: audioID, URL: url}
	if duration > 0 {
		msg.Duration = &duration
	}
	return msg
}

func STTPartial(transcript string, confidence float64) ServerMessage {
	return ServerMessage{Type: TypeSTTPartial, Transcript: transcript, Confidence: &confidence}
}

func STTResult(transcript string, confidence float64) ServerMessage {
	return ServerMessage{Type: TypeSTTResult, Transcript: transcript, Confidence: &confidence}
}

func OutputModeChanged(mode string) ServerMessage {
	return ServerMessage{Type: TypeOutputModeChanged, Mode: mode}
}

func InputModeChanged(mode string) ServerMessage {
	return ServerMessage{Type: TypeInputModeChanged, Mode: mode}
}

func MessageComplete() ServerMessage {
	return ServerMessage{Type: TypeMessageComplete}
}

func Pong() ServerMessage {
	return ServerMessage{Type: TypePong}
}
