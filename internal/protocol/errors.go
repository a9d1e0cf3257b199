package protocol

// Error codes surfaced to clients. Protocol and validation errors keep the
// connection open; only a failed handshake closes it.
const (
	CodeInvalidJSON            = "INVALID_JSON"
	CodeUnknownMessageType     = "UNKNOWN_MESSAGE_TYPE"
	CodeInvalidOutputMode      = "INVALID_OUTPUT_MODE"
	CodeInvalidInputMode       = "INVALID_INPUT_MODE"
	CodeMissingAudioData       = "MISSING_AUDIO_DATA"
	CodeAudioDecodeError       = "AUDIO_DECODE_ERROR"
	CodeNoAudioData            = "NO_AUDIO_DATA"
	CodeTranscriptionError     = "TRANSCRIPTION_ERROR"
	CodeProcessingError        = "PROCESSING_ERROR"
	CodeTTSError               = "TTS_ERROR"
	CodeAudioStreamError       = "AUDIO_STREAM_ERROR"
	CodeTTSNotConfigured       = "TTS_NOT_CONFIGURED"
	CodeMissingContent         = "MISSING_CONTENT"
	CodeTextStreamError        = "TEXT_STREAM_ERROR"
	CodeSessionNotFound        = "SESSION_NOT_FOUND"
	CodeOutputModeUpdateFailed = "OUTPUT_MODE_UPDATE_FAILED"
	CodeInputModeUpdateFailed  = "INPUT_MODE_UPDATE_FAILED"
	CodeVoiceToggleFailed      = "VOICE_TOGGLE_FAILED"
)

// Error builds a client-visible error frame.
func Error(code, message string) ServerMessage {
	return ServerMessage{Type: TypeError, Code: code, Message: message}
}
