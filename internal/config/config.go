package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress   string
	PublicBaseURL string

	OpenAIKey   string
	OpenAIModel string

	CerebrasKey   string
	CerebrasModel string

	DeepgramKey      string
	DeepgramTTSModel string
	DeepgramSTTModel string
	TTSVoiceID       string
	STTLanguage      string

	AudioCacheTTL time.Duration

	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	SystemPrompt string
}

const defaultSystemPrompt = "Eres un tutor de español paciente y alentador. " +
	"Responde de forma breve y clara, corrige errores con delicadeza y mantén la conversación en español."

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	openAIModel := os.Getenv("OPENAI_MODEL")
	cerebrasKey := os.Getenv("CEREBRAS_API_KEY")
	cerebrasModel := os.Getenv("CEREBRAS_MODEL_ID")
	if openAIKey == "" && cerebrasKey == "" {
		log.Println("Warning: neither OPENAI_API_KEY nor CEREBRAS_API_KEY set - text generation will not work")
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - speech recognition and synthesis will not work")
	}
	ttsModel := os.Getenv("DEEPGRAM_TTS_MODEL")
	ttsVoiceID := os.Getenv("TTS_VOICE_ID")
	sttModel := os.Getenv("DEEPGRAM_STT_MODEL")
	sttLanguage := os.Getenv("STT_LANGUAGE")
	if sttLanguage == "" {
		sttLanguage = "es"
	}

	ttl := time.Hour
	if v := os.Getenv("AUDIO_CACHE_TTL_MIN"); v != "" {
		if mins, err := strconv.Atoi(v); err == nil && mins > 0 {
			ttl = time.Duration(mins) * time.Minute
		} else {
			log.Printf("Warning: invalid AUDIO_CACHE_TTL_MIN %q, using default", v)
		}
	}

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	supabaseBucket := os.Getenv("SUPABASE_BUCKET")
	if supabaseURL != "" && supabaseBucket == "" {
		supabaseBucket = "tutor-audio"
	}

	prompt := os.Getenv("SYSTEM_PROMPT")
	if prompt == "" {
		prompt = defaultSystemPrompt
	}

	log.Printf("config: HTTP_ADDRESS=%s", addr)
	return Config{
		HTTPAddress:      addr,
		PublicBaseURL:    baseURL,
		OpenAIKey:        openAIKey,
		OpenAIModel:      openAIModel,
		CerebrasKey:      cerebrasKey,
		CerebrasModel:    cerebrasModel,
		DeepgramKey:      deepgramKey,
		DeepgramTTSModel: ttsModel,
		DeepgramSTTModel: sttModel,
		TTSVoiceID:       ttsVoiceID,
		STTLanguage:      sttLanguage,
		AudioCacheTTL:    ttl,
		SupabaseURL:      supabaseURL,
		SupabaseKey:      supabaseKey,
		SupabaseBucket:   supabaseBucket,
		SystemPrompt:     prompt,
	}
}
