package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/montanon/ensenia-hackaton-sub000/internal/config"
	"github.com/montanon/ensenia-hackaton-sub000/internal/httpserver"
	"github.com/montanon/ensenia-hackaton-sub000/internal/llm"
	"github.com/montanon/ensenia-hackaton-sub000/internal/mode"
	"github.com/montanon/ensenia-hackaton-sub000/internal/realtime"
	"github.com/montanon/ensenia-hackaton-sub000/internal/registry"
	"github.com/montanon/ensenia-hackaton-sub000/internal/store"
	"github.com/montanon/ensenia-hackaton-sub000/internal/stt"
	"github.com/montanon/ensenia-hackaton-sub000/internal/tts"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	sessions := store.NewMemStore()
	// Demo session so a client can connect out of the box.
	sessions.Put(store.Session{ID: "demo", InputMode: mode.InputText, OutputMode: mode.OutputText})

	reg := registry.New()
	var generator llm.Generator = llm.NewOpenAIGenerator(cfg.OpenAIKey, cfg.OpenAIModel)
	if cfg.OpenAIKey == "" && cfg.CerebrasKey != "" {
		generator = llm.NewCerebrasGenerator(cfg.CerebrasKey, cfg.CerebrasModel)
	}
	recognizer := stt.NewDeepgramRecognizer(cfg.DeepgramKey, cfg.DeepgramSTTModel, cfg.STTLanguage)

	var synth tts.Synthesizer
	if cfg.DeepgramKey != "" {
		synth = tts.NewDeepgramSpeaker(cfg.DeepgramKey)
	}

	var uploader tts.Uploader
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		sb, err := store.NewSupabaseStorage(store.SupabaseConfig{
			URL:            cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseKey,
			Bucket:         cfg.SupabaseBucket,
		})
		if err != nil {
			log.Printf("supabase storage disabled: %v", err)
		} else {
			uploader = sb
		}
	}

	cache := tts.NewCache(cfg.AudioCacheTTL)
	coordinator := tts.NewCoordinator(synth, cache, reg, uploader, cfg.PublicBaseURL)
	voice := tts.DefaultVoice(cfg.DeepgramTTSModel)
	voice.ID = cfg.TTSVoiceID

	handler := realtime.NewHandler(sessions, sessions, reg, generator, recognizer, coordinator, voice, cfg.SystemPrompt)

	e := httpserver.New(handler, coordinator)

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
