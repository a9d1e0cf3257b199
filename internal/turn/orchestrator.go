package turn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/montanon/ensenia-hackaton-sub000/internal/llm"
	"github.com/montanon/ensenia-hackaton-sub000/internal/mode"
	"github.com/montanon/ensenia-hackaton-sub000/internal/protocol"
	"github.com/montanon/ensenia-hackaton-sub000/internal/store"
	"github.com/montanon/ensenia-hackaton-sub000/internal/tts"
)

// ErrUserPersist means the inbound user message could not be recorded; the
// turn never starts. Dispatcher maps it to PROCESSING_ERROR.
var ErrUserPersist = errors.New("persist user message")

// ErrGeneration means the generation engine failed; no completion signal was
// sent. Dispatcher maps it to TEXT_STREAM_ERROR.
var ErrGeneration = errors.New("text generation")

// Sender is the slice of the connection registry a turn needs.
type Sender interface {
	Send(sessionID string, msg interface{}) error
}

// Notifier is the synthesis coordinator surface the audio branch uses.
type Notifier interface {
	Configured() bool
	SynthesizeAndNotify(ctx context.Context, sessionID, text string, v tts.Voice) *store.AudioRef
}

// Orchestrator runs turns for one connection: it drives the generation
// engine, streams fragments in production order, persists the finalized
// exchange, and spawns the audio branch when the session wants spoken output.
// One instance is owned by one connection's read loop; Run is never invoked
// concurrently, but the audio branch it spawns outlives the call.
type Orchestrator struct {
	sessionID    string
	sender       Sender
	generator    llm.Generator
	messages     store.MessageStore
	audio        Notifier
	voice        tts.Voice
	instructions string

	// audioCtx scopes audio branches to the connection: a disconnect
	// cancels in-flight synthesis instead of leaking it.
	audioCtx context.Context
	tasks    sync.WaitGroup

	mu      sync.Mutex
	history []llm.Message
}

func NewOrchestrator(sessionID string, sender Sender, generator llm.Generator, messages store.MessageStore, audio Notifier, voice tts.Voice, instructions string, audioCtx context.Context) *Orchestrator {
	if audioCtx == nil {
		audioCtx = context.Background()
	}
	return &Orchestrator{
		sessionID:    sessionID,
		sender:       sender,
		generator:    generator,
		messages:     messages,
		audio:        audio,
		voice:        voice,
		instructions: instructions,
		audioCtx:     audioCtx,
	}
}

// Join waits for in-flight audio branches. Called at connection teardown
// after audioCtx is cancelled, so the wait is bounded.
func (o *Orchestrator) Join() {
	o.tasks.Wait()
}

// historyWith returns a snapshot of the conversation plus the latest user
// text, for the generator.
func (o *Orchestrator) historyWith(userText string) []llm.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]llm.Message, 0, len(o.history)+1)
	out = append(out, o.history...)
	out = append(out, llm.Message{Role: "user", Content: userText})
	return out
}

func (o *Orchestrator) appendExchange(userText, assistantText string) {
	o.mu.Lock()
	o.history = append(o.history, llm.Message{Role: "user", Content: userText})
	o.history = append(o.history, llm.Message{Role: "assistant", Content: assistantText})
	o.mu.Unlock()
}

// Run executes one turn. inputMode and outputMode are snapshotted by the
// caller when the utterance is accepted; a mode change mid-turn affects the
// next turn, never this one.
//
// Ordering contract: every text_chunk is sent before message_complete, in
// generation order. The audio branch is concurrent and unordered relative to
// completion.
func (o *Orchestrator) Run(ctx context.Context, userText, inputMode, outputMode string) error {
	started := time.Now()

	// Record the user utterance before generation begins so a crash
	// mid-generation never loses user input.
	userMsg := store.Message{
		Role:      "user",
		Content:   userText,
		InputMode: inputMode,
		CreatedAt: started,
	}
	if err := o.messages.Append(ctx, o.sessionID, userMsg); err != nil {
		return fmt.Errorf("%w: %v", ErrUserPersist, err)
	}

	fragments, errCh := o.generator.Stream(ctx, o.historyWith(userText), o.instructions)

	var assistantText string
	var fragmentCount int
	sendFailed := false
	var genErr error

	openFrag, openErr := true, true
	for openFrag || openErr {
		select {
		case f, ok := <-fragments:
			if !ok {
				openFrag = false
				continue
			}
			assistantText += f
			fragmentCount++
			if !sendFailed {
				if err := o.sender.Send(o.sessionID, protocol.TextChunk(f)); err != nil {
					// Connection gone; keep draining so the turn is
					// still persisted, but stop writing.
					log.Printf("[%s] text_chunk send failed: %v", o.sessionID, err)
					sendFailed = true
				}
			}
		case e, ok := <-errCh:
			if !ok {
				openErr = false
				continue
			}
			if e != nil && genErr == nil {
				genErr = e
			}
		}
	}

	if genErr != nil {
		log.Printf("[%s] generation failed after %d fragments: %v", o.sessionID, fragmentCount, genErr)
		if fragmentCount > 0 {
			// Already-streamed fragments were real-time and cannot be
			// un-delivered; keep them on record.
			o.persistAssistant(ctx, assistantText, outputMode)
		}
		return fmt.Errorf("%w: %v", ErrGeneration, genErr)
	}

	if assistantText != "" {
		o.persistAssistant(ctx, assistantText, outputMode)
		o.appendExchange(userText, assistantText)

		if outputMode == mode.OutputAudio && o.audio != nil {
			text := assistantText
			o.tasks.Add(1)
			go func() {
				defer o.tasks.Done()
				ref := o.audio.SynthesizeAndNotify(o.audioCtx, o.sessionID, text, o.voice)
				if ref == nil {
					return
				}
				if attacher, ok := o.messages.(store.AudioAttacher); ok {
					if err := attacher.AttachAudio(o.audioCtx, o.sessionID, *ref); err != nil {
						log.Printf("[%s] audio attach failed: %v", o.sessionID, err)
					}
				}
			}()
		}
	}

	// Completion is unconditional on the audio branch: success, failure, or
	// still in flight, the text turn is done.
	if !sendFailed {
		if err := o.sender.Send(o.sessionID, protocol.MessageComplete()); err != nil {
			log.Printf("[%s] message_complete send failed: %v", o.sessionID, err)
		}
	}
	log.Printf("[%s] turn completed: %d fragments, %d chars, %s", o.sessionID, fragmentCount, len(assistantText), time.Since(started).Round(time.Millisecond))
	return nil
}

// persistAssistant writes the finalized assistant message. Fragments were
// already delivered, so a failed write is surfaced as a warning only; the
// send-then-persist order trades strict durability for perceived latency.
func (o *Orchestrator) persistAssistant(ctx context.Context, text, outputMode string) {
	msg := store.Message{
		Role:       "assistant",
		Content:    text,
		OutputMode: outputMode,
		CreatedAt:  time.Now(),
	}
	if err := o.messages.Append(ctx, o.sessionID, msg); err != nil {
		log.Printf("[%s] warning: persist assistant message failed: %v", o.sessionID, err)
	}
}
