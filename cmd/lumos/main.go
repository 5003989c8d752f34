package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lumoshq/lumos/internal/avatar"
	"github.com/lumoshq/lumos/internal/companion"
	"github.com/lumoshq/lumos/internal/config"
	"github.com/lumoshq/lumos/internal/conversation"
	"github.com/lumoshq/lumos/internal/httpapi"
	"github.com/lumoshq/lumos/internal/observability"
	"github.com/lumoshq/lumos/internal/protocol"
	"github.com/lumoshq/lumos/internal/reply"
	"github.com/lumoshq/lumos/internal/speech"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	local := reply.NewLocalGenerator(cfg.MinThinkingDelay)
	var replier reply.Generator = local
	if cfg.ReplyURL != "" {
		replier = reply.NewHTTPGenerator(cfg.ReplyURL, cfg.ReplyTimeout)
		log.Printf("reply capability: http (%s)", cfg.ReplyURL)
	} else {
		log.Printf("reply capability: local supportive generator")
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.SpeechProvider))
	newSynth := func() speech.Synthesizer {
		switch provider {
		case "command":
			return speech.NewCommandSynthesizer(cfg.SpeechCommand)
		case "none":
			return nil
		default:
			return speech.NewMockSynthesizer(1500 * time.Millisecond)
		}
	}
	newRecognizer := func() speech.Recognizer {
		switch provider {
		case "mock":
			return speech.NewMockRecognizer("simulated", "voice", "input")
		case "none":
			return nil
		default:
			return speech.NewNullRecognizer()
		}
	}
	log.Printf("speech provider: %s", provider)

	// One catalog instance serves the voices endpoint; per-connection
	// instances do the actual speaking.
	catalog := newSynth()
	voicesFn := func() []speech.Voice {
		if catalog == nil {
			return nil
		}
		return catalog.Voices()
	}

	factory := func(ctx context.Context, listener companion.Listener) *httpapi.Companion {
		convLog := conversation.NewLog(cfg.Greeting)
		driver := avatar.NewStateDriver()

		var voiceOut *companion.VoiceOutput
		var voiceIn *companion.VoiceInput
		synth := newSynth()
		if synth != nil {
			voiceOut = companion.NewVoiceOutput(synth, companion.VoiceOutputConfig{
				Rate:          cfg.VoiceRate,
				Pitch:         cfg.VoicePitch,
				Volume:        cfg.VoiceVolume,
				LocalePattern: cfg.VoiceLocalePattern,
			})
		}
		rec := newRecognizer()
		if rec != nil {
			voiceIn = companion.NewVoiceInput(rec)
		}

		orch := companion.New(ctx, companion.Config{
			Log:           convLog,
			Replier:       replier,
			VoiceOut:      voiceOut,
			VoiceIn:       voiceIn,
			Driver:        driver,
			Listener:      listener,
			Metrics:       metrics,
			FallbackReply: cfg.FallbackReply,
			ContextWindow: cfg.ContextWindow,
		})

		return &httpapi.Companion{
			Orchestrator: orch,
			Log:          convLog,
			Frames: func() protocol.AvatarFrame {
				return protocol.AvatarFrame{Type: protocol.TypeAvatarFrame, Frame: driver.Frame()}
			},
			Close: func() {
				if synth != nil {
					_ = synth.Close()
					voiceOut.Close()
				}
				if rec != nil {
					_ = rec.Close()
					voiceIn.Close()
				}
			},
		}
	}

	// The chat endpoint always serves the local generator: the endpoint is
	// itself a reply backend, and REPLY_HTTP_URL may point back at this
	// process.
	api := httpapi.New(cfg, metrics, local, voicesFn, factory)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}
	if catalog != nil {
		_ = catalog.Close()
	}

	log.Printf("shutdown complete")
}
