package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.MetricsNamespace != "lumos" {
		t.Fatalf("MetricsNamespace = %q, want %q", cfg.MetricsNamespace, "lumos")
	}
	if cfg.ContextWindow != 6 {
		t.Fatalf("ContextWindow = %d, want 6", cfg.ContextWindow)
	}
	if cfg.MinThinkingDelay != 600*time.Millisecond {
		t.Fatalf("MinThinkingDelay = %v, want 600ms", cfg.MinThinkingDelay)
	}
	if cfg.VoiceRate != 0.92 || cfg.VoicePitch != 1.05 || cfg.VoiceVolume != 1.0 {
		t.Fatalf("voice params = %v/%v/%v, want 0.92/1.05/1.0", cfg.VoiceRate, cfg.VoicePitch, cfg.VoiceVolume)
	}
	if cfg.VoiceLocalePattern != "en(-US)?" {
		t.Fatalf("VoiceLocalePattern = %q, want %q", cfg.VoiceLocalePattern, "en(-US)?")
	}
	if cfg.SpeechProvider != "mock" {
		t.Fatalf("SpeechProvider = %q, want %q", cfg.SpeechProvider, "mock")
	}
	if cfg.ReplyURL != "" {
		t.Fatalf("ReplyURL = %q, want empty default", cfg.ReplyURL)
	}
	if cfg.Greeting == "" || cfg.FallbackReply == "" {
		t.Fatalf("greeting/fallback defaults missing")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("REPLY_HTTP_URL", "http://localhost:7777/chat")
	t.Setenv("REPLY_MIN_THINKING_DELAY", "250ms")
	t.Setenv("COMPANION_CONTEXT_WINDOW", "4")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "true")
	t.Setenv("SPEECH_PROVIDER", "command")
	t.Setenv("SPEECH_COMMAND", "espeak")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9191")
	}
	if cfg.ReplyURL != "http://localhost:7777/chat" {
		t.Fatalf("ReplyURL = %q, want explicit value", cfg.ReplyURL)
	}
	if cfg.MinThinkingDelay != 250*time.Millisecond {
		t.Fatalf("MinThinkingDelay = %v, want 250ms", cfg.MinThinkingDelay)
	}
	if cfg.ContextWindow != 4 {
		t.Fatalf("ContextWindow = %d, want 4", cfg.ContextWindow)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = false, want true")
	}
	if cfg.SpeechProvider != "command" || cfg.SpeechCommand != "espeak" {
		t.Fatalf("speech provider = %q/%q, want command/espeak", cfg.SpeechProvider, cfg.SpeechCommand)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"REPLY_TIMEOUT", "not-a-duration"},
		{"REPLY_TIMEOUT", "-1s"},
		{"REPLY_MIN_THINKING_DELAY", "-100ms"},
		{"COMPANION_CONTEXT_WINDOW", "0"},
		{"COMPANION_CONTEXT_WINDOW", "abc"},
		{"APP_ALLOW_ANY_ORIGIN", "maybe"},
		{"VOICE_RATE", "fast"},
		{"VOICE_LOCALE_PATTERN", "en(-US"},
		{"SPEECH_PROVIDER", "webspeech"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q returned no error", tc.key, tc.value)
			}
		})
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"REPLY_HTTP_URL",
		"REPLY_TIMEOUT",
		"REPLY_MIN_THINKING_DELAY",
		"COMPANION_CONTEXT_WINDOW",
		"COMPANION_GREETING",
		"COMPANION_FALLBACK_REPLY",
		"VOICE_RATE",
		"VOICE_PITCH",
		"VOICE_VOLUME",
		"VOICE_LOCALE_PATTERN",
		"SPEECH_PROVIDER",
		"SPEECH_COMMAND",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
