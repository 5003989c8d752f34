package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the companion service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Reply capability. Empty ReplyURL selects the built-in local generator.
	ReplyURL         string
	ReplyTimeout     time.Duration
	MinThinkingDelay time.Duration
	ContextWindow    int

	Greeting      string
	FallbackReply string

	// Voice output shaping.
	VoiceRate          float64
	VoicePitch         float64
	VoiceVolume        float64
	VoiceLocalePattern string

	// Speech capability provider: mock, command, or none.
	SpeechProvider string
	SpeechCommand  string
}

const (
	defaultGreeting = "Hi, I'm Lumos. I'm here to listen, reflect, and support you. " +
		"Feel free to talk or tap the mic to speak."
	defaultFallback = "I'm here with you. Something went wrong on my side, " +
		"but your feelings are still important."
)

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "lumos"),
		AllowAnyOrigin:     false,
		ReplyURL:           stringsTrimSpace("REPLY_HTTP_URL"),
		Greeting:           envOrDefault("COMPANION_GREETING", defaultGreeting),
		FallbackReply:      envOrDefault("COMPANION_FALLBACK_REPLY", defaultFallback),
		VoiceLocalePattern: envOrDefault("VOICE_LOCALE_PATTERN", "en(-US)?"),
		SpeechProvider:     envOrDefault("SPEECH_PROVIDER", "mock"),
		SpeechCommand:      stringsTrimSpace("SPEECH_COMMAND"),
		ShutdownTimeout:    15 * time.Second,
		ReplyTimeout:       20 * time.Second,
		MinThinkingDelay:   600 * time.Millisecond,
		ContextWindow:      6,
		VoiceRate:          0.92,
		VoicePitch:         1.05,
		VoiceVolume:        1.0,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReplyTimeout, err = durationFromEnv("REPLY_TIMEOUT", cfg.ReplyTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MinThinkingDelay, err = durationFromEnv("REPLY_MIN_THINKING_DELAY", cfg.MinThinkingDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextWindow, err = intFromEnv("COMPANION_CONTEXT_WINDOW", cfg.ContextWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.VoiceRate, err = floatFromEnv("VOICE_RATE", cfg.VoiceRate)
	if err != nil {
		return Config{}, err
	}
	cfg.VoicePitch, err = floatFromEnv("VOICE_PITCH", cfg.VoicePitch)
	if err != nil {
		return Config{}, err
	}
	cfg.VoiceVolume, err = floatFromEnv("VOICE_VOLUME", cfg.VoiceVolume)
	if err != nil {
		return Config{}, err
	}

	if cfg.ContextWindow <= 0 {
		return Config{}, fmt.Errorf("COMPANION_CONTEXT_WINDOW must be positive")
	}
	if cfg.ReplyTimeout <= 0 {
		return Config{}, fmt.Errorf("REPLY_TIMEOUT must be positive")
	}
	if cfg.MinThinkingDelay < 0 {
		return Config{}, fmt.Errorf("REPLY_MIN_THINKING_DELAY must be >= 0")
	}
	if _, err := regexp.Compile("(?i)" + cfg.VoiceLocalePattern); err != nil {
		return Config{}, fmt.Errorf("VOICE_LOCALE_PATTERN parse error: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.SpeechProvider)) {
	case "mock", "command", "none":
	default:
		return Config{}, fmt.Errorf("invalid SPEECH_PROVIDER: %q (expected mock|command|none)", cfg.SpeechProvider)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
