package companion

import (
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lumoshq/lumos/internal/speech"
)

// VoiceOutputConfig shapes utterances sent to the synthesis capability.
type VoiceOutputConfig struct {
	Rate          float64
	Pitch         float64
	Volume        float64
	LocalePattern string
}

// VoiceOutput owns the "is an utterance currently audible" state. It wraps
// the synthesis capability and guarantees at most one audible utterance at
// any instant. Every utterance carries a fresh token; capability events for
// any other token are suppressed, so a canceled utterance can never fire
// the ended notification.
type VoiceOutput struct {
	mu       sync.Mutex
	synth    speech.Synthesizer
	localeRe *regexp.Regexp
	rate     float64
	pitch    float64
	volume   float64
	active   string
	speaking bool
	onEnded  func()
	done     chan struct{}
}

func NewVoiceOutput(synth speech.Synthesizer, cfg VoiceOutputConfig) *VoiceOutput {
	pattern := cfg.LocalePattern
	if pattern == "" {
		pattern = "en(-US)?"
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		re = regexp.MustCompile(`(?i)en(-US)?`)
	}
	if cfg.Rate == 0 {
		cfg.Rate = 0.92
	}
	if cfg.Pitch == 0 {
		cfg.Pitch = 1.05
	}
	if cfg.Volume == 0 {
		cfg.Volume = 1.0
	}
	v := &VoiceOutput{
		synth:    synth,
		localeRe: re,
		rate:     cfg.Rate,
		pitch:    cfg.Pitch,
		volume:   cfg.Volume,
		done:     make(chan struct{}),
	}
	go v.run()
	return v
}

// SetOnEnded registers the genuine-completion callback. Must be called
// before the first Speak.
func (v *VoiceOutput) SetOnEnded(fn func()) {
	v.mu.Lock()
	v.onEnded = fn
	v.mu.Unlock()
}

// Speak cancels any active utterance (suppressing its end notification)
// and starts a new one. Empty text is a no-op. The capability calls happen
// inside the critical section: a concurrent Cancel cannot land between the
// state transition and the Speak issue, so an utterance can never start
// after it was logically canceled.
func (v *VoiceOutput) Speak(text string) {
	if text == "" {
		return
	}

	v.mu.Lock()
	if v.active != "" {
		v.active = ""
		v.speaking = false
		v.synth.Cancel()
	}

	utt := speech.Utterance{
		ID:      uuid.NewString(),
		Text:    text,
		VoiceID: v.pickVoice(),
		Rate:    v.rate,
		Pitch:   v.pitch,
		Volume:  v.volume,
	}
	v.active = utt.ID
	v.speaking = true

	var fn func()
	if err := v.synth.Speak(utt); err != nil {
		// Capability refused the utterance; unwind as if it completed so
		// the orchestrator does not stay in the speaking phase.
		v.active = ""
		v.speaking = false
		fn = v.onEnded
	}
	v.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Cancel stops any active utterance immediately and suppresses its end
// notification. Idempotent. Serialized with Speak on the same lock.
func (v *VoiceOutput) Cancel() {
	v.mu.Lock()
	if v.active != "" {
		v.active = ""
		v.speaking = false
		v.synth.Cancel()
	}
	v.mu.Unlock()
}

// IsSpeaking reports whether an utterance is currently audible.
func (v *VoiceOutput) IsSpeaking() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.speaking
}

// ActiveToken exposes the current utterance token, empty when silent.
func (v *VoiceOutput) ActiveToken() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}

// Close stops the event loop once the capability closes its event stream.
func (v *VoiceOutput) Close() {
	<-v.done
}

func (v *VoiceOutput) run() {
	defer close(v.done)
	for evt := range v.synth.Events() {
		switch evt.Type {
		case speech.SynthEventStarted:
			// Logical speaking state was already set when the utterance
			// was issued; nothing to update.
		case speech.SynthEventEnded, speech.SynthEventError:
			v.mu.Lock()
			if evt.UtteranceID != v.active {
				// Stale token: canceled or superseded utterance.
				v.mu.Unlock()
				continue
			}
			v.active = ""
			v.speaking = false
			fn := v.onEnded
			v.mu.Unlock()
			if fn != nil {
				fn()
			}
		}
	}
}

// pickVoice prefers a female voice matching the locale pattern, then any
// locale match, then the capability default (empty ID).
func (v *VoiceOutput) pickVoice() string {
	voices := v.synth.Voices()
	var anyMatch string
	for _, vc := range voices {
		if !v.localeRe.MatchString(vc.Lang) {
			continue
		}
		if strings.Contains(vc.Name, "Female") {
			return vc.ID
		}
		if anyMatch == "" {
			anyMatch = vc.ID
		}
	}
	return anyMatch
}
