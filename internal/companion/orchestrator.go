package companion

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lumoshq/lumos/internal/conversation"
	"github.com/lumoshq/lumos/internal/observability"
	"github.com/lumoshq/lumos/internal/reply"
)

// Phase is the orchestrator's position in the turn state machine.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseAwaitingReply Phase = "awaiting_reply"
	PhaseSpeaking      Phase = "speaking"
	PhaseListening     Phase = "listening"
)

// DefaultFallbackReply is spoken when the reply capability fails.
const DefaultFallbackReply = "I'm here with you. Something went wrong on my side, " +
	"but your feelings are still important."

const defaultContextWindow = 6

// Driver receives the two presentational booleans on every transition.
// Everything downstream of them (cue selection, rendering) is the driver's
// concern.
type Driver interface {
	Apply(awake, speaking bool)
}

// Listener observes orchestrator activity, typically to mirror it onto a
// websocket. All methods are invoked without orchestrator locks held.
type Listener interface {
	OnTurnAppended(turn conversation.Turn)
	OnPhaseChanged(phase Phase)
	OnCaptureState(listening bool, transcript, hint string)
	OnAvatarState(awake, speaking bool)
}

// Config wires an Orchestrator. Log, Replier and Metrics are required;
// VoiceOut, VoiceIn, Driver and Listener may be nil for headless use.
type Config struct {
	Log           *conversation.Log
	Replier       reply.Generator
	VoiceOut      *VoiceOutput
	VoiceIn       *VoiceInput
	Driver        Driver
	Listener      Listener
	Metrics       *observability.Metrics
	FallbackReply string
	ContextWindow int
}

// Orchestrator owns the conversation turn state machine. It arbitrates
// between voice input and voice output, supersedes stale reply requests by
// token, and reflects every transition into the animation driver.
//
// All mutable state lives behind one mutex; asynchronous resolutions
// (reply round trip, utterance end, capture end) re-enter through methods
// that take the same mutex, so events are applied one at a time.
type Orchestrator struct {
	ctx      context.Context
	log      *conversation.Log
	replier  reply.Generator
	voiceOut *VoiceOutput
	voiceIn  *VoiceInput
	driver   Driver
	listener Listener
	metrics  *observability.Metrics
	fallback string
	window   int

	mu           sync.Mutex
	phase        Phase
	awake        bool
	pendingToken int64
	nextToken    int64
}

// New constructs an orchestrator bound to ctx for the session lifetime.
// Superseded reply requests are not aborted through ctx; they run to
// completion in the background and their results are discarded by token.
func New(ctx context.Context, cfg Config) *Orchestrator {
	if cfg.FallbackReply == "" {
		cfg.FallbackReply = DefaultFallbackReply
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = defaultContextWindow
	}
	o := &Orchestrator{
		ctx:      ctx,
		log:      cfg.Log,
		replier:  cfg.Replier,
		voiceOut: cfg.VoiceOut,
		voiceIn:  cfg.VoiceIn,
		driver:   cfg.Driver,
		listener: cfg.Listener,
		metrics:  cfg.Metrics,
		fallback: cfg.FallbackReply,
		window:   cfg.ContextWindow,
		phase:    PhaseIdle,
	}
	if o.voiceOut != nil {
		o.voiceOut.SetOnEnded(o.onUtteranceEnded)
	}
	if o.voiceIn != nil {
		o.voiceIn.SetOnFinal(o.onCaptureFinished)
		o.voiceIn.SetOnUpdate(o.onTranscriptUpdate)
	}
	return o
}

// Phase reports the current state machine phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Awake reports whether the companion has been addressed this session.
func (o *Orchestrator) Awake() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.awake
}

// SubmitUserTurn appends a user turn and issues a reply request tagged
// with a fresh token, superseding any request still in flight. Empty or
// whitespace-only text is silently ignored. Typed input wins over an
// in-progress voice capture: the capture is stopped and its partial
// transcript discarded before the turn is submitted.
func (o *Orchestrator) SubmitUserTurn(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		o.metrics.CompanionEvents.WithLabelValues("empty_input").Inc()
		return
	}

	if o.voiceIn != nil {
		o.voiceIn.Abort()
		o.voiceIn.ClearTranscript()
	}

	// Snapshot, append and token bump form one critical section: once the
	// new turn is in the log, every older in-flight reply holds a stale
	// token. The snapshot is taken before the new turn is appended; the
	// message itself travels in the request's message field.
	o.mu.Lock()
	history := o.contextSnapshot()
	turn := o.log.Append(conversation.RoleUser, trimmed)
	o.awake = true
	o.nextToken++
	token := o.nextToken
	o.pendingToken = token
	phaseChanged := o.phase != PhaseAwaitingReply
	o.phase = PhaseAwaitingReply
	o.mu.Unlock()

	o.metrics.Turns.WithLabelValues(string(conversation.RoleUser)).Inc()
	o.notifyTurn(turn)
	if phaseChanged {
		o.notifyPhase(PhaseAwaitingReply)
	}
	o.notifyAvatar()

	req := reply.Request{Message: trimmed, History: history}
	go o.requestReply(token, req)
}

// ToggleVoiceCapture starts or stops the microphone. Starting cancels any
// active voice output first so capture never overlaps playback. Toggling
// while a reply is pending is permitted and leaves the pending reply
// untouched. No-op when the capability is unsupported.
func (o *Orchestrator) ToggleVoiceCapture() {
	if o.voiceIn == nil {
		return
	}
	if o.voiceIn.IsListening() {
		o.voiceIn.Stop()
		return
	}
	if !o.voiceIn.Supported() {
		o.metrics.CompanionEvents.WithLabelValues("capture_unsupported").Inc()
		return
	}

	if o.voiceOut != nil {
		o.voiceOut.Cancel()
	}
	o.voiceIn.ClearTranscript()
	if err := o.voiceIn.Start(); err != nil {
		o.metrics.CompanionEvents.WithLabelValues("capture_start_failed").Inc()
		o.notifyCapture(false, "", o.voiceIn.LastError())
		return
	}
	o.metrics.CompanionEvents.WithLabelValues("capture_started").Inc()

	o.mu.Lock()
	phaseChanged := false
	if o.phase != PhaseAwaitingReply {
		phaseChanged = o.phase != PhaseListening
		o.phase = PhaseListening
	}
	o.mu.Unlock()

	if phaseChanged {
		o.notifyPhase(PhaseListening)
	}
	o.notifyAvatar()
	o.notifyCapture(true, "", "")
}

func (o *Orchestrator) requestReply(token int64, req reply.Request) {
	if len(req.History) > o.window {
		req.History = req.History[len(req.History)-o.window:]
	}
	start := time.Now()
	text, err := o.replier.Generate(o.ctx, req)
	o.metrics.ObserveReplyLatency(time.Since(start))
	o.resolveReply(token, text, err)
}

func (o *Orchestrator) resolveReply(token int64, text string, err error) {
	o.mu.Lock()
	if token != o.pendingToken {
		o.mu.Unlock()
		o.metrics.CompanionEvents.WithLabelValues("stale_reply_discarded").Inc()
		return
	}
	o.pendingToken = 0

	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		text = o.fallback
		o.metrics.CompanionEvents.WithLabelValues("reply_fallback").Inc()
	}

	turn := o.log.Append(conversation.RoleAssistant, text)
	o.phase = PhaseSpeaking
	o.mu.Unlock()

	o.metrics.Turns.WithLabelValues(string(conversation.RoleAssistant)).Inc()
	o.notifyTurn(turn)
	o.notifyPhase(PhaseSpeaking)
	o.notifyAvatar()

	if o.voiceOut != nil {
		o.voiceOut.Speak(text)
	} else {
		// Headless: nothing will report an utterance end.
		o.onUtteranceEnded()
	}
}

// onUtteranceEnded is the genuine-completion callback from VoiceOutput.
func (o *Orchestrator) onUtteranceEnded() {
	o.mu.Lock()
	if o.phase != PhaseSpeaking {
		o.mu.Unlock()
		return
	}
	o.phase = PhaseIdle
	o.mu.Unlock()

	o.notifyPhase(PhaseIdle)
	o.notifyAvatar()
}

// onCaptureFinished receives the finalized transcript from VoiceInput.
// A non-empty transcript becomes the next user turn; an empty one (user
// stopped without speaking, or a capture error) returns to idle.
func (o *Orchestrator) onCaptureFinished(text string) {
	hint := ""
	if o.voiceIn != nil {
		hint = o.voiceIn.LastError()
	}
	o.notifyCapture(false, text, hint)

	trimmed := strings.TrimSpace(text)
	if trimmed != "" {
		o.SubmitUserTurn(trimmed)
		return
	}

	o.mu.Lock()
	if o.phase != PhaseListening {
		o.mu.Unlock()
		return
	}
	o.phase = PhaseIdle
	o.mu.Unlock()

	o.notifyPhase(PhaseIdle)
	o.notifyAvatar()
}

func (o *Orchestrator) onTranscriptUpdate(transcript string) {
	o.notifyCapture(true, transcript, "")
}

func (o *Orchestrator) contextSnapshot() []reply.Message {
	turns := o.log.Context(o.window)
	out := make([]reply.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, reply.Message{Role: string(t.Role), Content: t.Content})
	}
	return out
}

func (o *Orchestrator) notifyTurn(turn conversation.Turn) {
	if o.listener != nil {
		o.listener.OnTurnAppended(turn)
	}
}

func (o *Orchestrator) notifyPhase(phase Phase) {
	o.metrics.PhaseTransitions.WithLabelValues(string(phase)).Inc()
	if o.listener != nil {
		o.listener.OnPhaseChanged(phase)
	}
}

func (o *Orchestrator) notifyCapture(listening bool, transcript, hint string) {
	if o.listener != nil {
		o.listener.OnCaptureState(listening, transcript, hint)
	}
}

func (o *Orchestrator) notifyAvatar() {
	o.mu.Lock()
	awake := o.awake
	speaking := o.phase == PhaseSpeaking
	o.mu.Unlock()

	if o.driver != nil {
		o.driver.Apply(awake, speaking)
	}
	if o.listener != nil {
		o.listener.OnAvatarState(awake, speaking)
	}
}
