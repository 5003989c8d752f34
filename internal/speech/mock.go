package speech

import (
	"sync"
	"time"
)

// MockSynthesizer is a local fallback synthesizer used when no real TTS
// backend is configured, and the controllable capability used in tests.
// It emits a started event on Speak and, when a latency is set, completes
// the utterance on a timer. Cancel emits an ended event for the canceled
// utterance, matching real providers that fire completion on cancellation.
type MockSynthesizer struct {
	mu      sync.Mutex
	events  chan SynthEvent
	active  string
	latency time.Duration
	voices  []Voice
	closed  bool
}

func NewMockSynthesizer(latency time.Duration) *MockSynthesizer {
	return &MockSynthesizer{
		events:  make(chan SynthEvent, 64),
		latency: latency,
		voices: []Voice{
			{ID: "mock-en-us-f", Name: "Mock Female", Lang: "en-US"},
			{ID: "mock-en-gb", Name: "Mock British", Lang: "en-GB"},
			{ID: "mock-default", Name: "Mock Default", Lang: "zz", Default: true},
		},
	}
}

func (s *MockSynthesizer) Voices() []Voice {
	out := make([]Voice, len(s.voices))
	copy(out, s.voices)
	return out
}

func (s *MockSynthesizer) Speak(utt Utterance) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.active = utt.ID
	s.mu.Unlock()

	s.emit(SynthEvent{Type: SynthEventStarted, UtteranceID: utt.ID})
	if s.latency > 0 {
		go func(id string) {
			time.Sleep(s.latency)
			s.mu.Lock()
			stillActive := s.active == id && !s.closed
			if stillActive {
				s.active = ""
			}
			s.mu.Unlock()
			if stillActive {
				s.emit(SynthEvent{Type: SynthEventEnded, UtteranceID: id})
			}
		}(utt.ID)
	}
	return nil
}

// Finish completes the active utterance, simulating natural playback end.
func (s *MockSynthesizer) Finish() {
	s.mu.Lock()
	id := s.active
	s.active = ""
	closed := s.closed
	s.mu.Unlock()
	if id == "" || closed {
		return
	}
	s.emit(SynthEvent{Type: SynthEventEnded, UtteranceID: id})
}

func (s *MockSynthesizer) Cancel() {
	s.mu.Lock()
	id := s.active
	s.active = ""
	closed := s.closed
	s.mu.Unlock()
	if id == "" || closed {
		return
	}
	// Real providers fire a completion callback even for canceled
	// utterances; consumers must suppress it by token.
	s.emit(SynthEvent{Type: SynthEventEnded, UtteranceID: id})
}

func (s *MockSynthesizer) Events() <-chan SynthEvent { return s.events }

func (s *MockSynthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

func (s *MockSynthesizer) emit(evt SynthEvent) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	select {
	case s.events <- evt:
	default:
	}
}

// MockRecognizer is a scriptable recognition capability. Tests drive it
// through the Emit helpers; the demo path can seed canned segments that
// are reported shortly after Start.
type MockRecognizer struct {
	mu      sync.Mutex
	events  chan RecEvent
	canned  []string
	session string
	active  bool
	closed  bool
}

func NewMockRecognizer(canned ...string) *MockRecognizer {
	return &MockRecognizer{
		events: make(chan RecEvent, 64),
		canned: canned,
	}
}

func (r *MockRecognizer) Supported() bool { return true }

func (r *MockRecognizer) Start(sessionID string) error {
	r.mu.Lock()
	if r.closed || r.active {
		r.mu.Unlock()
		return nil
	}
	r.active = true
	r.session = sessionID
	canned := append([]string(nil), r.canned...)
	r.mu.Unlock()

	r.emit(RecEvent{Type: RecEventStarted, SessionID: sessionID})
	if len(canned) > 0 {
		r.emit(RecEvent{Type: RecEventResult, SessionID: sessionID, Segments: canned})
	}
	return nil
}

func (r *MockRecognizer) Stop() {
	r.mu.Lock()
	if r.closed || !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false
	session := r.session
	r.mu.Unlock()
	r.emit(RecEvent{Type: RecEventEnded, SessionID: session})
}

// EmitResult reports the full segment list recognized so far.
func (r *MockRecognizer) EmitResult(segments ...string) {
	r.emit(RecEvent{Type: RecEventResult, SessionID: r.currentSession(), Segments: segments})
}

// EmitEnd simulates the capability ending capture on its own.
func (r *MockRecognizer) EmitEnd() {
	r.mu.Lock()
	r.active = false
	session := r.session
	r.mu.Unlock()
	r.emit(RecEvent{Type: RecEventEnded, SessionID: session})
}

// EmitError simulates a capability error such as a denied permission.
func (r *MockRecognizer) EmitError(code string) {
	r.mu.Lock()
	r.active = false
	session := r.session
	r.mu.Unlock()
	r.emit(RecEvent{Type: RecEventError, SessionID: session, Code: code})
}

func (r *MockRecognizer) currentSession() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *MockRecognizer) Events() <-chan RecEvent { return r.events }

func (r *MockRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.events)
	return nil
}

func (r *MockRecognizer) emit(evt RecEvent) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}
	select {
	case r.events <- evt:
	default:
	}
}
