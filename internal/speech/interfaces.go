package speech

// Voice describes one entry in a synthesizer's voice catalog.
type Voice struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default"`
}

type SynthEventType string

const (
	SynthEventStarted SynthEventType = "started"
	SynthEventEnded   SynthEventType = "ended"
	SynthEventError   SynthEventType = "error"
)

// SynthEvent is a notification from the synthesis capability. Every event
// carries the utterance token it belongs to; consumers drop events whose
// token is no longer active.
type SynthEvent struct {
	Type        SynthEventType
	UtteranceID string
	Code        string
	Detail      string
}

// Utterance is one request to the synthesis capability.
type Utterance struct {
	ID      string
	Text    string
	VoiceID string
	Rate    float64
	Pitch   float64
	Volume  float64
}

// Synthesizer is the external text-to-speech capability. A provider plays
// at most one utterance at a time; Speak while another utterance is active
// replaces it. Cancel stops the active utterance; providers may still emit
// an ended event for it, tagged with its token.
type Synthesizer interface {
	Voices() []Voice
	Speak(utt Utterance) error
	Cancel()
	Events() <-chan SynthEvent
	Close() error
}

type RecEventType string

const (
	RecEventStarted RecEventType = "started"
	RecEventResult  RecEventType = "result"
	RecEventEnded   RecEventType = "ended"
	RecEventError   RecEventType = "error"
)

// RecEvent is a notification from the recognition capability. Every event
// carries the token of the capture session it belongs to; consumers drop
// events from sessions that are no longer active. Result events carry every
// segment recognized so far, in order.
type RecEvent struct {
	Type      RecEventType
	SessionID string
	Segments  []string
	Code      string
	Detail    string
}

// Recognizer is the external speech-to-text capability. Start begins a
// capture session under the caller's token; providers tag every event with
// it. Supported is determined once at construction; when false, Start and
// Stop are no-ops.
type Recognizer interface {
	Supported() bool
	Start(sessionID string) error
	Stop()
	Events() <-chan RecEvent
	Close() error
}
