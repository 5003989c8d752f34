package companion

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lumoshq/lumos/internal/speech"
)

// VoiceInput owns the "is the microphone currently capturing" state and the
// latest transcript. It wraps the recognition capability; the transcript is
// a live value overwritten with the space-join of every segment recognized
// so far, not an append-only record. Every capture session carries a fresh
// token; capability events from any other session are dropped, so a queued
// event from an aborted session can never leak into the next one.
type VoiceInput struct {
	mu         sync.Mutex
	rec        speech.Recognizer
	session    string
	listening  bool
	transcript string
	lastErr    string
	finished   bool
	onFinal    func(text string)
	onUpdate   func(transcript string)
	done       chan struct{}
}

func NewVoiceInput(rec speech.Recognizer) *VoiceInput {
	v := &VoiceInput{
		rec:      rec,
		finished: true,
		done:     make(chan struct{}),
	}
	go v.run()
	return v
}

// SetOnFinal registers the capture-finished callback. It fires exactly once
// per capture session, with the accumulated transcript, or with an empty
// string when the capability errored.
func (v *VoiceInput) SetOnFinal(fn func(text string)) {
	v.mu.Lock()
	v.onFinal = fn
	v.mu.Unlock()
}

// SetOnUpdate registers a callback for live transcript updates.
func (v *VoiceInput) SetOnUpdate(fn func(transcript string)) {
	v.mu.Lock()
	v.onUpdate = fn
	v.mu.Unlock()
}

// Supported reports the capability availability detected at initialization.
func (v *VoiceInput) Supported() bool {
	return v.rec.Supported()
}

// Start begins a capture session under a fresh session token. No-op when
// unsupported or already listening. The transcript from any prior session
// is cleared. A capability Start failure rolls the session back and is
// returned to the caller.
func (v *VoiceInput) Start() error {
	if !v.rec.Supported() {
		return nil
	}
	v.mu.Lock()
	if v.listening {
		v.mu.Unlock()
		return nil
	}
	session := uuid.NewString()
	v.session = session
	v.listening = true
	v.transcript = ""
	v.lastErr = ""
	v.finished = false
	v.mu.Unlock()

	err := v.rec.Start(session)
	if err == nil {
		return nil
	}
	v.mu.Lock()
	if v.session == session {
		v.listening = false
		v.finished = true
		v.lastErr = "capture_start_failed"
	}
	v.mu.Unlock()
	return err
}

// Stop ends the capture session; the capability reports the final
// transcript asynchronously. No-op when not listening.
func (v *VoiceInput) Stop() {
	v.mu.Lock()
	if !v.listening {
		v.mu.Unlock()
		return
	}
	v.mu.Unlock()
	v.rec.Stop()
}

// Abort ends the capture session and discards its transcript without
// firing the finished callback. Used when typed input supersedes an
// in-progress capture.
func (v *VoiceInput) Abort() {
	v.mu.Lock()
	if !v.listening {
		v.mu.Unlock()
		return
	}
	v.listening = false
	v.finished = true
	v.transcript = ""
	v.mu.Unlock()
	v.rec.Stop()
}

// ClearTranscript drops any retained transcript.
func (v *VoiceInput) ClearTranscript() {
	v.mu.Lock()
	v.transcript = ""
	v.mu.Unlock()
}

func (v *VoiceInput) IsListening() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.listening
}

func (v *VoiceInput) Transcript() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transcript
}

func (v *VoiceInput) LastError() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Close waits for the event loop to drain after the capability closes its
// event stream.
func (v *VoiceInput) Close() {
	<-v.done
}

func (v *VoiceInput) run() {
	defer close(v.done)
	for evt := range v.rec.Events() {
		switch evt.Type {
		case speech.RecEventStarted:
			v.mu.Lock()
			if evt.SessionID == v.session && !v.finished {
				v.listening = true
				v.lastErr = ""
			}
			v.mu.Unlock()
		case speech.RecEventResult:
			v.mu.Lock()
			if evt.SessionID != v.session || v.finished {
				v.mu.Unlock()
				continue
			}
			v.transcript = strings.Join(evt.Segments, " ")
			text := v.transcript
			fn := v.onUpdate
			v.mu.Unlock()
			if fn != nil {
				fn(text)
			}
		case speech.RecEventEnded:
			v.mu.Lock()
			if evt.SessionID != v.session || v.finished {
				v.mu.Unlock()
				continue
			}
			v.finished = true
			v.listening = false
			text := v.transcript
			fn := v.onFinal
			v.mu.Unlock()
			if fn != nil {
				fn(text)
			}
		case speech.RecEventError:
			v.mu.Lock()
			if evt.SessionID != v.session || v.finished {
				v.mu.Unlock()
				continue
			}
			v.finished = true
			v.listening = false
			v.lastErr = evt.Code
			fn := v.onFinal
			v.mu.Unlock()
			if fn != nil {
				fn("")
			}
		}
	}
}
