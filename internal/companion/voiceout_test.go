package companion

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumoshq/lumos/internal/speech"
)

// scriptedSynth records utterances and lets the test drive completion
// events explicitly. When the gates are set, Speak signals speakEntered and
// blocks on speakRelease before issuing the utterance.
type scriptedSynth struct {
	mu           sync.Mutex
	events       chan speech.SynthEvent
	voices       []speech.Voice
	spoken       []speech.Utterance
	canceled     int
	speakErr     error
	speakEntered chan struct{}
	speakRelease chan struct{}
}

func newScriptedSynth(voices ...speech.Voice) *scriptedSynth {
	return &scriptedSynth{
		events: make(chan speech.SynthEvent, 16),
		voices: voices,
	}
}

func (s *scriptedSynth) Voices() []speech.Voice { return s.voices }

func (s *scriptedSynth) Speak(utt speech.Utterance) error {
	s.mu.Lock()
	entered, release, err := s.speakEntered, s.speakRelease, s.speakErr
	s.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.spoken = append(s.spoken, utt)
	s.mu.Unlock()
	return nil
}

func (s *scriptedSynth) Cancel() {
	s.mu.Lock()
	s.canceled++
	s.mu.Unlock()
}

func (s *scriptedSynth) Events() <-chan speech.SynthEvent { return s.events }

func (s *scriptedSynth) Close() error {
	close(s.events)
	return nil
}

func (s *scriptedSynth) lastSpoken(t *testing.T) speech.Utterance {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.spoken) == 0 {
		t.Fatalf("nothing spoken")
	}
	return s.spoken[len(s.spoken)-1]
}

func (s *scriptedSynth) spokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spoken)
}

func (s *scriptedSynth) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

func (s *scriptedSynth) emitEnded(id string) {
	s.events <- speech.SynthEvent{Type: speech.SynthEventEnded, UtteranceID: id}
}

func expectEnded(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for ended callback")
	}
}

func expectNoEnded(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("ended callback fired, want suppressed")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestVoiceOutputPrefersFemaleLocaleVoice(t *testing.T) {
	synth := newScriptedSynth(
		speech.Voice{ID: "gb", Name: "Brian", Lang: "en-GB"},
		speech.Voice{ID: "us-f", Name: "Aria Female", Lang: "en-US"},
		speech.Voice{ID: "fr", Name: "Chloe Female", Lang: "fr-FR"},
	)
	v := NewVoiceOutput(synth, VoiceOutputConfig{Rate: 0.92, Pitch: 1.05, Volume: 1.0})
	defer func() { _ = synth.Close(); v.Close() }()

	v.Speak("hello")
	utt := synth.lastSpoken(t)
	if utt.VoiceID != "us-f" {
		t.Fatalf("VoiceID = %q, want %q", utt.VoiceID, "us-f")
	}
	if utt.Rate != 0.92 || utt.Pitch != 1.05 || utt.Volume != 1.0 {
		t.Fatalf("utterance params = %v/%v/%v, want 0.92/1.05/1.0", utt.Rate, utt.Pitch, utt.Volume)
	}
	if utt.ID == "" {
		t.Fatalf("utterance missing token")
	}
}

func TestVoiceOutputFallsBackToLocaleMatchThenDefault(t *testing.T) {
	synth := newScriptedSynth(
		speech.Voice{ID: "gb", Name: "Brian", Lang: "en-GB"},
		speech.Voice{ID: "fr", Name: "Chloe", Lang: "fr-FR"},
	)
	v := NewVoiceOutput(synth, VoiceOutputConfig{LocalePattern: "en(-US)?"})
	defer func() { _ = synth.Close(); v.Close() }()

	v.Speak("hello")
	if got := synth.lastSpoken(t).VoiceID; got != "gb" {
		t.Fatalf("VoiceID = %q, want locale match %q", got, "gb")
	}

	onlyFr := newScriptedSynth(speech.Voice{ID: "fr", Name: "Chloe", Lang: "fr-FR"})
	v2 := NewVoiceOutput(onlyFr, VoiceOutputConfig{LocalePattern: "en(-US)?"})
	defer func() { _ = onlyFr.Close(); v2.Close() }()

	v2.Speak("hello")
	if got := onlyFr.lastSpoken(t).VoiceID; got != "" {
		t.Fatalf("VoiceID = %q, want capability default (empty)", got)
	}
}

func TestVoiceOutputGenuineEndFiresCallback(t *testing.T) {
	synth := newScriptedSynth()
	v := NewVoiceOutput(synth, VoiceOutputConfig{})
	defer func() { _ = synth.Close(); v.Close() }()

	ended := make(chan struct{}, 1)
	v.SetOnEnded(func() { ended <- struct{}{} })

	v.Speak("hello")
	if !v.IsSpeaking() {
		t.Fatalf("IsSpeaking() = false after Speak")
	}

	synth.emitEnded(synth.lastSpoken(t).ID)
	expectEnded(t, ended)
	if v.IsSpeaking() {
		t.Fatalf("IsSpeaking() = true after genuine end")
	}
}

func TestVoiceOutputCancelSuppressesEnded(t *testing.T) {
	synth := newScriptedSynth()
	v := NewVoiceOutput(synth, VoiceOutputConfig{})
	defer func() { _ = synth.Close(); v.Close() }()

	ended := make(chan struct{}, 1)
	v.SetOnEnded(func() { ended <- struct{}{} })

	v.Speak("hello")
	id := synth.lastSpoken(t).ID

	v.Cancel()
	if got := synth.cancelCount(); got != 1 {
		t.Fatalf("capability Cancel calls = %d, want 1", got)
	}
	if v.IsSpeaking() {
		t.Fatalf("IsSpeaking() = true after Cancel")
	}

	// The capability still reports completion for the canceled utterance;
	// its token no longer matches, so the callback must stay silent.
	synth.emitEnded(id)
	expectNoEnded(t, ended)

	// Idempotent: a second cancel does not reach the capability.
	v.Cancel()
	if got := synth.cancelCount(); got != 1 {
		t.Fatalf("capability Cancel calls after repeat = %d, want 1", got)
	}
}

func TestVoiceOutputSupersedeSuppressesOldUtterance(t *testing.T) {
	synth := newScriptedSynth()
	v := NewVoiceOutput(synth, VoiceOutputConfig{})
	defer func() { _ = synth.Close(); v.Close() }()

	ended := make(chan struct{}, 2)
	v.SetOnEnded(func() { ended <- struct{}{} })

	v.Speak("first")
	first := synth.lastSpoken(t).ID
	v.Speak("second")
	second := synth.lastSpoken(t).ID

	if synth.cancelCount() != 1 {
		t.Fatalf("capability Cancel calls = %d, want 1", synth.cancelCount())
	}
	if first == second {
		t.Fatalf("second utterance reused token %q", first)
	}

	synth.emitEnded(first)
	expectNoEnded(t, ended)

	synth.emitEnded(second)
	expectEnded(t, ended)
}

func TestVoiceOutputCancelWaitsForSpeakIssue(t *testing.T) {
	synth := newScriptedSynth()
	synth.speakEntered = make(chan struct{}, 1)
	synth.speakRelease = make(chan struct{})
	v := NewVoiceOutput(synth, VoiceOutputConfig{})
	defer func() { _ = synth.Close(); v.Close() }()

	ended := make(chan struct{}, 1)
	v.SetOnEnded(func() { ended <- struct{}{} })

	speakDone := make(chan struct{})
	go func() {
		v.Speak("hello")
		close(speakDone)
	}()
	select {
	case <-synth.speakEntered:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for Speak to reach the capability")
	}

	cancelDone := make(chan struct{})
	go func() {
		v.Cancel()
		close(cancelDone)
	}()

	// Cancel must not slip in while the utterance is being issued.
	select {
	case <-cancelDone:
		t.Fatalf("Cancel returned before the capability Speak was issued")
	case <-time.After(100 * time.Millisecond):
	}

	close(synth.speakRelease)
	for _, wait := range []struct {
		ch   chan struct{}
		what string
	}{{speakDone, "Speak"}, {cancelDone, "Cancel"}} {
		select {
		case <-wait.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s to return", wait.what)
		}
	}

	if got := synth.cancelCount(); got != 1 {
		t.Fatalf("capability Cancel calls = %d, want 1", got)
	}
	if v.IsSpeaking() {
		t.Fatalf("IsSpeaking() = true after Cancel")
	}

	// The canceled utterance's completion stays suppressed.
	synth.emitEnded(synth.lastSpoken(t).ID)
	expectNoEnded(t, ended)
}

func TestVoiceOutputEmptyTextIsNoop(t *testing.T) {
	synth := newScriptedSynth()
	v := NewVoiceOutput(synth, VoiceOutputConfig{})
	defer func() { _ = synth.Close(); v.Close() }()

	v.Speak("")
	if got := synth.spokenCount(); got != 0 {
		t.Fatalf("spoken count = %d, want 0", got)
	}
	if v.IsSpeaking() {
		t.Fatalf("IsSpeaking() = true after empty Speak")
	}
}

func TestVoiceOutputSpeakErrorUnwinds(t *testing.T) {
	synth := newScriptedSynth()
	synth.speakErr = errors.New("device busy")
	v := NewVoiceOutput(synth, VoiceOutputConfig{})
	defer func() { _ = synth.Close(); v.Close() }()

	ended := make(chan struct{}, 1)
	v.SetOnEnded(func() { ended <- struct{}{} })

	v.Speak("hello")
	expectEnded(t, ended)
	if v.IsSpeaking() {
		t.Fatalf("IsSpeaking() = true after Speak failure")
	}
}
