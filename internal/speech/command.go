package speech

import (
	"os/exec"
	"sync"
)

// CommandSynthesizer shells out to a local TTS command (say, espeak, ...)
// once per utterance. It exposes no voice catalog, so callers fall through
// to the capability default voice.
type CommandSynthesizer struct {
	mu      sync.Mutex
	events  chan SynthEvent
	command string
	current *exec.Cmd
	active  string
	closed  bool
}

func NewCommandSynthesizer(command string) *CommandSynthesizer {
	if command == "" {
		command = "say"
	}
	return &CommandSynthesizer{
		events:  make(chan SynthEvent, 64),
		command: command,
	}
}

func (s *CommandSynthesizer) Voices() []Voice { return nil }

func (s *CommandSynthesizer) Speak(utt Utterance) error {
	s.Cancel()

	cmd := exec.Command(s.command, utt.Text)
	if err := cmd.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = cmd.Process.Kill()
		return nil
	}
	s.current = cmd
	s.active = utt.ID
	s.mu.Unlock()

	s.emit(SynthEvent{Type: SynthEventStarted, UtteranceID: utt.ID})

	go func(cmd *exec.Cmd, id string) {
		err := cmd.Wait()

		s.mu.Lock()
		stillActive := s.active == id
		if stillActive {
			s.active = ""
			s.current = nil
		}
		s.mu.Unlock()
		if !stillActive {
			return
		}
		if err != nil {
			s.emit(SynthEvent{Type: SynthEventError, UtteranceID: id, Code: "tts_command_failed", Detail: err.Error()})
			return
		}
		s.emit(SynthEvent{Type: SynthEventEnded, UtteranceID: id})
	}(cmd, utt.ID)
	return nil
}

func (s *CommandSynthesizer) Cancel() {
	s.mu.Lock()
	cmd := s.current
	s.current = nil
	s.active = ""
	s.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func (s *CommandSynthesizer) Events() <-chan SynthEvent { return s.events }

func (s *CommandSynthesizer) Close() error {
	s.Cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

func (s *CommandSynthesizer) emit(evt SynthEvent) {
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

// NullRecognizer reports speech recognition as unavailable. All operations
// are no-ops rather than errors, per the capability contract.
type NullRecognizer struct {
	events chan RecEvent
}

func NewNullRecognizer() *NullRecognizer {
	return &NullRecognizer{events: make(chan RecEvent)}
}

func (r *NullRecognizer) Supported() bool { return false }

func (r *NullRecognizer) Start(string) error { return nil }

func (r *NullRecognizer) Stop() {}

func (r *NullRecognizer) Events() <-chan RecEvent { return r.events }

func (r *NullRecognizer) Close() error { close(r.events); return nil }
