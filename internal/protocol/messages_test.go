package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/lumoshq/lumos/internal/avatar"
)

func TestParseClientMessageText(t *testing.T) {
	raw := []byte(`{"type":"client_text","text":"hello there"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	text, ok := msg.(ClientText)
	if !ok {
		t.Fatalf("message type = %T, want ClientText", msg)
	}
	if text.Text != "hello there" {
		t.Fatalf("text = %q, want %q", text.Text, "hello there")
	}
}

func TestParseClientMessageEmptyTextAllowed(t *testing.T) {
	// Empty text is valid at the protocol layer; the orchestrator ignores
	// it silently.
	raw := []byte(`{"type":"client_text","text":""}`)
	if _, err := ParseClientMessage(raw); err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
}

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","action":"toggle_capture"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	ctrl, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if ctrl.Action != ActionToggleCapture {
		t.Fatalf("action = %q, want %q", ctrl.Action, ActionToggleCapture)
	}
}

func TestParseClientMessageControlWithoutAction(t *testing.T) {
	raw := []byte(`{"type":"client_control","action":"  "}`)
	if _, err := ParseClientMessage(raw); err == nil {
		t.Fatalf("ParseClientMessage() accepted control without action")
	}
}

func TestParseClientMessageUnsupportedType(t *testing.T) {
	raw := []byte(`{"type":"avatar_state"}`)
	_, err := ParseClientMessage(raw)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageInvalidJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{not json`)); err == nil {
		t.Fatalf("ParseClientMessage() accepted invalid JSON")
	}
}

func TestCaptureStateHintOmittedWhenEmpty(t *testing.T) {
	data, err := json.Marshal(CaptureState{Type: TypeCaptureState, Listening: true, Transcript: "hi"})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if _, present := raw["hint"]; present {
		t.Fatalf("hint present in %s, want omitted", data)
	}
}

func TestAvatarStateEncodesCue(t *testing.T) {
	data, err := json.Marshal(AvatarState{
		Type:     TypeAvatarState,
		Awake:    true,
		Speaking: true,
		Cue:      avatar.CueFor(true, true),
	})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if raw["cue"] != "speaking" {
		t.Fatalf("cue = %v, want %q", raw["cue"], "speaking")
	}
}
