package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lumoshq/lumos/internal/avatar"
	"github.com/lumoshq/lumos/internal/conversation"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientText    MessageType = "client_text"
	TypeClientControl MessageType = "client_control"
	TypeTurnAppended  MessageType = "turn_appended"
	TypePhaseChanged  MessageType = "phase_changed"
	TypeCaptureState  MessageType = "capture_state"
	TypeAvatarState   MessageType = "avatar_state"
	TypeAvatarFrame   MessageType = "avatar_frame"
	TypeErrorEvent    MessageType = "error_event"
)

// Client control actions.
const (
	ActionToggleCapture = "toggle_capture"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientText submits a typed user message.
type ClientText struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// ClientControl carries user-interface actions such as the mic toggle.
type ClientControl struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
}

// TurnAppended mirrors a new conversation log entry.
type TurnAppended struct {
	Type MessageType       `json:"type"`
	Turn conversation.Turn `json:"turn"`
}

// PhaseChanged reports an orchestrator phase transition.
type PhaseChanged struct {
	Type  MessageType `json:"type"`
	Phase string      `json:"phase"`
}

// CaptureState reports the microphone channel state. Hint carries a
// user-visible capture error code, empty when healthy.
type CaptureState struct {
	Type       MessageType `json:"type"`
	Listening  bool        `json:"listening"`
	Transcript string      `json:"transcript"`
	Hint       string      `json:"hint,omitempty"`
}

// AvatarState carries the two presentational booleans plus the derived cue.
type AvatarState struct {
	Type     MessageType `json:"type"`
	Awake    bool        `json:"awake"`
	Speaking bool        `json:"speaking"`
	Cue      avatar.Cue  `json:"cue"`
}

// AvatarFrame is a sampled idle/talk motion pose.
type AvatarFrame struct {
	Type  MessageType  `json:"type"`
	Frame avatar.Frame `json:"frame"`
}

type ErrorEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail"`
}

// ParseClientMessage validates and decodes an inbound websocket payload.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientText:
		var msg ClientText
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Action) == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, env.Type)
	}
}
