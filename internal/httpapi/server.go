package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lumoshq/lumos/internal/avatar"
	"github.com/lumoshq/lumos/internal/companion"
	"github.com/lumoshq/lumos/internal/config"
	"github.com/lumoshq/lumos/internal/conversation"
	"github.com/lumoshq/lumos/internal/observability"
	"github.com/lumoshq/lumos/internal/protocol"
	"github.com/lumoshq/lumos/internal/reply"
	"github.com/lumoshq/lumos/internal/speech"
)

// Companion bundles everything a single websocket connection owns.
type Companion struct {
	Orchestrator *companion.Orchestrator
	Log          *conversation.Log
	Frames       func() protocol.AvatarFrame
	Close        func()
}

// CompanionFactory builds a fresh companion per connection. The listener
// must be wired into the orchestrator it returns.
type CompanionFactory func(ctx context.Context, listener companion.Listener) *Companion

type Server struct {
	cfg          config.Config
	metrics      *observability.Metrics
	chatGen      reply.Generator
	voices       func() []speech.Voice
	newCompanion CompanionFactory
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, metrics *observability.Metrics, chatGen reply.Generator, voices func() []speech.Voice, factory CompanionFactory) *Server {
	return &Server{
		cfg:          cfg,
		metrics:      metrics,
		chatGen:      chatGen,
		voices:       voices,
		newCompanion: factory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections by default, so a
				// foreign page cannot drive the user's mic session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/voices", s.handleListVoices)
	r.Get("/v1/companion/ws", s.handleCompanionWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type chatRequest struct {
	Message string          `json:"message"`
	History []reply.Message `json:"history"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// retryFallback is returned with a 200 status when the chat payload is
// unreadable or the generator fails: the companion never answers a feeling
// with an error status.
const retryFallback = "I'm here, and I care about how you're feeling. " +
	"Could we try sharing that again?"

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusOK, chatResponse{Reply: retryFallback})
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "No message provided."})
		return
	}

	text, err := s.chatGen.Generate(r.Context(), reply.Request{Message: message, History: req.History})
	if err != nil {
		respondJSON(w, http.StatusOK, chatResponse{Reply: retryFallback})
		return
	}
	respondJSON(w, http.StatusOK, chatResponse{Reply: text})
}

func (s *Server) handleListVoices(w http.ResponseWriter, _ *http.Request) {
	var list []speech.Voice
	if s.voices != nil {
		list = s.voices()
	}
	respondJSON(w, http.StatusOK, map[string]any{"voices": list})
}

// wsListener mirrors orchestrator activity onto the outbound queue.
// Writes never block the orchestrator; if the queue is saturated the
// message is dropped and counted.
type wsListener struct {
	server   *Server
	outbound chan<- any
}

func (l *wsListener) OnTurnAppended(turn conversation.Turn) {
	l.send(protocol.TurnAppended{Type: protocol.TypeTurnAppended, Turn: turn})
}

func (l *wsListener) OnPhaseChanged(phase companion.Phase) {
	l.send(protocol.PhaseChanged{Type: protocol.TypePhaseChanged, Phase: string(phase)})
}

func (l *wsListener) OnCaptureState(listening bool, transcript, hint string) {
	l.send(protocol.CaptureState{
		Type:       protocol.TypeCaptureState,
		Listening:  listening,
		Transcript: transcript,
		Hint:       hint,
	})
}

func (l *wsListener) OnAvatarState(awake, speaking bool) {
	l.send(protocol.AvatarState{
		Type:     protocol.TypeAvatarState,
		Awake:    awake,
		Speaking: speaking,
		Cue:      avatar.CueFor(awake, speaking),
	})
}

func (l *wsListener) send(msg any) {
	select {
	case l.outbound <- msg:
	default:
		l.server.metrics.CompanionEvents.WithLabelValues("outbound_dropped").Inc()
	}
}

func (s *Server) handleCompanionWS(w http.ResponseWriter, r *http.Request) {
	if s.newCompanion == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "companion factory not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.CompanionEvents.WithLabelValues("ws_connected").Inc()
	s.metrics.ActiveCompanions.Inc()
	defer s.metrics.ActiveCompanions.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)
	listener := &wsListener{server: s, outbound: outbound}
	comp := s.newCompanion(ctx, listener)
	if comp.Close != nil {
		defer comp.Close()
	}

	// Replay the seeded log (the greeting) so the UI starts populated.
	for _, turn := range comp.Log.Turns() {
		listener.OnTurnAppended(turn)
	}
	listener.OnAvatarState(comp.Orchestrator.Awake(), false)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	// Idle motion runs continuously; stream sampled frames so the client
	// can render without its own clock.
	if comp.Frames != nil {
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					listener.send(comp.Frames())
				}
			}
		}()
	}

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			listener.send(protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			})
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		switch m := parsed.(type) {
		case protocol.ClientText:
			comp.Orchestrator.SubmitUserTurn(m.Text)
		case protocol.ClientControl:
			if m.Action == protocol.ActionToggleCapture {
				comp.Orchestrator.ToggleVoiceCapture()
			}
		}
	}

	cancel()
	<-writerDone
	s.metrics.CompanionEvents.WithLabelValues("ws_disconnected").Inc()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientText:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.TurnAppended:
		return m.Type, true
	case protocol.PhaseChanged:
		return m.Type, true
	case protocol.CaptureState:
		return m.Type, true
	case protocol.AvatarState:
		return m.Type, true
	case protocol.AvatarFrame:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
