package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in the conversation. Immutable once appended.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Seed      bool      `json:"seed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Log is the append-only ordered sequence of turns for one conversation.
// It is the single source of truth for what has been said.
type Log struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewLog creates a log, optionally seeded with an assistant greeting.
// Seed turns are shown to the user but never sent as reply context.
func NewLog(greeting string) *Log {
	l := &Log{}
	if greeting != "" {
		l.turns = append(l.turns, Turn{
			ID:        "intro",
			Role:      RoleAssistant,
			Content:   greeting,
			Seed:      true,
			CreatedAt: time.Now().UTC(),
		})
	}
	return l
}

// Append adds a turn and returns it with ID and timestamp filled in.
func (l *Log) Append(role Role, content string) Turn {
	t := Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	l.mu.Lock()
	l.turns = append(l.turns, t)
	l.mu.Unlock()
	return t
}

// Turns returns a copy of the full log in insertion order.
func (l *Log) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len reports the number of turns, seed included.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Context returns the most recent non-seed turns, at most limit, in order.
// This is the only slice of history exposed to the reply capability.
func (l *Log) Context(limit int) []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 {
		return nil
	}
	out := make([]Turn, 0, limit)
	for i := len(l.turns) - 1; i >= 0 && len(out) < limit; i-- {
		if l.turns[i].Seed {
			continue
		}
		out = append(out, l.turns[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Last returns the most recent turn, if any.
func (l *Log) Last() (Turn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.turns) == 0 {
		return Turn{}, false
	}
	return l.turns[len(l.turns)-1], true
}
