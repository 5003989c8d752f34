package reply

import (
	"context"
	"strings"
	"time"
)

// LocalGenerator crafts supportive replies without any network dependency.
// It keys off simple emotional markers in the user's recent wording and
// applies a minimum "thinking" delay so replies do not feel instantaneous.
type LocalGenerator struct {
	minDelay time.Duration
}

func NewLocalGenerator(minDelay time.Duration) *LocalGenerator {
	return &LocalGenerator{minDelay: minDelay}
}

type responseRule struct {
	markers []string
	reply   string
}

var supportiveRules = []responseRule{
	{
		markers: []string{"anxious", "anxiety", "panic", "worried", "nervous"},
		reply: "It sounds like a lot is weighing on you right now. Anxiety can make everything " +
			"feel urgent at once. Could we slow down together and name one thing that feels heaviest?",
	},
	{
		markers: []string{"sad", "down", "depressed", "hopeless", "empty", "crying"},
		reply: "I'm really glad you told me. Feeling low like this is hard to carry, and you " +
			"don't have to carry it perfectly. What has this sadness been like for you today?",
	},
	{
		markers: []string{"angry", "furious", "frustrated", "annoyed", "unfair"},
		reply: "That sounds genuinely frustrating, and your anger makes sense. Sometimes anger " +
			"is protecting something tender underneath. What do you think it might be guarding?",
	},
	{
		markers: []string{"tired", "exhausted", "burnout", "burned out", "drained", "overwhelmed"},
		reply: "You sound stretched thin. Rest isn't a reward you have to earn; it's something " +
			"you need. What would even a small moment of rest look like for you right now?",
	},
	{
		markers: []string{"alone", "lonely", "isolated", "nobody"},
		reply: "Feeling alone is one of the hardest things, and I want you to know I'm here " +
			"with you in this moment. Who or what has felt even a little bit comforting lately?",
	},
	{
		markers: []string{"happy", "good", "great", "better", "excited", "grateful"},
		reply: "I love hearing that. Moments like this are worth savoring. What do you think " +
			"helped make today feel this way?",
	},
}

const neutralReply = "Thank you for sharing that with me. I'm listening, and whatever you're " +
	"feeling is welcome here. Would you like to tell me more about what's going on underneath?"

func (g *LocalGenerator) Generate(ctx context.Context, req Request) (string, error) {
	// Recent user wording plus the new message form the matching corpus,
	// mirroring how the remote endpoint treats its context.
	var parts []string
	for _, m := range req.History {
		if m.Role == "user" && strings.TrimSpace(m.Content) != "" {
			parts = append(parts, m.Content)
		}
	}
	parts = append(parts, req.Message)
	combined := strings.ToLower(strings.Join(parts, "\n"))

	text := neutralReply
	for _, rule := range supportiveRules {
		if containsAny(combined, rule.markers) {
			text = rule.reply
			break
		}
	}

	if g.minDelay > 0 {
		timer := time.NewTimer(g.minDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return text, nil
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
