package avatar

import (
	"math"
	"sync"
	"time"
)

// Cue is the presentational animation cue derived from orchestrator state.
type Cue string

const (
	// CueDormant renders the avatar asleep; the companion has not been
	// addressed yet.
	CueDormant Cue = "dormant"
	// CueIdle renders ambient motion only.
	CueIdle Cue = "idle"
	// CueSpeaking blends the talk clip over the idle motion.
	CueSpeaking Cue = "speaking"
)

// CueFor maps the two orchestrator booleans to a cue. Pure and total:
// safe to call on every transition, in any order.
func CueFor(awake, speaking bool) Cue {
	switch {
	case !awake:
		return CueDormant
	case speaking:
		return CueSpeaking
	default:
		return CueIdle
	}
}

// Frame is one sampled pose of the idle/talk motion.
type Frame struct {
	Cue       Cue     `json:"cue"`
	BobY      float64 `json:"bob_y"`
	RotationY float64 `json:"rotation_y"`
}

// Animator produces the continuous idle motion. The gentle bob runs from
// elapsed time regardless of cue; the cue only selects which sway target
// the rotation eases toward.
type Animator struct {
	mu     sync.Mutex
	start  time.Time
	lastAt time.Time
	rotY   float64
}

func NewAnimator() *Animator {
	now := time.Now()
	return &Animator{start: now, lastAt: now}
}

const (
	baseHeight    = 0.3
	bobAmplitude  = 0.03
	bobRate       = 1.2
	talkSwayRate  = 2.0
	talkSwayMax   = 0.15
	idleSwayRate  = 0.5
	idleSwayMax   = 0.1
	swaySmoothing = 2.0
)

// Sample advances the motion to now and returns the current pose.
func (a *Animator) Sample(cue Cue) Frame {
	return a.sampleAt(time.Now(), cue)
}

func (a *Animator) sampleAt(now time.Time, cue Cue) Frame {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := now.Sub(a.start).Seconds()
	dt := now.Sub(a.lastAt).Seconds()
	if dt < 0 {
		dt = 0
	}
	a.lastAt = now

	target := math.Sin(t*idleSwayRate) * idleSwayMax
	if cue == CueSpeaking {
		target = math.Sin(t*talkSwayRate) * talkSwayMax
	}
	a.rotY += (target - a.rotY) * dt * swaySmoothing

	return Frame{
		Cue:       cue,
		BobY:      baseHeight + math.Sin(t*bobRate)*bobAmplitude,
		RotationY: a.rotY,
	}
}

// StateDriver records the orchestrator's presentational booleans and turns
// them into frames on demand. It holds no conversational state.
type StateDriver struct {
	mu       sync.RWMutex
	awake    bool
	speaking bool
	animator *Animator
}

func NewStateDriver() *StateDriver {
	return &StateDriver{animator: NewAnimator()}
}

// Apply receives the two booleans the orchestrator emits on every
// transition.
func (d *StateDriver) Apply(awake, speaking bool) {
	d.mu.Lock()
	d.awake = awake
	d.speaking = speaking
	d.mu.Unlock()
}

// Cue reports the current presentational cue.
func (d *StateDriver) Cue() Cue {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return CueFor(d.awake, d.speaking)
}

// Frame samples the idle/talk motion for the current cue.
func (d *StateDriver) Frame() Frame {
	return d.animator.Sample(d.Cue())
}
