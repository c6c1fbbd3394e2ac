// Package playback reveals a bot answer one rune at a time.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/neilberkman/supportchat/internal/core/models"
)

// DefaultInterval is the delay between two revealed runes
const DefaultInterval = 20 * time.Millisecond

// State of the controller
type State int

const (
	Idle State = iota
	Streaming
)

func (s State) String() string {
	if s == Streaming {
		return "streaming"
	}
	return "idle"
}

// Target is the part of the session registry playback writes through
type Target interface {
	ActiveID() string
	Epoch() uint64
	RewriteMessage(id string, index int, msg models.Message) bool
}

// Controller animates at most one answer at a time. The placeholder at
// (sessionID, index) is rewritten on each step; if the user leaves the
// session mid-animation the full answer is written to the origin entry
// and playback stops.
type Controller struct {
	mu       sync.Mutex
	target   Target
	interval time.Duration

	state     State
	run       uint64
	sessionID string
	index     int
	epoch     uint64
	runes     []rune
	cursor    int
	dir       models.Direction
	align     models.Align
}

// New creates an idle controller
func New(target Target, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{target: target, interval: interval}
}

// Interval returns the delay between steps
func (c *Controller) Interval() time.Duration {
	return c.interval
}

// Start begins revealing answer into message index of sessionID. A
// running animation is flushed first. Returns the run id; ticks carrying
// an older run id must be ignored.
func (c *Controller) Start(sessionID string, index int, answer string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.finishLocked()

	c.run++
	c.sessionID = sessionID
	c.index = index
	c.epoch = c.target.Epoch()
	c.runes = []rune(answer)
	c.cursor = 0
	// computed from the whole answer so the bubble does not flip mid-stream
	c.dir, c.align = models.DetectDirection(answer)
	c.state = Streaming

	if len(c.runes) == 0 {
		c.finishLocked()
	}
	return c.run
}

// Step reveals one more rune. It returns true while more steps are needed.
func (c *Controller) Step() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Streaming {
		return false
	}
	if c.target.ActiveID() != c.sessionID || c.target.Epoch() != c.epoch {
		c.finishLocked()
		return false
	}

	c.cursor++
	if c.cursor >= len(c.runes) {
		c.finishLocked()
		return false
	}
	c.writeLocked(string(c.runes[:c.cursor]))
	return true
}

// Flush writes the full answer and returns to Idle
func (c *Controller) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishLocked()
}

func (c *Controller) finishLocked() {
	if c.state != Streaming {
		return
	}
	c.cursor = len(c.runes)
	c.writeLocked(string(c.runes))
	c.state = Idle
}

func (c *Controller) writeLocked(text string) {
	c.target.RewriteMessage(c.sessionID, c.index, models.Message{
		Role:      models.RoleBot,
		Text:      text,
		Direction: c.dir,
		Align:     c.align,
	})
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RunID returns the id of the latest run
func (c *Controller) RunID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run
}

// SessionID returns the session the latest run writes to
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Revealed returns the text shown so far
func (c *Controller) Revealed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.runes[:c.cursor])
}

// Run steps the controller on a ticker until the answer is fully shown or
// ctx is done, in which case the answer is flushed. onReveal, if set, is
// called with the revealed text after every step.
func (c *Controller) Run(ctx context.Context, onReveal func(string)) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Flush()
			if onReveal != nil {
				onReveal(c.Revealed())
			}
			return ctx.Err()
		case <-ticker.C:
			more := c.Step()
			if onReveal != nil {
				onReveal(c.Revealed())
			}
			if !more {
				return nil
			}
		}
	}
}
