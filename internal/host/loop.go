// Package host drives a simulation the way a render loop does: once per
// frame, with the wall-clock delta clamped before it reaches the core.
package host

import (
	"context"
	"log"
	"time"

	"github.com/playmatatu/poolsim/internal/game"
)

// MaxFrameDelta caps a single step after the host was suspended
// (backgrounded tab, paused process).
const MaxFrameDelta = 50 * time.Millisecond

// ClampDelta converts elapsed wall-clock time to a dt in seconds that is
// always valid for game.Tick: negative elapsed becomes 0 and anything above
// max becomes max. A non-positive max disables the upper bound.
func ClampDelta(elapsed, max time.Duration) float64 {
	if elapsed < 0 {
		return 0
	}
	if max > 0 && elapsed > max {
		elapsed = max
	}
	return elapsed.Seconds()
}

// FrameClock measures the clamped delta between successive frames.
type FrameClock struct {
	MaxDelta time.Duration
	last     time.Time
}

func NewFrameClock(maxDelta time.Duration) *FrameClock {
	return &FrameClock{MaxDelta: maxDelta}
}

// Next returns the clamped delta since the previous call, or 0 on the first frame.
func (c *FrameClock) Next(now time.Time) float64 {
	if c.last.IsZero() {
		c.last = now
		return 0
	}
	dt := ClampDelta(now.Sub(c.last), c.MaxDelta)
	c.last = now
	return dt
}

// Reset forgets the previous frame so the next one starts from zero.
func (c *FrameClock) Reset() {
	c.last = time.Time{}
}

// Stepper advances something by dt and reports its new state.
type Stepper interface {
	Step(dt float64) (game.Snapshot, []game.CollisionEvent, error)
}

// WorldStepper adapts a bare *game.World to Stepper. It is not locked; use it
// only when the loop is the World's sole user.
type WorldStepper struct {
	World *game.World
}

func (s WorldStepper) Step(dt float64) (game.Snapshot, []game.CollisionEvent, error) {
	events, err := s.World.Tick(dt)
	if err != nil {
		return game.Snapshot{}, nil, err
	}
	return s.World.Snapshot(), events, nil
}

// FrameFunc receives every frame's state after the step.
type FrameFunc func(frame uint64, snap game.Snapshot, events []game.CollisionEvent)

// Loop calls Stepper once per Interval with the clamped elapsed time.
type Loop struct {
	Name     string
	Stepper  Stepper
	Interval time.Duration
	MaxDelta time.Duration
	OnFrame  FrameFunc

	now func() time.Time
}

// Run blocks until ctx is done or a step fails. A cancelled loop returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = time.Second / 60
	}
	maxDelta := l.MaxDelta
	if maxDelta == 0 {
		maxDelta = MaxFrameDelta
	}
	now := l.now
	if now == nil {
		now = time.Now
	}

	clock := NewFrameClock(maxDelta)
	clock.Next(now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[LOOP] %s started (interval=%s max_delta=%s)", l.Name, interval, maxDelta)
	var frame uint64
	for {
		select {
		case <-ctx.Done():
			log.Printf("[LOOP] %s stopping after %d frames", l.Name, frame)
			return ctx.Err()
		case <-ticker.C:
			dt := clock.Next(now())
			snap, events, err := l.Stepper.Step(dt)
			if err != nil {
				log.Printf("[LOOP] %s step failed at frame %d: %v", l.Name, frame, err)
				return err
			}
			frame++
			if l.OnFrame != nil {
				l.OnFrame(frame, snap, events)
			}
		}
	}
}
