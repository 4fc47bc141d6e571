package game

import (
	"fmt"
	"math"
)

// Event types.
const (
	EventWall = "wall"
	EventBall = "ball"
)

// Wall names in table coordinates.
const (
	WallLeft   = "left"   // x = 0
	WallRight  = "right"  // x = Width
	WallBottom = "bottom" // y = 0
	WallTop    = "top"    // y = Height
)

// CollisionEvent records a contact resolved during a step.
type CollisionEvent struct {
	Type        string  `json:"type"`         // "wall" or "ball"
	BallIndex   int     `json:"ball_index"`
	TargetIndex int     `json:"target_index"` // other ball for "ball", -1 for "wall"
	Wall        string  `json:"wall,omitempty"`
	Penetration float64 `json:"penetration"`
	Speed       float64 `json:"speed"` // normal speed before the contact
}

// Resolver is a collision stage run after integration. It corrects the
// positions and velocities in balls and appends the contacts it handled.
type Resolver interface {
	Resolve(table Table, restitution float64, balls []Ball, events []CollisionEvent) []CollisionEvent
}

// Integrate advances one ball by dt with semi-implicit Euler. No forces act
// between contacts, so only the position half of the step does work.
func Integrate(b *Ball, dt float64) {
	b.Position.X += b.Velocity.X * dt
	b.Position.Y += b.Velocity.Y * dt
}

// Tick advances w by dt seconds. See (*World).Tick.
func Tick(w *World, dt float64) error {
	_, err := w.Tick(dt)
	return err
}

// Tick integrates every ball, then runs the collision pipeline in order.
// A negative or non-finite dt fails with ErrInvalidTimestep and leaves the
// world untouched; dt == 0 is a no-op.
func (w *World) Tick(dt float64) ([]CollisionEvent, error) {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return nil, fmt.Errorf("%w: dt=%v must be a non-negative number of seconds", ErrInvalidTimestep, dt)
	}
	if dt == 0 {
		return nil, nil
	}

	for i := range w.balls {
		Integrate(&w.balls[i], dt)
	}

	var events []CollisionEvent
	for _, r := range w.resolvers {
		events = r.Resolve(w.table, w.restitution, w.balls, events)
	}

	w.tickCount++
	w.simTime += dt
	return events, nil
}

// Run takes steps ticks of dt each and returns every event in order.
func (w *World) Run(dt float64, steps int) ([]CollisionEvent, error) {
	if steps < 0 {
		return nil, fmt.Errorf("%w: negative step count %d", ErrInvalidTimestep, steps)
	}
	var all []CollisionEvent
	for i := 0; i < steps; i++ {
		events, err := w.Tick(dt)
		if err != nil {
			return all, err
		}
		all = append(all, events...)
	}
	return all, nil
}

// WallResolver keeps every ball inside the table. Balls are visited in index
// order and the x axis is resolved before y; on each axis the low wall is
// checked before the high wall, against the already corrected coordinate.
type WallResolver struct{}

func (WallResolver) Resolve(table Table, e float64, balls []Ball, events []CollisionEvent) []CollisionEvent {
	for i := range balls {
		b := &balls[i]
		r := b.Radius

		if p := r - b.Position.X; p > 0 {
			events = append(events, wallEvent(i, WallLeft, p, b.Velocity.X))
			b.Position.X = r
			if b.Velocity.X < 0 {
				b.Velocity.X = -b.Velocity.X * e
			}
		}
		if p := r - (table.Width - b.Position.X); p > 0 {
			events = append(events, wallEvent(i, WallRight, p, b.Velocity.X))
			b.Position.X = table.Width - r
			if b.Velocity.X > 0 {
				b.Velocity.X = -b.Velocity.X * e
			}
		}

		if p := r - b.Position.Y; p > 0 {
			events = append(events, wallEvent(i, WallBottom, p, b.Velocity.Y))
			b.Position.Y = r
			if b.Velocity.Y < 0 {
				b.Velocity.Y = -b.Velocity.Y * e
			}
		}
		if p := r - (table.Height - b.Position.Y); p > 0 {
			events = append(events, wallEvent(i, WallTop, p, b.Velocity.Y))
			b.Position.Y = table.Height - r
			if b.Velocity.Y > 0 {
				b.Velocity.Y = -b.Velocity.Y * e
			}
		}
	}
	return events
}

func wallEvent(index int, wall string, penetration, normalVelocity float64) CollisionEvent {
	return CollisionEvent{
		Type:        EventWall,
		BallIndex:   index,
		TargetIndex: -1,
		Wall:        wall,
		Penetration: penetration,
		Speed:       math.Abs(normalVelocity),
	}
}

// BallPairResolver resolves overlapping pairs (i < j, index order). Overlap
// is removed along the contact normal in inverse-mass proportion, and pairs
// that are still converging exchange a restitution-scaled normal impulse.
type BallPairResolver struct{}

func (BallPairResolver) Resolve(_ Table, e float64, balls []Ball, events []CollisionEvent) []CollisionEvent {
	for i := 0; i < len(balls); i++ {
		for j := i + 1; j < len(balls); j++ {
			a, b := &balls[i], &balls[j]

			delta := b.Position.Minus(a.Position)
			minDist := a.Radius + b.Radius
			dist2 := delta.MagnitudeSquared()
			if dist2 >= minDist*minDist {
				continue
			}

			dist := math.Sqrt(dist2)
			n := contactNormal(delta, dist)
			invA, invB := 1/a.Mass, 1/b.Mass
			invSum := invA + invB

			overlap := minDist - dist
			a.Position = a.Position.Minus(n.Times(overlap * invA / invSum))
			b.Position = b.Position.Plus(n.Times(overlap * invB / invSum))

			vn := b.Velocity.Minus(a.Velocity).Dot(n)
			if checkObjectsConverging(a.Position, b.Position, a.Velocity, b.Velocity) {
				impulse := -(1 + e) * vn / invSum
				a.Velocity = a.Velocity.Minus(n.Times(impulse * invA))
				b.Velocity = b.Velocity.Plus(n.Times(impulse * invB))
			}

			events = append(events, CollisionEvent{
				Type:        EventBall,
				BallIndex:   i,
				TargetIndex: j,
				Penetration: overlap,
				Speed:       math.Abs(vn),
			})
		}
	}
	return events
}
