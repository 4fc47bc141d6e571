package game

import (
	"fmt"
	"math"
)

// Ball is a single ball's physics state. Radius and Mass are fixed for the
// lifetime of the ball.
type Ball struct {
	Position Vec2    `json:"position"`
	Velocity Vec2    `json:"velocity"`
	Radius   float64 `json:"radius"`
	Mass     float64 `json:"mass"`
}

// NewBall creates a unit-mass ball.
func NewBall(x, y, vx, vy, radius float64) Ball {
	return Ball{
		Position: Vec2{X: x, Y: y},
		Velocity: Vec2{X: vx, Y: vy},
		Radius:   radius,
		Mass:     DefaultBallMass,
	}
}

func (b Ball) X() float64 { return b.Position.X }
func (b Ball) Y() float64 { return b.Position.Y }

// KineticEnergy returns ½·m·|v|².
func (b Ball) KineticEnergy() float64 {
	return 0.5 * b.Mass * b.Velocity.MagnitudeSquared()
}

// BallSnapshot is the read-only view of one ball handed to renderers.
type BallSnapshot struct {
	Index  int     `json:"index"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Radius float64 `json:"radius"`
	Mass   float64 `json:"mass"`
}

// Snapshot is a copy of the world at a point in time. Mutating it has no
// effect on the World it came from.
type Snapshot struct {
	Table       Table          `json:"table"`
	Restitution float64        `json:"restitution"`
	Tick        uint64         `json:"tick"`
	SimTime     float64        `json:"sim_time"`
	Balls       []BallSnapshot `json:"balls"`
}

// World is the complete mutable simulation state: one table and an ordered
// sequence of balls. Ball indices are stable for the lifetime of the World.
// A World is not safe for concurrent use.
type World struct {
	table       Table
	balls       []Ball
	restitution float64
	resolvers   []Resolver
	tickCount   uint64
	simTime     float64
}

// Option configures a World at construction.
type Option func(*World)

// WithRestitution sets the fraction of normal velocity kept after a contact.
func WithRestitution(e float64) Option {
	return func(w *World) { w.restitution = e }
}

// WithResolvers replaces the collision pipeline. Resolvers run in order after integration.
func WithResolvers(rs ...Resolver) Option {
	return func(w *World) { w.resolvers = append([]Resolver(nil), rs...) }
}

// WithBallCollisions enables pairwise ball contacts. A second wall pass
// follows so pair separation cannot push a ball through a cushion.
func WithBallCollisions() Option {
	return func(w *World) {
		w.resolvers = append(w.resolvers, BallPairResolver{}, WallResolver{})
	}
}

// NewWorld validates the table and every ball and returns a World that owns
// copies of them.
func NewWorld(table Table, balls []Ball, opts ...Option) (*World, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}

	w := &World{
		table:       table,
		balls:       make([]Ball, 0, len(balls)),
		restitution: DefaultRestitution,
		resolvers:   []Resolver{WallResolver{}},
	}
	for _, opt := range opts {
		opt(w)
	}

	if math.IsNaN(w.restitution) || w.restitution < 0 || w.restitution > 1 {
		return nil, fmt.Errorf("%w: %v not in [0, 1]", ErrInvalidRestitution, w.restitution)
	}

	for i, b := range balls {
		if err := w.validateBall(i, b); err != nil {
			return nil, err
		}
		w.balls = append(w.balls, b)
	}

	return w, nil
}

// NewSingleBallWorld creates the bootstrap world: an 800x400 table with one
// ball of radius 10 resting at the centre (400, 200).
func NewSingleBallWorld() *World {
	return NewSingleBallWorldWithVelocity(0, 0)
}

// NewSingleBallWorldWithVelocity is NewSingleBallWorld with the ball launched
// at (vx, vy). BootstrapVelocity is the conventional moving start.
func NewSingleBallWorldWithVelocity(vx, vy float64) *World {
	table := NewStandardTable()
	ball := NewBall(table.Width*0.5, table.Height*0.5, vx, vy, DefaultBallRadius)

	return &World{
		table:       table,
		balls:       []Ball{ball},
		restitution: DefaultRestitution,
		resolvers:   []Resolver{WallResolver{}},
	}
}

func (w *World) validateBall(index int, b Ball) error {
	if !isFinite(b.Radius) || b.Radius <= 0 {
		return fmt.Errorf("%w: ball %d radius %v must be positive", ErrInvalidBall, index, b.Radius)
	}
	if b.Radius >= w.table.MaxRadius() {
		return fmt.Errorf("%w: ball %d radius %v must be below %v", ErrInvalidBall, index, b.Radius, w.table.MaxRadius())
	}
	if !isFinite(b.Mass) || b.Mass <= 0 {
		return fmt.Errorf("%w: ball %d mass %v must be positive", ErrInvalidBall, index, b.Mass)
	}
	if !b.Position.IsFinite() || !b.Velocity.IsFinite() {
		return fmt.Errorf("%w: ball %d has non-finite position or velocity", ErrInvalidBall, index)
	}
	if !w.table.Contains(b) {
		return fmt.Errorf("%w: ball %d at (%v, %v) with radius %v is outside the table", ErrInvalidBall, index, b.Position.X, b.Position.Y, b.Radius)
	}
	return nil
}

// AddBall appends a ball; it gets index BallCount()-1 after the call.
func (w *World) AddBall(b Ball) error {
	if err := w.validateBall(len(w.balls), b); err != nil {
		return err
	}
	w.balls = append(w.balls, b)
	return nil
}

func (w *World) BallCount() int {
	return len(w.balls)
}

func (w *World) checkIndex(index int) error {
	if index < 0 || index >= len(w.balls) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(w.balls))
	}
	return nil
}

// Ball returns a copy of the ball at index.
func (w *World) Ball(index int) (Ball, error) {
	if err := w.checkIndex(index); err != nil {
		return Ball{}, err
	}
	return w.balls[index], nil
}

func (w *World) BallX(index int) (float64, error) {
	if err := w.checkIndex(index); err != nil {
		return 0, err
	}
	return w.balls[index].Position.X, nil
}

func (w *World) BallY(index int) (float64, error) {
	if err := w.checkIndex(index); err != nil {
		return 0, err
	}
	return w.balls[index].Position.Y, nil
}

func (w *World) BallRadius(index int) (float64, error) {
	if err := w.checkIndex(index); err != nil {
		return 0, err
	}
	return w.balls[index].Radius, nil
}

func (w *World) Table() Table         { return w.table }
func (w *World) TableWidth() float64  { return w.table.Width }
func (w *World) TableHeight() float64 { return w.table.Height }
func (w *World) Restitution() float64 { return w.restitution }

// TickCount is the number of non-zero steps taken.
func (w *World) TickCount() uint64 { return w.tickCount }

// SimTime is the total simulated time in seconds.
func (w *World) SimTime() float64 { return w.simTime }

// KineticEnergy sums ½·m·|v|² over all balls.
func (w *World) KineticEnergy() float64 {
	total := 0.0
	for _, b := range w.balls {
		total += b.KineticEnergy()
	}
	return total
}

// Snapshot copies the current state for a renderer or a store.
func (w *World) Snapshot() Snapshot {
	balls := make([]BallSnapshot, len(w.balls))
	for i, b := range w.balls {
		balls[i] = BallSnapshot{
			Index:  i,
			X:      b.Position.X,
			Y:      b.Position.Y,
			VX:     b.Velocity.X,
			VY:     b.Velocity.Y,
			Radius: b.Radius,
			Mass:   b.Mass,
		}
	}
	return Snapshot{
		Table:       w.table,
		Restitution: w.restitution,
		Tick:        w.tickCount,
		SimTime:     w.simTime,
		Balls:       balls,
	}
}

// Clone returns an independent deep copy.
func (w *World) Clone() *World {
	c := *w
	c.balls = append([]Ball(nil), w.balls...)
	c.resolvers = append([]Resolver(nil), w.resolvers...)
	return &c
}

// RestoreWorld rebuilds a World from a snapshot, validating it like NewWorld.
// A zero mass in the snapshot restores as unit mass.
func RestoreWorld(s Snapshot, opts ...Option) (*World, error) {
	balls := make([]Ball, len(s.Balls))
	for i, bs := range s.Balls {
		balls[i] = NewBall(bs.X, bs.Y, bs.VX, bs.VY, bs.Radius)
		if bs.Mass != 0 {
			balls[i].Mass = bs.Mass
		}
	}
	opts = append([]Option{WithRestitution(s.Restitution)}, opts...)
	w, err := NewWorld(s.Table, balls, opts...)
	if err != nil {
		return nil, err
	}
	w.tickCount = s.Tick
	w.simTime = s.SimTime
	return w, nil
}
