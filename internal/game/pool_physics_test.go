package game

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// Helper to create a one-ball world on a custom table.
func setupSingleBall(t *testing.T, width, height, x, y, vx, vy, radius float64, opts ...Option) *World {
	t.Helper()
	table, err := NewTable(width, height)
	if err != nil {
		t.Fatalf("NewTable(%v, %v): %v", width, height, err)
	}
	w, err := NewWorld(table, []Ball{NewBall(x, y, vx, vy, radius)}, opts...)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	return w
}

func mustBall(t *testing.T, w *World, i int) Ball {
	t.Helper()
	b, err := w.Ball(i)
	if err != nil {
		t.Fatalf("Ball(%d): %v", i, err)
	}
	return b
}

func TestTickMovesBallWhenDtPositive(t *testing.T) {
	w := NewSingleBallWorldWithVelocity(BootstrapVelocity.X, BootstrapVelocity.Y)
	before := mustBall(t, w, 0)

	if err := Tick(w, 0.5); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	after := mustBall(t, w, 0)
	if after.X() != before.X()+60 || after.Y() != before.Y()+30 {
		t.Errorf("ball at (%v, %v), want (%v, %v)", after.X(), after.Y(), before.X()+60, before.Y()+30)
	}
	if w.TickCount() != 1 || w.SimTime() != 0.5 {
		t.Errorf("tick=%d simTime=%v, want 1 and 0.5", w.TickCount(), w.SimTime())
	}
}

func TestSingleBallWorldStartsAtRest(t *testing.T) {
	w := NewSingleBallWorld()
	if w.BallCount() != 1 {
		t.Fatalf("BallCount = %d, want 1", w.BallCount())
	}
	b := mustBall(t, w, 0)
	if b.X() != 400 || b.Y() != 200 || b.Radius != 10 {
		t.Errorf("ball = (%v, %v) r=%v, want (400, 200) r=10", b.X(), b.Y(), b.Radius)
	}
	if !b.Velocity.IsZero() {
		t.Errorf("initial velocity = %+v, want zero", b.Velocity)
	}
	if w.TableWidth() != 800 || w.TableHeight() != 400 {
		t.Errorf("table = %vx%v, want 800x400", w.TableWidth(), w.TableHeight())
	}

	for i := 0; i < 10; i++ {
		if err := Tick(w, 1.0/60); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if got := mustBall(t, w, 0); got.X() != 400 || got.Y() != 200 {
		t.Errorf("resting ball moved to (%v, %v)", got.X(), got.Y())
	}
}

func TestWallBounceInvertsVelocityX(t *testing.T) {
	w := setupSingleBall(t, 100, 100, 85, 50, 50, 0, 10)

	events, err := w.Tick(0.5)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	b := mustBall(t, w, 0)
	if b.X() != 90 {
		t.Errorf("x = %v, want 90", b.X())
	}
	if b.Velocity.X != -50 {
		t.Errorf("vx = %v, want -50", b.Velocity.X)
	}
	if len(events) != 1 || events[0].Wall != WallRight || events[0].Penetration != 20 {
		t.Errorf("events = %+v, want one right-wall contact with penetration 20", events)
	}
}

func TestWallBounceInvertsVelocityY(t *testing.T) {
	w := setupSingleBall(t, 100, 100, 50, 85, 0, 50, 10)

	if err := Tick(w, 0.5); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	b := mustBall(t, w, 0)
	if b.Y() != 90 || b.Velocity.Y != -50 {
		t.Errorf("ball y=%v vy=%v, want y=90 vy=-50", b.Y(), b.Velocity.Y)
	}
}

func TestReflectionLawBottomWall(t *testing.T) {
	for _, e := range []float64{1.0, 0.6, 0} {
		w := setupSingleBall(t, 200, 200, 100, 15, 0, -100, 10, WithRestitution(e))

		events, err := w.Tick(0.1)
		if err != nil {
			t.Fatalf("Tick: %v", err)
		}

		b := mustBall(t, w, 0)
		if b.Y() != b.Radius {
			t.Errorf("e=%v: y = %v, want exactly %v", e, b.Y(), b.Radius)
		}
		if b.Velocity.X != 0 || b.Velocity.Y != 100*e {
			t.Errorf("e=%v: velocity = %+v, want (0, %v)", e, b.Velocity, 100*e)
		}
		if len(events) != 1 || events[0].Wall != WallBottom || events[0].Speed != 100 {
			t.Errorf("e=%v: events = %+v", e, events)
		}
	}
}

func TestScenarioStraightDropOnto800x400(t *testing.T) {
	w := setupSingleBall(t, 800, 400, 400, 200, 0, -500, 10)

	crossed := false
	for step := 1; step <= 10; step++ {
		before := mustBall(t, w, 0)
		wouldBe := before.Y() + before.Velocity.Y*0.1

		if err := Tick(w, 0.1); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		b := mustBall(t, w, 0)

		if wouldBe < before.Radius {
			if b.Y() != 10 {
				t.Errorf("step %d: y = %v, want exactly 10", step, b.Y())
			}
			if b.Velocity.Y != 500 {
				t.Errorf("step %d: vy = %v, want +500", step, b.Velocity.Y)
			}
			crossed = true
			break
		}
	}
	if !crossed {
		t.Fatal("ball never reached the y = 0 wall")
	}
}

func TestCornerContactResolvesBothAxes(t *testing.T) {
	w := setupSingleBall(t, 100, 100, 12, 12, -40, -40, 10)

	events, err := w.Tick(0.1)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	b := mustBall(t, w, 0)
	if b.X() != 10 || b.Y() != 10 {
		t.Errorf("ball at (%v, %v), want (10, 10)", b.X(), b.Y())
	}
	if b.Velocity.X != 40 || b.Velocity.Y != 40 {
		t.Errorf("velocity = %+v, want (40, 40)", b.Velocity)
	}
	if len(events) != 2 || events[0].Wall != WallLeft || events[1].Wall != WallBottom {
		t.Errorf("events = %+v, want left then bottom", events)
	}
}

func TestZeroStepIsIdempotent(t *testing.T) {
	w := setupSingleBall(t, 800, 400, 123.5, 321.25, 77.7, -13.1, 10)
	before := w.Snapshot()

	events, err := w.Tick(0)
	if err != nil {
		t.Fatalf("Tick(0): %v", err)
	}
	if events != nil {
		t.Errorf("Tick(0) events = %+v, want nil", events)
	}

	after := w.Snapshot()
	if after.Tick != before.Tick || after.SimTime != before.SimTime {
		t.Errorf("Tick(0) advanced clock: %d/%v -> %d/%v", before.Tick, before.SimTime, after.Tick, after.SimTime)
	}
	if after.Balls[0] != before.Balls[0] {
		t.Errorf("Tick(0) changed ball: %+v -> %+v", before.Balls[0], after.Balls[0])
	}
}

func TestNegativeTimestepFailsAndLeavesStateUnchanged(t *testing.T) {
	w := NewSingleBallWorldWithVelocity(120, 60)
	before := w.Snapshot()

	for _, dt := range []float64{-0.016, math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := Tick(w, dt)
		if !errors.Is(err, ErrInvalidTimestep) {
			t.Errorf("Tick(%v) err = %v, want ErrInvalidTimestep", dt, err)
		}
	}

	after := w.Snapshot()
	if after.Balls[0] != before.Balls[0] || after.Tick != before.Tick {
		t.Errorf("state changed after rejected ticks: %+v -> %+v", before, after)
	}
}

func TestIndexOutOfRange(t *testing.T) {
	w := NewSingleBallWorld()

	accessors := map[string]func(int) (float64, error){
		"BallX":      w.BallX,
		"BallY":      w.BallY,
		"BallRadius": w.BallRadius,
	}
	for name, fn := range accessors {
		for _, i := range []int{w.BallCount(), -1, 100} {
			if _, err := fn(i); !errors.Is(err, ErrIndexOutOfRange) {
				t.Errorf("%s(%d) err = %v, want ErrIndexOutOfRange", name, i, err)
			}
		}
	}
	if _, err := w.Ball(w.BallCount()); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Ball(count) err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestDeterminism(t *testing.T) {
	run := func() Snapshot {
		table := NewStandardTable()
		w, err := NewWorld(table, []Ball{
			NewBall(100, 100, 340, -275, 10),
			NewBall(600, 300, -410, 190, 12),
			NewBall(400, 50, 55, 520, 8),
		}, WithRestitution(0.9), WithBallCollisions())
		if err != nil {
			t.Fatalf("NewWorld: %v", err)
		}
		rng := rand.New(rand.NewSource(42))
		for i := 0; i < 2000; i++ {
			if err := Tick(w, rng.Float64()*0.05); err != nil {
				t.Fatalf("Tick: %v", err)
			}
		}
		return w.Snapshot()
	}

	result1 := run()
	result2 := run()

	for i := range result1.Balls {
		if result1.Balls[i] != result2.Balls[i] {
			t.Errorf("Non-deterministic: ball %d run1=%+v run2=%+v", i, result1.Balls[i], result2.Balls[i])
		}
	}
}

func TestBoundaryInvariantHoldsForRandomSteps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	table := NewStandardTable()
	var balls []Ball
	for i := 0; i < 12; i++ {
		r := 5 + rng.Float64()*15
		balls = append(balls, NewBall(
			r+rng.Float64()*(table.Width-2*r),
			r+rng.Float64()*(table.Height-2*r),
			(rng.Float64()-0.5)*3000,
			(rng.Float64()-0.5)*3000,
			r,
		))
	}

	for _, opts := range [][]Option{nil, {WithBallCollisions(), WithRestitution(0.8)}} {
		w, err := NewWorld(table, balls, opts...)
		if err != nil {
			t.Fatalf("NewWorld: %v", err)
		}
		for step := 0; step < 3000; step++ {
			if err := Tick(w, rng.Float64()*0.05); err != nil {
				t.Fatalf("Tick: %v", err)
			}
			for i := 0; i < w.BallCount(); i++ {
				b := mustBall(t, w, i)
				if !table.Contains(b) {
					t.Fatalf("step %d: ball %d at (%v, %v) r=%v left the table", step, i, b.X(), b.Y(), b.Radius)
				}
			}
		}
	}
}

func TestElasticWallBounceConservesEnergy(t *testing.T) {
	w := setupSingleBall(t, 800, 400, 30, 30, -333.3, -123.4, 10)
	before := w.KineticEnergy()

	events, err := w.Run(0.05, 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected at least one wall bounce")
	}

	after := w.KineticEnergy()
	if math.Abs(after-before) > 1e-9*before {
		t.Errorf("kinetic energy %v -> %v, want unchanged", before, after)
	}
}

func TestInelasticWallBounceLosesEnergy(t *testing.T) {
	w := setupSingleBall(t, 800, 400, 15, 200, -100, 0, 10, WithRestitution(0.5))
	before := w.KineticEnergy()

	if err := Tick(w, 0.1); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got, want := w.KineticEnergy(), before*0.25; math.Abs(got-want) > 1e-9 {
		t.Errorf("kinetic energy = %v, want %v", got, want)
	}
}

func TestNewWorldRejectsInvalidGeometry(t *testing.T) {
	table := NewStandardTable()
	cases := []struct {
		name  string
		table Table
		balls []Ball
		opts  []Option
		want  error
	}{
		{"zero width", Table{Width: 0, Height: 400}, nil, nil, ErrInvalidTable},
		{"negative height", Table{Width: 800, Height: -1}, nil, nil, ErrInvalidTable},
		{"nan width", Table{Width: math.NaN(), Height: 400}, nil, nil, ErrInvalidTable},
		{"zero radius", table, []Ball{NewBall(400, 200, 0, 0, 0)}, nil, ErrInvalidBall},
		{"radius too large", table, []Ball{NewBall(400, 200, 0, 0, 200)}, nil, ErrInvalidBall},
		{"outside table", table, []Ball{NewBall(5, 200, 0, 0, 10)}, nil, ErrInvalidBall},
		{"zero mass", table, []Ball{{Position: Vec2{400, 200}, Radius: 10}}, nil, ErrInvalidBall},
		{"nan velocity", table, []Ball{NewBall(400, 200, math.NaN(), 0, 10)}, nil, ErrInvalidBall},
		{"restitution above one", table, nil, []Option{WithRestitution(1.1)}, ErrInvalidRestitution},
		{"negative restitution", table, nil, []Option{WithRestitution(-0.1)}, ErrInvalidRestitution},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := NewWorld(tc.table, tc.balls, tc.opts...)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
			if w != nil {
				t.Errorf("world = %+v, want nil on error", w)
			}
		})
	}
}

func TestNewWorldCopiesBalls(t *testing.T) {
	balls := []Ball{NewBall(100, 100, 10, 0, 10)}
	w, err := NewWorld(NewStandardTable(), balls)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}

	balls[0].Position.X = 500
	if x, _ := w.BallX(0); x != 100 {
		t.Errorf("world aliased caller slice: x = %v", x)
	}
}

func TestAddBallKeepsIndicesStable(t *testing.T) {
	w := NewSingleBallWorld()
	if err := w.AddBall(NewBall(100, 100, 0, 0, 10)); err != nil {
		t.Fatalf("AddBall: %v", err)
	}
	if err := w.AddBall(NewBall(1000, 100, 0, 0, 10)); !errors.Is(err, ErrInvalidBall) {
		t.Errorf("AddBall outside table err = %v, want ErrInvalidBall", err)
	}

	if w.BallCount() != 2 {
		t.Fatalf("BallCount = %d, want 2", w.BallCount())
	}
	if x, _ := w.BallX(0); x != 400 {
		t.Errorf("ball 0 x = %v, want 400", x)
	}
	if x, _ := w.BallX(1); x != 100 {
		t.Errorf("ball 1 x = %v, want 100", x)
	}
}

func TestHeadOnBallCollisionExchangesVelocity(t *testing.T) {
	w, err := NewWorld(NewStandardTable(), []Ball{
		NewBall(385, 200, 100, 0, 10),
		NewBall(415, 200, -100, 0, 10),
	}, WithBallCollisions())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	energy := w.KineticEnergy()
	momentum := w.Momentum()

	events, err := w.Tick(0.1)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	a, b := mustBall(t, w, 0), mustBall(t, w, 1)
	if a.Velocity.X != -100 || b.Velocity.X != 100 {
		t.Errorf("velocities after impact = %v, %v, want -100, 100", a.Velocity.X, b.Velocity.X)
	}
	if d := b.X() - a.X(); d < 20-1e-9 {
		t.Errorf("balls still overlap: distance %v", d)
	}
	if math.Abs(w.KineticEnergy()-energy) > 1e-9 {
		t.Errorf("energy %v -> %v", energy, w.KineticEnergy())
	}
	if got := w.Momentum(); math.Abs(got.X-momentum.X) > 1e-9 || math.Abs(got.Y-momentum.Y) > 1e-9 {
		t.Errorf("momentum %+v -> %+v", momentum, got)
	}
	if len(events) != 1 || events[0].Type != EventBall || events[0].TargetIndex != 1 {
		t.Errorf("events = %+v, want one ball contact 0->1", events)
	}
}

func TestBallCollisionsAreOptIn(t *testing.T) {
	w, err := NewWorld(NewStandardTable(), []Ball{
		NewBall(385, 200, 100, 0, 10),
		NewBall(415, 200, -100, 0, 10),
	})
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}

	events, err := w.Tick(0.1)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %+v, want none without WithBallCollisions", events)
	}
	if v := mustBall(t, w, 0).Velocity.X; v != 100 {
		t.Errorf("vx = %v, want 100 (balls pass through)", v)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	w := NewSingleBallWorldWithVelocity(120, 60)
	c := w.Clone()

	if err := Tick(w, 1); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if x, _ := c.BallX(0); x != 400 {
		t.Errorf("clone moved with original: x = %v", x)
	}
	if c.TickCount() != 0 {
		t.Errorf("clone tick = %d, want 0", c.TickCount())
	}
}

func TestRestoreWorldRoundTrip(t *testing.T) {
	w := NewSingleBallWorldWithVelocity(120, 60)
	if _, err := w.Run(0.25, 8); err != nil {
		t.Fatalf("Run: %v", err)
	}

	r, err := RestoreWorld(w.Snapshot())
	if err != nil {
		t.Fatalf("RestoreWorld: %v", err)
	}
	if _, err := w.Run(0.25, 8); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := r.Run(0.25, 8); err != nil {
		t.Fatalf("Run restored: %v", err)
	}

	if w.Snapshot().Balls[0] != r.Snapshot().Balls[0] || w.TickCount() != r.TickCount() {
		t.Errorf("restored world diverged: %+v vs %+v", w.Snapshot(), r.Snapshot())
	}
}
