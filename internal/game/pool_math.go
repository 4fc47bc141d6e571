package game

// checkObjectsConverging returns true if two objects are moving toward each other.
func checkObjectsConverging(posA, posB Vec2, velA, velB Vec2) bool {
	relVel := velB.Minus(velA)
	direction := posB.Minus(posA)
	return relVel.Dot(direction) < 0
}

// contactNormal is the unit vector from the first centre to the second.
// Coincident centres get a fixed +x normal so the result stays deterministic.
func contactNormal(delta Vec2, dist float64) Vec2 {
	if dist == 0 {
		return Vec2{X: 1}
	}
	return delta.Times(1 / dist)
}

// Momentum returns Σ m·v over balls.
func Momentum(balls []Ball) Vec2 {
	var p Vec2
	for _, b := range balls {
		p = p.Plus(b.Velocity.Times(b.Mass))
	}
	return p
}

// Momentum of every ball in the world.
func (w *World) Momentum() Vec2 {
	return Momentum(w.balls)
}
