package game

// Table and ball defaults for the single-ball bootstrap world.
// The host renderer draws in the same units, one unit per canvas pixel.
const (
	DefaultTableWidth  = 800.0
	DefaultTableHeight = 400.0
	DefaultBallRadius  = 10.0
	DefaultBallMass    = 1.0

	// DefaultRestitution is perfectly elastic; there is no energy-loss model yet.
	DefaultRestitution = 1.0
)

// BootstrapVelocity is the nominal launch velocity (units/s) of the moving
// single-ball world. NewSingleBallWorld starts at rest instead.
var BootstrapVelocity = Vec2{X: 120, Y: 60}
