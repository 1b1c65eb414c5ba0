package physics

// Default engine tuning, in pixels and seconds.
const (
	Gravity          = 1800.0
	Substeps         = 4
	SolverIterations = 3
	BallRestitution  = 0.15
	WallRestitution  = 0.2
	ContactFriction  = 0.08
	LinearDamping    = 0.02
	ContactSlop      = 0.5  // gap still reported as touching
	MaxSpeed         = 3000 // clamp against tunnelling through the floor
	DefaultMaxRadius = 160.0
	DefaultCellSize  = 2*DefaultMaxRadius + ContactSlop

	segmentIDBase = BodyID(1) << 62
)
