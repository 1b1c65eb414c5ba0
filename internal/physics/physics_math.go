package physics

// closestPointOnSegment returns the point of segment p1-p2 nearest to p.
func closestPointOnSegment(p, p1, p2 Vec2) Vec2 {
	seg := p2.Minus(p1)
	lenSq := seg.MagnitudeSquared()
	if lenSq == 0 {
		return p1
	}
	t := p.Minus(p1).Dot(seg) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return p1.Plus(seg.Times(t))
}

// checkObjectsConverging returns true if two bodies are moving toward each other.
func checkObjectsConverging(posA, posB, velA, velB Vec2) bool {
	relVel := velB.Minus(velA)
	return relVel.Dot(posB.Minus(posA)) < 0
}

// CirclesOverlap checks if two circles overlap.
func CirclesOverlap(a Vec2, ra float64, b Vec2, rb float64) bool {
	minDist := ra + rb
	return a.Minus(b).MagnitudeSquared() < minDist*minDist
}
