// Package steering implements the movement-strategy panel a room's AI
// update pass selects from per entity: small, stateless functions that
// turn a neighborhood of nearby agents and a target into a desired
// velocity, replacing what a behavior-inheritance hierarchy (ChaserAI,
// WanderAI, SwarmAI, BossAI) would otherwise hard-code per monster type.
package steering

import "math"

// Agent is the minimal view a steering Strategy needs of the entity it's
// computing a velocity for and of its neighbors.
type Agent interface {
	Position() (x, y float64)
	Velocity() (vx, vy float64)
	Radius() float64
	MaxSpeed() float64
}

// Strategy computes a desired velocity for self, given its current
// neighbors and an optional target position (targetOK false means no
// target — e.g. a Wander strategy that ignores it).
type Strategy interface {
	Steer(self Agent, neighbors []Agent, targetX, targetY float64, targetOK bool) (vx, vy float64)
}

func normalize(x, y float64) (float64, float64) {
	length := math.Hypot(x, y)
	if length < 1e-9 {
		return 0, 0
	}
	return x / length, y / length
}

func scale(x, y, s float64) (float64, float64) {
	return x * s, y * s
}

func clampSpeed(x, y, max float64) (float64, float64) {
	length := math.Hypot(x, y)
	if length <= max || length < 1e-9 {
		return x, y
	}
	f := max / length
	return x * f, y * f
}

func toward(self Agent, tx, ty float64) (float64, float64) {
	sx, sy := self.Position()
	dx, dy := normalize(tx-sx, ty-sy)
	return scale(dx, dy, self.MaxSpeed())
}

// separation returns a velocity pushing self away from neighbors closer
// than the sum of their radii plus margin, weighted by how deep the
// overlap is.
func separation(self Agent, neighbors []Agent, margin float64) (float64, float64) {
	sx, sy := self.Position()
	var ax, ay float64
	for _, n := range neighbors {
		nx, ny := n.Position()
		dx, dy := sx-nx, sy-ny
		dist := math.Hypot(dx, dy)
		minDist := self.Radius() + n.Radius() + margin
		if dist >= minDist || dist < 1e-9 {
			continue
		}
		push := (minDist - dist) / minDist
		ux, uy := normalize(dx, dy)
		ax += ux * push
		ay += uy * push
	}
	return ax, ay
}
