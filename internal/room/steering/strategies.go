package steering

// CellBased steers straight at the target, relying entirely on the room's
// spatial grid (not this strategy) to keep per-tick neighbor lookups
// cheap. It ignores neighbors outright — the simplest strategy in the
// panel, suited to slow, low-density monsters where collisions are rare
// enough not to need active avoidance.
type CellBased struct{}

func (CellBased) Steer(self Agent, _ []Agent, tx, ty float64, targetOK bool) (float64, float64) {
	if !targetOK {
		return 0, 0
	}
	return toward(self, tx, ty)
}

// FluidStacking lets agents converge on the same target and overlap
// slightly, like a fluid being pushed into a container, with only a weak
// separation term to keep them from perfectly stacking.
type FluidStacking struct {
	SeparationWeight float64
}

func (f FluidStacking) Steer(self Agent, neighbors []Agent, tx, ty float64, targetOK bool) (float64, float64) {
	w := f.SeparationWeight
	if w == 0 {
		w = 0.3
	}
	var vx, vy float64
	if targetOK {
		vx, vy = toward(self, tx, ty)
	}
	sx, sy := separation(self, neighbors, 4)
	vx += sx * w * self.MaxSpeed()
	vy += sy * w * self.MaxSpeed()
	return clampSpeed(vx, vy, self.MaxSpeed())
}

// SmartFlocking blends seek, separation, and alignment-with-neighbors —
// classic boids, tuned for a swarm that should move as a loose group
// rather than a single-file line toward the target.
type SmartFlocking struct {
	SeparationWeight float64
	AlignmentWeight  float64
	SeekWeight       float64
}

func (s SmartFlocking) Steer(self Agent, neighbors []Agent, tx, ty float64, targetOK bool) (float64, float64) {
	sepW, aliW, seekW := s.SeparationWeight, s.AlignmentWeight, s.SeekWeight
	if sepW == 0 {
		sepW = 1.0
	}
	if aliW == 0 {
		aliW = 0.5
	}
	if seekW == 0 {
		seekW = 0.8
	}

	var vx, vy float64
	if targetOK {
		tvx, tvy := toward(self, tx, ty)
		vx += tvx * seekW
		vy += tvy * seekW
	}

	sepX, sepY := separation(self, neighbors, 2)
	vx += sepX * sepW * self.MaxSpeed()
	vy += sepY * sepW * self.MaxSpeed()

	if len(neighbors) > 0 {
		var avgVX, avgVY float64
		for _, n := range neighbors {
			nvx, nvy := n.Velocity()
			avgVX += nvx
			avgVY += nvy
		}
		avgVX /= float64(len(neighbors))
		avgVY /= float64(len(neighbors))
		vx += avgVX * aliW
		vy += avgVY * aliW
	}

	return clampSpeed(vx, vy, self.MaxSpeed())
}

// StrictSeparation treats overlap as unacceptable: separation always wins
// over seeking the target, used for large or high-value units (bosses)
// that should never visibly clip through smaller ones.
type StrictSeparation struct{}

func (StrictSeparation) Steer(self Agent, neighbors []Agent, tx, ty float64, targetOK bool) (float64, float64) {
	sx, sy := separation(self, neighbors, 8)
	if sx != 0 || sy != 0 {
		return clampSpeed(sx*self.MaxSpeed(), sy*self.MaxSpeed(), self.MaxSpeed())
	}
	if !targetOK {
		return 0, 0
	}
	return toward(self, tx, ty)
}

// SurroundingFlocking steers toward a point offset from the target by the
// agent's own radius, spread around the target's perimeter rather than
// its center — the pattern a swarm converging to melee-range a single
// player needs so they don't all path onto the same point.
type SurroundingFlocking struct{}

func (SurroundingFlocking) Steer(self Agent, neighbors []Agent, tx, ty float64, targetOK bool) (float64, float64) {
	if !targetOK {
		return 0, 0
	}
	sx, sy := self.Position()
	dx, dy := normalize(sx-tx, sy-ty)
	if dx == 0 && dy == 0 {
		dx, dy = 1, 0 // degenerate case: agent is exactly on the target
	}
	standoff := self.Radius() * 2
	ringX, ringY := tx+dx*standoff, ty+dy*standoff

	vx, vy := toward(self, ringX, ringY)
	sepX, sepY := separation(self, neighbors, 2)
	vx += sepX * self.MaxSpeed() * 0.6
	vy += sepY * self.MaxSpeed() * 0.6
	return clampSpeed(vx, vy, self.MaxSpeed())
}
