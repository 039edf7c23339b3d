// Package spatial implements a sparse cell-hash spatial index for O(1)
// amortized nearest-neighbor / range queries over moving game objects,
// without the dense pre-allocated array a fixed-size world map would need.
package spatial

import "math"

// Object is anything a Grid can index: a stable identity plus a position
// it reports fresh on every Update call.
type Object interface {
	GridObjectID() uint64
	GridPosition() (x, y float64)
}

type cellKey int64

func keyFor(cx, cy int32) cellKey {
	return cellKey(int64(cx)<<32 | int64(uint32(cy)))
}

// entry tracks an object's last-known cell so Update can detect whether it
// actually crossed a cell boundary before paying for a bucket move.
type entry struct {
	obj Object
	key cellKey
}

// Grid buckets objects into cellSize x cellSize square cells, keyed
// sparsely so empty regions of an otherwise enormous world cost nothing.
type Grid struct {
	cellSize float64
	cells    map[cellKey][]Object
	tracked  map[uint64]*entry
}

// New builds a Grid with the given cell size in world units.
func New(cellSize float64) *Grid {
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]Object),
		tracked:  make(map[uint64]*entry),
	}
}

func (g *Grid) cellOf(x, y float64) (int32, int32) {
	return int32(floorDiv(x, g.cellSize)), int32(floorDiv(y, g.cellSize))
}

func floorDiv(v, size float64) float64 {
	return math.Floor(v / size)
}

// Add inserts obj into the grid at its current position. Re-adding an
// already-tracked object is a no-op; use Update to move it.
func (g *Grid) Add(obj Object) {
	id := obj.GridObjectID()
	if _, ok := g.tracked[id]; ok {
		return
	}
	x, y := obj.GridPosition()
	cx, cy := g.cellOf(x, y)
	key := keyFor(cx, cy)

	g.cells[key] = append(g.cells[key], obj)
	g.tracked[id] = &entry{obj: obj, key: key}
}

// Remove deletes obj from the grid using its cached cell key, via
// swap-and-pop so removal from a large bucket stays O(1) rather than O(n).
func (g *Grid) Remove(id uint64) {
	e, ok := g.tracked[id]
	if !ok {
		return
	}
	g.removeFromBucket(e.key, id)
	delete(g.tracked, id)
}

func (g *Grid) removeFromBucket(key cellKey, id uint64) {
	bucket := g.cells[key]
	for i, o := range bucket {
		if o.GridObjectID() == id {
			last := len(bucket) - 1
			bucket[i] = bucket[last]
			bucket = bucket[:last]
			break
		}
	}
	if len(bucket) == 0 {
		delete(g.cells, key)
	} else {
		g.cells[key] = bucket
	}
}

// Update re-reads obj's position and moves it to a new cell only if it
// actually crossed a cell boundary since the last Update/Add — the O(1)
// hot path every moving object's tick hits.
func (g *Grid) Update(obj Object) {
	id := obj.GridObjectID()
	e, ok := g.tracked[id]
	if !ok {
		g.Add(obj)
		return
	}

	x, y := obj.GridPosition()
	cx, cy := g.cellOf(x, y)
	newKey := keyFor(cx, cy)
	if newKey == e.key {
		return
	}

	g.removeFromBucket(e.key, id)
	g.cells[newKey] = append(g.cells[newKey], obj)
	e.key = newKey
}

// Clear empties the grid.
func (g *Grid) Clear() {
	g.cells = make(map[cellKey][]Object)
	g.tracked = make(map[uint64]*entry)
}

// Count reports how many objects the grid currently tracks.
func (g *Grid) Count() int { return len(g.tracked) }

// QueryRange returns every object within radius of (x, y), visiting only
// the bounding rectangle of cells the radius can reach and filtering by
// true squared distance once inside.
func (g *Grid) QueryRange(x, y, radius float64) []Object {
	minCX, minCY := g.cellOf(x-radius, y-radius)
	maxCX, maxCY := g.cellOf(x+radius, y+radius)
	r2 := radius * radius

	var results []Object
	for cx := minCX; cx <= maxCX; cx++ {
		for cy := minCY; cy <= maxCY; cy++ {
			bucket := g.cells[keyFor(cx, cy)]
			for _, obj := range bucket {
				ox, oy := obj.GridPosition()
				dx, dy := ox-x, oy-y
				if dx*dx+dy*dy <= r2 {
					results = append(results, obj)
				}
			}
		}
	}
	return results
}
