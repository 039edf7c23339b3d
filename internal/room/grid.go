package room

import (
	"github.com/forgenet/forgenet/internal/room/steering"
	"github.com/forgenet/forgenet/internal/spatial"
)

// adaptiveGrid wraps spatial.Grid with GameObject-typed methods, doing the
// gridAdapter wrap/unwrap so the rest of this package never has to think
// about spatial.Object directly.
type adaptiveGrid struct {
	g *spatial.Grid
}

func newAdaptiveGrid(cellSize float64) *adaptiveGrid {
	return &adaptiveGrid{g: spatial.New(cellSize)}
}

func (a *adaptiveGrid) add(obj GameObject)    { a.g.Add(gridAdapter{obj}) }
func (a *adaptiveGrid) update(obj GameObject) { a.g.Update(gridAdapter{obj}) }
func (a *adaptiveGrid) remove(id uint64)      { a.g.Remove(id) }
func (a *adaptiveGrid) count() int            { return a.g.Count() }

// neighborsWithin returns every object within radius of (x, y), excluding
// excludeID (typically the querying object itself), wrapped as
// steering.Agent via the GameObject's own method set.
func (a *adaptiveGrid) neighborsWithin(x, y, radius float64, excludeID uint64) []steering.Agent {
	results := a.g.QueryRange(x, y, radius)
	agents := make([]steering.Agent, 0, len(results))
	for _, obj := range results {
		adapter := obj.(gridAdapter)
		if adapter.GameObject.ObjectID() == excludeID {
			continue
		}
		agents = append(agents, adapter.GameObject)
	}
	return agents
}

// QueryRange exposes raw GameObject results for gameplay-layer helpers
// (GetMonstersInRange, GetNearestPlayer) built on top of a Room.
func (a *adaptiveGrid) QueryRange(x, y, radius float64) []GameObject {
	results := a.g.QueryRange(x, y, radius)
	objs := make([]GameObject, 0, len(results))
	for _, obj := range results {
		objs = append(objs, obj.(gridAdapter).GameObject)
	}
	return objs
}
