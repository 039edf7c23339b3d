package spatial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testObj struct {
	id   uint64
	x, y float64
}

func (o *testObj) GridObjectID() uint64        { return o.id }
func (o *testObj) GridPosition() (float64, float64) { return o.x, o.y }

func TestGridAddAndQueryRange(t *testing.T) {
	g := New(100)
	a := &testObj{id: 1, x: 0, y: 0}
	b := &testObj{id: 2, x: 40, y: 0}
	c := &testObj{id: 3, x: 5000, y: 5000}
	g.Add(a)
	g.Add(b)
	g.Add(c)

	results := g.QueryRange(0, 0, 50)
	require.Len(t, results, 2)
	ids := map[uint64]bool{}
	for _, r := range results {
		ids[r.GridObjectID()] = true
	}
	require.True(t, ids[1])
	require.True(t, ids[2])
}

func TestGridUpdateMovesOnlyOnCellCrossing(t *testing.T) {
	g := New(100)
	obj := &testObj{id: 1, x: 10, y: 10}
	g.Add(obj)

	obj.x = 20 // still within the same 100-unit cell
	g.Update(obj)
	require.Len(t, g.QueryRange(20, 10, 5), 1)

	obj.x = 250 // crosses into a different cell
	g.Update(obj)
	results := g.QueryRange(250, 10, 5)
	require.Len(t, results, 1)
	require.Empty(t, g.QueryRange(20, 10, 5))
}

func TestGridRemoveSwapAndPop(t *testing.T) {
	g := New(100)
	a := &testObj{id: 1, x: 0, y: 0}
	b := &testObj{id: 2, x: 10, y: 10}
	g.Add(a)
	g.Add(b)
	require.Equal(t, 2, g.Count())

	g.Remove(1)
	require.Equal(t, 1, g.Count())
	results := g.QueryRange(0, 0, 100)
	require.Len(t, results, 1)
	require.Equal(t, uint64(2), results[0].GridObjectID())
}

func TestGridClear(t *testing.T) {
	g := New(50)
	g.Add(&testObj{id: 1, x: 1, y: 1})
	g.Clear()
	require.Equal(t, 0, g.Count())
	require.Empty(t, g.QueryRange(0, 0, 1000))
}
