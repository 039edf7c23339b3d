// Package timer implements a hierarchical timing wheel, structured like
// the Linux kernel's, for firing tens of thousands of concurrent game
// timers (ability cooldowns, respawn ticks, session heartbeats) without
// the O(log n) insert/cancel cost a heap-based timer queue would pay at
// that scale.
package timer

import "container/list"

// Bit widths match the reference cascade: a 256-slot near wheel ticking
// once per wheel tick, and four 64-slot far wheels cascading into it.
const (
	tvrBits = 8
	tvrSize = 1 << tvrBits // 256
	tvrMask = tvrSize - 1

	tvnBits = 6
	tvnSize = 1 << tvnBits // 64
	tvnMask = tvnSize - 1
)

// node is one scheduled timer. Cancellation is soft: Remove only flips
// cancelled, because a node's bucket position is an index into a slice the
// wheel doesn't keep a reverse pointer into — removing it from the middle
// of that bucket in O(1) would need per-node list-element handles, which
// is exactly what this package uses (container/list.Element) to make hard
// removal possible; cancelled is kept anyway as a defence against a
// concurrent fire racing a cancel in the same tick.
type node struct {
	id         uint64
	expiry     uint64 // absolute tick this node fires on
	interval   uint64 // 0 for one-shot, else re-armed for this many ticks
	cancelled  bool
	fire       func()
	elem       *list.Element // this node's element within its current bucket
	bucketTV   int           // which tv array currently owns elem (1-5)
	bucketSlot int
}

// wheel is the five-level hierarchical timing wheel itself. currentTick
// advances by exactly one per Advance call; callers drive Advance once per
// timer-service tick interval.
type wheel struct {
	currentTick uint64

	tv1 [tvrSize]list.List // near wheel: one tick per slot
	tv2 [tvnSize]list.List
	tv3 [tvnSize]list.List
	tv4 [tvnSize]list.List
	tv5 [tvnSize]list.List
}

func newWheel() *wheel {
	w := &wheel{}
	for i := range w.tv1 {
		w.tv1[i].Init()
	}
	for i := range w.tv2 {
		w.tv2[i].Init()
	}
	for i := range w.tv3 {
		w.tv3[i].Init()
	}
	for i := range w.tv4 {
		w.tv4[i].Init()
	}
	for i := range w.tv5 {
		w.tv5[i].Init()
	}
	return w
}

// add places n into the correct wheel level for its expiry, relative to
// currentTick. A node that has already expired (or expires this tick) is
// placed in the immediate tv1 slot so the next Advance fires it.
func (w *wheel) add(n *node) {
	idx := int64(n.expiry) - int64(w.currentTick)
	if idx < 0 {
		idx = 0
	}

	switch {
	case idx < tvrSize:
		slot := int(n.expiry) & tvrMask
		n.bucketTV, n.bucketSlot = 1, slot
		n.elem = w.tv1[slot].PushBack(n)
	case idx < 1<<(tvrBits+tvnBits):
		slot := int(n.expiry>>tvrBits) & tvnMask
		n.bucketTV, n.bucketSlot = 2, slot
		n.elem = w.tv2[slot].PushBack(n)
	case idx < 1<<(tvrBits+2*tvnBits):
		slot := int(n.expiry>>(tvrBits+tvnBits)) & tvnMask
		n.bucketTV, n.bucketSlot = 3, slot
		n.elem = w.tv3[slot].PushBack(n)
	case idx < 1<<(tvrBits+3*tvnBits):
		slot := int(n.expiry>>(tvrBits+2*tvnBits)) & tvnMask
		n.bucketTV, n.bucketSlot = 4, slot
		n.elem = w.tv4[slot].PushBack(n)
	default:
		// Clamp absurdly long expiries into the outermost wheel's last
		// slot rather than overflowing; they'll cascade inward correctly
		// once enough ticks pass.
		maxIdx := int64(1)<<(tvrBits+4*tvnBits) - 1
		if idx > maxIdx {
			n.expiry = w.currentTick + uint64(maxIdx)
		}
		slot := int(n.expiry>>(tvrBits+3*tvnBits)) & tvnMask
		n.bucketTV, n.bucketSlot = 5, slot
		n.elem = w.tv5[slot].PushBack(n)
	}
}

func (w *wheel) remove(n *node) {
	n.cancelled = true
	if n.elem == nil {
		return
	}
	bucket := w.bucketList(n.bucketTV, n.bucketSlot)
	bucket.Remove(n.elem)
	n.elem = nil
}

func (w *wheel) bucketList(tv, slot int) *list.List {
	switch tv {
	case 1:
		return &w.tv1[slot]
	case 2:
		return &w.tv2[slot]
	case 3:
		return &w.tv3[slot]
	case 4:
		return &w.tv4[slot]
	default:
		return &w.tv5[slot]
	}
}

// advance moves currentTick forward by one and returns every node that
// expires on the new tick, cascading higher-level buckets down as the near
// wheel wraps around — the same recursive cascade the reference
// implementation uses: tv2 only needs to re-bucket its slot-0 contents
// into tv1 once every 256 ticks, tv3 once every 256*64 ticks, and so on.
func (w *wheel) advance() []*node {
	w.currentTick++
	slot := int(w.currentTick) & tvrMask

	if slot == 0 {
		w.cascade(2, int(w.currentTick>>tvrBits)&tvnMask)
	}

	return w.popSlot(&w.tv1[slot])
}

// cascade re-inserts every node from level tv's slot into the wheel at its
// (now finer-grained) level, and recurses to the next level up if that
// slot also wrapped to zero.
func (w *wheel) cascade(tv, slot int) {
	bucket := w.bucketList(tv, slot)
	var pending []*node
	for e := bucket.Front(); e != nil; e = e.Next() {
		pending = append(pending, e.Value.(*node))
	}
	bucket.Init()

	for _, n := range pending {
		if n.cancelled {
			continue
		}
		w.add(n)
	}

	if slot == 0 && tv < 5 {
		nextSlot := int(w.currentTick>>(tvrBits+uint(tv-1)*tvnBits)) & tvnMask
		w.cascade(tv+1, nextSlot)
	}
}

func (w *wheel) popSlot(bucket *list.List) []*node {
	var expired []*node
	for e := bucket.Front(); e != nil; {
		next := e.Next()
		n := e.Value.(*node)
		bucket.Remove(e)
		n.elem = nil
		if !n.cancelled {
			expired = append(expired, n)
		}
		e = next
	}
	return expired
}
