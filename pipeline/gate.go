package pipeline

import "sync/atomic"

// DetectionGate bounds a handler to one in-flight frame. TryEnter never
// blocks: a frame arriving while the gate is held is dropped by the caller,
// not queued.
type DetectionGate struct {
	busy atomic.Bool
}

func (g *DetectionGate) TryEnter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Leave releases the gate. Callers pair it with a successful TryEnter via
// defer so that every exit path releases exactly once.
func (g *DetectionGate) Leave() {
	if !g.busy.CompareAndSwap(true, false) {
		panic("pipeline: detection gate released while not held")
	}
}

func (g *DetectionGate) Busy() bool {
	return g.busy.Load()
}
