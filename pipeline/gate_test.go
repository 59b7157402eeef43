package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGateExclusive(t *testing.T) {
	var g DetectionGate

	if !g.TryEnter() {
		t.Fatal("first TryEnter should succeed")
	}
	if g.TryEnter() {
		t.Fatal("second TryEnter while held should fail")
	}
	if !g.Busy() {
		t.Error("gate should report busy while held")
	}

	g.Leave()

	if g.Busy() {
		t.Error("gate should not be busy after Leave")
	}
	if !g.TryEnter() {
		t.Fatal("TryEnter after Leave should succeed")
	}
	g.Leave()
}

func TestGateConcurrentTryEnter(t *testing.T) {
	var g DetectionGate
	var winners atomic.Int32

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if g.TryEnter() {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("%d goroutines entered the gate, want exactly 1", got)
	}
}

func TestGateLeaveWithoutEnterPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic when releasing an unheld gate")
		}
	}()

	var g DetectionGate
	g.Leave()
}
