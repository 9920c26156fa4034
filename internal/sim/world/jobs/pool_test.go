package jobs

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewPoolRejectsZeroWorkers(t *testing.T) {
	if _, err := NewPool(0, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSlotStaysBusyUntilDrained(t *testing.T) {
	p, err := NewPool(2, nil)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close(nil)

	ran := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		slot := p.IdleSlot()
		if slot < 0 {
			t.Fatalf("no idle slot on dispatch %d", i)
		}
		if err := p.Dispatch(slot, Job{Stage: Pass1, Run: func() { ran <- struct{}{} }}); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	<-ran
	<-ran
	if p.IdleSlot() != -1 {
		t.Fatalf("finished but undrained slots must stay busy")
	}
	if err := p.Dispatch(0, Job{}); err == nil {
		t.Fatalf("dispatch to busy slot should fail")
	}

	var stages []Stage
	n := p.Wait(func(r Result) { stages = append(stages, r.Stage) })
	if n != 2 || len(stages) != 2 || p.Busy() != 0 {
		t.Fatalf("wait drained %d busy=%d", n, p.Busy())
	}
	if p.IdleSlot() != 0 {
		t.Fatalf("slot 0 should be idle again")
	}
	st := p.Stats()
	if st.Dispatched[Pass1] != 2 || st.Completed[Pass1] != 2 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestConcurrentJobsBoundedByWorkers(t *testing.T) {
	const workers = 3
	p, _ := NewPool(workers, nil)
	var cur, peak atomic.Int32
	var mu sync.Mutex
	release := make(chan struct{})
	run := func() {
		n := cur.Add(1)
		mu.Lock()
		if n > peak.Load() {
			peak.Store(n)
		}
		mu.Unlock()
		<-release
		cur.Add(-1)
	}
	dispatched := 0
	for i := 0; i < 10; i++ {
		slot := p.IdleSlot()
		if slot < 0 {
			break
		}
		if err := p.Dispatch(slot, Job{Stage: Mesh, Run: run}); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
		dispatched++
	}
	if dispatched != workers {
		t.Fatalf("dispatched=%d want %d", dispatched, workers)
	}
	close(release)
	p.Close(nil)
	if peak.Load() > workers {
		t.Fatalf("peak=%d", peak.Load())
	}
	if p.IdleSlot() != -1 {
		t.Fatalf("closed pool should have no idle slot")
	}
	p.Close(nil)
}

func TestStageString(t *testing.T) {
	if Pass1.String() != "pass1" || Mesh.String() != "mesh" || Stage(9).String() != "stage(9)" {
		t.Fatalf("unexpected names")
	}
}
