// Package jobs runs chunk generation and meshing work on a fixed set of worker slots.
//
// The frame goroutine is the only caller of IdleSlot, Dispatch and Drain. A
// slot stays busy from Dispatch until Drain hands its result back, so at most
// one unconsumed result exists per slot and workers never block on completion.
package jobs

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"infinitus.ai/internal/sim/world/chunk"
)

type Stage uint8

const (
	Pass1 Stage = iota
	Pass2
	Mesh

	Stages = 3
)

func (s Stage) String() string {
	switch s {
	case Pass1:
		return "pass1"
	case Pass2:
		return "pass2"
	case Mesh:
		return "mesh"
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

type Job struct {
	Stage Stage
	Chunk *chunk.Chunk
	Run   func()
}

type Result struct {
	Slot     int
	Stage    Stage
	Chunk    *chunk.Chunk
	Duration time.Duration
}

type Stats struct {
	Workers    int
	Busy       int
	Dispatched [Stages]uint64
	Completed  [Stages]uint64
}

type slot struct {
	busy     atomic.Bool
	launched bool
	jobs     chan Job
}

type Pool struct {
	logger *log.Logger
	slots  []*slot
	done   chan Result
	wg     sync.WaitGroup

	busy       atomic.Int32
	dispatched [Stages]atomic.Uint64
	completed  [Stages]atomic.Uint64
	closed     atomic.Bool
}

func NewPool(workers int, logger *log.Logger) (*Pool, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be > 0 (got %d)", workers)
	}
	p := &Pool{
		logger: logger,
		slots:  make([]*slot, workers),
		done:   make(chan Result, workers),
	}
	for i := range p.slots {
		s := &slot{jobs: make(chan Job, 1)}
		p.slots[i] = s
		p.wg.Add(1)
		go p.work(i, s)
	}
	return p, nil
}

func (p *Pool) work(i int, s *slot) {
	defer p.wg.Done()
	for j := range s.jobs {
		start := time.Now()
		if j.Run != nil {
			j.Run()
		}
		p.done <- Result{Slot: i, Stage: j.Stage, Chunk: j.Chunk, Duration: time.Since(start)}
	}
}

func (p *Pool) Workers() int { return len(p.slots) }

// Busy counts slots whose result has not been drained yet.
func (p *Pool) Busy() int { return int(p.busy.Load()) }

// IdleSlot returns the first slot that is not busy, or -1.
func (p *Pool) IdleSlot() int {
	if p.closed.Load() {
		return -1
	}
	for i, s := range p.slots {
		if !s.busy.Load() {
			return i
		}
	}
	return -1
}

// Dispatch hands j to an idle slot.
func (p *Pool) Dispatch(i int, j Job) error {
	if p.closed.Load() {
		return fmt.Errorf("pool closed")
	}
	if i < 0 || i >= len(p.slots) {
		return fmt.Errorf("slot %d out of range", i)
	}
	s := p.slots[i]
	if !s.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("slot %d busy", i)
	}
	if !s.launched {
		s.launched = true
		p.printf("slot %d first job stage=%s", i, j.Stage)
	}
	p.busy.Add(1)
	p.dispatched[j.Stage].Add(1)
	s.jobs <- j
	return nil
}

// Drain consumes finished results without blocking and frees their slots.
func (p *Pool) Drain(fn func(Result)) int {
	n := 0
	for {
		select {
		case r := <-p.done:
			p.finish(r, fn)
			n++
		default:
			return n
		}
	}
}

// Wait blocks until every dispatched job has finished and been handed to fn.
func (p *Pool) Wait(fn func(Result)) int {
	n := 0
	for p.busy.Load() > 0 {
		p.finish(<-p.done, fn)
		n++
	}
	return n
}

// WaitOne blocks for a single result when any slot is busy. It reports whether one was handled.
func (p *Pool) WaitOne(fn func(Result)) bool {
	if p.busy.Load() == 0 {
		return false
	}
	p.finish(<-p.done, fn)
	return true
}

func (p *Pool) finish(r Result, fn func(Result)) {
	p.completed[r.Stage].Add(1)
	if fn != nil {
		fn(r)
	}
	p.slots[r.Slot].busy.Store(false)
	p.busy.Add(-1)
}

// Close waits for in-flight jobs and stops the workers. Safe to call twice.
func (p *Pool) Close(fn func(Result)) {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.Wait(fn)
	for _, s := range p.slots {
		close(s.jobs)
	}
	p.wg.Wait()
}

func (p *Pool) Stats() Stats {
	st := Stats{Workers: len(p.slots), Busy: p.Busy()}
	for i := 0; i < Stages; i++ {
		st.Dispatched[i] = p.dispatched[i].Load()
		st.Completed[i] = p.completed[i].Load()
	}
	return st
}

func (p *Pool) printf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
