package world

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// StaticObserver never moves.
type StaticObserver struct {
	Pos mgl32.Vec3
}

func (o StaticObserver) ObserverPosition() mgl32.Vec3 { return o.Pos }

// MovableObserver is moved by another goroutine (a viewer or a test).
type MovableObserver struct {
	mu  sync.Mutex
	pos mgl32.Vec3
}

func NewMovableObserver(p mgl32.Vec3) *MovableObserver { return &MovableObserver{pos: p} }

func (o *MovableObserver) Set(p mgl32.Vec3) {
	o.mu.Lock()
	o.pos = p
	o.mu.Unlock()
}

func (o *MovableObserver) ObserverPosition() mgl32.Vec3 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pos
}

// FlyingObserver moves a fixed step along Heading on every poll, circling
// around Start when Radius is positive.
type FlyingObserver struct {
	Start   mgl32.Vec3
	Heading mgl32.Vec3 // world units per poll
	Radius  float32

	mu    sync.Mutex
	polls int
}

func (o *FlyingObserver) ObserverPosition() mgl32.Vec3 {
	o.mu.Lock()
	n := o.polls
	o.polls++
	o.mu.Unlock()
	return o.At(n)
}

// At is the position after n polls.
func (o *FlyingObserver) At(n int) mgl32.Vec3 {
	step := o.Heading.Len() * float32(n)
	if o.Radius <= 0 {
		return o.Start.Add(o.Heading.Mul(float32(n)))
	}
	a := step / o.Radius
	rot := mgl32.Rotate3DY(a)
	off := rot.Mul3x1(mgl32.Vec3{o.Radius, 0, 0})
	return o.Start.Add(off).Add(mgl32.Vec3{0, o.Heading.Y() * float32(n), 0})
}
