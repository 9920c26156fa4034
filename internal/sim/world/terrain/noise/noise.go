// Package noise provides the fractal noise fields terrain generation samples.
package noise

import (
	"sync"

	"github.com/ojrac/opensimplex-go"
)

// Provider fills dense boxes of fractal noise.
//
// The returned slice is indexed (i0*size[1]+i1)*size[2]+i2 and belongs to the
// caller until it is handed back with Release. Results depend only on the
// arguments.
type Provider interface {
	Fractal(offset, size [3]int, frequency float32, octaves int, seed int64) []float32
	Release(buf []float32)
}

const (
	lacunarity = 2.0
	gain       = 0.5
)

// Simplex is fBm over 3D OpenSimplex noise. Output is roughly in [-1,1].
// It is safe for concurrent use.
type Simplex struct {
	mu    sync.Mutex
	gens  map[int64]opensimplex.Noise
	pools map[int]*sync.Pool
}

func NewSimplex() *Simplex {
	return &Simplex{
		gens:  map[int64]opensimplex.Noise{},
		pools: map[int]*sync.Pool{},
	}
}

func (s *Simplex) generator(seed int64) opensimplex.Noise {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gens[seed]
	if !ok {
		g = opensimplex.New(seed)
		s.gens[seed] = g
	}
	return g
}

func (s *Simplex) pool(n int) *sync.Pool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[n]
	if !ok {
		p = &sync.Pool{New: func() any {
			b := make([]float32, n)
			return &b
		}}
		s.pools[n] = p
	}
	return p
}

func (s *Simplex) Fractal(offset, size [3]int, frequency float32, octaves int, seed int64) []float32 {
	n := size[0] * size[1] * size[2]
	if n <= 0 {
		return nil
	}
	if octaves < 1 {
		octaves = 1
	}
	out := *(s.pool(n).Get().(*[]float32))
	g := s.generator(seed)

	var bound float64
	amp := 1.0
	for o := 0; o < octaves; o++ {
		bound += amp
		amp *= gain
	}
	norm := 1 / bound
	freq := float64(frequency)

	i := 0
	for a := 0; a < size[0]; a++ {
		pa := float64(offset[0]+a) * freq
		for b := 0; b < size[1]; b++ {
			pb := float64(offset[1]+b) * freq
			for c := 0; c < size[2]; c++ {
				pc := float64(offset[2]+c) * freq
				var sum float64
				amp, mul := 1.0, 1.0
				for o := 0; o < octaves; o++ {
					sum += amp * g.Eval3(pa*mul, pb*mul, pc*mul)
					amp *= gain
					mul *= lacunarity
				}
				out[i] = float32(sum * norm)
				i++
			}
		}
	}
	return out
}

func (s *Simplex) Release(buf []float32) {
	if len(buf) == 0 {
		return
	}
	s.pool(len(buf)).Put(&buf)
}
