// random.go - seeded Gaussian noise for latent initialization.
package tensor

import "math/rand/v2"

// Generator draws reproducible standard-normal noise. Each generation run
// owns exactly one Generator; two runs with the same seed draw identical
// noise sequences.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator seeded deterministically from seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

// Normal fills a new tensor of the given shape with standard-normal draws.
func (g *Generator) Normal(shape ...int) *Tensor {
	t := New(shape...)
	for i := range t.Data {
		t.Data[i] = float32(g.rng.NormFloat64())
	}
	return t
}

// NormalLike is Normal with the shape of t.
func (g *Generator) NormalLike(t *Tensor) *Tensor {
	return g.Normal(t.Shape...)
}
