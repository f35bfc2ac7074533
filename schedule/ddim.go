// Package schedule implements the deterministic DDIM noise schedule used by
// the diffusion pipeline: the beta/alpha-bar grid a model was trained with,
// the mapping from a requested inference step count onto that grid, the
// eta=0 step update, and the closed-form forward-diffusion AddNoise used to
// seed image-to-image and inpainting runs.
package schedule

import (
	"fmt"
	"math"

	"github.com/stablegen/stablegen/tensor"
)

// BetaSchedule selects how betas are spaced across the trained grid.
type BetaSchedule string

const (
	// Linear spaces betas evenly between BetaStart and BetaEnd.
	Linear BetaSchedule = "linear"
	// ScaledLinear spaces sqrt(beta) evenly, the schedule Stable Diffusion
	// 1.x and 2.x checkpoints were trained with.
	ScaledLinear BetaSchedule = "scaled_linear"
)

// minVariance guards divisions and square roots at the ends of the schedule
// where alpha-bar approaches 0 or 1.
const minVariance = 1e-8

// Config holds the trained-schedule parameters. The defaults match the
// Stable Diffusion reference checkpoints.
type Config struct {
	TrainSteps  int
	BetaStart   float64
	BetaEnd     float64
	Schedule    BetaSchedule
	StepsOffset int
}

// DefaultConfig returns the Stable Diffusion 1.x training schedule.
func DefaultConfig() Config {
	return Config{
		TrainSteps:  1000,
		BetaStart:   0.00085,
		BetaEnd:     0.012,
		Schedule:    ScaledLinear,
		StepsOffset: 1,
	}
}

// DDIM is a deterministic (eta=0) denoising scheduler. It is cheap to
// construct and must not be shared across concurrent runs once SetTimesteps
// has been called: the selected timestep grid is per-run state.
type DDIM struct {
	config         Config
	alphasCumprod  []float64
	timesteps      []int
	inferenceSteps int
}

// New precomputes the alpha-bar table for the given training schedule.
func New(config Config) (*DDIM, error) {
	if config.TrainSteps <= 0 {
		return nil, fmt.Errorf("schedule: train steps must be positive, got %d", config.TrainSteps)
	}
	if config.BetaStart <= 0 || config.BetaEnd <= config.BetaStart {
		return nil, fmt.Errorf("schedule: invalid beta range [%v, %v]", config.BetaStart, config.BetaEnd)
	}

	betas := make([]float64, config.TrainSteps)
	switch config.Schedule {
	case ScaledLinear:
		start, end := math.Sqrt(config.BetaStart), math.Sqrt(config.BetaEnd)
		for i := range betas {
			b := start + float64(i)/float64(config.TrainSteps-1)*(end-start)
			betas[i] = b * b
		}
	case Linear, "":
		for i := range betas {
			betas[i] = config.BetaStart + float64(i)/float64(config.TrainSteps-1)*(config.BetaEnd-config.BetaStart)
		}
	default:
		return nil, fmt.Errorf("schedule: unknown beta schedule %q", config.Schedule)
	}

	alphasCumprod := make([]float64, config.TrainSteps)
	prod := 1.0
	for i, beta := range betas {
		prod *= 1 - beta
		alphasCumprod[i] = prod
	}

	return &DDIM{config: config, alphasCumprod: alphasCumprod}, nil
}

// SetTimesteps selects n evenly strided timesteps from the trained grid, in
// descending order. The returned slice has exactly n entries and is strictly
// decreasing.
func (s *DDIM) SetTimesteps(n int) ([]int, error) {
	if n <= 0 {
		return nil, fmt.Errorf("schedule: inference steps must be positive, got %d", n)
	}
	if n > s.config.TrainSteps {
		return nil, fmt.Errorf("schedule: inference steps %d exceeds trained steps %d", n, s.config.TrainSteps)
	}

	stride := s.config.TrainSteps / n
	timesteps := make([]int, n)
	for i := range timesteps {
		timesteps[i] = (n-1-i)*stride + s.config.StepsOffset
	}

	// The offset can push the newest timestep past the trained grid when n
	// equals the trained step count. Shift the whole grid back instead of
	// clamping so it stays strictly decreasing.
	if over := timesteps[0] - (s.config.TrainSteps - 1); over > 0 {
		for i := range timesteps {
			timesteps[i] -= over
		}
	}

	s.timesteps = timesteps
	s.inferenceSteps = n
	return timesteps, nil
}

// Timesteps returns the schedule selected by the last SetTimesteps call.
func (s *DDIM) Timesteps() []int { return s.timesteps }

// StartIndex maps an img2img strength in (0, 1] onto the index of the first
// timestep to execute. Strength 1 runs the full schedule; smaller values
// skip the noisiest steps and preserve more of the source image.
func (s *DDIM) StartIndex(strength float64) int {
	start := int(float64(s.inferenceSteps) * (1 - strength))
	if start < 0 {
		start = 0
	}
	if start >= s.inferenceSteps {
		start = s.inferenceSteps - 1
	}
	return start
}

// AlphaBar returns the cumulative retained-signal product at timestep t.
func (s *DDIM) AlphaBar(t int) float64 {
	if t < 0 {
		t = 0
	}
	if t >= len(s.alphasCumprod) {
		t = len(s.alphasCumprod) - 1
	}
	return s.alphasCumprod[t]
}

// Step applies the deterministic DDIM update at timestep t:
//
//	x0    = (sample - sqrt(1-abar_t) * eps) / sqrt(abar_t)
//	prev  = sqrt(abar_prev) * x0 + sqrt(1-abar_prev) * eps
//
// No stochastic noise is added, so repeated runs with identical inputs
// produce identical outputs.
func (s *DDIM) Step(noisePred, sample *tensor.Tensor, t int) *tensor.Tensor {
	stride := s.config.TrainSteps / s.inferenceSteps
	prev := t - stride

	alphaT := s.AlphaBar(t)
	alphaPrev := s.alphasCumprod[0]
	if prev >= 0 {
		alphaPrev = s.AlphaBar(prev)
	}

	// Guard the schedule ends where alpha-bar approaches 0 or 1.
	sqrtAlphaT := math.Sqrt(math.Max(alphaT, minVariance))
	sqrtOneMinusAlphaT := math.Sqrt(math.Max(1-alphaT, minVariance))
	sqrtAlphaPrev := math.Sqrt(math.Max(alphaPrev, minVariance))
	sqrtOneMinusAlphaPrev := math.Sqrt(math.Max(1-alphaPrev, minVariance))

	out := tensor.New(sample.Shape...)
	for i := range sample.Data {
		x0 := (float64(sample.Data[i]) - sqrtOneMinusAlphaT*float64(noisePred.Data[i])) / sqrtAlphaT
		out.Data[i] = float32(sqrtAlphaPrev*x0 + sqrtOneMinusAlphaPrev*float64(noisePred.Data[i]))
	}
	return out
}

// AddNoise applies the closed-form forward diffusion at timestep t:
//
//	noisy = sqrt(abar_t) * original + sqrt(1-abar_t) * noise
//
// The noise tensor is caller-supplied so the whole run stays deterministic
// under a single seeded generator.
func (s *DDIM) AddNoise(original, noise *tensor.Tensor, t int) *tensor.Tensor {
	alphaT := s.AlphaBar(t)
	sqrtAlpha := float32(math.Sqrt(alphaT))
	sqrtOneMinusAlpha := float32(math.Sqrt(1 - alphaT))

	out := original.Clone()
	out.Scale(sqrtAlpha)
	out.AddScaled(sqrtOneMinusAlpha, noise)
	return out
}
