// Package pipeline implements the latent-diffusion inference core: prompt
// conditioning, the scheduled denoising loop with classifier-free guidance,
// and the latent compositing behind image-to-image and inpainting.
//
// A Pipeline holds only the shared read-only model handles; every call to
// Run or Generate owns its latent, schedule, and noise generator, so
// independent runs may execute concurrently.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stablegen/stablegen/schedule"
	"github.com/stablegen/stablegen/tensor"
)

// Pipeline drives the three networks through the denoising schedule.
type Pipeline struct {
	models   Models
	schedule schedule.Config
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSchedule overrides the trained noise schedule parameters.
func WithSchedule(config schedule.Config) Option {
	return func(p *Pipeline) {
		p.schedule = config
	}
}

// New builds a pipeline around the given model handles.
func New(models Models, opts ...Option) (*Pipeline, error) {
	if models.TextEncoder == nil || models.Denoiser == nil || models.Codec == nil {
		return nil, &ConfigError{Reason: "text encoder, denoiser, and codec are all required"}
	}

	p := &Pipeline{models: models, schedule: schedule.DefaultConfig()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Request describes a single generation. SourceImage switches the run to
// image-to-image; SourceImage plus Mask switches it to inpainting. Control
// is an optional structural conditioning tensor passed through to the
// denoiser on every step.
type Request struct {
	Prompt         string
	NegativePrompt string
	Steps          int
	GuidanceScale  float32
	Seed           int64
	Width          int
	Height         int

	SourceImage *tensor.Tensor
	Mask        *tensor.Tensor
	Strength    float64
	Control     *tensor.Tensor

	// Progress, when set, is called after each completed step.
	Progress func(step, total int)
}

func (r *Request) mode() string {
	switch {
	case r.Mask != nil:
		return "inpaint"
	case r.SourceImage != nil:
		return "img2img"
	default:
		return "txt2img"
	}
}

// applyDefaults fills zero-valued request fields.
func (r *Request) applyDefaults() {
	if r.Steps == 0 {
		r.Steps = 30
	}
	if r.GuidanceScale == 0 {
		r.GuidanceScale = 7.5
	}
	if r.Width == 0 {
		r.Width = 512
	}
	if r.Height == 0 {
		r.Height = 512
	}
	if r.Strength == 0 {
		r.Strength = 1
	}
}

func (r *Request) validate() error {
	if r.Prompt == "" {
		return &ConfigError{Reason: "prompt is required"}
	}
	if r.Steps <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("steps must be positive, got %d", r.Steps)}
	}
	if r.GuidanceScale < 1 {
		return &ConfigError{Reason: fmt.Sprintf("guidance scale must be >= 1, got %g", r.GuidanceScale)}
	}
	if r.Width <= 0 || r.Height <= 0 || r.Width%8 != 0 || r.Height%8 != 0 {
		return &ConfigError{Reason: fmt.Sprintf("width and height must be positive multiples of 8, got %dx%d", r.Width, r.Height)}
	}
	if r.Strength <= 0 || r.Strength > 1 {
		return &ConfigError{Reason: fmt.Sprintf("strength must be in (0, 1], got %g", r.Strength)}
	}
	if r.Mask != nil && r.SourceImage == nil {
		return &ConfigError{Reason: "inpainting requires a source image"}
	}
	return nil
}

// Run executes the denoising loop and returns the final latent at the end
// of the schedule. Most callers want Generate, which also decodes.
func (p *Pipeline) Run(ctx context.Context, req Request) (*tensor.Tensor, error) {
	req.applyDefaults()
	if err := req.validate(); err != nil {
		return nil, err
	}

	sched, err := schedule.New(p.schedule)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	timesteps, err := sched.SetTimesteps(req.Steps)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}

	latentH, latentW := req.Height/8, req.Width/8
	latentShape := []int{1, LatentChannels, latentH, latentW}

	cond, uncond, err := p.encodePrompts(ctx, &req)
	if err != nil {
		return nil, err
	}

	// Fix the unmasked reference and the starting point before the loop.
	var sourceLatent *tensor.Tensor
	if req.SourceImage != nil {
		sourceLatent, err = p.encodeSource(ctx, req.SourceImage, latentShape)
		if err != nil {
			return nil, err
		}
		timesteps = timesteps[sched.StartIndex(req.Strength):]
	}
	if req.Mask != nil {
		if want := []int{1, 1, latentH, latentW}; !slices.Equal(req.Mask.Shape, want) {
			return nil, &ShapeError{What: "mask", Want: want, Got: req.Mask.Shape}
		}
	}

	gen := tensor.NewGenerator(req.Seed)
	var latent *tensor.Tensor
	if sourceLatent != nil {
		latent = sched.AddNoise(sourceLatent, gen.NormalLike(sourceLatent), timesteps[0])
	} else {
		latent = gen.Normal(latentShape...)
	}

	slog.Info("generate", "mode", req.mode(), "steps", len(timesteps), "guidance", req.GuidanceScale,
		"seed", req.Seed, "size", fmt.Sprintf("%dx%d", req.Width, req.Height))
	start := time.Now()

	for i, t := range timesteps {
		// Cancellation point between steps; a single step is atomic.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		eps, err := p.predictNoise(ctx, &req, latent, t, cond, uncond, i)
		if err != nil {
			return nil, err
		}

		latent = sched.Step(eps, latent, t)

		// Inpainting re-injects the correctly-noised source into the
		// preserved region on every step, not only at the end, so the
		// unmasked content always matches the noise level the next
		// denoiser call expects.
		if req.Mask != nil {
			preserved := sched.AddNoise(sourceLatent, gen.NormalLike(sourceLatent), t)
			latent = blendMask(latent, preserved, req.Mask)
		}

		if err := latent.CheckFinite(); err != nil {
			return nil, &NumericError{Step: i, Err: err}
		}

		slog.Debug("denoise", "step", i+1, "total", len(timesteps), "timestep", t)
		if req.Progress != nil {
			req.Progress(i+1, len(timesteps))
		}
	}

	slog.Info("denoised", "steps", len(timesteps), "in", time.Since(start).Round(time.Millisecond))
	return latent, nil
}

// Generate runs the pipeline and decodes the final latent to a pixel
// tensor in [-1, 1].
func (p *Pipeline) Generate(ctx context.Context, req Request) (*tensor.Tensor, error) {
	latent, err := p.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	unscaled := latent.Clone()
	unscaled.Scale(1 / LatentScale)
	pixels, err := p.models.Codec.Decode(ctx, unscaled)
	if err != nil {
		return nil, &AdapterError{Adapter: "codec", Step: -1, Err: err}
	}
	if err := pixels.CheckFinite(); err != nil {
		return nil, &NumericError{Step: -1, Err: err}
	}
	return pixels, nil
}

// encodePrompts embeds the prompt and, when guidance is enabled, the
// negative (or empty) prompt. Both are computed once per run and reused
// for every step.
func (p *Pipeline) encodePrompts(ctx context.Context, req *Request) (cond, uncond *tensor.Tensor, err error) {
	cond, err = p.models.TextEncoder.Encode(ctx, req.Prompt)
	if err != nil {
		return nil, nil, &AdapterError{Adapter: "text encoder", Step: -1, Err: err}
	}

	if req.GuidanceScale > 1 {
		uncond, err = p.models.TextEncoder.Encode(ctx, req.NegativePrompt)
		if err != nil {
			return nil, nil, &AdapterError{Adapter: "text encoder", Step: -1, Err: err}
		}
		if !cond.SameShape(uncond) {
			return nil, nil, &ShapeError{What: "unconditional embedding", Want: cond.Shape, Got: uncond.Shape}
		}
	}
	return cond, uncond, nil
}

// encodeSource encodes the source image into the scaled latent space and
// checks it against the run's latent shape.
func (p *Pipeline) encodeSource(ctx context.Context, pixels *tensor.Tensor, latentShape []int) (*tensor.Tensor, error) {
	latent, err := p.models.Codec.Encode(ctx, pixels)
	if err != nil {
		return nil, &AdapterError{Adapter: "codec", Step: -1, Err: err}
	}
	latent.Scale(LatentScale)

	if !slices.Equal(latent.Shape, latentShape) {
		return nil, &ShapeError{What: "source latent", Want: latentShape, Got: latent.Shape}
	}
	return latent, nil
}

// predictNoise issues the denoiser call(s) for one step. With guidance
// enabled the two branches are independent and run concurrently; their
// ordering does not affect the combined result.
func (p *Pipeline) predictNoise(ctx context.Context, req *Request, latent *tensor.Tensor, t int, cond, uncond *tensor.Tensor, step int) (*tensor.Tensor, error) {
	if req.GuidanceScale <= 1 {
		eps, err := p.models.Denoiser.Predict(ctx, latent, t, cond, req.Control)
		if err != nil {
			return nil, &AdapterError{Adapter: "denoiser", Step: step, Err: err}
		}
		if !eps.SameShape(latent) {
			return nil, &ShapeError{What: "noise prediction", Want: latent.Shape, Got: eps.Shape}
		}
		return eps, nil
	}

	var epsCond, epsUncond *tensor.Tensor
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		epsCond, err = p.models.Denoiser.Predict(gctx, latent, t, cond, req.Control)
		return err
	})
	g.Go(func() error {
		var err error
		epsUncond, err = p.models.Denoiser.Predict(gctx, latent, t, uncond, req.Control)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, &AdapterError{Adapter: "denoiser", Step: step, Err: err}
	}
	if !epsCond.SameShape(latent) || !epsUncond.SameShape(latent) {
		return nil, &ShapeError{What: "noise prediction", Want: latent.Shape, Got: epsCond.Shape}
	}

	return applyGuidance(epsUncond, epsCond, req.GuidanceScale), nil
}
