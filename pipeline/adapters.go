// adapters.go - typed contracts for the three neural networks the pipeline
// drives. Each is an opaque callable over tensors: the pipeline never sees
// weights or architecture, which keeps oracle and mock networks pluggable
// in tests.
package pipeline

import (
	"context"

	"github.com/stablegen/stablegen/tensor"
)

// LatentScale is the fixed constant between the VAE's native latent
// statistics and the unit-variance space the scheduler expects. Encoded
// latents are multiplied by it, latents are divided by it before decode.
// Getting this wrong silently desaturates or oversaturates every output.
const LatentScale = 0.18215

// LatentChannels is the channel count of the latent space.
const LatentChannels = 4

// TextEncoder embeds a tokenized prompt. The returned tensor has a fixed
// sequence length; the same prompt always produces the same embedding.
type TextEncoder interface {
	Encode(ctx context.Context, prompt string) (*tensor.Tensor, error)
}

// Denoiser predicts the noise present in a latent at a given trained
// timestep under the supplied conditioning. control is an optional
// structural conditioning signal fused inside the network call; nil when
// unused. The returned tensor has the latent's shape.
type Denoiser interface {
	Predict(ctx context.Context, latent *tensor.Tensor, timestep int, cond, control *tensor.Tensor) (*tensor.Tensor, error)
}

// LatentCodec wraps the VAE. Encode is deterministic (no sampling noise is
// added at this layer) and returns latents in the VAE's native statistics;
// the pipeline applies LatentScale. Decode expects unscaled latents back.
type LatentCodec interface {
	Encode(ctx context.Context, pixels *tensor.Tensor) (*tensor.Tensor, error)
	Decode(ctx context.Context, latent *tensor.Tensor) (*tensor.Tensor, error)
}

// Models bundles the long-lived, read-only network handles a pipeline
// runs against. They are loaded once and shared by every run; per-run
// mutable state never lives here.
type Models struct {
	TextEncoder TextEncoder
	Denoiser    Denoiser
	Codec       LatentCodec
}
