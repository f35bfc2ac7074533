// guidance.go - pure numeric helpers: classifier-free guidance combination
// and latent mask compositing.
package pipeline

import (
	"github.com/stablegen/stablegen/tensor"
)

// applyGuidance combines unconditional and conditional noise predictions:
//
//	eps = eps_uncond + scale * (eps_cond - eps_uncond)
//
// uncond is consumed and returned as the combined prediction.
func applyGuidance(uncond, cond *tensor.Tensor, scale float32) *tensor.Tensor {
	diff := tensor.Sub(cond, uncond)
	uncond.AddScaled(scale, diff)
	return uncond
}

// blendMask composites two latents through a [1, 1, h, w] mask broadcast
// over channels:
//
//	out = mask * repainted + (1 - mask) * preserved
//
// The result is written into repainted, which is returned.
func blendMask(repainted, preserved, mask *tensor.Tensor) *tensor.Tensor {
	c := repainted.Shape[1]
	plane := mask.Numel()
	for ch := 0; ch < c; ch++ {
		off := ch * plane
		for i, m := range mask.Data {
			repainted.Data[off+i] = m*repainted.Data[off+i] + (1-m)*preserved.Data[off+i]
		}
	}
	return repainted
}
