// batch.go - multi-sample generation. Samples are independent runs seeded
// seed, seed+1, ... and are embarrassingly parallel: each owns its latent,
// schedule, and generator, sharing only the read-only model handles.
package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/stablegen/stablegen/envconfig"
	"github.com/stablegen/stablegen/tensor"
)

// GenerateBatch decodes samples images from consecutive seeds. The number
// of concurrent runs is capped by STABLEGEN_NUM_PARALLEL. The per-step
// Progress callback is dropped for batches of more than one, where
// interleaved step counts would be meaningless.
func (p *Pipeline) GenerateBatch(ctx context.Context, req Request, samples int) ([]*tensor.Tensor, error) {
	if samples <= 0 {
		return nil, &ConfigError{Reason: "sample count must be positive"}
	}
	if samples == 1 {
		pixels, err := p.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		return []*tensor.Tensor{pixels}, nil
	}

	results := make([]*tensor.Tensor, samples)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(envconfig.NumParallel())
	for i := range results {
		r := req
		r.Seed = req.Seed + int64(i)
		r.Progress = nil
		g.Go(func() error {
			pixels, err := p.Generate(ctx, r)
			if err != nil {
				return err
			}
			results[i] = pixels
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
