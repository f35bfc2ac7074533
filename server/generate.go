// generate.go - the /api/generate handler: decode request images, run the
// pipeline, stream progress, return base64 PNGs.
package server

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stablegen/stablegen/api"
	"github.com/stablegen/stablegen/imageproc"
	"github.com/stablegen/stablegen/pipeline"
	"github.com/stablegen/stablegen/tensor"
)

// GenerateHandler streams one generation. Progress lines carry completed
// and total step counts; the final line carries the images.
func (s *Server) GenerateHandler(c *gin.Context) {
	var req api.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := uuid.New().String()
	slog.Info("generate request", "id", id, "steps", req.Steps, "samples", req.Samples)

	preq, err := buildRequest(&req)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	if err := s.sem.Acquire(c.Request.Context(), 1); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	samples := req.Samples
	if samples <= 0 {
		samples = 1
	}

	ctx := c.Request.Context()
	ch := make(chan any)
	go func() {
		defer close(ch)
		defer s.sem.Release(1)
		start := time.Now()

		// Stream stops reading once the client disconnects; an unguarded
		// send would pin this goroutine and its admission slot forever.
		send := func(v any) {
			select {
			case ch <- v:
			case <-ctx.Done():
			}
		}

		if samples == 1 {
			preq.Progress = func(step, total int) {
				send(api.GenerateResponse{Completed: step, Total: total})
			}
		}

		pixels, err := s.pipeline.GenerateBatch(ctx, *preq, samples)
		if err != nil {
			slog.Error("generate failed", "id", id, "error", err)
			send(gin.H{"error": err.Error()})
			return
		}

		images := make([]string, len(pixels))
		for i, p := range pixels {
			images[i], err = encodePNG(p)
			if err != nil {
				send(gin.H{"error": err.Error()})
				return
			}
		}

		slog.Info("generate done", "id", id, "samples", samples, "in", time.Since(start).Round(time.Millisecond))
		send(api.GenerateResponse{Done: true, Images: images})
	}()

	streamResponse(c, ch)
}

// buildRequest converts the wire request into a pipeline request, decoding
// the optional source image and mask.
func buildRequest(req *api.GenerateRequest) (*pipeline.Request, error) {
	preq := &pipeline.Request{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Steps:          req.Steps,
		GuidanceScale:  req.GuidanceScale,
		Seed:           req.Seed,
		Width:          req.Width,
		Height:         req.Height,
		Strength:       req.Strength,
	}

	if req.Image != "" {
		img, err := decodeImage(req.Image)
		if err != nil {
			return nil, &pipeline.ConfigError{Reason: "source image: " + err.Error()}
		}
		w, h := preq.Width, preq.Height
		if w == 0 {
			w = 512
		}
		if h == 0 {
			h = 512
		}
		preq.Width, preq.Height = w, h
		preq.SourceImage = imageproc.ToTensor(imageproc.Resize(img, w, h))

		if req.Mask != "" {
			mask, err := decodeImage(req.Mask)
			if err != nil {
				return nil, &pipeline.ConfigError{Reason: "mask image: " + err.Error()}
			}
			preq.Mask = imageproc.PrepareMask(mask, h/8, w/8)
		}
	} else if req.Mask != "" {
		return nil, &pipeline.ConfigError{Reason: "inpainting requires a source image"}
	}

	return preq, nil
}

func decodeImage(b64 string) (image.Image, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func encodePNG(pixels *tensor.Tensor) (string, error) {
	img, err := imageproc.FromTensor(pixels)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
