// Package imageproc converts between pixel images and the tensors the
// diffusion pipeline consumes. Pixels travel as [1, 3, H, W] float32 in
// [-1, 1]; masks as [1, 1, h, w] at latent resolution with 1 marking the
// region to repaint.
package imageproc

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/draw"

	"github.com/stablegen/stablegen/tensor"
)

// Resize scales img to w x h using CatmullRom interpolation.
func Resize(img image.Image, w, h int) image.Image {
	resized := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Over, nil)
	return resized
}

// ToTensor converts an image to a [1, 3, H, W] tensor with values in [-1, 1].
func ToTensor(img image.Image) *tensor.Tensor {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	t := tensor.New(1, 3, h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			// RGBA returns 16-bit values.
			t.Data[0*h*w+y*w+x] = float32(r>>8)/127.5 - 1
			t.Data[1*h*w+y*w+x] = float32(g>>8)/127.5 - 1
			t.Data[2*h*w+y*w+x] = float32(b>>8)/127.5 - 1
		}
	}
	return t
}

// FromTensor converts a decoded [1, 3, H, W] tensor in [-1, 1] back to an
// 8-bit RGBA image: x/2 + 0.5, clamped to [0, 1], scaled to 255.
func FromTensor(t *tensor.Tensor) (*image.RGBA, error) {
	if len(t.Shape) != 4 || t.Shape[0] != 1 || t.Shape[1] != 3 {
		return nil, fmt.Errorf("imageproc: expected [1, 3, H, W] tensor, got %v", t.Shape)
	}
	h, w := t.Shape[2], t.Shape[3]

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := float64(t.Data[c*h*w+y*w+x])/2 + 0.5
				v = math.Min(math.Max(v, 0), 1)
				img.Pix[px+c] = uint8(v * 255)
			}
			img.Pix[px+3] = 0xff
		}
	}
	return img, nil
}

// PrepareMask converts a mask image to a [1, 1, h, w] tensor at latent
// resolution. Pixels are averaged over RGB and thresholded at mid-gray:
// white repaints, black preserves. Downsampling is nearest-neighbor so the
// mask stays binary.
func PrepareMask(img image.Image, latentH, latentW int) *tensor.Tensor {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	t := tensor.New(1, 1, latentH, latentW)
	for y := 0; y < latentH; y++ {
		for x := 0; x < latentW; x++ {
			sx := bounds.Min.X + x*w/latentW
			sy := bounds.Min.Y + y*h/latentH
			r, g, b, _ := img.At(sx, sy).RGBA()
			mean := (float64(r>>8) + float64(g>>8) + float64(b>>8)) / 3
			if mean >= 122.5 {
				t.Data[y*latentW+x] = 1
			}
		}
	}
	return t
}

// ReadImage decodes an image file. PNG and JPEG are registered by the
// importing binaries.
func ReadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("imageproc: decode %s: %w", path, err)
	}
	return img, nil
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("imageproc: encode %s: %w", path, err)
	}
	return nil
}
