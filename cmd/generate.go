// generate.go - the one-shot generate command: send a request to the
// server, render progress, save the returned images.
package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stablegen/stablegen/api"
	"github.com/stablegen/stablegen/progress"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate PROMPT",
		Short: "Generate an image from a prompt",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerate,
	}

	f := cmd.Flags()
	f.String("negative", "", "Negative prompt")
	f.Int("steps", 30, "Denoising steps")
	f.Float32("guidance", 7.5, "Classifier-free guidance scale (1 disables)")
	f.Int64("seed", 0, "Random seed (0 picks the current time)")
	f.Int("width", 512, "Image width")
	f.Int("height", 512, "Image height")
	f.String("image", "", "Source image for image-to-image")
	f.String("mask", "", "Inpainting mask; white pixels are repainted (requires --image)")
	f.Float64("strength", 1.0, "How strongly to repaint the source image, in (0, 1]")
	f.Int("samples", 1, "Number of images to generate from consecutive seeds")
	f.StringP("output", "o", "", "Output file (default: derived from the prompt)")

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	req, err := buildGenerateRequest(cmd, args[0])
	if err != nil {
		return err
	}

	// Spinner until the first progress line arrives.
	p := progress.NewProgress(os.Stderr)
	spinner := progress.NewSpinner("")
	p.Add(spinner)

	var stepBar *progress.StepBar
	var images []string
	err = client.Generate(cmd.Context(), req, func(resp api.GenerateResponse) error {
		if resp.Total > 0 {
			if stepBar == nil {
				spinner.Stop()
				stepBar = progress.NewStepBar("Generating", resp.Total)
				p.Add(stepBar)
			}
			stepBar.Set(resp.Completed)
		}

		if resp.Done {
			images = resp.Images
		}
		return nil
	})

	p.StopAndClear()
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	return saveImages(req.Prompt, output, images)
}

func buildGenerateRequest(cmd *cobra.Command, prompt string) (*api.GenerateRequest, error) {
	f := cmd.Flags()

	req := &api.GenerateRequest{Prompt: prompt}
	req.NegativePrompt, _ = f.GetString("negative")
	req.Steps, _ = f.GetInt("steps")
	req.GuidanceScale, _ = f.GetFloat32("guidance")
	req.Seed, _ = f.GetInt64("seed")
	req.Width, _ = f.GetInt("width")
	req.Height, _ = f.GetInt("height")
	req.Strength, _ = f.GetFloat64("strength")
	req.Samples, _ = f.GetInt("samples")

	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano() % (1 << 31)
	}

	if path, _ := f.GetString("image"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read source image: %w", err)
		}
		req.Image = base64.StdEncoding.EncodeToString(data)
	}
	if path, _ := f.GetString("mask"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read mask: %w", err)
		}
		req.Mask = base64.StdEncoding.EncodeToString(data)
	}

	return req, nil
}

// saveImages writes each base64 PNG; multiple samples get numbered names.
func saveImages(prompt, output string, images []string) error {
	if output == "" {
		output = sanitizeFilename(prompt) + ".png"
	}

	for i, b64 := range images {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return fmt.Errorf("decode image: %w", err)
		}

		name := output
		if len(images) > 1 {
			base, ext := output, "png"
			if dot := strings.LastIndex(output, "."); dot >= 0 {
				base, ext = output[:dot], output[dot+1:]
			}
			name = fmt.Sprintf("%s.%d.%s", base, i+1, ext)
		}

		if err := os.WriteFile(name, data, 0o644); err != nil {
			return fmt.Errorf("save image: %w", err)
		}
		fmt.Printf("Image saved to: %s\n", name)
	}

	return nil
}

// sanitizeFilename derives a short safe filename stem from the prompt.
func sanitizeFilename(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			sb.WriteRune('-')
		}
	}

	name := strings.Trim(sb.String(), "-")
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "image"
	}
	return name
}
