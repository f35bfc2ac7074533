// Package api implements the client-side API for code interacting with a
// stablegen server. The command-line client uses this package to talk to
// the backend service.
package api

import "fmt"

// GenerateRequest describes a request sent by [Client.Generate]. Prompt is
// required; every other field has a reasonable default.
type GenerateRequest struct {
	// Prompt is the textual prompt guiding the generation.
	Prompt string `json:"prompt"`

	// NegativePrompt is embedded for the unconditional guidance branch.
	NegativePrompt string `json:"negative_prompt,omitempty"`

	// Steps is the number of denoising steps.
	Steps int `json:"steps,omitempty"`

	// GuidanceScale is the classifier-free guidance scale; 1 disables
	// guidance.
	GuidanceScale float32 `json:"guidance_scale,omitempty"`

	// Seed selects the noise sequence; equal seeds reproduce outputs
	// exactly.
	Seed int64 `json:"seed,omitempty"`

	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// Image is an optional base64 PNG source image for image-to-image.
	Image string `json:"image,omitempty"`

	// Mask is an optional base64 PNG inpainting mask; white pixels are
	// repainted, black pixels preserved. Requires Image.
	Mask string `json:"mask,omitempty"`

	// Strength controls how much of the source image survives, in (0, 1].
	Strength float64 `json:"strength,omitempty"`

	// Samples is the number of images to generate from consecutive seeds.
	Samples int `json:"samples,omitempty"`
}

// GenerateResponse is one NDJSON line streamed by the server: progress
// updates while the loop runs, then a final line with Done set and the
// encoded images.
type GenerateResponse struct {
	// Completed and Total report denoising progress.
	Completed int `json:"completed,omitempty"`
	Total     int `json:"total,omitempty"`

	Done bool `json:"done,omitempty"`

	// Images holds the base64 PNG outputs, one per sample.
	Images []string `json:"images,omitempty"`
}

// StatusError is the error returned for a non-2xx server response.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		return "something went wrong, please see the stablegen server logs for details"
	}
}
