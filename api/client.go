// client.go - HTTP client for the stablegen service. Streaming endpoints
// deliver newline-delimited JSON; each line is decoded and handed to the
// caller's callback.
package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"runtime"

	"github.com/stablegen/stablegen/envconfig"
)

const maxBufferSize = 64 * 1024 * 1024

// Client encapsulates client state for interacting with the stablegen
// service. Use [ClientFromEnvironment] to create new Clients.
type Client struct {
	base *url.URL
	http *http.Client
}

// ClientFromEnvironment creates a new [Client] using the host and port in
// STABLEGEN_HOST, falling back to the default local address.
func ClientFromEnvironment() (*Client, error) {
	return &Client{
		base: envconfig.Host(),
		http: http.DefaultClient,
	}, nil
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{base: base, http: http}
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	if err := json.Unmarshal(body, &apiError); err != nil {
		// Use the full body as the message if the response is not JSON.
		apiError.ErrorMessage = string(body)
	}
	return apiError
}

func (c *Client) stream(ctx context.Context, method, path string, data any, fn func([]byte) error) error {
	bts, err := json.Marshal(data)
	if err != nil {
		return err
	}

	requestURL := c.base.JoinPath(path)
	request, err := http.NewRequestWithContext(ctx, method, requestURL.String(), bytes.NewBuffer(bts))
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/x-ndjson")
	request.Header.Set("User-Agent", fmt.Sprintf("stablegen (%s %s) Go/%s", runtime.GOARCH, runtime.GOOS, runtime.Version()))

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	scanner := bufio.NewScanner(response.Body)
	// Final lines carry whole base64 images, so allow large tokens.
	scanBuf := make([]byte, 0, 512*1024)
	scanner.Buffer(scanBuf, maxBufferSize)
	for scanner.Scan() {
		bts := scanner.Bytes()
		if response.StatusCode >= http.StatusBadRequest {
			return checkError(response, bts)
		}

		var errorResponse struct {
			Error string `json:"error,omitempty"`
		}
		if err := json.Unmarshal(bts, &errorResponse); err == nil && errorResponse.Error != "" {
			return fmt.Errorf("%s", errorResponse.Error)
		}

		if err := fn(bts); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// GenerateResponseFunc receives each streamed response line. Returning an
// error stops the stream.
type GenerateResponseFunc func(GenerateResponse) error

// Generate runs an image generation on the server, streaming progress and
// the final images to fn.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest, fn GenerateResponseFunc) error {
	return c.stream(ctx, http.MethodPost, "/api/generate", req, func(bts []byte) error {
		var resp GenerateResponse
		if err := json.Unmarshal(bts, &resp); err != nil {
			return err
		}
		return fn(resp)
	})
}
