// Package imagegen turns activity prompts into pictures through a hosted
// text-to-image API, falling back to bundled placeholder images.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mochi/pkg/logging"
	"mochi/pkg/metrics"
)

// ErrDisabled is returned by Generate when image generation is switched off.
var ErrDisabled = errors.New("imagegen: disabled")

// Options configures a Client.
type Options struct {
	Enabled      bool
	URL          string
	APIKey       string
	StylePreset  string
	Width        int
	Height       int
	Steps        int
	CfgScale     float64
	Timeout      time.Duration
	StaticDir    string // generated files are written here
	Placeholders int    // number of mochi_placeholder_<n>.jpg files
}

// Client calls the text-to-image endpoint.
type Client struct {
	opts    Options
	http    *http.Client
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New returns a client. log and m may be nil.
func New(opts Options, log *slog.Logger, m *metrics.Metrics) *Client {
	if log == nil {
		log = logging.Discard()
	}
	if opts.Placeholders < 1 {
		opts.Placeholders = 1
	}
	return &Client{
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout},
		log:     log,
		metrics: m,
	}
}

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type generationRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CfgScale    float64      `json:"cfg_scale"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Steps       int          `json:"steps"`
	Samples     int          `json:"samples"`
	StylePreset string       `json:"style_preset,omitempty"`
}

type generationResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
}

// Generate requests one image for prompt, stores it under the static
// directory and returns its URL path ("/static/mochi_<uuid>.png").
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.opts.Enabled {
		return "", ErrDisabled
	}
	body, err := json.Marshal(generationRequest{
		TextPrompts: []textPrompt{{Text: prompt, Weight: 1}},
		CfgScale:    c.opts.CfgScale,
		Height:      c.opts.Height,
		Width:       c.opts.Width,
		Steps:       c.opts.Steps,
		Samples:     1,
		StylePreset: c.opts.StylePreset,
	})
	if err != nil {
		return "", fmt.Errorf("imagegen: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("imagegen: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("imagegen: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("imagegen: provider returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var out generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("imagegen: decode response: %w", err)
	}
	if len(out.Artifacts) == 0 || out.Artifacts[0].Base64 == "" {
		return "", errors.New("imagegen: response has no artifacts")
	}
	img, err := base64.StdEncoding.DecodeString(out.Artifacts[0].Base64)
	if err != nil {
		return "", fmt.Errorf("imagegen: decode artifact: %w", err)
	}

	if err := os.MkdirAll(c.opts.StaticDir, 0o755); err != nil {
		return "", fmt.Errorf("imagegen: %w", err)
	}
	name := "mochi_" + uuid.NewString() + ".png"
	if err := os.WriteFile(filepath.Join(c.opts.StaticDir, name), img, 0o644); err != nil {
		return "", fmt.Errorf("imagegen: write image: %w", err)
	}
	return "/static/" + name, nil
}

// GenerateOrFallback is Generate that never fails: any error is logged and
// a random placeholder URL is returned instead.
func (c *Client) GenerateOrFallback(ctx context.Context, prompt string) string {
	start := time.Now()
	url, err := c.Generate(ctx, prompt)
	switch {
	case err == nil:
		c.metrics.ImageRequest(metrics.ImageGenerated, time.Since(start))
		c.log.Info("image generated", "url", url, "elapsed", time.Since(start))
		return url
	case errors.Is(err, ErrDisabled):
		c.metrics.ImageRequest(metrics.ImageDisabled, 0)
	default:
		c.metrics.ImageRequest(metrics.ImageFallback, time.Since(start))
		c.log.Warn("image generation failed, using placeholder", "error", err)
	}
	return Placeholder(1 + rand.IntN(c.opts.Placeholders))
}

// Placeholder returns the URL path of placeholder n.
func Placeholder(n int) string {
	return fmt.Sprintf("/static/mochi_placeholder_%d.jpg", n)
}
