// Package ocr provides the vision-model fallback for pages whose structural
// text extraction is too corrupted to use.
//
// The entry point is the Client interface — a single call that turns a page
// image into verbatim text. The production implementation is backed by
// Gemini; tests substitute fakes. The client is constructed once at startup
// and injected into the extraction cascade, never reached through globals.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/sync/semaphore"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// prompt instructs the model to transcribe, not summarise. Deterministic
// wording paired with temperature 0.
const prompt = `Extract all text from this scanned page image, verbatim and in natural reading order.
Rules:
- Transcribe the text exactly as printed. Do not summarise, correct, or translate.
- Preserve paragraph breaks.
- Exclude running headers, running footers, and page numbers.
- Output only the extracted text, with no commentary.`

// Client turns one page image into text.
type Client interface {
	// ExtractPageImage submits a page image (any common raster format) and
	// returns the transcribed text.
	ExtractPageImage(ctx context.Context, imageData []byte) (string, error)
}

// Config configures the Gemini-backed client.
type Config struct {
	// APIKey for the Gemini API.
	APIKey string `yaml:"api_key"`
	// Model name. Default: "gemini-1.5-flash".
	Model string `yaml:"model"`
	// MaxImageDim caps the longer side of submitted images. Default: 2048.
	MaxImageDim int `yaml:"max_image_dim"`
	// Timeout per OCR call. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`
	// Concurrency caps in-flight OCR calls across all pages. Default: 2.
	Concurrency int `yaml:"concurrency"`
	// MaxAttempts bounds retries per page. Default: 4.
	MaxAttempts int `yaml:"max_attempts"`
	// BaseBackoff is the initial retry delay. Default: 1s.
	BaseBackoff time.Duration `yaml:"base_backoff"`
	// Logger for retry/debug messages.
	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = "gemini-1.5-flash"
	}
	if c.MaxImageDim <= 0 {
		c.MaxImageDim = 2048
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// GeminiClient implements Client against the Gemini API.
type GeminiClient struct {
	cfg    Config
	client *genai.Client
	sem    *semaphore.Weighted
}

// NewGeminiClient constructs the production OCR client.
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	cfg.defaults()
	if cfg.APIKey == "" {
		return nil, errors.New("ocr: api key is required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("ocr: gemini client: %w", err)
	}
	return &GeminiClient{
		cfg:    cfg,
		client: cl,
		sem:    semaphore.NewWeighted(int64(cfg.Concurrency)),
	}, nil
}

// Close releases the underlying API client.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// ExtractPageImage downscales the image, then calls the vision model under
// the concurrency cap with per-call timeout and retry/backoff.
func (g *GeminiClient) ExtractPageImage(ctx context.Context, imageData []byte) (string, error) {
	img, err := PrepareImage(imageData, g.cfg.MaxImageDim)
	if err != nil {
		return "", err
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("ocr: acquire slot: %w", err)
	}
	defer g.sem.Release(1)

	policy := RetryPolicy{
		MaxAttempts: g.cfg.MaxAttempts,
		BaseDelay:   g.cfg.BaseBackoff,
		Retryable:   retryableAPIError,
		Logger:      g.cfg.Logger,
	}

	var text string
	err = policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()

		model := g.client.GenerativeModel(g.cfg.Model)
		model.SetTemperature(0)

		resp, err := model.GenerateContent(callCtx,
			genai.ImageData("png", img),
			genai.Text(prompt),
		)
		if err != nil {
			return fmt.Errorf("ocr: generate: %w", err)
		}
		text = collectText(resp)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}

// retryableAPIError treats rate limits, server errors, timeouts, and
// transport failures as transient. Client errors (4xx other than 429) are
// permanent.
func retryableAPIError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429 || gerr.Code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if IsTransient(err) {
		return true
	}
	// Errors without an HTTP status are transport-level; retry those.
	return !errors.Is(err, context.Canceled)
}
