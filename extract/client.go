package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cfstlab/papermine/llm"
)

const (
	// Low temperature keeps table transcription deterministic.
	defaultTemperature = 0.1
	// Large papers yield dozens of specimens; the response needs headroom.
	defaultMaxTokens = 8192
)

// Client drives specimen extraction against a vision provider.
type Client struct {
	provider    llm.VisionProvider
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// NewClient creates an extraction client. A nil logger uses slog.Default.
func NewClient(provider llm.VisionProvider, model string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		provider:    provider,
		model:       model,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		logger:      logger,
	}
}

// Extract sends the document's page images to the vision model and returns
// the parsed, normalized result. Every record is stamped with docID as its
// reference; the model's own ref_no output is discarded.
func (c *Client) Extract(ctx context.Context, docID string, imagePaths []string) (*Result, error) {
	if len(imagePaths) == 0 {
		return nil, fmt.Errorf("no images to extract for %s", docID)
	}

	parts := make([]llm.ContentPart, 0, len(imagePaths)+1)
	parts = append(parts, llm.TextPart("Extract the CFST specimen data from these paper pages."))
	var totalBytes int
	for _, path := range imagePaths {
		uri, n, err := encodeImage(path)
		if err != nil {
			return nil, err
		}
		totalBytes += n
		parts = append(parts, llm.ImagePart(uri, "high"))
	}

	c.logger.Info("requesting extraction",
		"doc_id", docID,
		"model", c.model,
		"images", len(imagePaths),
		"image_bytes", totalBytes,
	)

	resp, err := c.provider.ChatWithImages(ctx, llm.VisionChatRequest{
		Model: c.model,
		Messages: []llm.VisionMessage{
			llm.SystemMessage(systemPrompt),
			llm.UserMessage(parts...),
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("vision request for %s: %w", docID, err)
	}

	c.logger.Info("extraction response received",
		"doc_id", docID,
		"model", resp.Model,
		"finish_reason", resp.FinishReason,
		"completion_tokens", resp.CompletionTokens,
		"response_bytes", len(resp.Content),
	)

	result, err := Parse(resp.Content)
	if err != nil {
		return nil, err
	}
	result.SetReference(docID)
	return result, nil
}

// encodeImage reads a JPEG from disk and wraps it in a data URI.
func encodeImage(path string) (string, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("reading image %s: %w", filepath.Base(path), err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), len(data), nil
}
