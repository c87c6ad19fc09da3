package llm

import (
	"context"
	"fmt"
)

// VisionProvider is the interface for vision-capable model interactions.
// The pipeline only ever sends multi-image chat requests, so this is the
// whole surface.
type VisionProvider interface {
	// ChatWithImages sends a chat request whose user message carries one or
	// more page images.
	ChatWithImages(ctx context.Context, req VisionChatRequest) (*ChatResponse, error)
}

// VisionChatRequest is a chat request with image content.
type VisionChatRequest struct {
	Model       string          `json:"model"`
	Messages    []VisionMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

// VisionMessage is a chat message. Content is either a plain string (system
// prompts) or a []ContentPart (user messages carrying images); use the
// SystemMessage/UserMessage constructors.
type VisionMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// SystemMessage builds a plain-text system message.
func SystemMessage(text string) VisionMessage {
	return VisionMessage{Role: "system", Content: text}
}

// UserMessage builds a user message from content parts.
func UserMessage(parts ...ContentPart) VisionMessage {
	return VisionMessage{Role: "user", Content: parts}
}

// ContentPart is either text or an image in a vision message.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart builds an image content part from a data URI or URL.
// Detail "high" improves table digit recognition at the cost of tokens.
func ImagePart(url, detail string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url, Detail: detail}}
}

// ImageURL contains a base64 data URI or URL reference to an image.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures a vision provider.
type Config struct {
	Provider string `json:"provider"` // openai, openrouter, gemini, custom
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
}

// NewVisionProvider creates a vision provider from configuration.
func NewVisionProvider(cfg Config) (VisionProvider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg), nil
	case "openrouter":
		return NewOpenRouter(cfg), nil
	case "gemini":
		return NewGemini(cfg), nil
	case "custom":
		return NewOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("vision provider not specified")
	default:
		return nil, fmt.Errorf("unknown vision provider: %s", cfg.Provider)
	}
}
