package llm

import "context"

// openAIProvider implements VisionProvider for the OpenAI API.
//
// Any vision-capable chat model works; gpt-4o and gpt-4o-mini are the usual
// choices for multi-image table extraction.
//
// API key: set via config or OPENAI_API_KEY env var (resolved by the caller).
type openAIProvider struct {
	base openAICompatClient
}

// NewOpenAI creates a provider for OpenAI.
func NewOpenAI(cfg Config) VisionProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	return &openAIProvider{base: newOpenAICompatClient(cfg)}
}

func (p *openAIProvider) ChatWithImages(ctx context.Context, req VisionChatRequest) (*ChatResponse, error) {
	return p.base.chatWithImages(ctx, req)
}
