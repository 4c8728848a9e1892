package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TextCompletionService 语言补全服务接口
//
// Complete is expected to return a JSON-object-shaped string.
type TextCompletionService interface {
	Complete(ctx context.Context, instruction string) (string, error)
}

// ProviderConfig selects and configures a completion provider.
type ProviderConfig struct {
	Provider       string // openai | ollama
	OpenAIBaseURL  string
	OpenAIAPIKey   string
	OpenAIModel    string
	OllamaEndpoint string
	OllamaModel    string
	Timeout        time.Duration
}

// NewCompletionService builds the configured provider.
func NewCompletionService(cfg ProviderConfig) (TextCompletionService, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewOpenAIClient(&OpenAIConfig{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
		}), nil
	case "ollama":
		return NewOllamaClient(&OllamaConfig{
			Endpoint: cfg.OllamaEndpoint,
			Model:    cfg.OllamaModel,
			Timeout:  cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}
