package config

import (
	"sync"
	"time"
)

var (
	llmOnce   sync.Once
	llmConfig *LLMConfig
)

// LLMConfig covers both the completion service and speech-to-text.
type LLMConfig struct {
	Provider        string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	TranscribeModel string
	OllamaEndpoint  string
	OllamaModel     string
	Timeout         time.Duration
}

func GetLLMConfig() *LLMConfig {
	llmOnce.Do(func() {
		loadEnv()
		llmConfig = &LLMConfig{
			Provider:        getEnv("LLM_PROVIDER", "openai"),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			TranscribeModel: getEnv("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
			OllamaEndpoint:  getEnv("OLLAMA_ENDPOINT", "http://localhost:11434"),
			OllamaModel:     getEnv("OLLAMA_MODEL", "llama3.1"),
			Timeout:         time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,
		}
	})
	return llmConfig
}
