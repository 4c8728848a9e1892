package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OllamaConfig struct {
	Endpoint    string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OllamaResponse 定义 Ollama API 响应结构
type OllamaResponse struct {
	Response        string `json:"response"`
	CreatedAt       string `json:"created_at"`
	Model           string `json:"model"`
	Done            bool   `json:"done"`
	TotalDuration   int64  `json:"total_duration,omitempty"`
	LoadDuration    int64  `json:"load_duration,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
	EvalDuration    int64  `json:"eval_duration,omitempty"`
	Error           string `json:"error,omitempty"`
}

type OllamaClient struct {
	endpoint    string
	model       string
	temperature float64
	httpClient  *http.Client
}

func NewOllamaClient(config *OllamaConfig) *OllamaClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		endpoint:    strings.TrimRight(config.Endpoint, "/"),
		model:       config.Model,
		temperature: config.Temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *OllamaClient) Complete(ctx context.Context, instruction string) (string, error) {
	// 准备请求体
	reqBody := map[string]interface{}{
		"model":  c.model,
		"system": systemPrompt,
		"prompt": instruction,
		"stream": false,
		"format": "json",
		"options": map[string]interface{}{
			"temperature": c.temperature,
		},
	}

	reqData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(reqData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var result OllamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Error != "" {
		return "", fmt.Errorf("ollama error: %s", result.Error)
	}

	return result.Response, nil
}

func (c *OllamaClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
