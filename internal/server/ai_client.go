package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Domskk/wanderworks/internal/config"
)

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AIModelRequest struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	UserPrompt   string
}

type AIModelResponse struct {
	Answer string
	Model  string
}

type AIClient interface {
	Query(ctx context.Context, req AIModelRequest) (AIModelResponse, error)
}

// OpenRouterClient talks to an OpenAI-compatible chat-completions endpoint.
type OpenRouterClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

func NewOpenRouterClient(cfg config.Config) *OpenRouterClient {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 20
	}
	return &OpenRouterClient{
		apiKey:    strings.TrimSpace(cfg.OpenRouterAPIKey),
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.OpenRouterBaseURL), "/"),
		model:     strings.TrimSpace(cfg.OpenRouterModel),
		maxTokens: cfg.AIMaxTokens,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

func (c *OpenRouterClient) Query(ctx context.Context, req AIModelRequest) (AIModelResponse, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return AIModelResponse{}, errors.New("OPENROUTER_API_KEY is not configured")
	}
	if strings.TrimSpace(c.baseURL) == "" {
		return AIModelResponse{}, errors.New("OPENROUTER_BASE_URL is not configured")
	}
	requestModel := strings.TrimSpace(req.Model)
	if requestModel == "" {
		requestModel = c.model
	}
	if requestModel == "" {
		return AIModelResponse{}, errors.New("OPENROUTER_MODEL is not configured")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 250
	}

	messages := make([]ChatTurn, 0, 2)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, ChatTurn{Role: "system", Content: strings.TrimSpace(req.SystemPrompt)})
	}
	userPrompt := strings.TrimSpace(req.UserPrompt)
	if userPrompt == "" {
		return AIModelResponse{}, errors.New("AI request user prompt is empty")
	}
	messages = append(messages, ChatTurn{Role: "user", Content: userPrompt})

	payload := map[string]any{
		"model":       requestModel,
		"temperature": req.Temperature,
		"max_tokens":  maxTokens,
		"messages":    messages,
	}
	bodyRaw, err := json.Marshal(payload)
	if err != nil {
		return AIModelResponse{}, err
	}

	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(bodyRaw),
	)
	if err != nil {
		return AIModelResponse{}, err
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return AIModelResponse{}, err
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return AIModelResponse{}, err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return AIModelResponse{}, fmt.Errorf(
			"openrouter completion error (%d): %s",
			response.StatusCode,
			truncateForLog(string(responseBody), 600),
		)
	}

	parsed := parseJSONStringMap(responseBody)
	answer := extractCompletionAnswer(parsed)
	if strings.TrimSpace(answer) == "" {
		return AIModelResponse{}, errors.New("openrouter completion answer is empty")
	}

	modelName := strings.TrimSpace(toString(parsed["model"]))
	if modelName == "" {
		modelName = requestModel
	}
	return AIModelResponse{Answer: answer, Model: modelName}, nil
}

// extractCompletionAnswer pulls choices[0].message.content out of a
// chat-completions response body.
func extractCompletionAnswer(data map[string]any) string {
	choices, ok := data["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return ""
	}
	message, ok := first["message"].(map[string]any)
	if !ok {
		return ""
	}
	return strings.TrimSpace(toString(message["content"]))
}

func truncateForLog(value string, limit int) string {
	trimmed := strings.TrimSpace(value)
	if limit <= 0 || len(trimmed) <= limit {
		return trimmed
	}
	return trimmed[:limit] + "...(truncated)"
}

// MockAIClient is a deterministic stand-in for tests and keyless local runs.
type MockAIClient struct {
	Model string
}

func (m MockAIClient) Query(_ context.Context, req AIModelRequest) (AIModelResponse, error) {
	prompt := strings.TrimSpace(req.UserPrompt)
	if prompt == "" {
		prompt = "No message provided."
	}

	answer := "Mock response: " + prompt
	if strings.Contains(strings.ToLower(req.SystemPrompt), `"native"`) {
		encoded, err := json.Marshal(map[string]string{
			"native": prompt,
			"romaji": prompt,
		})
		if err == nil {
			answer = string(encoded)
		}
	}

	model := strings.TrimSpace(m.Model)
	if model == "" {
		model = "mock-travel-buddy"
	}
	return AIModelResponse{Answer: answer, Model: model}, nil
}
