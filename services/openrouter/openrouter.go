// Package openrouter implements the generation backend against the
// OpenRouter chat-completions API.
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/sashabaranov/go-openai"

	"pocketsocrates/core"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "anthropic/claude-3.5-sonnet"
)

// Config holds the configuration for the OpenRouter service.
type Config struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	Referer     string  `json:"referer"`
	Title       string  `json:"title"`
}

// DefaultConfig returns a config with sensible defaults; override only what
// you need.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Model:   DefaultModel,
		Referer: "https://pocketsocrates.app",
		Title:   "PocketSocrates",
	}
}

// Service talks to OpenRouter through the OpenAI-compatible client.
// Responses are non-streaming; the UI renders whole turns.
type Service struct {
	config *Config
	logger *core.Logger

	client        *openai.Client
	isInitialized bool
	mu            sync.RWMutex
}

func NewService(config *Config, logger *core.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Service{
		config: config,
		logger: logger,
	}
}

func (s *Service) Name() string {
	return "openrouter"
}

func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.APIKey == "" {
		return fmt.Errorf("openrouter: API key is required")
	}

	clientConfig := openai.DefaultConfig(s.config.APIKey)
	clientConfig.BaseURL = s.config.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Transport: &attributionTransport{
			referer: s.config.Referer,
			title:   s.config.Title,
			base:    http.DefaultTransport,
		},
	}
	s.client = openai.NewClientWithConfig(clientConfig)
	s.isInitialized = true
	return nil
}

func (s *Service) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.isInitialized = false
	return nil
}

func (s *Service) Reset() error {
	return nil
}

// Generate runs one non-streaming completion. Callers bound the wait via
// ctx; cancellation and HTTP failures surface as a BackendError.
func (s *Service) Generate(ctx context.Context, req core.GenerationRequest) (core.GenerationResponse, error) {
	s.mu.RLock()
	client, initialized := s.client, s.isInitialized
	s.mu.RUnlock()
	if !initialized {
		return core.GenerationResponse{}, fmt.Errorf("openrouter: service not initialized")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    convertRole(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    messages,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	})
	if err != nil {
		return core.GenerationResponse{}, backendError(err)
	}
	if len(resp.Choices) == 0 {
		return core.GenerationResponse{}, &core.BackendError{Message: "empty completion response"}
	}
	return core.GenerationResponse{Content: resp.Choices[0].Message.Content}, nil
}

func convertRole(role core.Role) string {
	switch role {
	case core.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

func backendError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &core.BackendError{Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &core.BackendError{Status: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return &core.BackendError{Message: err.Error()}
}

// attributionTransport adds the OpenRouter app-attribution headers to every
// request.
type attributionTransport struct {
	referer string
	title   string
	base    http.RoundTripper
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(req)
}
