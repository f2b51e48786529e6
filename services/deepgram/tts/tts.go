// Package tts implements speech synthesis against Deepgram's speak API.
package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"pocketsocrates/core"
)

// Config holds configuration for the Deepgram synthesis service.
type Config struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// DefaultConfig returns a config with sensible defaults; override only what
// you need.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.deepgram.com",
		Model:      "aura-2-arcas-en",
		Encoding:   "linear16",
		SampleRate: 24000,
	}
}

// Service synthesizes one reply per request over the speak HTTP endpoint.
type Service struct {
	config *Config
	logger *core.Logger

	httpClient *http.Client
	mu         sync.RWMutex
}

func NewService(config *Config, logger *core.Logger) *Service {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Encoding == "" {
		config.Encoding = defaults.Encoding
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaults.SampleRate
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
	return "deepgram-tts"
}

func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config.APIKey == "" {
		return fmt.Errorf("deepgram: API key is required")
	}
	s.httpClient = &http.Client{Timeout: 60 * time.Second}
	return nil
}

func (s *Service) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.httpClient = nil
	return nil
}

func (s *Service) Reset() error {
	return nil
}

// Synthesize converts assistant text to audio.
func (s *Service) Synthesize(ctx context.Context, text string) (core.AudioChunk, error) {
	s.mu.RLock()
	client := s.httpClient
	s.mu.RUnlock()
	if client == nil {
		return core.AudioChunk{}, fmt.Errorf("deepgram: service not initialized")
	}

	endpoint, err := s.buildURL()
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("deepgram: build url: %w", err)
	}

	body, err := sonic.Marshal(map[string]string{"text": text})
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("deepgram: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("deepgram: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return core.AudioChunk{}, &core.BackendError{Message: err.Error()}
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.AudioChunk{}, &core.BackendError{Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return core.AudioChunk{}, &core.BackendError{Status: resp.StatusCode, Message: string(audio)}
	}

	return core.AudioChunk{
		Data:       audio,
		Encoding:   core.AudioEncoding(s.config.Encoding),
		SampleRate: s.config.SampleRate,
		Channels:   1,
	}, nil
}

func (s *Service) buildURL() (string, error) {
	base, err := url.Parse(s.config.BaseURL + "/v1/speak")
	if err != nil {
		return "", err
	}
	q := base.Query()
	q.Set("model", s.config.Model)
	q.Set("encoding", s.config.Encoding)
	q.Set("sample_rate", strconv.Itoa(s.config.SampleRate))
	base.RawQuery = q.Encode()
	return base.String(), nil
}
