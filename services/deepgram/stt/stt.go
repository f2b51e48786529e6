// Package stt implements prerecorded transcription against Deepgram's
// listen API.
package stt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"pocketsocrates/core"
	"pocketsocrates/utils/audio"
)

// Config holds configuration options for Deepgram transcription.
type Config struct {
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url"`
	Model       string `json:"model"`
	Language    string `json:"language"`
	Punctuate   bool   `json:"punctuate"`
	SmartFormat bool   `json:"smart_format"`
}

// DefaultConfig returns a config with sensible defaults; override only what
// you need.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.deepgram.com",
		Model:       "nova-2",
		Punctuate:   true,
		SmartFormat: true,
	}
}

// Service transcribes finished capture blobs over Deepgram's prerecorded
// HTTP endpoint. One request per recording; no streaming session to manage.
type Service struct {
	config *Config
	logger *core.Logger

	httpClient *http.Client
	mu         sync.RWMutex
}

func NewService(config *Config, logger *core.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.deepgram.com"
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
	return "deepgram-stt"
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

// Transcribe sends a finished capture blob and returns its transcript.
func (s *Service) Transcribe(ctx context.Context, chunk core.AudioChunk) (string, error) {
	s.mu.RLock()
	client := s.httpClient
	s.mu.RUnlock()
	if client == nil {
		return "", fmt.Errorf("deepgram: service not initialized")
	}

	wav, err := audio.WrapWAV(chunk)
	if err != nil {
		return "", fmt.Errorf("deepgram: prepare audio: %w", err)
	}

	endpoint, err := s.buildURL()
	if err != nil {
		return "", fmt.Errorf("deepgram: build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wav))
	if err != nil {
		return "", fmt.Errorf("deepgram: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+s.config.APIKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := client.Do(req)
	if err != nil {
		return "", &core.BackendError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &core.BackendError{Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &core.BackendError{Status: resp.StatusCode, Message: string(body)}
	}

	var parsed listenResponse
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return "", &core.BackendError{Status: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", &core.BackendError{Status: resp.StatusCode, Message: "no transcription alternatives"}
	}
	transcript := parsed.Results.Channels[0].Alternatives[0].Transcript
	s.logger.Debugf("deepgram: transcript: %s", transcript)
	return transcript, nil
}

func (s *Service) buildURL() (string, error) {
	base, err := url.Parse(s.config.BaseURL + "/v1/listen")
	if err != nil {
		return "", err
	}
	q := base.Query()
	if s.config.Model != "" {
		q.Set("model", s.config.Model)
	}
	if s.config.Language != "" {
		q.Set("language", s.config.Language)
	}
	q.Set("punctuate", boolToString(s.config.Punctuate))
	q.Set("smart_format", boolToString(s.config.SmartFormat))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}
