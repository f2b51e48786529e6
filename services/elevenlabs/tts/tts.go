// Package tts implements the fallback synthesis provider on the ElevenLabs
// text-to-speech API.
package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"pocketsocrates/core"
)

// Config holds configuration for the ElevenLabs synthesis service.
type Config struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	VoiceID string `json:"voice_id"`
	ModelID string `json:"model_id"`

	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// DefaultConfig returns a config with sensible defaults; override only what
// you need.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://api.elevenlabs.io/v1/text-to-speech",
		VoiceID:         "21m00Tcm4TlvDq8ikWAM", // Rachel
		ModelID:         "eleven_turbo_v2_5",
		Stability:       0.5,
		SimilarityBoost: 0.75,
	}
}

// Service synthesizes one reply per request.
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
	if config.VoiceID == "" {
		config.VoiceID = defaults.VoiceID
	}
	if config.ModelID == "" {
		config.ModelID = defaults.ModelID
	}
	if config.Stability == 0 {
		config.Stability = defaults.Stability
	}
	if config.SimilarityBoost == 0 {
		config.SimilarityBoost = defaults.SimilarityBoost
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
	return "elevenlabs-tts"
}

func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config.APIKey == "" {
		return fmt.Errorf("elevenlabs: API key is required")
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

type speakRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts assistant text to audio.
func (s *Service) Synthesize(ctx context.Context, text string) (core.AudioChunk, error) {
	s.mu.RLock()
	client := s.httpClient
	s.mu.RUnlock()
	if client == nil {
		return core.AudioChunk{}, fmt.Errorf("elevenlabs: service not initialized")
	}

	body, err := sonic.Marshal(speakRequest{
		Text:    text,
		ModelID: s.config.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       s.config.Stability,
			SimilarityBoost: s.config.SimilarityBoost,
		},
	})
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s?output_format=pcm_24000", s.config.BaseURL, s.config.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", s.config.APIKey)
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
		Encoding:   core.EncodingLinear16,
		SampleRate: 24000,
		Channels:   1,
	}, nil
}
