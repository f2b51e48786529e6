package factories

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"

	"pocketsocrates/realtime"
	deepgramstt "pocketsocrates/services/deepgram/stt"
	deepgramtts "pocketsocrates/services/deepgram/tts"
	elevenlabs "pocketsocrates/services/elevenlabs/tts"
	"pocketsocrates/services/openrouter"
	"pocketsocrates/transports/websocket"
)

// StoreConfig configures session persistence.
type StoreConfig struct {
	// SQLitePath is the database file. Empty means in-memory sessions only.
	SQLitePath string `json:"sqlite_path,omitempty"`
	// SessionLogDir, when set, receives one JSONL log file per session.
	SessionLogDir string `json:"session_log_dir,omitempty"`
}

// SettingsConfig is the top-level config loaded from settings.json.
type SettingsConfig struct {
	Server   *websocket.Config      `json:"server,omitempty"`
	Store    StoreConfig            `json:"store"`
	Realtime *realtime.ClientConfig `json:"realtime,omitempty"`
	Session  *SessionConfig         `json:"session_config,omitempty"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with provider
// defaults: OpenRouter generation, Deepgram capture and speech, ElevenLabs
// speech fallback.
func DefaultSettingsConfig() SettingsConfig {
	session := DefaultSessionConfig()
	session.Dialogue.ServiceConfig.OpenRouterConfig = openrouter.DefaultConfig()
	session.STT.ServiceConfig.DeepgramConfig = deepgramstt.DefaultConfig()
	session.TTS.ServiceConfig.DeepgramConfig = deepgramtts.DefaultConfig()
	session.TTS.FallbackServiceConfigs = []TTSFactoryConfig{
		{ElevenLabsConfig: elevenlabs.DefaultConfig()},
	}

	return SettingsConfig{
		Server:  websocket.DefaultConfig(),
		Store:   StoreConfig{SQLitePath: "pocketsocrates.db"},
		Session: &session,
	}
}

// SettingsConfigFromJSON parses a JSON blob into a SettingsConfig, starting
// from DefaultSettingsConfig so absent fields retain their defaults.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	cfg := DefaultSettingsConfig()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}
