package factories

import (
	"fmt"

	"github.com/bytedance/sonic"

	"pocketsocrates/core"
	commandhandler "pocketsocrates/handlers/command"
	dialoguehandler "pocketsocrates/handlers/dialogue"
	stthandler "pocketsocrates/handlers/stt"
	transporthandler "pocketsocrates/handlers/transport"
	ttshandler "pocketsocrates/handlers/tts"
	"pocketsocrates/runner"
	"pocketsocrates/store"
)

// SessionSTTConfig bundles the capture handler config with primary and
// fallback transcription providers.
type SessionSTTConfig struct {
	HandlerConfig          stthandler.STTConfig `json:"handler"`
	ServiceConfig          STTFactoryConfig     `json:"service"`
	FallbackServiceConfigs []STTFactoryConfig   `json:"fallbacks,omitempty"`
}

func DefaultSessionSTTConfig() SessionSTTConfig {
	return SessionSTTConfig{HandlerConfig: stthandler.DefaultSTTConfig()}
}

// SessionDialogueConfig bundles the turn coordinator config with primary and
// fallback generation providers.
type SessionDialogueConfig struct {
	HandlerConfig          dialoguehandler.DialogueConfig `json:"handler"`
	ServiceConfig          GenerationFactoryConfig        `json:"service"`
	FallbackServiceConfigs []GenerationFactoryConfig      `json:"fallbacks,omitempty"`
}

func DefaultSessionDialogueConfig() SessionDialogueConfig {
	return SessionDialogueConfig{HandlerConfig: dialoguehandler.DefaultDialogueConfig()}
}

// SessionTTSConfig bundles the speech handler config with primary and
// fallback synthesis providers.
type SessionTTSConfig struct {
	HandlerConfig          ttshandler.TTSConfig `json:"handler"`
	ServiceConfig          TTSFactoryConfig     `json:"service"`
	FallbackServiceConfigs []TTSFactoryConfig   `json:"fallbacks,omitempty"`
}

func DefaultSessionTTSConfig() SessionTTSConfig {
	return SessionTTSConfig{HandlerConfig: ttshandler.DefaultTTSConfig()}
}

// SessionConfig is the top-level configuration for one client session
// pipeline.
type SessionConfig struct {
	STT      SessionSTTConfig      `json:"stt"`
	Dialogue SessionDialogueConfig `json:"dialogue"`
	TTS      SessionTTSConfig      `json:"tts"`
	Screen   runner.ScreenConfig   `json:"screen"`
}

// DefaultSessionConfig returns a SessionConfig pre-filled with handler
// defaults. Populate the ServiceConfig fields before calling BuildHandlers.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		STT:      DefaultSessionSTTConfig(),
		Dialogue: DefaultSessionDialogueConfig(),
		TTS:      DefaultSessionTTSConfig(),
	}
}

// SessionConfigFromJSON parses a JSON blob into a SessionConfig, starting
// from DefaultSessionConfig so absent fields retain their defaults. Secrets
// belong in env vars, not config files; inject them via InjectAPIKeys.
func SessionConfigFromJSON(data []byte) (SessionConfig, error) {
	cfg := DefaultSessionConfig()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SessionConfig{}, fmt.Errorf("session config: %w", err)
	}
	return cfg, nil
}

// APIKeys holds the credentials for all supported providers.
type APIKeys struct {
	Deepgram   string
	OpenRouter string
	ElevenLabs string
}

// InjectAPIKeys applies credentials to every configured provider, primary
// and fallback alike, leaving explicitly configured keys untouched.
func (c *SessionConfig) InjectAPIKeys(keys APIKeys) {
	injectSTTKeys(&c.STT.ServiceConfig, keys)
	for i := range c.STT.FallbackServiceConfigs {
		injectSTTKeys(&c.STT.FallbackServiceConfigs[i], keys)
	}

	injectGenerationKeys(&c.Dialogue.ServiceConfig, keys)
	for i := range c.Dialogue.FallbackServiceConfigs {
		injectGenerationKeys(&c.Dialogue.FallbackServiceConfigs[i], keys)
	}

	injectTTSKeys(&c.TTS.ServiceConfig, keys)
	for i := range c.TTS.FallbackServiceConfigs {
		injectTTSKeys(&c.TTS.FallbackServiceConfigs[i], keys)
	}
}

func injectSTTKeys(cfg *STTFactoryConfig, keys APIKeys) {
	if cfg.DeepgramConfig != nil && cfg.DeepgramConfig.APIKey == "" {
		cfg.DeepgramConfig.APIKey = keys.Deepgram
	}
}

func injectGenerationKeys(cfg *GenerationFactoryConfig, keys APIKeys) {
	if cfg.OpenRouterConfig != nil && cfg.OpenRouterConfig.APIKey == "" {
		cfg.OpenRouterConfig.APIKey = keys.OpenRouter
	}
}

func injectTTSKeys(cfg *TTSFactoryConfig, keys APIKeys) {
	if cfg.DeepgramConfig != nil && cfg.DeepgramConfig.APIKey == "" {
		cfg.DeepgramConfig.APIKey = keys.Deepgram
	}
	if cfg.ElevenLabsConfig != nil && cfg.ElevenLabsConfig.APIKey == "" {
		cfg.ElevenLabsConfig.APIKey = keys.ElevenLabs
	}
}

// SessionHandlers holds the constructed handlers in pipeline order:
//
//	TransportInput → STT → Command → Dialogue → TTS → TransportOutput
type SessionHandlers struct {
	TransportIn  *transporthandler.InputHandler
	STT          *stthandler.STTHandler
	Command      *commandhandler.CommandHandler
	Dialogue     *dialoguehandler.DialogueHandler
	TTS          *ttshandler.TTSHandler
	TransportOut *transporthandler.OutputHandler
}

// Chain returns the handlers in pipeline order.
func (h *SessionHandlers) Chain() []core.IHandler {
	return []core.IHandler{h.TransportIn, h.STT, h.Command, h.Dialogue, h.TTS, h.TransportOut}
}

// BuildHandlers constructs all handlers described by the SessionConfig for
// one connected client.
func (c SessionConfig) BuildHandlers(
	transportService transporthandler.Service,
	sessionStore *store.Store,
	instructions store.InstructionStore,
	logger *core.Logger,
) (*SessionHandlers, error) {
	sttPrimary, err := BuildSTTService(c.STT.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("session: stt primary service: %w", err)
	}
	sttBackups := make([]stthandler.ISTTService, 0, len(c.STT.FallbackServiceConfigs))
	for i, fbCfg := range c.STT.FallbackServiceConfigs {
		fb, err := BuildSTTService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("session: stt fallback[%d]: %w", i, err)
		}
		sttBackups = append(sttBackups, fb)
	}

	genPrimary, err := BuildGenerationService(c.Dialogue.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("session: generation primary service: %w", err)
	}
	genBackups := make([]dialoguehandler.IGenerationService, 0, len(c.Dialogue.FallbackServiceConfigs))
	for i, fbCfg := range c.Dialogue.FallbackServiceConfigs {
		fb, err := BuildGenerationService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("session: generation fallback[%d]: %w", i, err)
		}
		genBackups = append(genBackups, fb)
	}

	ttsPrimary, err := BuildTTSService(c.TTS.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("session: tts primary service: %w", err)
	}
	ttsBackups := make([]ttshandler.ISynthesisService, 0, len(c.TTS.FallbackServiceConfigs))
	for i, fbCfg := range c.TTS.FallbackServiceConfigs {
		fb, err := BuildTTSService(fbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("session: tts fallback[%d]: %w", i, err)
		}
		ttsBackups = append(ttsBackups, fb)
	}

	wrapper := transporthandler.NewHandlerWrapper(transportService, logger)
	return &SessionHandlers{
		TransportIn:  wrapper.InputHandler(),
		STT:          stthandler.NewSTTHandler(sttPrimary, sttBackups, c.STT.HandlerConfig, logger),
		Command:      commandhandler.NewCommandHandler(sessionStore, logger),
		Dialogue:     dialoguehandler.NewDialogueHandler(genPrimary, genBackups, sessionStore, instructions, c.Dialogue.HandlerConfig, logger),
		TTS:          ttshandler.NewTTSHandler(ttsPrimary, ttsBackups, c.TTS.HandlerConfig, logger),
		TransportOut: wrapper.OutputHandler(),
	}, nil
}
