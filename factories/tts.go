package factories

import (
	"errors"

	"pocketsocrates/core"
	ttshandler "pocketsocrates/handlers/tts"
	deepgramtts "pocketsocrates/services/deepgram/tts"
	elevenlabs "pocketsocrates/services/elevenlabs/tts"
)

// TTSFactoryConfig holds provider-specific configs for synthesis service
// construction. Set exactly one provider config.
type TTSFactoryConfig struct {
	DeepgramConfig   *deepgramtts.Config `json:"deepgram,omitempty"`
	ElevenLabsConfig *elevenlabs.Config  `json:"elevenlabs,omitempty"`
}

// BuildTTSService constructs an ISynthesisService from the given factory
// config.
func BuildTTSService(config TTSFactoryConfig, logger *core.Logger) (ttshandler.ISynthesisService, error) {
	if config.DeepgramConfig != nil {
		return deepgramtts.NewService(config.DeepgramConfig, logger), nil
	}
	if config.ElevenLabsConfig != nil {
		return elevenlabs.NewService(config.ElevenLabsConfig, logger), nil
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}
