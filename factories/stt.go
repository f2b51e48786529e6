package factories

import (
	"errors"

	"pocketsocrates/core"
	stthandler "pocketsocrates/handlers/stt"
	deepgramstt "pocketsocrates/services/deepgram/stt"
)

// STTFactoryConfig holds provider-specific configs for transcription service
// construction. Set exactly one provider config.
type STTFactoryConfig struct {
	DeepgramConfig *deepgramstt.Config `json:"deepgram,omitempty"`
}

// BuildSTTService constructs an ISTTService from the given factory config.
func BuildSTTService(config STTFactoryConfig, logger *core.Logger) (stthandler.ISTTService, error) {
	if config.DeepgramConfig != nil {
		return deepgramstt.NewService(config.DeepgramConfig, logger), nil
	}
	return nil, errors.New("STTFactoryConfig: no provider config specified")
}
