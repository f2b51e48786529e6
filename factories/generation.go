package factories

import (
	"errors"

	"pocketsocrates/core"
	dialoguehandler "pocketsocrates/handlers/dialogue"
	"pocketsocrates/services/openrouter"
)

// GenerationFactoryConfig holds provider-specific configs for generation
// service construction. Set exactly one provider config.
type GenerationFactoryConfig struct {
	OpenRouterConfig *openrouter.Config `json:"openrouter,omitempty"`
}

// BuildGenerationService constructs an IGenerationService from the given
// factory config.
func BuildGenerationService(config GenerationFactoryConfig, logger *core.Logger) (dialoguehandler.IGenerationService, error) {
	if config.OpenRouterConfig != nil {
		return openrouter.NewService(config.OpenRouterConfig, logger), nil
	}
	return nil, errors.New("GenerationFactoryConfig: no provider config specified")
}
