package services

import (
	"fmt"
	"log"
	"strings"

	"survey-voice-api/config"
)

// NewAIProvider builds the provider named by cfg.Provider. With no provider
// named it picks whichever API key is present, Gemini first. A nil provider
// and nil error mean no clarifier is configured.
func NewAIProvider(cfg config.AIConfig) (AIProvider, error) {
	providerMode := strings.ToLower(cfg.Provider)

	if providerMode == "" {
		switch {
		case cfg.GeminiAPIKey != "":
			providerMode = "gemini"
		case cfg.OpenRouterAPIKey != "":
			providerMode = "openrouter"
		default:
			providerMode = "none"
		}
		log.Printf("[AIProvider] AI_PROVIDER not set, using '%s'", providerMode)
	}

	log.Printf("[AIProvider] Initializing AI provider: %s", providerMode)

	switch providerMode {
	case "none":
		log.Println("⚠️  [AIProvider] No AI provider configured, responses pass through unclarified")
		return nil, nil

	case "openrouter":
		client, err := NewOpenRouterClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenRouter: %w", err)
		}
		log.Printf("[AIProvider] ✓ OpenRouter client ready (model: %s)", client.GetModelName())
		return client, nil

	case "gemini":
		client, err := NewGeminiClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini: %w", err)
		}
		log.Printf("[AIProvider] ✓ Gemini client ready (model: %s)", client.GetModelName())
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER: %s (valid options: openrouter, gemini, none)", providerMode)
	}
}
