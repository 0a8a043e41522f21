package factory

import (
	"fmt"
	"strings"

	"deep-research-be/pkg/llm"
	"deep-research-be/pkg/llm/deepseek"
	"deep-research-be/pkg/llm/ollama"
)

type ProviderConfig struct {
	Provider  string
	BaseURL   string
	ApiKey    string
	ModelName string
}

// NewLLMProvider resolves a chat provider from config. Supported providers
// are "deepseek" (any OpenAI-compatible endpoint) and "ollama".
func NewLLMProvider(cfg ProviderConfig) (llm.LLMProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "deepseek":
		if cfg.ApiKey == "" {
			return nil, fmt.Errorf("deepseek provider requires an api key")
		}
		return deepseek.NewDeepSeekProvider(cfg.BaseURL, cfg.ApiKey, cfg.ModelName), nil
	case "ollama":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("ollama provider requires a base url")
		}
		return ollama.NewOllamaProvider(cfg.BaseURL, cfg.ModelName), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
