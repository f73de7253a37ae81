package summary

import (
	"fmt"
	"time"

	"github.com/engramdb/engram/internal/config"
)

// New builds a Summarizer from the config mode setting.
func New(cfg config.SummarizerConfig) (Summarizer, error) {
	switch cfg.Mode {
	case "", "extractive":
		return NewExtractive(), nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.OllamaModel
		if model == "" {
			model = "llama3.2"
		}
		return NewOllama(url, model, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown summarizer mode: %q", cfg.Mode)
	}
}
