// Package llm provides the recommendation text generator. Output is free
// text and must be treated as untrusted by callers.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/kalambet/dishcover/internal/config"
	"github.com/kalambet/dishcover/internal/metrics"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultMaxTokens   = 2048
	defaultTemperature = 0.7
)

// Generator produces a completion for a single user prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New returns the generator selected by cfg.Backend, instrumented with
// request metrics.
func New(cfg config.GeneratorConfig) (Generator, error) {
	var g Generator
	switch cfg.Backend {
	case "openrouter":
		if cfg.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("openrouter backend requires an API key")
		}
		g = NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.Model, cfg.MaxTokens)
	case "ollama":
		g = NewOllama(cfg.OllamaBaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown generator backend %q", cfg.Backend)
	}
	return &instrumented{backend: cfg.Backend, next: g}, nil
}

type instrumented struct {
	backend string
	next    Generator
}

func (i *instrumented) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := i.next.Generate(ctx, prompt)
	metrics.GeneratorDuration.WithLabelValues(i.backend).Observe(time.Since(start).Seconds())
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.GeneratorRequests.WithLabelValues(i.backend, result).Inc()
	return out, err
}
