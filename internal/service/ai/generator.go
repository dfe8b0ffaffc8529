package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zhouzirui/chaptered-writer/backend/internal/config"
	"github.com/zhouzirui/chaptered-writer/backend/pkg/metrics"
)

// ErrMalformedResponse is returned when a list call yields no JSON array of values.
var ErrMalformedResponse = errors.New("malformed structured response")

// Request is a single prompt sent to the generation service.
type Request struct {
	APIKey string
	Model  string
	Prompt string
	// Grounding asks the provider to back the answer with web search, when it supports it.
	Grounding bool
}

// Generator is the generation service boundary. Every call is a single attempt.
type Generator interface {
	// GenerateText returns the model's free text, "" when it produced none.
	GenerateText(ctx context.Context, req Request) (string, error)
	// GenerateList returns an ordered list of strings; elements are coerced to text, not trimmed or filtered.
	GenerateList(ctx context.Context, req Request) ([]string, error)
}

// New builds the generator for the configured provider, wrapped with call metrics.
func New(cfg config.AIConfig) (Generator, error) {
	var gen Generator
	switch cfg.Provider {
	case config.ProviderGemini:
		gen = NewGeminiGenerator(cfg)
	case config.ProviderOpenAI, config.ProviderArk:
		gen = NewEinoGenerator(cfg.NewChatModel, cfg.RequestTimeout)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
	return Instrument(gen), nil
}

// Instrument records a metric for every call made through gen.
func Instrument(gen Generator) Generator {
	return instrumented{next: gen}
}

type instrumented struct {
	next Generator
}

func (g instrumented) GenerateText(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := g.next.GenerateText(ctx, req)
	metrics.RecordGeneration("text", req.Model, err, time.Since(start).Seconds())
	return text, err
}

func (g instrumented) GenerateList(ctx context.Context, req Request) ([]string, error) {
	start := time.Now()
	items, err := g.next.GenerateList(ctx, req)
	metrics.RecordGeneration("list", req.Model, err, time.Since(start).Seconds())
	return items, err
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
