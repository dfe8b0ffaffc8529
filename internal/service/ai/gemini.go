package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/zhouzirui/chaptered-writer/backend/internal/config"
)

// contentGenerator is the slice of the genai models API this package uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type geminiClientFactory func(ctx context.Context, apiKey string) (contentGenerator, error)

// GeminiGenerator calls the Gemini API natively so that search grounding and
// typed list schemas are available.
type GeminiGenerator struct {
	newClient   geminiClientFactory
	timeout     time.Duration
	temperature *float32

	mu      sync.Mutex
	clients map[string]contentGenerator
}

// NewGeminiGenerator returns a generator backed by google.golang.org/genai.
func NewGeminiGenerator(cfg config.AIConfig) *GeminiGenerator {
	var temperature *float32
	if cfg.Temperature != nil {
		val := float32(*cfg.Temperature)
		temperature = &val
	}
	return &GeminiGenerator{
		newClient:   newGeminiClient,
		timeout:     cfg.RequestTimeout,
		temperature: temperature,
		clients:     make(map[string]contentGenerator),
	}
}

func newGeminiClient(ctx context.Context, apiKey string) (contentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

// GenerateText implements Generator.
func (g *GeminiGenerator) GenerateText(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{Temperature: g.temperature}
	if req.Grounding {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return g.generate(ctx, req, cfg)
}

// GenerateList implements Generator.
func (g *GeminiGenerator) GenerateList(ctx context.Context, req Request) ([]string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      g.temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	}
	text, err := g.generate(ctx, req, cfg)
	if err != nil {
		return nil, err
	}
	return ParseList(text)
}

func (g *GeminiGenerator) generate(ctx context.Context, req Request, cfg *genai.GenerateContentConfig) (string, error) {
	client, err := g.client(ctx, req.APIKey)
	if err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := client.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := responseText(resp)
	log.Printf("[ai] gemini model=%s grounding=%t length=%d", req.Model, req.Grounding, len(text))
	return text, nil
}

func (g *GeminiGenerator) client(ctx context.Context, apiKey string) (contentGenerator, error) {
	key := cacheKey(apiKey, "")

	g.mu.Lock()
	defer g.mu.Unlock()

	if client, ok := g.clients[key]; ok {
		return client, nil
	}

	client, err := g.newClient(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	g.clients[key] = client
	return client, nil
}

// responseText joins the text parts of the first candidate, skipping thought parts.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}
