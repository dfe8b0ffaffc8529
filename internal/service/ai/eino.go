package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

const (
	textSystemPrompt = "あなたは丁寧で正確なブログ記事のライターです。指示に従い、本文のみを出力してください。"
	listSystemPrompt = "あなたはJSONのみを出力するアシスタントです。回答は文字列のJSON配列だけにしてください。説明文やコードフェンスは不要です。"
)

// ChatModelFactory creates a chat model for one API key and model name.
type ChatModelFactory func(ctx context.Context, apiKey, modelName string) (model.BaseChatModel, error)

type einoChain = compose.Runnable[map[string]any, *schema.Message]

// EinoGenerator runs prompts through an eino chain (template -> chat model).
// Compiled chains are cached per API key and model.
type EinoGenerator struct {
	newModel ChatModelFactory
	timeout  time.Duration

	mu     sync.RWMutex
	chains map[string]einoChain
}

// NewEinoGenerator returns a generator that builds chat models with newModel.
func NewEinoGenerator(newModel ChatModelFactory, timeout time.Duration) *EinoGenerator {
	return &EinoGenerator{
		newModel: newModel,
		timeout:  timeout,
		chains:   make(map[string]einoChain),
	}
}

// GenerateText implements Generator. eino chat models expose no search tool, so Grounding is ignored.
func (g *EinoGenerator) GenerateText(ctx context.Context, req Request) (string, error) {
	msg, err := g.invoke(ctx, req, textSystemPrompt)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// GenerateList implements Generator.
func (g *EinoGenerator) GenerateList(ctx context.Context, req Request) ([]string, error) {
	msg, err := g.invoke(ctx, req, listSystemPrompt)
	if err != nil {
		return nil, err
	}
	return ParseList(msg.Content)
}

func (g *EinoGenerator) invoke(ctx context.Context, req Request, system string) (*schema.Message, error) {
	chain, err := g.chain(ctx, req.APIKey, req.Model)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	msg, err := chain.Invoke(ctx, map[string]any{
		"system": system,
		"prompt": req.Prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run generation chain: %w", err)
	}
	if msg == nil {
		return &schema.Message{Role: schema.Assistant}, nil
	}

	log.Printf("[ai] eino model=%s length=%d", req.Model, len(msg.Content))
	return msg, nil
}

func (g *EinoGenerator) chain(ctx context.Context, apiKey, modelName string) (einoChain, error) {
	key := cacheKey(apiKey, modelName)

	g.mu.RLock()
	chain, ok := g.chains[key]
	g.mu.RUnlock()
	if ok {
		return chain, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if chain, ok = g.chains[key]; ok {
		return chain, nil
	}

	chatModel, err := g.newModel(ctx, apiKey, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{prompt}"),
	)

	builder := compose.NewChain[map[string]any, *schema.Message]()
	builder.AppendChatTemplate(promptTemplate)
	builder.AppendChatModel(chatModel)

	chain, err = builder.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile generation chain: %w", err)
	}

	g.chains[key] = chain
	return chain, nil
}

// cacheKey never keeps the raw key as a map key.
func cacheKey(apiKey, modelName string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return modelName + "/" + hex.EncodeToString(sum[:8])
}
