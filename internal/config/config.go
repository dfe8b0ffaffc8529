package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	writerModel "github.com/zhouzirui/chaptered-writer/backend/internal/model/writer"
)

// Provider 标识生成服务的后端实现。
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
	ProviderArk    Provider = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。API Key 不在此处：它由每个会话在内存中提供。
type AIConfig struct {
	Provider       Provider
	Models         []string
	DefaultModel   string
	RequestTimeout time.Duration
	Temperature    *float64
	MaxTokens      *int
	OpenAIBaseURL  string
	ArkBaseURL     string
	ArkRegion      string
}

// Catalog 返回按配置排序的模型列表，默认模型排在首位。
func (c AIConfig) Catalog() *writerModel.MemoryCatalog {
	names := make([]string, 0, len(c.Models)+1)
	if c.DefaultModel != "" {
		names = append(names, c.DefaultModel)
	}
	for _, name := range c.Models {
		if name != c.DefaultModel {
			names = append(names, name)
		}
	}
	return writerModel.NewMemoryCatalog(names)
}

// NewChatModel 使用会话提供的 key 和模型名创建 eino 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context, apiKey, modelName string) (model.BaseChatModel, error) {
	if apiKey == "" || modelName == "" {
		return nil, fmt.Errorf("api key and model name are required")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	switch c.Provider {
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.ArkBaseURL,
			Region:      c.ArkRegion,
			APIKey:      apiKey,
			Model:       modelName,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
	case ProviderOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      apiKey,
			BaseURL:     c.OpenAIBaseURL,
			Model:       modelName,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			Timeout:     c.RequestTimeout,
		})
	default:
		return nil, fmt.Errorf("provider %q has no eino chat model", c.Provider)
	}
}

func loadAIConfig() (AIConfig, error) {
	provider, err := parseProvider(getEnvOrDefault("LLM_PROVIDER", string(ProviderGemini)))
	if err != nil {
		return AIConfig{}, err
	}

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("AI_REQUEST_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return AIConfig{}, fmt.Errorf("invalid AI_REQUEST_TIMEOUT value %q: %w", raw, err)
		}
		if parsed <= 0 {
			return AIConfig{}, fmt.Errorf("invalid AI_REQUEST_TIMEOUT value %q: must be positive", raw)
		}
		timeout = parsed
	}

	models := parseListEnv("AI_MODELS")
	if len(models) == 0 {
		models = writerModel.SeedModels()
	}

	defaultModel := getEnvOrDefault("AI_DEFAULT_MODEL", models[0])
	known := false
	for _, name := range models {
		if name == defaultModel {
			known = true
			break
		}
	}
	if !known {
		return AIConfig{}, fmt.Errorf("AI_DEFAULT_MODEL %q is not listed in AI_MODELS", defaultModel)
	}

	return AIConfig{
		Provider:       provider,
		Models:         models,
		DefaultModel:   defaultModel,
		RequestTimeout: timeout,
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		OpenAIBaseURL:  getEnvOrDefault("OPENAI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
		ArkBaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}, nil
}

func parseProvider(raw string) (Provider, error) {
	switch p := Provider(strings.ToLower(raw)); p {
	case ProviderGemini, ProviderOpenAI, ProviderArk:
		return p, nil
	default:
		return "", fmt.Errorf("invalid LLM_PROVIDER value %q", raw)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	var items []string
	for _, part := range strings.Split(raw, ",") {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
