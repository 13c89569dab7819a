package ai

import (
	"context"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type openAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) Generate(ctx context.Context, model string, req *GenerateRequest) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}
	body := buildChatRequest(model, req)
	endpoint := strings.TrimRight(p.baseURL, "/") + "/chat/completions"
	return postChat(ctx, p.client, p.Name(), endpoint, p.apiKey, nil, body)
}

func createOpenAIFactory(args interface{}) (IProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrUnavailable
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIProvider{apiKey: apiKey, baseURL: baseURL, client: http.DefaultClient}, nil
}

func init() {
	Register("openai", createOpenAIFactory)
}
