package ai

import (
	"context"
	"net/http"
	"strings"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

type openrouterConfig struct {
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url"`
	HTTPReferer string `json:"http_referer"`
	XTitle      string `json:"x_title"`
}

type openrouterProvider struct {
	apiKey  string
	baseURL string
	headers map[string]string
	client  *http.Client
}

func (p *openrouterProvider) Name() string {
	return "openrouter"
}

func (p *openrouterProvider) Generate(ctx context.Context, model string, req *GenerateRequest) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}
	body := buildChatRequest(model, req)
	if req.JSON {
		body.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + "/chat/completions"
	return postChat(ctx, p.client, p.Name(), endpoint, p.apiKey, p.headers, body)
}

func createOpenRouterFactory(args interface{}) (IProvider, error) {
	cfg := &openrouterConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrUnavailable
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	headers := map[string]string{}
	if v := strings.TrimSpace(cfg.HTTPReferer); v != "" {
		headers["HTTP-Referer"] = v
	}
	if v := strings.TrimSpace(cfg.XTitle); v != "" {
		headers["X-Title"] = v
	}
	return &openrouterProvider{apiKey: apiKey, baseURL: baseURL, headers: headers, client: http.DefaultClient}, nil
}

func init() {
	Register("openrouter", createOpenRouterFactory)
}
