package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const categorizeSystemPrompt = "You are a helpful assistant that categorizes products for bar and restaurant inventory management. Always respond with valid JSON only."

// Suggestion is the raw pair returned by the model, not yet checked
// against any allow-list.
type Suggestion struct {
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
}

type CategorizerConfig struct {
	Timeout time.Duration
}

type Categorizer struct {
	gen IGenerator
	cfg CategorizerConfig
}

// NewCategorizer returns nil when gen is nil so callers can treat a
// missing credential as "not configured".
func NewCategorizer(gen IGenerator, cfg CategorizerConfig) *Categorizer {
	if gen == nil {
		return nil
	}
	return &Categorizer{gen: gen, cfg: cfg}
}

func (c *Categorizer) Suggest(ctx context.Context, description, supplier string, categories, subCategories []string) (*Suggestion, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	resp, err := c.gen.Generate(ctx, &GenerateRequest{
		System:      categorizeSystemPrompt,
		Prompt:      buildCategorizePrompt(description, supplier, categories, subCategories),
		Temperature: 0.3,
		MaxTokens:   150,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}
	return ParseSuggestion(resp)
}

func buildCategorizePrompt(description, supplier string, categories, subCategories []string) string {
	var sb strings.Builder
	sb.WriteString("Categorize this bar/restaurant product.\n\n")
	sb.WriteString("Product description: ")
	sb.WriteString(description)
	sb.WriteString("\n")
	if supplier != "" {
		sb.WriteString("Supplier: ")
		sb.WriteString(supplier)
		sb.WriteString("\n")
	}
	sb.WriteString("\nAvailable categories: ")
	sb.WriteString(strings.Join(categories, ", "))
	sb.WriteString("\nAvailable sub-categories: ")
	sb.WriteString(strings.Join(subCategories, ", "))
	sb.WriteString(`

Pick exactly one category and one sub-category from the lists above.
Respond with JSON only, in this format:
{"category": "<category>", "sub_category": "<sub-category>"}`)
	return sb.String()
}

// ParseSuggestion accepts the model output with or without a markdown
// code fence around the JSON object.
func ParseSuggestion(output string) (*Suggestion, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no json object in ai response")
	}
	var s Suggestion
	if err := json.Unmarshal([]byte(clean[start:end+1]), &s); err != nil {
		return nil, fmt.Errorf("parse ai response: %w", err)
	}
	s.Category = strings.TrimSpace(s.Category)
	s.SubCategory = strings.TrimSpace(s.SubCategory)
	if s.Category == "" && s.SubCategory == "" {
		return nil, fmt.Errorf("empty ai suggestion")
	}
	return &s, nil
}
