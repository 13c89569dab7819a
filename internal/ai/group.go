package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/barbartender/bartender/internal/config"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type groupGenerator struct {
	items []GeneratorEntry
}

func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	if len(items) == 0 {
		return nil
	}
	return &groupGenerator{items: items}
}

func (g *groupGenerator) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Generator == nil {
			continue
		}
		res, err := item.Generator.Generate(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("generator failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		return "", fmt.Errorf("generator not configured")
	}
	return "", lastErr
}

// BuildGenerator turns the configured providers into one fallback group.
// Providers without a credential are left out; nil means none is usable.
func BuildGenerator(ctx context.Context, providers []config.AIProviderConfig) (IGenerator, error) {
	entries := make([]GeneratorEntry, 0, len(providers))
	for _, p := range providers {
		provider, err := NewProvider(p.Type, p.Data)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				logutil.GetLogger(ctx).Info("ai provider has no credential, skipped", zap.String("name", p.Name))
				continue
			}
			return nil, fmt.Errorf("init ai provider %s: %w", p.Name, err)
		}
		entries = append(entries, GeneratorEntry{Name: p.Name, Generator: NewGenerator(provider, p.Model)})
	}
	return NewGroupGenerator(entries), nil
}
