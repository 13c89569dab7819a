package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/barbartender/bartender/internal/ai"
	"github.com/barbartender/bartender/internal/model"
)

type CategorizeOutcome string

const (
	OutcomeSkipped          CategorizeOutcome = "skipped"
	OutcomeFallbackError    CategorizeOutcome = "fallback_error"
	OutcomeFallbackRejected CategorizeOutcome = "fallback_rejected"
	OutcomeAccepted         CategorizeOutcome = "accepted"
)

type Suggester interface {
	Suggest(ctx context.Context, description, supplier string, categories, subCategories []string) (*ai.Suggestion, error)
}

type CategorizeInput struct {
	Description string
	Supplier    string
	Category    string
	SubCategory string
}

type CategorizeResult struct {
	Category    string
	SubCategory string
	Outcome     CategorizeOutcome
}

// attempt is what the decision list looks at once the model was asked.
type attempt struct {
	suggestion  *ai.Suggestion
	err         error
	category    string
	subCategory string
	matched     bool
}

type decision struct {
	outcome CategorizeOutcome
	applies func(a *attempt) bool
}

// Evaluated in order; the first rule that applies decides.
var categorizeDecisions = []decision{
	{outcome: OutcomeFallbackError, applies: func(a *attempt) bool { return a.err != nil || a.suggestion == nil }},
	{outcome: OutcomeFallbackRejected, applies: func(a *attempt) bool { return !a.matched }},
	{outcome: OutcomeAccepted, applies: func(a *attempt) bool { return true }},
}

type CategorizeService struct {
	suggester Suggester
	cache     *expirable.LRU[string, ai.Suggestion]
}

func NewCategorizeService(suggester Suggester, cacheSize int, cacheTTL time.Duration) *CategorizeService {
	if c, ok := suggester.(*ai.Categorizer); ok && c == nil {
		suggester = nil
	}
	if cacheSize <= 0 {
		cacheSize = 1
	}
	return &CategorizeService{
		suggester: suggester,
		cache:     expirable.NewLRU[string, ai.Suggestion](cacheSize, nil, cacheTTL),
	}
}

func (s *CategorizeService) Enabled() bool {
	return s != nil && s.suggester != nil
}

// NeedsCategorization reports whether either field is empty or the
// "Other" placeholder.
func NeedsCategorization(category, subCategory string) bool {
	return isPlaceholder(category) || isPlaceholder(subCategory)
}

func isPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == model.CategoryOther
}

// Categorize fills placeholder fields from the model's suggestion. The
// result is always either the input unchanged or carries values taken
// from the allow-lists.
func (s *CategorizeService) Categorize(ctx context.Context, in CategorizeInput, categories, subCategories []string) CategorizeResult {
	keep := CategorizeResult{Category: in.Category, SubCategory: in.SubCategory, Outcome: OutcomeSkipped}
	description := strings.TrimSpace(in.Description)
	if !s.Enabled() || !NeedsCategorization(in.Category, in.SubCategory) || description == "" ||
		len(categories) == 0 || len(subCategories) == 0 {
		return keep
	}
	supplier := strings.TrimSpace(in.Supplier)
	if supplier == model.SupplierUnknown {
		supplier = ""
	}

	a := &attempt{}
	a.suggestion, a.err = s.suggest(ctx, description, supplier, categories, subCategories)
	if a.suggestion != nil {
		var okCat, okSub bool
		a.category, okCat = matchAllowed(a.suggestion.Category, categories)
		a.subCategory, okSub = matchAllowed(a.suggestion.SubCategory, subCategories)
		a.matched = okCat && okSub
	}

	outcome := OutcomeFallbackError
	for _, d := range categorizeDecisions {
		if d.applies(a) {
			outcome = d.outcome
			break
		}
	}

	logger := logutil.GetLogger(ctx).With(zap.String("description", description), zap.String("outcome", string(outcome)))
	switch outcome {
	case OutcomeFallbackError:
		logger.Warn("ai categorization failed, keep original values", zap.Error(a.err))
	case OutcomeFallbackRejected:
		logger.Warn("ai categorization out of vocabulary, keep original values",
			zap.String("category", a.suggestion.Category), zap.String("sub_category", a.suggestion.SubCategory))
	}
	if outcome != OutcomeAccepted {
		keep.Outcome = outcome
		return keep
	}

	res := CategorizeResult{Category: in.Category, SubCategory: in.SubCategory, Outcome: OutcomeAccepted}
	if isPlaceholder(in.Category) {
		res.Category = a.category
	}
	if isPlaceholder(in.SubCategory) {
		res.SubCategory = a.subCategory
	}
	logger.Debug("ai categorization accepted", zap.String("category", res.Category), zap.String("sub_category", res.SubCategory))
	return res
}

func (s *CategorizeService) suggest(ctx context.Context, description, supplier string, categories, subCategories []string) (*ai.Suggestion, error) {
	key := categorizeCacheKey(description, supplier, categories, subCategories)
	if v, ok := s.cache.Get(key); ok {
		return &v, nil
	}
	res, err := s.suggester.Suggest(ctx, description, supplier, categories, subCategories)
	if err != nil {
		return nil, err
	}
	if res != nil {
		s.cache.Add(key, *res)
	}
	return res, nil
}

// matchAllowed returns the allow-list spelling of v, ignoring case and
// runs of whitespace.
func matchAllowed(v string, allowed []string) (string, bool) {
	want := normalizeLabel(v)
	if want == "" {
		return "", false
	}
	for _, item := range allowed {
		if normalizeLabel(item) == want {
			return item, true
		}
	}
	return "", false
}

func normalizeLabel(v string) string {
	return strings.ToLower(strings.Join(strings.Fields(v), " "))
}

func categorizeCacheKey(description, supplier string, categories, subCategories []string) string {
	h := sha256.New()
	for _, part := range []string{normalizeLabel(description), normalizeLabel(supplier), strings.Join(categories, "\x1f"), strings.Join(subCategories, "\x1f")} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
