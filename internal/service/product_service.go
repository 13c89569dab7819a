package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/barbartender/bartender/internal/model"
	appErr "github.com/barbartender/bartender/internal/pkg/errors"
	"github.com/barbartender/bartender/internal/pkg/timeutil"
	"github.com/barbartender/bartender/internal/pkg/validate"
)

type ProductStore interface {
	Create(ctx context.Context, p *model.Product) error
	List(ctx context.Context, userID string, filter model.ProductFilter) ([]model.Product, error)
	ListIdentifiers(ctx context.Context, userID string) ([]string, []string, error)
	Count(ctx context.Context, userID string) (int, error)
	GetByID(ctx context.Context, userID, productID string) (*model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, userID, productID string) error
	DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error)
	DeleteAll(ctx context.Context, userID string) (int64, error)
	DistinctSubCategories(ctx context.Context, userID string) ([]string, error)
}

type CategoryVocabulary struct {
	Categories    []string `json:"categories"`
	SubCategories []string `json:"sub_categories"`
}

// ProductInput is a hand-entered product. Empty supplier, unit and item
// level take the same defaults as an import row.
type ProductInput struct {
	UniqueItemNumber string  `json:"unique_item_number" validate:"max=64"`
	Description      string  `json:"description" validate:"required,max=255"`
	Supplier         string  `json:"supplier" validate:"max=255"`
	Category         string  `json:"category" validate:"required,max=64"`
	SubCategory      string  `json:"sub_category" validate:"required,max=64"`
	ItemLevel        string  `json:"item_level"`
	SellingUnit      string  `json:"selling_unit" validate:"max=32"`
	CostPerUnit      float64 `json:"cost_per_unit" validate:"gte=0"`
	Quantity         float64 `json:"quantity" validate:"gte=0"`
}

func (in *ProductInput) normalize() error {
	in.UniqueItemNumber = strings.TrimSpace(in.UniqueItemNumber)
	in.Description = strings.TrimSpace(in.Description)
	in.Supplier = strings.TrimSpace(in.Supplier)
	in.Category = strings.TrimSpace(in.Category)
	in.SubCategory = strings.TrimSpace(in.SubCategory)
	in.SellingUnit = strings.TrimSpace(in.SellingUnit)
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %s", appErr.ErrInvalid, err.Error())
	}
	if in.Supplier == "" {
		in.Supplier = model.SupplierUnknown
	}
	if in.SellingUnit == "" {
		in.SellingUnit = model.DefaultUnit
	}
	if strings.TrimSpace(in.ItemLevel) == "" {
		in.ItemLevel = model.ItemLevelMain
		return nil
	}
	level, ok := parseItemLevel(in.ItemLevel)
	if !ok {
		return fmt.Errorf("%w: item level must be Primary or Secondary", appErr.ErrInvalid)
	}
	in.ItemLevel = level
	return nil
}

type ProductService struct {
	products      ProductStore
	categories    []string
	subCategories []string
}

func NewProductService(products ProductStore, categories, subCategories []string) *ProductService {
	return &ProductService{products: products, categories: categories, subCategories: subCategories}
}

func (s *ProductService) List(ctx context.Context, userID string, filter model.ProductFilter) ([]model.Product, error) {
	filter.SubCategory = strings.TrimSpace(filter.SubCategory)
	filter.ItemLevel = strings.TrimSpace(filter.ItemLevel)
	if filter.ItemLevel != "" {
		level, ok := parseItemLevel(filter.ItemLevel)
		if !ok {
			return nil, appErr.ErrInvalid
		}
		filter.ItemLevel = level
	}
	return s.products.List(ctx, userID, filter)
}

// Create stores one product. A given unique item number must be free; an
// empty one and the item code are generated.
func (s *ProductService) Create(ctx context.Context, userID string, in ProductInput) (*model.Product, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	numbers, codes, err := s.products.ListIdentifiers(ctx, userID)
	if err != nil {
		return nil, err
	}
	itemNumbers := newIdentifierPool("ITEM-%06d", numbers)
	if in.UniqueItemNumber != "" && itemNumbers.used[in.UniqueItemNumber] {
		return nil, appErr.ErrItemNumberTaken
	}
	count, err := s.products.Count(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	p := &model.Product{
		ID:               newID(),
		UserID:           userID,
		UniqueItemNumber: itemNumbers.take(in.UniqueItemNumber, count),
		ItemCode:         newIdentifierPool("BB%03d", codes).take("", count),
		Ctime:            now,
	}
	in.apply(p, now)
	if err := s.products.Create(ctx, p); err != nil {
		if errors.Is(err, appErr.ErrConflict) {
			return nil, appErr.ErrItemNumberTaken
		}
		return nil, err
	}
	return p, nil
}

// Update replaces the editable fields of a product. An empty unique item
// number keeps the current one.
func (s *ProductService) Update(ctx context.Context, userID, productID string, in ProductInput) (*model.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, appErr.ErrInvalid
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if in.UniqueItemNumber != "" {
		p.UniqueItemNumber = in.UniqueItemNumber
	}
	in.apply(p, timeutil.NowUnix())
	if err := s.products.Update(ctx, p); err != nil {
		if errors.Is(err, appErr.ErrConflict) {
			return nil, appErr.ErrItemNumberTaken
		}
		return nil, err
	}
	return p, nil
}

func (in *ProductInput) apply(p *model.Product, now int64) {
	p.Description = in.Description
	p.Supplier = in.Supplier
	p.Category = in.Category
	p.SubCategory = in.SubCategory
	p.ItemLevel = in.ItemLevel
	p.SellingUnit = in.SellingUnit
	p.CostPerUnit = in.CostPerUnit
	p.Quantity = in.Quantity
	p.Mtime = now
}

// DeleteSelected removes the listed products and reports how many went.
// Ids the user does not own are skipped.
func (s *ProductService) DeleteSelected(ctx context.Context, userID string, ids []string) (int64, error) {
	seen := make(map[string]bool, len(ids))
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		clean = append(clean, id)
	}
	if len(clean) == 0 {
		return 0, fmt.Errorf("%w: no products selected", appErr.ErrInvalid)
	}
	return s.products.DeleteByIDs(ctx, userID, clean)
}

func (s *ProductService) Delete(ctx context.Context, userID, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return appErr.ErrInvalid
	}
	return s.products.Delete(ctx, userID, productID)
}

func (s *ProductService) DeleteAll(ctx context.Context, userID string) (int64, error) {
	return s.products.DeleteAll(ctx, userID)
}

// Categories returns the configured vocabulary plus any sub-category the
// user's products already carry.
func (s *ProductService) Categories(ctx context.Context, userID string) (*CategoryVocabulary, error) {
	used, err := s.products.DistinctSubCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	subs := make([]string, 0, len(s.subCategories)+len(used))
	seen := make(map[string]bool, cap(subs))
	for _, v := range append(append([]string{}, s.subCategories...), used...) {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		subs = append(subs, v)
	}
	return &CategoryVocabulary{Categories: s.categories, SubCategories: subs}, nil
}

func parseItemLevel(v string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "primary":
		return model.ItemLevelMain, true
	case "secondary":
		return model.ItemLevelSub, true
	}
	return "", false
}
