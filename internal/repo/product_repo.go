package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/barbartender/bartender/internal/model"
	"github.com/barbartender/bartender/internal/pkg/dbutil"
	appErr "github.com/barbartender/bartender/internal/pkg/errors"
)

const productTable = "products"

var productFields = []string{
	"id", "user_id", "unique_item_number", "item_code", "description", "supplier",
	"category", "sub_category", "item_level", "quantity", "selling_unit", "cost_per_unit",
	"ctime", "mtime",
}

type ProductRepo struct {
	sqlBase
	x *sqlx.DB
}

func NewProductRepo(db *sql.DB, driver string) *ProductRepo {
	return &ProductRepo{sqlBase: sqlBase{db: db, driver: driver}, x: sqlx.NewDb(db, driver)}
}

func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	data := map[string]interface{}{
		"id":                 p.ID,
		"user_id":            p.UserID,
		"unique_item_number": p.UniqueItemNumber,
		"item_code":          p.ItemCode,
		"description":        p.Description,
		"supplier":           p.Supplier,
		"category":           p.Category,
		"sub_category":       p.SubCategory,
		"item_level":         p.ItemLevel,
		"quantity":           p.Quantity,
		"selling_unit":       p.SellingUnit,
		"cost_per_unit":      p.CostPerUnit,
		"ctime":              p.Ctime,
		"mtime":              p.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert(productTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

// List returns the user's products. The sub-category filter ignores case.
func (r *ProductRepo) List(ctx context.Context, userID string, filter model.ProductFilter) ([]model.Product, error) {
	where := map[string]interface{}{"user_id": userID, "_orderby": "ctime asc, item_code asc"}
	if filter.ItemLevel != "" {
		where["item_level"] = filter.ItemLevel
	}
	sqlStr, args, err := builder.BuildSelect(productTable, where, productFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	items := []model.Product{}
	if err := r.x.SelectContext(ctx, &items, sqlStr, args...); err != nil {
		return nil, err
	}
	sub := strings.TrimSpace(filter.SubCategory)
	if sub == "" {
		return items, nil
	}
	matched := items[:0]
	for _, item := range items {
		if strings.EqualFold(strings.TrimSpace(item.SubCategory), sub) {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

func (r *ProductRepo) GetByID(ctx context.Context, userID, productID string) (*model.Product, error) {
	where := map[string]interface{}{"user_id": userID, "id": productID, "_limit": []uint{0, 1}}
	sqlStr, args, err := builder.BuildSelect(productTable, where, productFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	var p model.Product
	if err := r.x.GetContext(ctx, &p, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Update rewrites the editable fields of p. Item code and ctime never change.
func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	where := map[string]interface{}{"user_id": p.UserID, "id": p.ID}
	data := map[string]interface{}{
		"unique_item_number": p.UniqueItemNumber,
		"description":        p.Description,
		"supplier":           p.Supplier,
		"category":           p.Category,
		"sub_category":       p.SubCategory,
		"item_level":         p.ItemLevel,
		"quantity":           p.Quantity,
		"selling_unit":       p.SellingUnit,
		"cost_per_unit":      p.CostPerUnit,
		"mtime":              p.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate(productTable, where, data)
	if err != nil {
		return err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// DeleteByIDs removes the listed products the user owns; unknown ids are
// ignored.
func (r *ProductRepo) DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	values := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}
	sqlStr, args, err := builder.BuildDelete(productTable, map[string]interface{}{"user_id": userID, "id in": values})
	if err != nil {
		return 0, err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListIdentifiers returns every unique item number and item code the user
// already owns.
func (r *ProductRepo) ListIdentifiers(ctx context.Context, userID string) (numbers []string, codes []string, err error) {
	where := map[string]interface{}{"user_id": userID}
	sqlStr, args, err := builder.BuildSelect(productTable, where, []string{"unique_item_number", "item_code"})
	if err != nil {
		return nil, nil, err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var number, code string
		if err := rows.Scan(&number, &code); err != nil {
			return nil, nil, err
		}
		numbers = append(numbers, number)
		codes = append(codes, code)
	}
	return numbers, codes, rows.Err()
}

func (r *ProductRepo) Count(ctx context.Context, userID string) (int, error) {
	where := map[string]interface{}{"user_id": userID}
	sqlStr, args, err := builder.BuildSelect(productTable, where, []string{"COUNT(1)"})
	if err != nil {
		return 0, err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	var count int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ProductRepo) Delete(ctx context.Context, userID, productID string) error {
	sqlStr, args, err := builder.BuildDelete(productTable, map[string]interface{}{"user_id": userID, "id": productID})
	if err != nil {
		return err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *ProductRepo) DeleteAll(ctx context.Context, userID string) (int64, error) {
	sqlStr, args, err := builder.BuildDelete(productTable, map[string]interface{}{"user_id": userID})
	if err != nil {
		return 0, err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *ProductRepo) DistinctSubCategories(ctx context.Context, userID string) ([]string, error) {
	where := map[string]interface{}{"user_id": userID, "_groupby": "sub_category", "_orderby": "sub_category asc"}
	sqlStr, args, err := builder.BuildSelect(productTable, where, []string{"sub_category"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	var values []string
	if err := r.x.SelectContext(ctx, &values, sqlStr, args...); err != nil {
		return nil, err
	}
	return values, nil
}
