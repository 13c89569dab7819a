package model

const (
	CategoryOther   = "Other"
	SupplierUnknown = "N/A"
	ItemLevelMain   = "Primary"
	ItemLevelSub    = "Secondary"
	DefaultUnit     = "each"
)

type Product struct {
	ID               string  `json:"id" db:"id"`
	UserID           string  `json:"user_id" db:"user_id"`
	UniqueItemNumber string  `json:"unique_item_number" db:"unique_item_number"`
	ItemCode         string  `json:"item_code" db:"item_code"`
	Description      string  `json:"description" db:"description"`
	Supplier         string  `json:"supplier" db:"supplier"`
	Category         string  `json:"category" db:"category"`
	SubCategory      string  `json:"sub_category" db:"sub_category"`
	ItemLevel        string  `json:"item_level" db:"item_level"`
	Quantity         float64 `json:"quantity" db:"quantity"`
	SellingUnit      string  `json:"selling_unit" db:"selling_unit"`
	CostPerUnit      float64 `json:"cost_per_unit" db:"cost_per_unit"`
	Ctime            int64   `json:"ctime" db:"ctime"`
	Mtime            int64   `json:"mtime" db:"mtime"`
}

type ProductFilter struct {
	SubCategory string
	ItemLevel   string
}
