package model

// ImportRow is one spreadsheet row after header mapping, before it is
// turned into a Product.
type ImportRow struct {
	Line             int
	Description      string
	Supplier         string
	Category         string
	SubCategory      string
	ItemLevel        string
	Unit             string
	CostPerUnit      string
	UniqueItemNumber string
	ItemCode         string
	Quantity         string
}

type ImportReport struct {
	Total       int      `json:"total"`
	Created     int      `json:"created"`
	Skipped     int      `json:"skipped"`
	Categorized int      `json:"categorized"`
	Errors      []string `json:"errors"`
	ArchiveKey  string   `json:"archive_key,omitempty"`
}
