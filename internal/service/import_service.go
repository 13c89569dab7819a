package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/barbartender/bartender/internal/filestore"
	"github.com/barbartender/bartender/internal/model"
	appErr "github.com/barbartender/bartender/internal/pkg/errors"
	"github.com/barbartender/bartender/internal/pkg/timeutil"
)

const (
	colDescription = "DESCRIPTION"
	colSupplier    = "SUPPLIER"
	colCategory    = "CATEGORY"
	colCost        = "COST/UNIT (AED)"
	colSubCategory = "SUB CATEGORY"
	colItemLevel   = "ITEM LEVEL"
	colUnit        = "UNIT"
	colUniqueItem  = "UNIQUE ITEM #"
	colCode        = "CODE"
	colQuantity    = "QUANTITY"

	maxReportErrors = 100
	maxGenerateTry  = 10000
)

var requiredColumns = []string{colDescription, colSupplier, colCategory, colCost}

type ImportService struct {
	products      ProductStore
	categorizer   *CategorizeService
	archive       filestore.Store
	categories    []string
	subCategories []string
}

func NewImportService(products ProductStore, categorizer *CategorizeService, archive filestore.Store, categories, subCategories []string) *ImportService {
	return &ImportService{
		products:      products,
		categorizer:   categorizer,
		archive:       archive,
		categories:    categories,
		subCategories: subCategories,
	}
}

// ImportWorkbook reads the first sheet of an .xlsx upload and stores one
// product per row. Rows fail individually; categorization never fails a row.
func (s *ImportService) ImportWorkbook(ctx context.Context, userID, fileName string, r io.ReadSeeker, size int64) (*model.ImportReport, error) {
	if !strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		return nil, fmt.Errorf("%w: only .xlsx files are supported", appErr.ErrInvalidWorkbook)
	}
	rows, err := readWorkbookRows(r)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("file", fileName))

	base, err := s.products.Count(ctx, userID)
	if err != nil {
		return nil, err
	}
	numbers, codes, err := s.products.ListIdentifiers(ctx, userID)
	if err != nil {
		return nil, err
	}
	itemNumbers := newIdentifierPool("ITEM-%06d", numbers)
	itemCodes := newIdentifierPool("BB%03d", codes)

	report := &model.ImportReport{Errors: []string{}}
	for _, row := range rows {
		report.Total++
		product, categorized := s.buildProduct(ctx, userID, row)
		if product == nil {
			report.Skipped++
			continue
		}
		product.UniqueItemNumber = itemNumbers.take(product.UniqueItemNumber, base+report.Created)
		product.ItemCode = itemCodes.take(product.ItemCode, base+report.Created)
		if err := s.products.Create(ctx, product); err != nil {
			logger.Error("import row failed", zap.Int("line", row.Line), zap.Error(err))
			itemNumbers.release(product.UniqueItemNumber)
			itemCodes.release(product.ItemCode)
			report.Skipped++
			if len(report.Errors) < maxReportErrors {
				report.Errors = append(report.Errors, fmt.Sprintf("row %d: %v", row.Line, err))
			}
			continue
		}
		report.Created++
		if categorized {
			report.Categorized++
		}
	}
	report.ArchiveKey = s.archiveWorkbook(ctx, userID, r, size)
	logger.Info("workbook imported",
		zap.Int("total", report.Total), zap.Int("created", report.Created),
		zap.Int("skipped", report.Skipped), zap.Int("categorized", report.Categorized))
	return report, nil
}

func (s *ImportService) buildProduct(ctx context.Context, userID string, row model.ImportRow) (*model.Product, bool) {
	if row.Description == "" {
		return nil, false
	}
	supplier := row.Supplier
	if supplier == "" {
		supplier = model.SupplierUnknown
	}
	category, subCategory := row.Category, row.SubCategory
	categorized := false
	if NeedsCategorization(category, subCategory) && s.categorizer.Enabled() {
		res := s.categorizer.Categorize(ctx, CategorizeInput{
			Description: row.Description,
			Supplier:    supplier,
			Category:    category,
			SubCategory: subCategory,
		}, s.categories, s.subCategories)
		category, subCategory = res.Category, res.SubCategory
		categorized = res.Outcome == OutcomeAccepted
	}
	if strings.TrimSpace(category) == "" {
		category = model.CategoryOther
	}
	if strings.TrimSpace(subCategory) == "" {
		subCategory = model.CategoryOther
	}
	level, ok := parseItemLevel(row.ItemLevel)
	if !ok {
		level = model.ItemLevelMain
	}
	unit := row.Unit
	if unit == "" {
		unit = model.DefaultUnit
	}
	now := timeutil.NowUnix()
	return &model.Product{
		ID:               newID(),
		UserID:           userID,
		UniqueItemNumber: row.UniqueItemNumber,
		ItemCode:         row.ItemCode,
		Description:      row.Description,
		Supplier:         supplier,
		Category:         category,
		SubCategory:      subCategory,
		ItemLevel:        level,
		Quantity:         parseNumber(row.Quantity),
		SellingUnit:      unit,
		CostPerUnit:      parseNumber(row.CostPerUnit),
		Ctime:            now,
		Mtime:            now,
	}, categorized
}

func (s *ImportService) archiveWorkbook(ctx context.Context, userID string, r io.ReadSeeker, size int64) string {
	if s.archive == nil {
		return ""
	}
	key := archiveKeyPrefix(userID) + newID() + ".xlsx"
	if err := s.archive.Save(ctx, key, r, size); err != nil {
		logutil.GetLogger(ctx).Warn("archive workbook failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return key
}

// OpenArchive returns a workbook previously archived for userID.
func (s *ImportService) OpenArchive(ctx context.Context, userID, key string) (io.ReadCloser, error) {
	if s.archive == nil || userID == "" || !strings.HasPrefix(key, archiveKeyPrefix(userID)) {
		return nil, appErr.ErrNotFound
	}
	rc, err := s.archive.Open(ctx, key)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return rc, nil
}

func archiveKeyPrefix(userID string) string {
	return userID + "_"
}

func readWorkbookRows(r io.ReadSeeker) ([]model.ImportRow, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrInvalidWorkbook, err)
	}
	defer func() { _ = f.Close() }()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", appErr.ErrInvalidWorkbook)
	}
	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrInvalidWorkbook, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: workbook is empty", appErr.ErrInvalidWorkbook)
	}
	columns := make(map[string]int, len(raw[0]))
	for i, name := range raw[0] {
		key := strings.ToUpper(strings.TrimSpace(name))
		if _, dup := columns[key]; key != "" && !dup {
			columns[key] = i
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", appErr.ErrInvalidWorkbook, strings.Join(missing, ", "))
	}

	rows := make([]model.ImportRow, 0, len(raw)-1)
	for i, cells := range raw[1:] {
		if isBlankRow(cells) {
			continue
		}
		cell := func(col string) string {
			idx, ok := columns[col]
			if !ok || idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}
		rows = append(rows, model.ImportRow{
			Line:             i + 2,
			Description:      cell(colDescription),
			Supplier:         cell(colSupplier),
			Category:         cell(colCategory),
			SubCategory:      cell(colSubCategory),
			ItemLevel:        cell(colItemLevel),
			Unit:             cell(colUnit),
			CostPerUnit:      cell(colCost),
			UniqueItemNumber: cell(colUniqueItem),
			ItemCode:         cell(colCode),
			Quantity:         cell(colQuantity),
		})
	}
	return rows, nil
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseNumber is lenient: thousands separators are dropped and anything
// unparseable counts as zero.
func parseNumber(v string) float64 {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// identifierPool hands out identifiers unique across the user's existing
// products and the current batch.
type identifierPool struct {
	format string
	used   map[string]bool
}

func newIdentifierPool(format string, existing []string) *identifierPool {
	used := make(map[string]bool, len(existing))
	for _, v := range existing {
		if v != "" {
			used[v] = true
		}
	}
	return &identifierPool{format: format, used: used}
}

// take keeps wanted when it is still free, otherwise generates the next
// free identifier after offset.
func (p *identifierPool) take(wanted string, offset int) string {
	if wanted != "" && !p.used[wanted] {
		p.used[wanted] = true
		return wanted
	}
	for counter := 1; counter <= maxGenerateTry; counter++ {
		candidate := fmt.Sprintf(p.format, offset+counter)
		if !p.used[candidate] {
			p.used[candidate] = true
			return candidate
		}
	}
	candidate := strings.SplitN(p.format, "%", 2)[0] + newID()
	p.used[candidate] = true
	return candidate
}

// release frees an identifier whose row was never stored.
func (p *identifierPool) release(id string) {
	delete(p.used, id)
}
