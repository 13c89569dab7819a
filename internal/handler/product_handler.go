package handler

import (
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/barbartender/bartender/internal/model"
	"github.com/barbartender/bartender/internal/pkg/errcode"
	"github.com/barbartender/bartender/internal/pkg/response"
	"github.com/barbartender/bartender/internal/service"
)

type ProductHandler struct {
	products      *service.ProductService
	imports       *service.ImportService
	maxUploadSize int64
}

func NewProductHandler(products *service.ProductService, imports *service.ImportService, maxUploadSize int64) *ProductHandler {
	return &ProductHandler{products: products, imports: imports, maxUploadSize: maxUploadSize}
}

func (h *ProductHandler) List(c *gin.Context) {
	items, err := h.products.List(c.Request.Context(), getUserID(c), model.ProductFilter{
		SubCategory: strings.TrimSpace(c.Query("category")),
		ItemLevel:   strings.TrimSpace(c.Query("level")),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	if items == nil {
		items = []model.Product{}
	}
	response.Success(c, gin.H{"items": items, "total": len(items)})
}

func (h *ProductHandler) Categories(c *gin.Context) {
	vocab, err := h.products.Categories(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, vocab)
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	product, err := h.products.Create(c.Request.Context(), getUserID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, product)
}

func (h *ProductHandler) Update(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	product, err := h.products.Update(c.Request.Context(), getUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, product)
}

type deleteSelectedRequest struct {
	IDs []string `json:"ids"`
}

func (h *ProductHandler) DeleteSelected(c *gin.Context) {
	var req deleteSelectedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	n, err := h.products.DeleteSelected(c.Request.Context(), getUserID(c), req.IDs)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": n})
}

func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.products.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": c.Param("id")})
}

func (h *ProductHandler) DeleteAll(c *gin.Context) {
	n, err := h.products.DeleteAll(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": n})
}

func (h *ProductHandler) Import(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file required")
		return
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		response.Error(c, errcode.ErrInvalidFile, "file too large (max "+formatUploadLimit(h.maxUploadSize)+")")
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".xlsx") {
		response.Error(c, errcode.ErrInvalidFile, "only .xlsx files are supported")
		return
	}
	src, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "cannot read upload")
		return
	}
	defer src.Close()

	report, err := h.imports.ImportWorkbook(c.Request.Context(), getUserID(c), file.Filename, src, file.Size)
	if err != nil {
		handleError(c, err)
		return
	}
	requestLogger(c).Info("workbook imported",
		zap.String("file", file.Filename),
		zap.Int("total", report.Total),
		zap.Int("created", report.Created),
		zap.Int("categorized", report.Categorized),
	)
	response.Success(c, report)
}
