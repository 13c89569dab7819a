package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/barbartender/bartender/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ArchiveHandler serves workbooks kept by past imports.
type ArchiveHandler struct {
	imports *service.ImportService
}

func NewArchiveHandler(imports *service.ImportService) *ArchiveHandler {
	return &ArchiveHandler{imports: imports}
}

func (h *ArchiveHandler) Download(c *gin.Context) {
	key := c.Param("key")
	if key == "" || strings.ContainsAny(key, `/\`) {
		invalidRequest(c, "invalid archive key")
		return
	}
	file, err := h.imports.OpenArchive(c.Request.Context(), getUserID(c), key)
	if err != nil {
		handleError(c, err)
		return
	}
	defer file.Close()
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", `attachment; filename="`+key+`"`)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		requestLogger(c).Warn("stream archive failed", zap.String("key", key), zap.Error(err))
	}
}
