package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/service"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
	"github.com/edumart/edumart-api/pkg/response"
)

// ExportHandler serves admin data exports.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// SalesCSV godoc
// @Summary Export sales as CSV
// @Description Sales rows between two instants, bounds in RFC3339.
// @Tags Exports
// @Produce text/csv
// @Param from query string true "Window start (RFC3339)"
// @Param to query string true "Window end (RFC3339)"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /admin/exports/sales [get]
func (h *ExportHandler) SalesCSV(c *gin.Context) {
	var query dto.SalesExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from and to are required"))
		return
	}
	from, err := time.Parse(time.RFC3339, query.From)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
		return
	}
	to, err := time.Parse(time.RFC3339, query.To)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
		return
	}
	document, rows, err := h.service.SalesCSV(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"sales-%s.csv\"", from.Format("2006-01-02")))
	c.Header("X-Row-Count", fmt.Sprintf("%d", rows))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv", document)
}
