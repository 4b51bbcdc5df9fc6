package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/edumart/edumart-api/internal/repository"
	"github.com/edumart/edumart-api/pkg/export"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type salesReader interface {
	SalesBetween(ctx context.Context, from, to time.Time) ([]repository.SalesRow, error)
}

// ExportService renders admin reports. Sales exports are CSV; invoices come
// from the order service as PDF.
type ExportService struct {
	orders salesReader
	csv    *export.CSVExporter
	logger *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(orders salesReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{orders: orders, csv: export.NewCSVExporter(), logger: logger}
}

// SalesCSV renders paid order lines in [from, to) as CSV.
func (s *ExportService) SalesCSV(ctx context.Context, from, to time.Time) ([]byte, int, error) {
	if !to.After(from) {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "to must be after from")
	}
	rows, err := s.orders.SalesBetween(ctx, from, to)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query sales")
	}

	dataset := export.Dataset{
		Headers: []string{"order_id", "created_at", "buyer_email", "course_title", "unit_price", "voucher_code"},
	}
	for _, row := range rows {
		voucher := ""
		if row.VoucherCode != nil {
			voucher = *row.VoucherCode
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"order_id":     row.OrderID,
			"created_at":   row.CreatedAt.UTC().Format(time.RFC3339),
			"buyer_email":  row.BuyerEmail,
			"course_title": row.CourseTitle,
			"unit_price":   strconv.FormatInt(row.UnitPrice, 10),
			"voucher_code": voucher,
		})
	}
	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render sales csv")
	}
	s.logger.Info("sales export rendered",
		zap.Int("rows", len(rows)),
		zap.String("window", fmt.Sprintf("%s/%s", from.Format(time.RFC3339), to.Format(time.RFC3339))))
	return payload, len(rows), nil
}
