package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	"github.com/edumart/edumart-api/internal/repository"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type voucherAdminStore interface {
	List(ctx context.Context) ([]models.Voucher, error)
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
	Create(ctx context.Context, voucher *models.Voucher) error
	Update(ctx context.Context, voucher *models.Voucher) error
}

// VoucherService covers admin voucher management. Redemption lives in the
// checkout path.
type VoucherService struct {
	repo      voucherAdminStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVoucherService constructs the service.
func NewVoucherService(repo voucherAdminStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *VoucherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &VoucherService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns all vouchers.
func (s *VoucherService) List(ctx context.Context) ([]models.Voucher, error) {
	vouchers, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vouchers")
	}
	return vouchers, nil
}

// Create adds a voucher. Percentage values above 100 are rejected.
func (s *VoucherService) Create(ctx context.Context, req dto.CreateVoucherRequest, actor *models.JWTClaims) (*models.Voucher, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid voucher payload")
	}
	if req.Type == models.VoucherTypePercent && req.Value > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "percentage discount cannot exceed 100")
	}
	expiresAt, err := parseOptionalTime(req.ExpiresAt)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expires_at must be RFC 3339")
	}

	voucher := &models.Voucher{
		Code:       req.Code,
		Type:       req.Type,
		Value:      req.Value,
		MinTotal:   req.MinTotal,
		UsageLimit: req.UsageLimit,
		Active:     true,
		ExpiresAt:  expiresAt,
	}
	if err := s.repo.Create(ctx, voucher); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "voucher code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create voucher")
	}
	s.emitAudit(ctx, actor, voucher, nil)
	return voucher, nil
}

// Update edits voucher terms. The code itself is immutable.
func (s *VoucherService) Update(ctx context.Context, code string, req dto.UpdateVoucherRequest, actor *models.JWTClaims) (*models.Voucher, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid voucher payload")
	}
	voucher, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "voucher not found")
	}
	before := *voucher

	if req.Value != nil {
		if voucher.Type == models.VoucherTypePercent && *req.Value > 100 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "percentage discount cannot exceed 100")
		}
		voucher.Value = *req.Value
	}
	if req.MinTotal != nil {
		voucher.MinTotal = *req.MinTotal
	}
	if req.UsageLimit != nil {
		voucher.UsageLimit = *req.UsageLimit
	}
	if req.Active != nil {
		voucher.Active = *req.Active
	}
	if req.ExpiresAt != nil {
		expiresAt, err := parseOptionalTime(req.ExpiresAt)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "expires_at must be RFC 3339")
		}
		voucher.ExpiresAt = expiresAt
	}
	if err := s.repo.Update(ctx, voucher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update voucher")
	}
	s.emitAudit(ctx, actor, voucher, &before)
	return voucher, nil
}

// Preview reports whether a voucher would apply to the given subtotal and how
// much it would take off. Nothing is redeemed.
func (s *VoucherService) Preview(ctx context.Context, code string, subtotal int64) (*dto.VoucherPreview, error) {
	voucher, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "voucher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load voucher")
	}
	if err := validateVoucher(voucher, subtotal); err != nil {
		return nil, err
	}
	preview := &dto.VoucherPreview{
		Code:     voucher.Code,
		Type:     voucher.Type,
		Value:    voucher.Value,
		MinTotal: voucher.MinTotal,
		Discount: voucher.Discount(subtotal),
	}
	if voucher.ExpiresAt != nil {
		formatted := voucher.ExpiresAt.Format(time.RFC3339)
		preview.ExpiresAt = &formatted
	}
	return preview, nil
}

func (s *VoucherService) emitAudit(ctx context.Context, actor *models.JWTClaims, voucher *models.Voucher, before *models.Voucher) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionVoucherChange,
		Resource:   "voucher",
		ResourceID: &voucher.ID,
		NewValues:  mustJSON(voucher),
		IPAddress:  "system",
		UserAgent:  "voucher-service",
	}
	if before != nil {
		log.OldValues = mustJSON(before)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func parseOptionalTime(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, err
	}
	utc := ts.UTC()
	return &utc, nil
}
