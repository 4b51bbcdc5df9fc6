package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type voucherAdminStoreStub struct {
	vouchers  map[string]*models.Voucher
	createErr error
}

func newVoucherAdminStoreStub() *voucherAdminStoreStub {
	return &voucherAdminStoreStub{vouchers: map[string]*models.Voucher{}}
}

func (v *voucherAdminStoreStub) List(ctx context.Context) ([]models.Voucher, error) {
	out := make([]models.Voucher, 0, len(v.vouchers))
	for _, voucher := range v.vouchers {
		out = append(out, *voucher)
	}
	return out, nil
}

func (v *voucherAdminStoreStub) FindByCode(ctx context.Context, code string) (*models.Voucher, error) {
	voucher, ok := v.vouchers[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *voucher
	return &copied, nil
}

func (v *voucherAdminStoreStub) Create(ctx context.Context, voucher *models.Voucher) error {
	if v.createErr != nil {
		return v.createErr
	}
	voucher.ID = "vch-1"
	v.vouchers[voucher.Code] = voucher
	return nil
}

func (v *voucherAdminStoreStub) Update(ctx context.Context, voucher *models.Voucher) error {
	v.vouchers[voucher.Code] = voucher
	return nil
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func TestVoucherCreate(t *testing.T) {
	repo := newVoucherAdminStoreStub()
	audit := &auditStub{}
	svc := NewVoucherService(repo, audit, nil, nil)

	expires := "2026-12-31T23:59:59Z"
	voucher, err := svc.Create(context.Background(), dto.CreateVoucherRequest{
		Code:       "LAUNCH20",
		Type:       models.VoucherTypePercent,
		Value:      20,
		MinTotal:   5000,
		UsageLimit: 100,
		ExpiresAt:  &expires,
	}, adminClaims())
	require.NoError(t, err)
	require.True(t, voucher.Active)
	require.NotNil(t, voucher.ExpiresAt)
	require.Equal(t, 2026, voucher.ExpiresAt.Year())
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionVoucherChange, audit.logs[0].Action)
}

func TestVoucherCreateRejectsPercentOver100(t *testing.T) {
	svc := NewVoucherService(newVoucherAdminStoreStub(), nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateVoucherRequest{
		Code:  "TOOMUCH",
		Type:  models.VoucherTypePercent,
		Value: 120,
	}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVoucherCreateRejectsBadExpiry(t *testing.T) {
	svc := NewVoucherService(newVoucherAdminStoreStub(), nil, nil, nil)

	expires := "tomorrow"
	_, err := svc.Create(context.Background(), dto.CreateVoucherRequest{
		Code:      "SOON",
		Type:      models.VoucherTypeFixed,
		Value:     1000,
		ExpiresAt: &expires,
	}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVoucherCreateDuplicateCode(t *testing.T) {
	repo := newVoucherAdminStoreStub()
	repo.createErr = &pq.Error{Code: "23505"}
	svc := NewVoucherService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateVoucherRequest{
		Code:  "LAUNCH20",
		Type:  models.VoucherTypeFixed,
		Value: 1000,
	}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestVoucherUpdateKeepsCode(t *testing.T) {
	repo := newVoucherAdminStoreStub()
	repo.vouchers["LAUNCH20"] = &models.Voucher{
		ID:    "vch-1",
		Code:  "LAUNCH20",
		Type:  models.VoucherTypePercent,
		Value: 20,
	}
	audit := &auditStub{}
	svc := NewVoucherService(repo, audit, nil, nil)

	value := int64(30)
	active := false
	voucher, err := svc.Update(context.Background(), "LAUNCH20", dto.UpdateVoucherRequest{
		Value:  &value,
		Active: &active,
	}, adminClaims())
	require.NoError(t, err)
	require.Equal(t, "LAUNCH20", voucher.Code)
	require.Equal(t, int64(30), voucher.Value)
	require.False(t, voucher.Active)
	require.Len(t, audit.logs, 1)
	require.NotEmpty(t, audit.logs[0].OldValues)
}

func TestVoucherUpdatePercentCap(t *testing.T) {
	repo := newVoucherAdminStoreStub()
	repo.vouchers["LAUNCH20"] = &models.Voucher{
		Code:  "LAUNCH20",
		Type:  models.VoucherTypePercent,
		Value: 20,
	}
	svc := NewVoucherService(repo, nil, nil, nil)

	value := int64(150)
	_, err := svc.Update(context.Background(), "LAUNCH20", dto.UpdateVoucherRequest{Value: &value}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVoucherUpdateNotFound(t *testing.T) {
	svc := NewVoucherService(newVoucherAdminStoreStub(), nil, nil, nil)

	_, err := svc.Update(context.Background(), "MISSING", dto.UpdateVoucherRequest{}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestVoucherPreview(t *testing.T) {
	repo := newVoucherAdminStoreStub()
	expires := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	repo.vouchers["LAUNCH20"] = &models.Voucher{
		ID:         "vch-1",
		Code:       "LAUNCH20",
		Type:       models.VoucherTypePercent,
		Value:      20,
		MinTotal:   5000,
		UsageLimit: 100,
		Active:     true,
		ExpiresAt:  &expires,
	}
	svc := NewVoucherService(repo, nil, nil, nil)

	preview, err := svc.Preview(context.Background(), "LAUNCH20", 10000)
	require.NoError(t, err)
	require.Equal(t, int64(2000), preview.Discount)
	require.NotNil(t, preview.ExpiresAt)

	_, err = svc.Preview(context.Background(), "LAUNCH20", 4000)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Preview(context.Background(), "NOPE", 10000)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestVoucherPreviewRejectsUnredeemable(t *testing.T) {
	repo := newVoucherAdminStoreStub()
	repo.vouchers["PAUSED"] = &models.Voucher{Code: "PAUSED", Type: models.VoucherTypeFixed, Value: 500, Active: false}
	repo.vouchers["GONE"] = &models.Voucher{Code: "GONE", Type: models.VoucherTypeFixed, Value: 500, Active: true, UsageLimit: 10, UsedCount: 10}
	svc := NewVoucherService(repo, nil, nil, nil)

	_, err := svc.Preview(context.Background(), "PAUSED", 1000)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Preview(context.Background(), "GONE", 1000)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVoucherDiscount(t *testing.T) {
	percent := &models.Voucher{Type: models.VoucherTypePercent, Value: 25}
	require.Equal(t, int64(2500), percent.Discount(10000))

	fixed := &models.Voucher{Type: models.VoucherTypeFixed, Value: 4000}
	require.Equal(t, int64(4000), fixed.Discount(10000))
	require.Equal(t, int64(3000), fixed.Discount(3000))
}
