package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edumart/edumart-api/internal/models"
)

// VoucherRepository persists discount codes.
type VoucherRepository struct {
	db *sqlx.DB
}

// NewVoucherRepository constructs the repository.
func NewVoucherRepository(db *sqlx.DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

const voucherColumns = `id, code, type, value, min_total, usage_limit, used_count, active, expires_at, created_at, updated_at`

// FindByCode returns a voucher by its code (case-insensitive).
func (r *VoucherRepository) FindByCode(ctx context.Context, code string) (*models.Voucher, error) {
	query := fmt.Sprintf(`SELECT %s FROM vouchers WHERE UPPER(code) = $1 LIMIT 1`, voucherColumns)
	var voucher models.Voucher
	if err := r.db.GetContext(ctx, &voucher, query, strings.ToUpper(code)); err != nil {
		return nil, err
	}
	return &voucher, nil
}

// List returns all vouchers, newest first.
func (r *VoucherRepository) List(ctx context.Context) ([]models.Voucher, error) {
	query := fmt.Sprintf(`SELECT %s FROM vouchers ORDER BY created_at DESC`, voucherColumns)
	var vouchers []models.Voucher
	if err := r.db.SelectContext(ctx, &vouchers, query); err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	return vouchers, nil
}

// Create inserts a new voucher.
func (r *VoucherRepository) Create(ctx context.Context, voucher *models.Voucher) error {
	if voucher.ID == "" {
		voucher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if voucher.CreatedAt.IsZero() {
		voucher.CreatedAt = now
	}
	voucher.UpdatedAt = now
	voucher.Code = strings.ToUpper(voucher.Code)
	const query = `INSERT INTO vouchers (id, code, type, value, min_total, usage_limit, used_count, active, expires_at, created_at, updated_at)
	VALUES (:id, :code, :type, :value, :min_total, :usage_limit, :used_count, :active, :expires_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, voucher); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create voucher: %w", err)
	}
	return nil
}

// Update changes voucher terms.
func (r *VoucherRepository) Update(ctx context.Context, voucher *models.Voucher) error {
	voucher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE vouchers SET type = :type, value = :value, min_total = :min_total,
	usage_limit = :usage_limit, active = :active, expires_at = :expires_at, updated_at = :updated_at
	WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, voucher); err != nil {
		return fmt.Errorf("update voucher: %w", err)
	}
	return nil
}

// RedeemTx atomically consumes one use of a voucher inside the checkout
// transaction. Zero rows means the voucher expired, was deactivated, or ran
// out of uses between validation and commit.
func (r *VoucherRepository) RedeemTx(ctx context.Context, tx *sqlx.Tx, code string, now time.Time) error {
	const query = `UPDATE vouchers SET used_count = used_count + 1, updated_at = $2
	WHERE UPPER(code) = $1 AND active = TRUE
	AND (expires_at IS NULL OR expires_at > $2)
	AND (usage_limit <= 0 OR used_count < usage_limit)`
	res, err := tx.ExecContext(ctx, query, strings.ToUpper(code), now)
	if err != nil {
		return fmt.Errorf("redeem voucher: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("redeem voucher: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
