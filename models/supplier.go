package models

import (
	"context"
	"strings"
	"time"

	"github.com/maisoong/exchange_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var DefaultLowBalanceAlert = decimal.NewFromInt(10000)

// Supplier is one exchange counter. Its balance lives in DailySummary.
type Supplier struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Name            string          `gorm:"size:100;not null" json:"name"`
	Phone           string          `gorm:"size:20" json:"phone"`
	LowBalanceAlert decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"low_balance_alert"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name            string        `json:"name" validate:"required,max=100"`
	Phone           string        `json:"phone" validate:"max=20"`
	LowBalanceAlert *utils.Amount `json:"low_balance_alert"`
}

func (input *NewSupplier) validate(ctx context.Context, db *gorm.DB, id int) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Phone = strings.TrimSpace(input.Phone)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return utils.NewValidationError("phone: %v", err)
		}
		input.Phone = utils.FormatPhoneNumber(input.Phone, utils.CountryCode)
	}
	if input.LowBalanceAlert != nil && input.LowBalanceAlert.Decimal().IsNegative() {
		return utils.NewValidationError("low_balance_alert must not be negative")
	}
	return utils.ValidateUnique[Supplier](ctx, db, "name", input.Name, id)
}

func (input *NewSupplier) threshold(fallback decimal.Decimal) decimal.Decimal {
	if input.LowBalanceAlert == nil {
		return fallback
	}
	return utils.RoundAmount(input.LowBalanceAlert.Decimal())
}

func (l *Ledger) CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	db := l.db.WithContext(ctx)
	if err := input.validate(ctx, db, 0); err != nil {
		return nil, err
	}

	supplier := Supplier{
		Name:            input.Name,
		Phone:           input.Phone,
		LowBalanceAlert: input.threshold(DefaultLowBalanceAlert),
	}
	if err := db.Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (l *Ledger) UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {
	db := l.db.WithContext(ctx)
	supplier, err := l.GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, db, id); err != nil {
		return nil, err
	}

	err = db.Model(supplier).Updates(map[string]interface{}{
		"name":              input.Name,
		"phone":             input.Phone,
		"low_balance_alert": input.threshold(supplier.LowBalanceAlert),
	}).Error
	if err != nil {
		return nil, err
	}
	return l.GetSupplier(ctx, id)
}

// DeleteSupplier removes the counter with its ledger, summaries, rate
// observations, receipt counters and card positions.
func (l *Ledger) DeleteSupplier(ctx context.Context, id int) (*Supplier, error) {
	supplier, err := l.GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&Purchase{}, &Sale{}, &DailySummary{}, &RateHistory{}, &ReceiptCounter{}, &SupplierCardOrder{},
		} {
			if err := tx.Where("supplier_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&Supplier{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return supplier, nil
}

func (l *Ledger) GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	var supplier Supplier
	if err := l.db.WithContext(ctx).Take(&supplier, id).Error; err != nil {
		return nil, notFound(err, "supplier")
	}
	return &supplier, nil
}

// ListSuppliers returns newest first.
func (l *Ledger) ListSuppliers(ctx context.Context) ([]*Supplier, error) {
	var suppliers []*Supplier
	err := l.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&suppliers).Error
	return suppliers, err
}

// GetSuppliersByIds backs the per-request supplier loader.
func (l *Ledger) GetSuppliersByIds(ctx context.Context, ids []int) ([]*Supplier, error) {
	var suppliers []*Supplier
	if len(ids) == 0 {
		return suppliers, nil
	}
	err := l.db.WithContext(ctx).Where("id IN ?", ids).Find(&suppliers).Error
	return suppliers, err
}

func (l *Ledger) validateSupplierId(ctx context.Context, id int) error {
	if id <= 0 {
		return utils.NewValidationError("supplier_id is required")
	}
	return utils.ValidateResourceId[Supplier](ctx, l.db, "supplier", id)
}
