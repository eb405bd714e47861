package models

import (
	"context"
	"time"

	"github.com/maisoong/exchange_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Purchase is a buy: the counter pays MMK and acquires THB.
type Purchase struct {
	ID           int             `gorm:"primary_key" json:"id"`
	SupplierId   int             `gorm:"not null;index:idx_purchase_supplier_created,priority:1" json:"supplier_id"`
	MmkAmount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"mmk_amount"`
	ExchangeRate decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"exchange_rate"`
	TotalThb     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_thb"`
	Note         *string         `gorm:"type:text" json:"note"`
	CreatedAt    time.Time       `gorm:"not null;index:idx_purchase_supplier_created,priority:2" json:"created_at"`
	SupplierName string          `gorm:"->;-:migration" json:"supplier_name,omitempty"`
}

type NewPurchase struct {
	SupplierId   int          `json:"supplier_id"`
	MmkAmount    utils.Amount `json:"mmk_amount"`
	ExchangeRate utils.Amount `json:"exchange_rate"`
	Note         string       `json:"note"`
}

// validate rounds the amounts to storage precision and rejects any that
// round to zero, total_thb included.
func (input *NewPurchase) validate() (mmk, rate, total decimal.Decimal, err error) {
	if input.SupplierId <= 0 {
		err = utils.NewValidationError("supplier_id is required")
		return
	}
	if mmk, err = utils.RequirePositive("mmk_amount", input.MmkAmount.Decimal(), utils.AmountScale); err != nil {
		return
	}
	if rate, err = utils.RequirePositive("exchange_rate", input.ExchangeRate.Decimal(), utils.RateScale); err != nil {
		return
	}
	total, err = utils.RequirePositive("total_thb", mmk.Mul(rate), utils.AmountScale)
	return
}

// RecordPurchase stores the buy with total_thb fixed at insert, appends the
// buy rate and refreshes today's summary.
func (l *Ledger) RecordPurchase(ctx context.Context, input *NewPurchase) (*Purchase, error) {
	mmk, rate, total, err := input.validate()
	if err != nil {
		return nil, err
	}
	if err := l.validateSupplierId(ctx, input.SupplierId); err != nil {
		return nil, err
	}

	now := l.clock.Now()
	today := utils.BangkokDate(now)
	if _, err := l.ensureSummary(ctx, input.SupplierId, today); err != nil {
		return nil, err
	}

	purchase := Purchase{
		SupplierId:   input.SupplierId,
		MmkAmount:    mmk,
		ExchangeRate: rate,
		TotalThb:     total,
		Note:         utils.NilIfEmpty(input.Note),
		CreatedAt:    now,
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&purchase).Error; err != nil {
			return err
		}
		_, err := recordRate(tx, input.SupplierId, RateTypeBuy, rate, purchase.MmkAmount, purchase.TotalThb, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.refreshAfterWrite(ctx, input.SupplierId, "RecordPurchase")
	l.publish(ctx, purchase.SupplierId, today, "purchase", purchase.ID, EventActionCreate, purchase)
	return &purchase, nil
}

// DeletePurchase removes the entry and refreshes the supplier's today.
func (l *Ledger) DeletePurchase(ctx context.Context, id int) (*Purchase, error) {
	db := l.db.WithContext(ctx)
	var purchase Purchase
	if err := db.Take(&purchase, id).Error; err != nil {
		return nil, notFound(err, "purchase")
	}
	if err := db.Delete(&Purchase{}, id).Error; err != nil {
		return nil, err
	}

	l.refreshAfterWrite(ctx, purchase.SupplierId, "DeletePurchase")
	l.publish(ctx, purchase.SupplierId, l.Today(), "purchase", purchase.ID, EventActionDelete, purchase)
	return &purchase, nil
}

// LedgerFilter narrows purchase and sale listings. Date is a Bangkok date.
type LedgerFilter struct {
	SupplierId *int
	Date       *time.Time
	Limit      int
}

func (f LedgerFilter) apply(db *gorm.DB, table string) *gorm.DB {
	if f.SupplierId != nil {
		db = db.Where(table+".supplier_id = ?", *f.SupplierId)
	}
	if f.Date != nil {
		start, end := utils.DayRange(*f.Date)
		db = db.Where(table+".created_at >= ? AND "+table+".created_at < ?", start, end)
	}
	if f.Limit > 0 {
		db = db.Limit(f.Limit)
	}
	return db
}

func (l *Ledger) ListPurchases(ctx context.Context, filter LedgerFilter) ([]*Purchase, error) {
	var purchases []*Purchase
	db := l.db.WithContext(ctx).Model(&Purchase{}).
		Select("purchases.*, suppliers.name AS supplier_name").
		Joins("LEFT JOIN suppliers ON suppliers.id = purchases.supplier_id")
	err := filter.apply(db, "purchases").
		Order("purchases.created_at DESC").Order("purchases.id DESC").
		Find(&purchases).Error
	return purchases, err
}
