package models

import (
	"context"
	"strings"
	"time"

	"github.com/maisoong/exchange_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Sale is a sell: the counter disburses THB against MMK.
type Sale struct {
	ID           int             `gorm:"primary_key" json:"id"`
	SupplierId   int             `gorm:"not null;index:idx_sale_supplier_created,priority:1" json:"supplier_id"`
	CustomerName string          `gorm:"size:100;not null" json:"customer_name"`
	ThbAmount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"thb_amount"`
	ExchangeRate decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"exchange_rate"`
	TotalMmk     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_mmk"`
	ReceiptNo    string          `gorm:"size:50;not null;uniqueIndex" json:"receipt_no"`
	Note         *string         `gorm:"type:text" json:"note"`
	CreatedAt    time.Time       `gorm:"not null;index:idx_sale_supplier_created,priority:2" json:"created_at"`
	SupplierName string          `gorm:"->;-:migration" json:"supplier_name,omitempty"`
}

type NewSale struct {
	SupplierId   int          `json:"supplier_id"`
	CustomerName string       `json:"customer_name"`
	ThbAmount    utils.Amount `json:"thb_amount"`
	ExchangeRate utils.Amount `json:"exchange_rate"`
	Note         string       `json:"note"`
}

func (input *NewSale) validate() (thb, rate, total decimal.Decimal, err error) {
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	if input.SupplierId <= 0 {
		err = utils.NewValidationError("supplier_id is required")
		return
	}
	if input.CustomerName == "" {
		err = utils.NewValidationError("customer_name is required")
		return
	}
	if len(input.CustomerName) > 100 {
		err = utils.NewValidationError("customer_name must be at most 100 characters")
		return
	}
	if thb, err = utils.RequirePositive("thb_amount", input.ThbAmount.Decimal(), utils.AmountScale); err != nil {
		return
	}
	if rate, err = utils.RequirePositive("exchange_rate", input.ExchangeRate.Decimal(), utils.RateScale); err != nil {
		return
	}
	total, err = utils.RequirePositive("total_mmk", thb.DivRound(rate, utils.AmountScale+4), utils.AmountScale)
	return
}

// RecordSale numbers the receipt, stores the sale with total_mmk fixed at
// insert, appends the sell rate and refreshes today's summary.
func (l *Ledger) RecordSale(ctx context.Context, input *NewSale) (*Sale, error) {
	thb, rate, total, err := input.validate()
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

	sale := Sale{
		SupplierId:   input.SupplierId,
		CustomerName: input.CustomerName,
		ThbAmount:    thb,
		ExchangeRate: rate,
		TotalMmk:     total,
		Note:         utils.NilIfEmpty(input.Note),
		CreatedAt:    now,
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := l.sequencer.Next(ctx, tx, input.SupplierId, today)
		if err != nil {
			return err
		}
		sale.ReceiptNo = FormatReceiptNo(today, input.SupplierId, seq)
		if err := tx.Create(&sale).Error; err != nil {
			return err
		}
		_, err = recordRate(tx, input.SupplierId, RateTypeSell, rate, sale.TotalMmk, sale.ThbAmount, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.refreshAfterWrite(ctx, input.SupplierId, "RecordSale")
	l.publish(ctx, sale.SupplierId, today, "sale", sale.ID, EventActionCreate, sale)
	return &sale, nil
}

// DeleteSale removes the entry and refreshes the supplier's today. The
// receipt number is not handed out again.
func (l *Ledger) DeleteSale(ctx context.Context, id int) (*Sale, error) {
	db := l.db.WithContext(ctx)
	var sale Sale
	if err := db.Take(&sale, id).Error; err != nil {
		return nil, notFound(err, "sale")
	}
	if err := db.Delete(&Sale{}, id).Error; err != nil {
		return nil, err
	}

	l.refreshAfterWrite(ctx, sale.SupplierId, "DeleteSale")
	l.publish(ctx, sale.SupplierId, l.Today(), "sale", sale.ID, EventActionDelete, sale)
	return &sale, nil
}

func (l *Ledger) GetSale(ctx context.Context, id int) (*Sale, error) {
	var sale Sale
	err := l.db.WithContext(ctx).Model(&Sale{}).
		Select("sales.*, suppliers.name AS supplier_name").
		Joins("LEFT JOIN suppliers ON suppliers.id = sales.supplier_id").
		Where("sales.id = ?", id).
		Take(&sale).Error
	if err != nil {
		return nil, notFound(err, "sale")
	}
	return &sale, nil
}

func (l *Ledger) ListSales(ctx context.Context, filter LedgerFilter) ([]*Sale, error) {
	var sales []*Sale
	db := l.db.WithContext(ctx).Model(&Sale{}).
		Select("sales.*, suppliers.name AS supplier_name").
		Joins("LEFT JOIN suppliers ON suppliers.id = sales.supplier_id")
	err := filter.apply(db, "sales").
		Order("sales.created_at DESC").Order("sales.id DESC").
		Find(&sales).Error
	return sales, err
}

const DefaultBusinessName = "Mai Soong Exchange"

type Receipt struct {
	BusinessName string `json:"business_name"`
	*Sale
}

// GetReceipt returns the sale with the business name printed on receipts.
func (l *Ledger) GetReceipt(ctx context.Context, id int) (*Receipt, error) {
	sale, err := l.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	name, err := l.GetSetting(ctx, SettingBusinessName, DefaultBusinessName)
	if err != nil {
		return nil, err
	}
	return &Receipt{BusinessName: name, Sale: sale}, nil
}
