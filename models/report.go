package models

import (
	"context"
	"time"

	"github.com/maisoong/exchange_backend/utils"
	"github.com/shopspring/decimal"
)

// SummaryFilter dates are Bangkok dates, both inclusive.
type SummaryFilter struct {
	SupplierId *int
	StartDate  *time.Time
	EndDate    *time.Time
}

// ListDailySummaries reads stored rows as they are; it does not refresh.
func (l *Ledger) ListDailySummaries(ctx context.Context, filter SummaryFilter) ([]*SummaryRow, error) {
	db := l.db.WithContext(ctx).Model(&DailySummary{}).
		Select("daily_summaries.*, suppliers.name AS supplier_name, suppliers.low_balance_alert AS alert_threshold").
		Joins("LEFT JOIN suppliers ON suppliers.id = daily_summaries.supplier_id")
	if filter.SupplierId != nil {
		db = db.Where("daily_summaries.supplier_id = ?", *filter.SupplierId)
	}
	if filter.StartDate != nil {
		db = db.Where("daily_summaries.summary_date >= ?", utils.NormalizeDate(*filter.StartDate))
	}
	if filter.EndDate != nil {
		db = db.Where("daily_summaries.summary_date <= ?", utils.NormalizeDate(*filter.EndDate))
	}

	var rows []*SummaryRow
	err := db.Order("daily_summaries.summary_date DESC").
		Order("suppliers.name ASC").
		Scan(&rows).Error
	return rows, err
}

type ProfitTotals struct {
	PurchasedThb decimal.Decimal `json:"total_purchased_thb"`
	SoldThb      decimal.Decimal `json:"total_sold_thb"`
	ProfitThb    decimal.Decimal `json:"total_profit_thb"`
}

type ProfitReport struct {
	Rows   []*SummaryRow `json:"data"`
	Totals ProfitTotals  `json:"totals"`
}

// ProfitReport totals daily_profit_thb over the filtered rows.
func (l *Ledger) ProfitReport(ctx context.Context, filter SummaryFilter) (*ProfitReport, error) {
	rows, err := l.ListDailySummaries(ctx, filter)
	if err != nil {
		return nil, err
	}
	report := &ProfitReport{
		Rows: rows,
		Totals: ProfitTotals{
			PurchasedThb: decimal.Zero,
			SoldThb:      decimal.Zero,
			ProfitThb:    decimal.Zero,
		},
	}
	for _, r := range rows {
		report.Totals.PurchasedThb = report.Totals.PurchasedThb.Add(r.PurchasedThb)
		report.Totals.SoldThb = report.Totals.SoldThb.Add(r.SoldThb)
		report.Totals.ProfitThb = report.Totals.ProfitThb.Add(r.DailyProfitThb)
	}
	return report, nil
}
