package models

import (
	"context"
	"sort"
	"time"

	"github.com/maisoong/exchange_backend/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const refreshConcurrency = 4

// UnpositionedCard is the position reported for suppliers the user has not
// placed.
const UnpositionedCard = 999999

// SupplierBalance is one dashboard card: the supplier flattened together
// with today's refreshed book. LowBalanceAlert is the flag; the configured
// threshold is AlertThreshold.
type SupplierBalance struct {
	ID              int             `json:"id"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone"`
	AlertThreshold  decimal.Decimal `json:"alert_threshold"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Position        int             `json:"position"`
	SummaryDate     time.Time       `json:"summary_date"`
	OpeningThb      decimal.Decimal `json:"opening_thb"`
	OpeningMmk      decimal.Decimal `json:"opening_mmk"`
	PurchasedThb    decimal.Decimal `json:"purchased_thb"`
	PurchasedMmk    decimal.Decimal `json:"purchased_mmk"`
	SoldThb         decimal.Decimal `json:"sold_thb"`
	SoldMmk         decimal.Decimal `json:"sold_mmk"`
	ClosingThb      decimal.Decimal `json:"closing_thb"`
	ClosingMmk      decimal.Decimal `json:"closing_mmk"`
	ClosingAvgRate  decimal.Decimal `json:"closing_avg_rate"`
	DailyProfitThb  decimal.Decimal `json:"daily_profit_thb"`
	IsClosed        bool            `json:"is_closed"`
	LowBalanceAlert bool            `json:"low_balance_alert"`
}

func newSupplierBalance(s Supplier, position *int, row *DailySummary) *SupplierBalance {
	card := &SupplierBalance{
		ID:             s.ID,
		Name:           s.Name,
		Phone:          s.Phone,
		AlertThreshold: s.LowBalanceAlert,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		Position:       UnpositionedCard,
	}
	if position != nil {
		card.Position = *position
	}
	if row != nil {
		card.SummaryDate = row.SummaryDate
		card.OpeningThb = row.OpeningThb
		card.OpeningMmk = row.OpeningMmk
		card.PurchasedThb = row.PurchasedThb
		card.PurchasedMmk = row.PurchasedMmk
		card.SoldThb = row.SoldThb
		card.SoldMmk = row.SoldMmk
		card.ClosingThb = row.ClosingThb
		card.ClosingMmk = row.ClosingMmk
		card.ClosingAvgRate = row.ClosingAvgRate
		card.DailyProfitThb = row.DailyProfitThb
		card.IsClosed = row.IsClosed
		card.LowBalanceAlert = isLowBalance(row, s.LowBalanceAlert)
	}
	return card
}

type supplierWithPosition struct {
	Supplier
	CardPosition *int
}

// suppliersForUser orders by the user's saved card positions, unpositioned
// suppliers last and newest first.
func suppliersForUser(db *gorm.DB, userId int) ([]supplierWithPosition, error) {
	var rows []supplierWithPosition
	err := db.Model(&Supplier{}).
		Select("suppliers.*, sco.position AS card_position").
		Joins("LEFT JOIN supplier_card_orders sco ON sco.supplier_id = suppliers.id AND sco.user_id = ?", userId).
		Order("CASE WHEN sco.position IS NULL THEN 1 ELSE 0 END").
		Order("sco.position ASC").
		Order("suppliers.created_at DESC").
		Order("suppliers.id DESC").
		Scan(&rows).Error
	return rows, err
}

// refreshAll runs EnsureAndRecompute for each supplier with bounded
// concurrency. Results keep the input order.
func (l *Ledger) refreshAll(ctx context.Context, supplierIds []int) ([]*DailySummary, error) {
	out := make([]*DailySummary, len(supplierIds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for i, id := range supplierIds {
		i, id := i, id
		g.Go(func() error {
			row, err := l.EnsureAndRecompute(gctx, id)
			if err != nil {
				return err
			}
			out[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func isLowBalance(row *DailySummary, threshold decimal.Decimal) bool {
	return row != nil && row.ClosingThb.LessThan(threshold)
}

// Dashboard returns every supplier in the user's card order with today's
// refreshed summary and low-balance flag.
func (l *Ledger) Dashboard(ctx context.Context, userId int) ([]*SupplierBalance, error) {
	rows, err := suppliersForUser(l.db.WithContext(ctx), userId)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	summaries, err := l.refreshAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]*SupplierBalance, len(rows))
	for i, r := range rows {
		result[i] = newSupplierBalance(r.Supplier, r.CardPosition, summaries[i])
	}
	return result, nil
}

// LowBalanceAlert names a supplier whose closing THB is under its threshold.
type LowBalanceAlert struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	Threshold      decimal.Decimal `json:"threshold"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

// LowBalanceAlerts lists suppliers whose refreshed closing THB is under
// their threshold.
func (l *Ledger) LowBalanceAlerts(ctx context.Context) ([]*LowBalanceAlert, error) {
	suppliers, err := l.ListSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(suppliers))
	for i, s := range suppliers {
		ids[i] = s.ID
	}
	summaries, err := l.refreshAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	alerts := make([]*LowBalanceAlert, 0)
	for i, s := range suppliers {
		if isLowBalance(summaries[i], s.LowBalanceAlert) {
			alerts = append(alerts, &LowBalanceAlert{
				ID:             s.ID,
				Name:           s.Name,
				Threshold:      s.LowBalanceAlert,
				CurrentBalance: summaries[i].ClosingThb,
			})
		}
	}
	return alerts, nil
}

// SummaryRow is a stored daily summary with its supplier's name and
// low-balance threshold.
type SummaryRow struct {
	DailySummary
	SupplierName   string          `json:"supplier_name"`
	AlertThreshold decimal.Decimal `json:"alert_threshold"`
}

type SummaryTotals struct {
	OpeningThb   decimal.Decimal `json:"total_opening_thb"`
	PurchasedThb decimal.Decimal `json:"total_purchased_thb"`
	SoldThb      decimal.Decimal `json:"total_sold_thb"`
	ClosingThb   decimal.Decimal `json:"total_closing_thb"`
	ProfitThb    decimal.Decimal `json:"total_profit_thb"`
}

type TodaySummary struct {
	Date      string        `json:"date"`
	Suppliers []*SummaryRow `json:"suppliers"`
	Totals    SummaryTotals `json:"totals"`
}

// TodaySummaries refreshes every supplier and returns today's rows, by
// supplier name, with cross-supplier totals.
func (l *Ledger) TodaySummaries(ctx context.Context) (*TodaySummary, error) {
	suppliers, err := l.ListSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(suppliers))
	for i, s := range suppliers {
		ids[i] = s.ID
	}
	summaries, err := l.refreshAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &TodaySummary{
		Date:      utils.FormatDate(l.Today()),
		Suppliers: make([]*SummaryRow, 0, len(suppliers)),
		Totals: SummaryTotals{
			OpeningThb:   decimal.Zero,
			PurchasedThb: decimal.Zero,
			SoldThb:      decimal.Zero,
			ClosingThb:   decimal.Zero,
			ProfitThb:    decimal.Zero,
		},
	}
	for i, s := range suppliers {
		row := summaries[i]
		if row == nil {
			continue
		}
		out.Suppliers = append(out.Suppliers, &SummaryRow{
			DailySummary:   *row,
			SupplierName:   s.Name,
			AlertThreshold: s.LowBalanceAlert,
		})
		out.Totals.OpeningThb = out.Totals.OpeningThb.Add(row.OpeningThb)
		out.Totals.PurchasedThb = out.Totals.PurchasedThb.Add(row.PurchasedThb)
		out.Totals.SoldThb = out.Totals.SoldThb.Add(row.SoldThb)
		out.Totals.ClosingThb = out.Totals.ClosingThb.Add(row.ClosingThb)
		out.Totals.ProfitThb = out.Totals.ProfitThb.Add(row.DailyProfitThb)
	}
	sort.SliceStable(out.Suppliers, func(i, j int) bool {
		return out.Suppliers[i].SupplierName < out.Suppliers[j].SupplierName
	})
	return out, nil
}

// SupplierDetail is the counter page: refreshed today plus today's entries.
type SupplierDetail struct {
	Supplier
	Today     *DailySummary `json:"today"`
	Purchases []*Purchase   `json:"purchases"`
	Sales     []*Sale       `json:"sales"`
}

func (l *Ledger) GetSupplierDetail(ctx context.Context, id int) (*SupplierDetail, error) {
	supplier, err := l.GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, err := l.EnsureAndRecompute(ctx, id)
	if err != nil {
		return nil, err
	}
	today := l.Today()
	filter := LedgerFilter{SupplierId: &id, Date: &today}
	purchases, err := l.ListPurchases(ctx, filter)
	if err != nil {
		return nil, err
	}
	sales, err := l.ListSales(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &SupplierDetail{Supplier: *supplier, Today: summary, Purchases: purchases, Sales: sales}, nil
}
