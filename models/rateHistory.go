package models

import (
	"context"
	"sort"
	"time"

	"github.com/maisoong/exchange_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RateType string

const (
	RateTypeBuy  RateType = "buy"
	RateTypeSell RateType = "sell"
)

func (t RateType) IsValid() bool {
	return t == RateTypeBuy || t == RateTypeSell
}

// RateHistory is an append-only observation of an executed rate.
type RateHistory struct {
	ID           int             `gorm:"primary_key" json:"id"`
	SupplierId   int             `gorm:"not null;index:idx_rate_supplier_recorded,priority:1" json:"supplier_id"`
	RateType     RateType        `gorm:"size:4;not null;index" json:"rate_type"`
	ExchangeRate decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"exchange_rate"`
	MmkAmount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"mmk_amount"`
	ThbAmount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"thb_amount"`
	RecordedAt   time.Time       `gorm:"not null;index:idx_rate_supplier_recorded,priority:2" json:"recorded_at"`
	SupplierName string          `gorm:"-" json:"supplier_name,omitempty"`
}

func recordRate(tx *gorm.DB, supplierId int, rateType RateType, rate, mmk, thb decimal.Decimal, at time.Time) (*RateHistory, error) {
	if !rateType.IsValid() {
		return nil, utils.NewValidationError("rate_type must be buy or sell")
	}
	row := RateHistory{
		SupplierId:   supplierId,
		RateType:     rateType,
		ExchangeRate: rate,
		MmkAmount:    mmk,
		ThbAmount:    thb,
		RecordedAt:   at,
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// RecordRate appends an observation outside of a purchase or sale.
func (l *Ledger) RecordRate(ctx context.Context, supplierId int, rateType RateType, rate, mmk, thb decimal.Decimal) (*RateHistory, error) {
	if err := l.validateSupplierId(ctx, supplierId); err != nil {
		return nil, err
	}
	return recordRate(l.db.WithContext(ctx), supplierId, rateType, rate, mmk, thb, l.clock.Now())
}

// RateFilter dates are Bangkok dates, both inclusive.
type RateFilter struct {
	SupplierId *int
	RateType   *RateType
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
}

func (l *Ledger) ListRateHistory(ctx context.Context, filter RateFilter) ([]*RateHistory, error) {
	db := l.db.WithContext(ctx).Model(&RateHistory{})
	if filter.SupplierId != nil {
		db = db.Where("supplier_id = ?", *filter.SupplierId)
	}
	if filter.RateType != nil {
		if !filter.RateType.IsValid() {
			return nil, utils.NewValidationError("rate_type must be buy or sell")
		}
		db = db.Where("rate_type = ?", *filter.RateType)
	}
	if filter.StartDate != nil {
		start, _ := utils.DayRange(*filter.StartDate)
		db = db.Where("recorded_at >= ?", start)
	}
	if filter.EndDate != nil {
		_, end := utils.DayRange(*filter.EndDate)
		db = db.Where("recorded_at < ?", end)
	}
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}

	var rows []*RateHistory
	err := db.Order("recorded_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

type RateStat struct {
	Date     string          `json:"date"`
	RateType RateType        `json:"rate_type"`
	AvgRate  decimal.Decimal `json:"avg_rate"`
	MinRate  decimal.Decimal `json:"min_rate"`
	MaxRate  decimal.Decimal `json:"max_rate"`
	Count    int             `json:"count"`
}

const DefaultRateStatDays = 7

// RateStats groups the trailing window of Bangkok days (today included) by
// date and type. Newest date first, buy before sell.
func (l *Ledger) RateStats(ctx context.Context, supplierId *int, days int) ([]*RateStat, error) {
	if days <= 0 {
		days = DefaultRateStatDays
	}
	today := l.Today()
	start, _ := utils.DayRange(today.AddDate(0, 0, -(days - 1)))

	db := l.db.WithContext(ctx).Model(&RateHistory{}).
		Select("rate_type", "exchange_rate", "recorded_at").
		Where("recorded_at >= ?", start)
	if supplierId != nil {
		db = db.Where("supplier_id = ?", *supplierId)
	}
	var rows []RateHistory
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	return aggregateRateStats(rows), nil
}

func aggregateRateStats(rows []RateHistory) []*RateStat {
	type bucketKey struct {
		date     string
		rateType RateType
	}
	type bucket struct {
		stat *RateStat
		sum  decimal.Decimal
	}
	buckets := map[bucketKey]*bucket{}
	for _, r := range rows {
		key := bucketKey{date: utils.FormatDate(utils.BangkokDate(r.RecordedAt)), rateType: r.RateType}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				stat: &RateStat{Date: key.date, RateType: r.RateType, MinRate: r.ExchangeRate, MaxRate: r.ExchangeRate},
				sum:  decimal.Zero,
			}
			buckets[key] = b
		}
		b.sum = b.sum.Add(r.ExchangeRate)
		b.stat.Count++
		if r.ExchangeRate.LessThan(b.stat.MinRate) {
			b.stat.MinRate = r.ExchangeRate
		}
		if r.ExchangeRate.GreaterThan(b.stat.MaxRate) {
			b.stat.MaxRate = r.ExchangeRate
		}
	}

	stats := make([]*RateStat, 0, len(buckets))
	for _, b := range buckets {
		b.stat.AvgRate = utils.RoundRate(b.sum.DivRound(decimal.NewFromInt(int64(b.stat.Count)), utils.RateScale+4))
		stats = append(stats, b.stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Date != stats[j].Date {
			return stats[i].Date > stats[j].Date
		}
		return stats[i].RateType < stats[j].RateType
	})
	return stats
}
