package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/maisoong/exchange_backend/config"
	"github.com/maisoong/exchange_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// DailySummary is the per-counter book for one Bangkok civil date.
//
// Grain: (supplier_id, summary_date). Opening values are copied from the
// previous row's closing values once, when the row is created.
type DailySummary struct {
	ID             int             `gorm:"primary_key" json:"id"`
	SupplierId     int             `gorm:"not null;uniqueIndex:idx_ds_supplier_date,priority:1" json:"supplier_id"`
	SummaryDate    time.Time       `gorm:"type:date;not null;uniqueIndex:idx_ds_supplier_date,priority:2;index" json:"summary_date"`
	OpeningThb     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"opening_thb"`
	OpeningMmk     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"opening_mmk"`
	OpeningAvgRate decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"opening_avg_rate"`
	PurchasedThb   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"purchased_thb"`
	PurchasedMmk   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"purchased_mmk"`
	SoldThb        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"sold_thb"`
	SoldMmk        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"sold_mmk"`
	ClosingThb     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"closing_thb"`
	ClosingMmk     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"closing_mmk"`
	ClosingAvgRate decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"closing_avg_rate"`
	DailyProfitThb decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"daily_profit_thb"`
	IsClosed       bool            `gorm:"not null;default:false" json:"is_closed"`
	ClosedAt       *time.Time      `json:"closed_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// dayTotals is the ledger aggregate for one supplier/day.
type dayTotals struct {
	PurchasedThb decimal.Decimal
	PurchasedMmk decimal.Decimal
	SoldThb      decimal.Decimal
	SoldMmk      decimal.Decimal
}

// applyTotals derives every closing field from opening values and totals.
func (s *DailySummary) applyTotals(t dayTotals) {
	s.PurchasedThb = utils.RoundAmount(t.PurchasedThb)
	s.PurchasedMmk = utils.RoundAmount(t.PurchasedMmk)
	s.SoldThb = utils.RoundAmount(t.SoldThb)
	s.SoldMmk = utils.RoundAmount(t.SoldMmk)

	s.ClosingThb = utils.RoundAmount(s.OpeningThb.Add(t.PurchasedThb).Sub(t.SoldThb))
	s.ClosingMmk = utils.RoundAmount(s.OpeningMmk.Add(t.PurchasedMmk).Sub(t.SoldMmk))

	// cumulative average over opening stock plus today's buys
	acquiredThb := s.OpeningThb.Add(t.PurchasedThb)
	acquiredMmk := s.OpeningMmk.Add(t.PurchasedMmk)
	if acquiredMmk.IsPositive() {
		s.ClosingAvgRate = utils.RoundRate(acquiredThb.DivRound(acquiredMmk, utils.RateScale+4))
	} else {
		s.ClosingAvgRate = decimal.Zero
	}

	// same-day cash delta, not matched-lot profit
	s.DailyProfitThb = utils.RoundAmount(t.PurchasedThb.Sub(t.SoldThb))
}

func findDailySummary(db *gorm.DB, supplierId int, date time.Time) (*DailySummary, error) {
	var row DailySummary
	err := db.Where("supplier_id = ? AND summary_date = ?", supplierId, date).Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func dateOrToday(date time.Time, clock utils.Clock) time.Time {
	if date.IsZero() {
		return utils.Today(clock)
	}
	return utils.NormalizeDate(date)
}

// EnsureDailySummary returns the (supplier, date) row, creating it from the
// previous close when missing. A zero date means today.
func (l *Ledger) EnsureDailySummary(ctx context.Context, supplierId int, date time.Time) (*DailySummary, error) {
	if err := l.validateSupplierId(ctx, supplierId); err != nil {
		return nil, err
	}
	return l.ensureSummary(ctx, supplierId, dateOrToday(date, l.clock))
}

func (l *Ledger) ensureSummary(ctx context.Context, supplierId int, date time.Time) (*DailySummary, error) {
	ctx, span := l.tracer.Start(ctx, "models.ensureSummary", trace.WithAttributes(
		attribute.Int("supplier_id", supplierId),
		attribute.String("summary_date", utils.FormatDate(date)),
	))
	defer span.End()

	db := l.db.WithContext(ctx)
	existing, err := findDailySummary(db, supplierId, date)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return nil, err
	}

	row := DailySummary{
		SupplierId:     supplierId,
		SummaryDate:    date,
		OpeningThb:     decimal.Zero,
		OpeningMmk:     decimal.Zero,
		OpeningAvgRate: decimal.Zero,
	}
	var prev DailySummary
	err = db.Where("supplier_id = ? AND summary_date < ?", supplierId, date).
		Order("summary_date DESC").
		Take(&prev).Error
	switch {
	case err == nil:
		row.OpeningThb = prev.ClosingThb
		row.OpeningMmk = prev.ClosingMmk
		row.OpeningAvgRate = prev.ClosingAvgRate
	case errors.Is(err, gorm.ErrRecordNotFound):
		// first day for this supplier
	default:
		span.RecordError(err)
		return nil, err
	}
	row.applyTotals(dayTotals{
		PurchasedThb: decimal.Zero,
		PurchasedMmk: decimal.Zero,
		SoldThb:      decimal.Zero,
		SoldMmk:      decimal.Zero,
	})

	// a duplicate here is an expected race, so keep it out of the gorm log
	quiet := db.Session(&gorm.Session{Logger: gormlogger.Discard})
	if err := quiet.Create(&row).Error; err != nil {
		if isDuplicateKeyError(err) {
			// lost the create race; the winner's row is authoritative
			return findDailySummary(db, supplierId, date)
		}
		span.RecordError(err)
		config.LogError(l.logger, "models", "ensureSummary", "create daily summary", row, err)
		return nil, err
	}
	return findDailySummary(db, supplierId, date)
}

// RecomputeDailySummary re-derives the day's aggregates from the ledger and
// writes them back in one transaction. The row must already exist.
func (l *Ledger) RecomputeDailySummary(ctx context.Context, supplierId int, date time.Time) (*DailySummary, error) {
	date = dateOrToday(date, l.clock)
	ctx, span := l.tracer.Start(ctx, "models.RecomputeDailySummary", trace.WithAttributes(
		attribute.Int("supplier_id", supplierId),
		attribute.String("summary_date", utils.FormatDate(date)),
	))
	defer span.End()

	start, end := utils.DayRange(date)
	var out DailySummary
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row DailySummary
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("supplier_id = ? AND summary_date = ?", supplierId, date).
			Take(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: supplier %d on %s", utils.ErrDailySummaryMissing, supplierId, utils.FormatDate(date))
			}
			return err
		}

		totals, err := sumLedger(tx, supplierId, start, end)
		if err != nil {
			return err
		}
		row.applyTotals(totals)

		err = tx.Model(&DailySummary{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
			"purchased_thb":    row.PurchasedThb,
			"purchased_mmk":    row.PurchasedMmk,
			"sold_thb":         row.SoldThb,
			"sold_mmk":         row.SoldMmk,
			"closing_thb":      row.ClosingThb,
			"closing_mmk":      row.ClosingMmk,
			"closing_avg_rate": row.ClosingAvgRate,
			"daily_profit_thb": row.DailyProfitThb,
		}).Error
		if err != nil {
			return err
		}
		return tx.Take(&out, row.ID).Error
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &out, nil
}

// sumLedger totals purchases and sales created inside [start, end).
func sumLedger(tx *gorm.DB, supplierId int, start, end time.Time) (dayTotals, error) {
	totals := dayTotals{
		PurchasedThb: decimal.Zero,
		PurchasedMmk: decimal.Zero,
		SoldThb:      decimal.Zero,
		SoldMmk:      decimal.Zero,
	}

	var purchases []Purchase
	err := tx.Select("id", "mmk_amount", "total_thb").
		Where("supplier_id = ? AND created_at >= ? AND created_at < ?", supplierId, start, end).
		Find(&purchases).Error
	if err != nil {
		return totals, err
	}
	for _, p := range purchases {
		totals.PurchasedThb = totals.PurchasedThb.Add(p.TotalThb)
		totals.PurchasedMmk = totals.PurchasedMmk.Add(p.MmkAmount)
	}

	var sales []Sale
	err = tx.Select("id", "thb_amount", "total_mmk").
		Where("supplier_id = ? AND created_at >= ? AND created_at < ?", supplierId, start, end).
		Find(&sales).Error
	if err != nil {
		return totals, err
	}
	for _, s := range sales {
		totals.SoldThb = totals.SoldThb.Add(s.ThbAmount)
		totals.SoldMmk = totals.SoldMmk.Add(s.TotalMmk)
	}
	return totals, nil
}

// EnsureAndRecompute refreshes today's row for a supplier. This is the one
// place where a read is allowed to write.
func (l *Ledger) EnsureAndRecompute(ctx context.Context, supplierId int) (*DailySummary, error) {
	today := l.Today()
	release := l.lockSummary(ctx, supplierId, today)
	defer release()

	if _, err := l.ensureSummary(ctx, supplierId, today); err != nil {
		return nil, err
	}
	return l.RecomputeDailySummary(ctx, supplierId, today)
}

// RecomputeToday validates the supplier, then ensures and recomputes today.
func (l *Ledger) RecomputeToday(ctx context.Context, supplierId int) (*DailySummary, error) {
	if err := l.validateSupplierId(ctx, supplierId); err != nil {
		return nil, err
	}
	return l.EnsureAndRecompute(ctx, supplierId)
}

// lockSummary takes a short best-effort redis lock. When redis is missing
// or busy the caller proceeds unlocked; recompute is idempotent.
func (l *Ledger) lockSummary(ctx context.Context, supplierId int, date time.Time) func() {
	if l.locker == nil || config.SummaryLockDisabled() {
		return func() {}
	}
	key := fmt.Sprintf("lock:summary:%d:%s", supplierId, utils.CompactDate(date))
	lock, err := l.locker.Obtain(ctx, key, 10*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 40),
	})
	if err != nil {
		config.LogWarn(l.logger, "models", "lockSummary", "proceeding without summary lock", key, err)
		return func() {}
	}
	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}
}

// CloseDay marks today's row closed. Advisory only: writes keep flowing.
func (l *Ledger) CloseDay(ctx context.Context, supplierId int) (*DailySummary, error) {
	if err := l.validateSupplierId(ctx, supplierId); err != nil {
		return nil, err
	}
	today := l.Today()
	row, err := l.ensureSummary(ctx, supplierId, today)
	if err != nil {
		return nil, err
	}

	now := l.clock.Now()
	err = l.db.WithContext(ctx).Model(&DailySummary{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"is_closed": true,
		"closed_at": now,
	}).Error
	if err != nil {
		return nil, err
	}
	closed, err := findDailySummary(l.db.WithContext(ctx), supplierId, today)
	if err != nil {
		return nil, err
	}
	l.publish(ctx, supplierId, today, "daily_summary", closed.ID, EventActionClose, closed)
	return closed, nil
}

// refreshAfterWrite recomputes today after a committed ledger write. The
// entry stays even when this fails; the next read heals the summary.
func (l *Ledger) refreshAfterWrite(ctx context.Context, supplierId int, funcName string) {
	if _, err := l.EnsureAndRecompute(ctx, supplierId); err != nil {
		config.LogError(l.logger, "models", funcName, "recompute after write failed", supplierId, err)
	}
}
